// Package runner executes one configured optimization run: it resolves the
// problem and strategy, wires listeners, metrics and traces, and persists
// the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/metrics"
	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
	"github.com/cwbudde/metaopt/internal/parameter"
	"github.com/cwbudde/metaopt/internal/store"
)

// ReasonError labels runs that failed before producing a result.
const ReasonError = "error"

// Deps are the optional collaborators of a run. The zero value runs without
// persistence, metrics or extra listeners.
type Deps struct {
	// ID names the run. Empty generates a UUID.
	ID string

	Store   store.Store
	Metrics *metrics.Metrics

	// TraceDir is the base directory for JSONL traces when tracing is
	// enabled. Empty derives it from the store configuration.
	TraceDir string

	// Listener and Logger receive progress in addition to the built-in
	// metrics and trace hooks.
	Listener opt.Listener
	Logger   opt.Logger
}

// Outcome describes a finished run.
type Outcome struct {
	ID        string
	Problem   string
	Variation string
	Strategy  opt.Type
	Seed      uint64

	Best           parameter.Array
	Fitness        float64
	InitialFitness float64

	// Error is the distance of Best to the exact solution, as a percentage
	// of the fitness range.
	Error float64

	Iterations  int
	Evaluations int64
	Reason      opt.Reason

	StartedAt time.Time
	Duration  time.Duration
}

// Record converts the outcome into its persisted form.
func (o *Outcome) Record() *store.RunRecord {
	rec := &store.RunRecord{
		ID:             o.ID,
		Problem:        o.Problem,
		Variation:      o.Variation,
		Strategy:       string(o.Strategy),
		Seed:           o.Seed,
		Fitness:        o.Fitness,
		InitialFitness: o.InitialFitness,
		ErrorPercent:   o.Error,
		Iterations:     o.Iterations,
		Evaluations:    o.Evaluations,
		Reason:         string(o.Reason),
		StartedAt:      o.StartedAt,
		Duration:       o.Duration,
	}
	if o.Best != nil {
		rec.Kind = o.Best.Kind().String()
		rec.Best = o.Best.Values()
		rec.Candidate = o.Best.String()
	}
	return rec
}

// Run executes the search described by cfg. When ctx is cancelled the
// partial outcome is returned (and stored) together with ctx.Err().
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Outcome, error) {
	problem, err := problems.Lookup(cfg.Problem, cfg.Variation)
	if err != nil {
		return nil, fmt.Errorf("resolve problem: %w", err)
	}
	typ, err := opt.ParseType(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve strategy: %w", err)
	}

	out := &Outcome{
		ID:        deps.ID,
		Problem:   cfg.Problem,
		Variation: strings.ToUpper(cfg.Variation),
		Strategy:  typ,
		Seed:      cfg.Seed,
		StartedAt: time.Now(),
	}
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Variation == "" {
		out.Variation = problems.Variations(cfg.Problem)[0]
	}
	if out.Seed == 0 {
		out.Seed = rand.Uint64()
	}

	var target optimizee.Problem = problem
	if cfg.ByComparison {
		target = optimizee.ByComparison(problem)
	}
	counting := optimizee.NewCounting(target)

	initial := problem.InitialGuess()
	if !target.EvaluateByComparison() {
		out.InitialFitness = problem.EvaluateFitness(initial)
	}
	fitnessRange := cfg.FitnessRange
	if fitnessRange <= 0 {
		fitnessRange = problem.FitnessRange()
	}

	loggers := opt.MultiLogger{opt.SlogLogger{Logger: slog.Default().With("run_id", out.ID)}}
	if deps.Logger != nil {
		loggers = append(loggers, deps.Logger)
	}
	var trace *store.TraceWriter
	if cfg.Trace.Enabled {
		trace, err = store.NewTraceWriter(traceDir(cfg, deps), out.ID, false)
		if err != nil {
			return nil, fmt.Errorf("open trace: %w", err)
		}
		trace.IncludeValues = cfg.Trace.IncludeValues
		loggers = append(loggers, trace)
	}

	opts := append(cfg.Options(),
		opt.WithRand(rand.New(rand.NewPCG(out.Seed, out.Seed^0x9e3779b97f4a7c15))),
		opt.WithListener(opt.MultiListener{deps.Metrics.Listener(typ), deps.Listener}),
		opt.WithLogger(loggers),
	)
	strategy, err := opt.New(typ, counting, opts...)
	if err != nil {
		closeTrace(trace, out.ID)
		return nil, err
	}

	slog.Info("Starting run",
		"run_id", out.ID,
		"problem", problem.Name(),
		"strategy", typ,
		"seed", out.Seed,
		"fitness_range", fitnessRange,
	)

	res, runErr := strategy.Optimize(ctx, initial, fitnessRange)
	out.Duration = time.Since(out.StartedAt)
	out.Evaluations = counting.Count()
	closeTrace(trace, out.ID)

	if res == nil {
		deps.Metrics.ObserveRun(typ, ReasonError, out.Evaluations, out.Duration)
		slog.Error("Run failed", "run_id", out.ID, "strategy", typ, "error", runErr)
		return nil, fmt.Errorf("%s on %s: %w", typ, problem.Name(), runErr)
	}

	out.Best = res.Best
	out.Iterations = res.Iterations
	out.Reason = res.Reason
	out.Fitness = res.Best.Fitness()
	if !res.Best.Evaluated() {
		out.Fitness = optimizee.Evaluate(target, res.Best, nil)
	}
	if pe, err := optimizee.ProblemError(problem, res.Best); err == nil {
		out.Error = pe
	} else {
		slog.Warn("Cannot compute problem error", "run_id", out.ID, "error", err)
	}

	deps.Metrics.ObserveRun(typ, string(out.Reason), out.Evaluations, out.Duration)
	slog.Info("Run finished",
		"run_id", out.ID,
		"strategy", typ,
		"reason", out.Reason,
		"fitness", out.Fitness,
		"error_percent", out.Error,
		"iterations", out.Iterations,
		"evaluations", out.Evaluations,
		"elapsed", out.Duration,
	)

	if deps.Store != nil {
		rec := out.Record()
		if runErr != nil {
			rec.Failure = runErr.Error()
		}
		if err := deps.Store.SaveRun(rec); err != nil {
			return out, errors.Join(runErr, fmt.Errorf("save run: %w", err))
		}
	}
	return out, runErr
}

func traceDir(cfg config.Config, deps Deps) string {
	if deps.TraceDir != "" {
		return deps.TraceDir
	}
	return StoreBaseDir(cfg.Store)
}

// StoreBaseDir is the directory holding run artifacts for the configured
// store: the store path itself for fs, the database's directory for sqlite.
func StoreBaseDir(c config.StoreConfig) string {
	if c.Driver == config.DriverSQLite {
		return filepath.Dir(c.Path)
	}
	return c.Path
}

// OpenStore opens the configured run store. The returned close function
// releases it.
func OpenStore(c config.StoreConfig) (store.Store, func() error, error) {
	switch c.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverFS, "":
		s, err := store.NewFSStore(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

func closeTrace(tw *store.TraceWriter, id string) {
	if tw == nil {
		return
	}
	if err := tw.Close(); err != nil {
		slog.Warn("Trace incomplete", "run_id", id, "path", tw.Path(), "error", err)
	}
}
