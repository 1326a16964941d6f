package opt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// search holds what every strategy shares: the optimizee, the options and
// the notification and logging hooks.
type search struct {
	settings
	typ Type
	o   optimizee.Optimizee
}

func newSearch(t Type, o optimizee.Optimizee, opts []Option) search {
	return search{settings: newSettings(opts), typ: t, o: o}
}

func (s *search) Type() Type { return s.typ }

// evaluate scores a relative to ref (see optimizee.Evaluate).
func (s *search) evaluate(a, ref parameter.Array) parameter.Array {
	return a.WithFitness(optimizee.Evaluate(s.o, a, ref))
}

// start evaluates the initial candidate unless it already carries a fitness.
func (s *search) start(initial parameter.Array) parameter.Array {
	if initial.Evaluated() {
		return initial
	}
	return s.evaluate(initial, nil)
}

func (s *search) optimal(a parameter.Array) bool {
	return optimizee.IsOptimal(s.o, a)
}

func (s *search) notify(best parameter.Array) {
	if s.listener != nil {
		s.listener.CandidateImproved(best)
	}
}

func (s *search) log(iteration int, jump, delta float64, candidate parameter.Array, msg string) {
	s.logger.Log(Entry{
		Strategy:     s.typ,
		Iteration:    iteration,
		Fitness:      candidate.Fitness(),
		JumpSize:     jump,
		DeltaFitness: delta,
		Candidate:    candidate,
		Message:      msg,
	})
}

func (s *search) finish(best parameter.Array, iterations int, reason Reason) *Result {
	slog.Info("Optimization finished",
		"strategy", s.typ,
		"reason", reason,
		"iterations", iterations,
		"fitness", best.Fitness(),
	)
	s.log(iterations, 0, 0, best, string(reason))
	return &Result{Best: best, Iterations: iterations, Reason: reason}
}

func (s *search) cancelled(ctx context.Context, best parameter.Array, iterations int) (*Result, error) {
	slog.Info("Optimization cancelled",
		"strategy", s.typ,
		"iterations", iterations,
		"fitness", best.Fitness(),
	)
	return &Result{Best: best, Iterations: iterations, Reason: ReasonCancelled}, ctx.Err()
}

// sampleBest evaluates up to n global samples against the initial candidate
// and keeps the best one. The reason is ReasonOptimumReached,
// ReasonSamplesExhausted or, together with ctx.Err(), ReasonCancelled.
func (s *search) sampleBest(ctx context.Context, initial parameter.Array, n int64) (parameter.Array, int, Reason, error) {
	best := s.start(initial)
	if s.optimal(best) {
		return best, 0, ReasonOptimumReached, nil
	}
	samples, err := initial.GlobalSamples(s.rng, n)
	if err != nil {
		return nil, 0, "", fmt.Errorf("%s: %w", s.typ, err)
	}

	reference := best
	count := 0
	for sample := range samples {
		if ctx.Err() != nil {
			return best, count, ReasonCancelled, ctx.Err()
		}
		count++
		sample = s.evaluate(sample, reference)
		if sample.Fitness() < best.Fitness() {
			s.log(count, 0, best.Fitness()-sample.Fitness(), sample, "")
			best = sample
			s.notify(best)
			if s.optimal(best) {
				return best, count, ReasonOptimumReached, nil
			}
		}
	}
	return best, count, ReasonSamplesExhausted, nil
}

// sampleOnly runs sampleBest as a complete search.
func (s *search) sampleOnly(ctx context.Context, initial parameter.Array, n int64) (*Result, error) {
	best, count, reason, err := s.sampleBest(ctx, initial, n)
	switch {
	case reason == ReasonCancelled:
		return s.cancelled(ctx, best, count)
	case err != nil:
		return nil, err
	}
	return s.finish(best, count, reason), nil
}
