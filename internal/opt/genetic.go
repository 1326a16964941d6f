package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

const (
	// neighborSoftener damps how much a survivor's rank widens its
	// mutation radius.
	neighborSoftener = 10.0

	// maxNeighborTries bounds the search for a neighbor that is at least as
	// fit as its parent.
	maxNeighborTries = 8
)

// GeneticConfig configures the genetic strategies.
type GeneticConfig struct {
	// PopulationSize is the desired generation size. Zero derives it from
	// the size of the search space.
	PopulationSize int `yaml:"population_size" json:"population_size"`

	MaxGenerations int `yaml:"max_generations" json:"max_generations"`

	// CullFraction is the share of each generation that is discarded.
	CullFraction float64 `yaml:"cull_fraction" json:"cull_fraction"`

	// InitialRadius is used to spread the seed population.
	InitialRadius float64 `yaml:"initial_radius" json:"initial_radius"`

	// NeighborRadius is the starting mutation radius. It grows by Expand
	// after a large improvement and shrinks by Shrink otherwise.
	NeighborRadius float64 `yaml:"neighbor_radius" json:"neighbor_radius"`
	Shrink         float64 `yaml:"shrink" json:"shrink"`
	Expand         float64 `yaml:"expand" json:"expand"`

	// ImprovementEps is the smallest per-generation improvement that keeps
	// the search going.
	ImprovementEps float64 `yaml:"improvement_eps" json:"improvement_eps"`

	// Patience is the number of consecutive generations without improvement
	// that ends the search.
	Patience int `yaml:"patience" json:"patience"`
}

// DefaultGeneticConfig returns the genetic search settings used when none are given.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		MaxGenerations: 100,
		CullFraction:   0.8,
		InitialRadius:  1.0,
		NeighborRadius: 0.08,
		Shrink:         0.7,
		Expand:         1.1,
		ImprovementEps: 1e-12,
		Patience:       1,
	}
}

// ConcurrencyConfig bounds the worker count of concurrent strategies.
type ConcurrencyConfig struct {
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
}

// DefaultConcurrencyConfig uses one worker per CPU.
func DefaultConcurrencyConfig() ConcurrencyConfig {
	return ConcurrencyConfig{MaxWorkers: runtime.NumCPU()}
}

// fanOut runs task for every index in [0, n) and returns the first error.
type fanOut func(ctx context.Context, n int, task func(i int) error) error

func sequential(ctx context.Context, n int, task func(i int) error) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := task(i); err != nil {
			return err
		}
	}
	return nil
}

func parallel(workers int) fanOut {
	return func(ctx context.Context, n int, task func(i int) error) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, workers))
		for i := range n {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return task(i)
			})
		}
		return g.Wait()
	}
}

// GeneticStrategy evolves a population by culling the weakest members and
// refilling it with mutated copies of the survivors.
//
// The concurrent variant produces and evaluates the members of a generation
// on a bounded worker pool. Every random draw is planned on the strategy's
// generator before the work is handed out, so both variants return the same
// result for the same seed.
type GeneticStrategy struct {
	search
	fanOut fanOut
}

// NewGenetic creates a new genetic search strategy for o.
func NewGenetic(o optimizee.Optimizee, opts ...Option) *GeneticStrategy {
	return &GeneticStrategy{search: newSearch(GeneticSearch, o, opts), fanOut: sequential}
}

// NewConcurrentGenetic creates a genetic search that evaluates each generation
// on up to ConcurrencyConfig.MaxWorkers goroutines.
func NewConcurrentGenetic(o optimizee.Optimizee, opts ...Option) *GeneticStrategy {
	g := &GeneticStrategy{search: newSearch(ConcurrentGeneticSearch, o, opts)}
	g.fanOut = parallel(g.concurrency.MaxWorkers)
	return g
}

// Optimize breeds generations from a population seeded around initial until
// the optimum is reached, the search converges or the generation limit hits.
func (g *GeneticStrategy) Optimize(ctx context.Context, initial parameter.Array, _ float64) (*Result, error) {
	cfg := g.genetic
	start := g.start(initial)
	desired := initial.SamplePopulationSize()
	if cfg.PopulationSize > 0 {
		desired = min(cfg.PopulationSize, parameter.MaxPopulationSize)
	}

	population := g.seed(start, desired)
	if len(population) <= 1 {
		return nil, fmt.Errorf("genetic search: %w", ErrPopulationTooSmall)
	}
	slog.Debug("Seeded population", "strategy", g.typ, "size", len(population), "desired", desired)

	if err := g.evaluateAll(ctx, population, start); err != nil {
		return g.cancelled(ctx, start, 0)
	}
	best := g.bestOf(population, start)

	radius := cfg.NeighborRadius
	stale := 0
	for gen := 0; ; gen++ {
		switch {
		case g.optimal(best):
			return g.finish(best, gen, ReasonOptimumReached), nil
		case gen >= cfg.MaxGenerations:
			return g.finish(best, gen, ReasonMaxIterations), nil
		case ctx.Err() != nil:
			return g.cancelled(ctx, best, gen)
		}

		keep := g.cull(population)
		var err error
		population, err = g.regenerate(ctx, population[:keep], desired, radius)
		if err == nil {
			err = g.evaluateAll(ctx, population, best)
		}
		if err != nil {
			return g.cancelled(ctx, best, gen)
		}

		current := g.bestOf(population, best)
		delta := current.Fitness() - best.Fitness()
		if delta > 0 {
			slog.Error("Fitness regressed between generations",
				"strategy", g.typ,
				"generation", gen,
				"previous", best.Fitness(),
				"current", current.Fitness(),
			)
			delta = 0
		} else {
			best = current
		}
		g.log(gen+1, radius, delta, best, "")

		if delta < -1e6*cfg.ImprovementEps {
			radius *= cfg.Expand
		} else {
			radius *= cfg.Shrink
		}

		if delta >= -cfg.ImprovementEps {
			stale++
			if stale >= max(1, cfg.Patience) {
				return g.finish(best, gen+1, ReasonConverged), nil
			}
		} else {
			stale = 0
		}
	}
}

// seed spreads neighbors of start until the population reaches the desired
// size or the attempt budget runs out.
func (g *GeneticStrategy) seed(start parameter.Array, desired int) []parameter.Array {
	members := parameter.NewSet()
	members.Add(start)
	population := []parameter.Array{start}
	for attempts := 0; len(population) < desired && attempts < 100*desired; attempts++ {
		nbr := start.RandomNeighbor(g.rng, g.genetic.InitialRadius)
		if members.Add(nbr) {
			population = append(population, nbr)
		}
	}
	return population
}

// cull sorts the population best first and returns how many members
// survive.
func (g *GeneticStrategy) cull(population []parameter.Array) int {
	slices.SortStableFunc(population, func(a, b parameter.Array) int {
		switch {
		case a.Fitness() < b.Fitness():
			return -1
		case a.Fitness() > b.Fitness():
			return 1
		}
		return 0
	})
	// The epsilon keeps 10 * (1 - 0.8) from rounding down to 1.
	keep := math.Floor(float64(len(population))*(1-g.genetic.CullFraction) + 1e-9)
	return max(1, int(keep))
}

type offspring struct {
	parent       int
	radius       float64
	seed1, seed2 uint64
	child        parameter.Array
}

// regenerate refills the population with mutations of the survivors.
// Better ranked survivors are picked more often and mutated less.
func (g *GeneticStrategy) regenerate(ctx context.Context, survivors []parameter.Array, desired int, radius float64) ([]parameter.Array, error) {
	keep := len(survivors)
	plan := make([]offspring, 0, max(0, desired-keep))
	for k := keep; k < desired; k++ {
		rnd := g.rng.Float64()
		idx := int(rnd * rnd * float64(keep))
		plan = append(plan, offspring{
			parent: idx,
			radius: (float64(idx) + neighborSoftener) / neighborSoftener * radius,
			seed1:  g.rng.Uint64(),
			seed2:  g.rng.Uint64(),
		})
	}

	err := g.fanOut(ctx, len(plan), func(i int) error {
		p := &plan[i]
		rng := rand.New(rand.NewPCG(p.seed1, p.seed2))
		p.child = g.neighbor(rng, survivors[p.parent], p.radius)
		return nil
	})
	if err != nil {
		return nil, err
	}

	population := slices.Clone(survivors)
	members := parameter.NewSet()
	for _, s := range survivors {
		members.Add(s)
	}
	for _, p := range plan {
		if members.Add(p.child) {
			population = append(population, p.child)
		}
	}
	return population, nil
}

// neighbor mutates parent. With an absolute evaluator it retries a few
// times while the mutation is worse than the parent and returns the last
// try already evaluated.
func (g *GeneticStrategy) neighbor(rng *rand.Rand, parent parameter.Array, radius float64) parameter.Array {
	nbr := parent.RandomNeighbor(rng, radius)
	if g.o.EvaluateByComparison() {
		return nbr
	}
	nbr = g.evaluate(nbr, nil)
	for try := 0; nbr.Fitness() > parent.Fitness() && try < maxNeighborTries; try++ {
		nbr = g.evaluate(parent.RandomNeighbor(rng, radius), nil)
	}
	return nbr
}

// evaluateAll scores every member without a fitness relative to ref.
func (g *GeneticStrategy) evaluateAll(ctx context.Context, population []parameter.Array, ref parameter.Array) error {
	return g.fanOut(ctx, len(population), func(i int) error {
		if !population[i].Evaluated() {
			population[i] = g.evaluate(population[i], ref)
		}
		return nil
	})
}

// bestOf returns the fittest member if it beats previous, otherwise previous.
func (g *GeneticStrategy) bestOf(population []parameter.Array, previous parameter.Array) parameter.Array {
	best := previous
	for _, p := range population {
		if p.Fitness() < best.Fitness() {
			best = p
		}
	}
	if best != previous {
		g.notify(best)
	}
	return best
}
