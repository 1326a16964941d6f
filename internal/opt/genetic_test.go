package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

func TestGeneticConvergesOnParabola(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	cfg := DefaultGeneticConfig()
	cfg.Patience = 10
	rec := &recorder{}

	s := NewGenetic(p, WithRand(newRand(42)), WithGeneticConfig(cfg), WithLogger(rec), WithListener(rec))
	res, err := s.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)

	assert.Less(t, res.Best.Fitness(), 0.1)
	assert.Contains(t, []Reason{ReasonConverged, ReasonMaxIterations, ReasonOptimumReached}, res.Reason)
	assert.LessOrEqual(t, res.Iterations, cfg.MaxGenerations)

	// One entry per generation plus the final one; the best never regresses.
	require.NotEmpty(t, rec.entries)
	prev := rec.entries[0].Fitness
	for _, e := range rec.entries {
		assert.LessOrEqual(t, e.Fitness, prev)
		assert.LessOrEqual(t, e.DeltaFitness, 0.0)
		prev = e.Fitness
	}
	for i := 1; i < len(rec.improved); i++ {
		assert.Less(t, rec.improved[i].Fitness(), rec.improved[i-1].Fitness())
	}
}

func TestGeneticStopReasons(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")

	t.Run("max generations", func(t *testing.T) {
		cfg := DefaultGeneticConfig()
		cfg.MaxGenerations = 2
		cfg.Patience = 100
		res, err := NewGenetic(p, WithRand(newRand(1)), WithGeneticConfig(cfg)).
			Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
		require.NoError(t, err)
		assert.Equal(t, ReasonMaxIterations, res.Reason)
		assert.Equal(t, 2, res.Iterations)
	})

	t.Run("optimum", func(t *testing.T) {
		res, err := NewGenetic(p, WithRand(newRand(1))).
			Optimize(context.Background(), p.ExactSolution(), p.FitnessRange())
		require.NoError(t, err)
		assert.Equal(t, ReasonOptimumReached, res.Reason)
		assert.Equal(t, 0, res.Iterations)
	})

	t.Run("converged", func(t *testing.T) {
		cfg := DefaultGeneticConfig()
		cfg.ImprovementEps = 1e9
		res, err := NewGenetic(p, WithRand(newRand(1)), WithGeneticConfig(cfg)).
			Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
		require.NoError(t, err)
		assert.Equal(t, ReasonConverged, res.Reason)
		assert.Equal(t, 1, res.Iterations)
	})
}

func TestConcurrentGeneticMatchesSequential(t *testing.T) {
	for _, tc := range []struct{ name, variation string }{
		{"parabola", "STEPPED"},
		{"tsp", "STANDARD"},
		{"subset_sum", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := lookup(t, tc.name, tc.variation)
			seq, err := NewGenetic(p, WithRand(newRand(9))).
				Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
			require.NoError(t, err)

			con := NewConcurrentGenetic(p, WithRand(newRand(9)), WithConcurrencyConfig(ConcurrencyConfig{MaxWorkers: 4}))
			par, err := con.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
			require.NoError(t, err)

			assert.Equal(t, ConcurrentGeneticSearch, con.Type())
			assert.Equal(t, seq.Best.Key(), par.Best.Key())
			assert.Equal(t, seq.Best.Fitness(), par.Best.Fitness())
			assert.Equal(t, seq.Iterations, par.Iterations)
			assert.Equal(t, seq.Reason, par.Reason)
		})
	}
}

func TestGeneticRejectsDegeneratePopulation(t *testing.T) {
	single, err := parameter.NewPermuted([]int{0})
	require.NoError(t, err)

	constant := optimizee.Func("constant", -1, func(parameter.Array) float64 { return 1 })
	_, err = NewGenetic(constant, WithRand(newRand(1))).Optimize(context.Background(), single, 1)
	assert.ErrorIs(t, err, ErrPopulationTooSmall)
}

func TestGeneticPopulationSizeOverride(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	cfg := DefaultGeneticConfig()
	cfg.PopulationSize = 5
	cfg.MaxGenerations = 3
	cfg.Patience = 100

	s := NewGenetic(p, WithRand(newRand(2)), WithGeneticConfig(cfg))
	population := s.seed(p.InitialGuess(), cfg.PopulationSize)
	assert.Len(t, population, 5)

	res, err := s.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)
	assert.Equal(t, ReasonMaxIterations, res.Reason)
}

func TestCullKeepsBestFifth(t *testing.T) {
	s := NewGenetic(manhattan())
	var population []parameter.Array
	for i, f := range []float64{5, 1, 4, 2, 3, 9, 8, 7, 6, 0} {
		population = append(population, integerPlane(t, i%5, i/5).WithFitness(f))
	}
	keep := s.cull(population)
	assert.Equal(t, 2, keep)
	assert.Equal(t, 0.0, population[0].Fitness())
	assert.Equal(t, 1.0, population[1].Fitness())
}
