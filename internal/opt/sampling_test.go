package opt

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

func integerPlane(t *testing.T, x, y int) *parameter.Numeric {
	t.Helper()
	px, err := parameter.NewInteger(x, 0, 4, "x")
	require.NoError(t, err)
	py, err := parameter.NewInteger(y, 0, 4, "y")
	require.NoError(t, err)
	return parameter.NewNumeric(px, py)
}

func manhattan() optimizee.Optimizee {
	return optimizee.Func("manhattan", 0, func(a parameter.Array) float64 {
		return math.Abs(a.At(0).Value()-3) + math.Abs(a.At(1).Value()-1)
	})
}

func TestBruteForceFindsOptimumOfFiniteSpace(t *testing.T) {
	s := NewBruteForce(manhattan(), WithBruteForceConfig(BruteForceConfig{}))
	res, err := s.Optimize(context.Background(), integerPlane(t, 0, 0), 8)
	require.NoError(t, err)

	assert.Equal(t, ReasonOptimumReached, res.Reason)
	assert.Equal(t, []float64{3, 1}, res.Best.Values())
	assert.Zero(t, res.Best.Fitness())
	// Row-major enumeration with y fastest reaches (3, 1) as sample 17.
	assert.Equal(t, 17, res.Iterations)
}

func TestBruteForceExhaustsSpace(t *testing.T) {
	o := optimizee.Func("unreachable", -1, func(a parameter.Array) float64 {
		return a.At(0).Value() + a.At(1).Value()
	})
	res, err := NewBruteForce(o).Optimize(context.Background(), integerPlane(t, 4, 4), 8)
	require.NoError(t, err)

	assert.Equal(t, ReasonSamplesExhausted, res.Reason)
	assert.Equal(t, 25, res.Iterations)
	assert.Equal(t, []float64{0, 0}, res.Best.Values())
}

func TestBruteForceStartsAtOptimum(t *testing.T) {
	res, err := NewBruteForce(manhattan()).Optimize(context.Background(), integerPlane(t, 3, 1), 8)
	require.NoError(t, err)
	assert.Equal(t, ReasonOptimumReached, res.Reason)
	assert.Equal(t, 0, res.Iterations)
}

func TestGlobalSamplingKeepsInitialWhenNothingIsBetter(t *testing.T) {
	flat := optimizee.Func("flat", -1, func(parameter.Array) float64 { return 1 })
	initial := integerPlane(t, 2, 2)
	rec := &recorder{}

	s := NewGlobalSampling(flat, WithGlobalSamplingConfig(GlobalSamplingConfig{Samples: 10}), WithListener(rec))
	res, err := s.Optimize(context.Background(), initial, 1)
	require.NoError(t, err)

	assert.Equal(t, ReasonSamplesExhausted, res.Reason)
	assert.Equal(t, 9, res.Iterations, "10 samples in two dimensions is a 3x3 grid")
	assert.True(t, res.Best.Equal(initial))
	assert.Empty(t, rec.improved)
}

func TestGlobalHillClimbingRefinesBestSample(t *testing.T) {
	p := lookup(t, "parabola", "SINUSOIDAL")
	rec := &recorder{}
	s := NewGlobalHillClimbing(p,
		WithGlobalSamplingConfig(GlobalSamplingConfig{Samples: 100}),
		WithLogger(rec),
	)
	res, err := s.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)

	assert.Equal(t, GlobalHillClimbing, s.Type())
	assert.Less(t, res.Best.Fitness(), 0.1)
	assert.GreaterOrEqual(t, res.Iterations, 100, "iterations count the samples too")
	for _, e := range rec.entries {
		assert.Equal(t, GlobalHillClimbing, e.Strategy)
	}
}
