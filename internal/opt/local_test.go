package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

func TestHillClimbingParabola(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	res, err := NewHillClimbing(p, WithRand(newRand(1))).
		Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)

	assert.Less(t, res.Best.Fitness(), 0.01)
	assert.Contains(t, []Reason{ReasonConverged, ReasonMaxIterations}, res.Reason)
}

func TestHillClimbingMaxIterations(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	cfg := DefaultHillClimbingConfig()
	cfg.MaxIterations = 2
	res, err := NewHillClimbing(p, WithHillClimbingConfig(cfg)).
		Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)
	assert.Equal(t, ReasonMaxIterations, res.Reason)
	assert.Equal(t, 2, res.Iterations)
}

func TestHillClimbingTSPReachesOptimum(t *testing.T) {
	p := lookup(t, "tsp", "SIMPLE")
	res, err := NewHillClimbing(p, WithRand(newRand(4))).
		Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)
	assert.Zero(t, res.Best.Fitness())
	assert.Equal(t, ReasonOptimumReached, res.Reason)
}

func TestAnnealingSchedules(t *testing.T) {
	exp := ExponentialSchedule{Start: 1, End: 0.01}
	assert.InDelta(t, 1, exp.Temperature(0, 11), 1e-12)
	assert.InDelta(t, 0.1, exp.Temperature(5, 11), 1e-12)
	assert.InDelta(t, 0.01, exp.Temperature(10, 11), 1e-12)
	assert.Equal(t, 0.01, exp.Temperature(0, 1))

	lin := LinearSchedule{Start: 1, End: 0}
	assert.InDelta(t, 0.5, lin.Temperature(5, 11), 1e-12)

	_, err := AnnealingConfig{Schedule: "cubic"}.schedule(1)
	assert.Error(t, err)

	// Names are matched case-insensitively, as config validation does.
	s, err := AnnealingConfig{Schedule: "Linear", StartTemperature: 1, EndTemperature: 0.5}.schedule(2)
	require.NoError(t, err)
	assert.Equal(t, LinearSchedule{Start: 2, End: 1}, s)
	_, err = AnnealingConfig{Schedule: "EXPONENTIAL"}.schedule(1)
	assert.NoError(t, err)
}

func TestAcceptMetropolis(t *testing.T) {
	rng := newRand(1)
	assert.True(t, accept(-1, 0, rng))
	assert.True(t, accept(0, 0, rng))
	assert.False(t, accept(1, 0, rng))

	accepted := 0
	for range 10000 {
		if accept(1, 1, rng) {
			accepted++
		}
	}
	// exp(-1) is about 0.368.
	assert.InDelta(t, 3679, accepted, 300)
}

func TestAnnealingTSP(t *testing.T) {
	p := lookup(t, "tsp", "STANDARD")
	initial := p.InitialGuess()
	start := p.EvaluateFitness(initial)

	cfg := DefaultAnnealingConfig()
	cfg.Schedule = "linear"
	res, err := NewAnnealing(p, WithRand(newRand(11)), WithAnnealingConfig(cfg)).
		Optimize(context.Background(), initial, p.FitnessRange())
	require.NoError(t, err)
	assert.Less(t, res.Best.Fitness(), start)
	assert.LessOrEqual(t, res.Iterations, cfg.Iterations)
}

func TestTabuListIsBounded(t *testing.T) {
	tabu := newTabuList(2)
	a := integerPlane(t, 0, 0)
	b := integerPlane(t, 1, 0)
	c := integerPlane(t, 2, 0)

	tabu.push(a)
	tabu.push(b)
	tabu.push(b)
	assert.True(t, tabu.contains(a))
	tabu.push(c)
	assert.False(t, tabu.contains(a), "oldest entry expires")
	assert.True(t, tabu.contains(b))
	assert.True(t, tabu.contains(c.Copy()))
}

func TestTabuSubsetSum(t *testing.T) {
	p := lookup(t, "subset_sum", "")
	start := p.EvaluateFitness(p.InitialGuess())
	res, err := NewTabu(p, WithRand(newRand(8))).
		Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Best.Fitness(), start)
	assert.NotEmpty(t, res.Reason)
}

func TestStateSpaceExhaustsTinySpace(t *testing.T) {
	tour, err := parameter.NewPermuted([]int{0, 1})
	require.NoError(t, err)

	cfg := DefaultStateSpaceConfig()
	cfg.Convergence = DisabledConvergenceConfig()
	res, err := NewStateSpace(manhattanTour(), WithRand(newRand(1)), WithStateSpaceConfig(cfg)).
		Optimize(context.Background(), tour, 1)
	require.NoError(t, err)

	// Two orderings exist, both get expanded, then the frontier runs dry.
	assert.Equal(t, ReasonSamplesExhausted, res.Reason)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []float64{1, 0}, res.Best.Values())
}

func TestFrontierOrdersByFitnessThenAge(t *testing.T) {
	f := frontier{
		{candidate: integerPlane(t, 0, 0).WithFitness(2), seq: 0},
		{candidate: integerPlane(t, 1, 0).WithFitness(1), seq: 2},
		{candidate: integerPlane(t, 2, 0).WithFitness(1), seq: 1},
	}
	assert.True(t, f.Less(2, 1))
	assert.True(t, f.Less(1, 0))
	assert.False(t, f.Less(0, 2))
}

// manhattanTour prefers orderings whose second city is 0.
func manhattanTour() optimizee.Optimizee {
	return optimizee.Func("second city", -1, func(a parameter.Array) float64 {
		return a.Values()[1]
	})
}
