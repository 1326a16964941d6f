package opt

import (
	"context"
	"fmt"
	"math"
	mathrand "math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// MayflyConfig configures MayflyStrategy.
type MayflyConfig struct {
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// PopulationSize is raised to 20, the smallest population the
	// mayfly library accepts.
	PopulationSize int `yaml:"population_size" json:"population_size"`
}

// DefaultMayflyConfig returns the mayfly settings used when none are given.
func DefaultMayflyConfig() MayflyConfig {
	return MayflyConfig{MaxIterations: 100, PopulationSize: 20}
}

// MayflyStrategy runs the mayfly swarm algorithm over a numeric array. The
// swarm moves in the unit cube and every position is mapped back onto the
// parameter ranges before it is evaluated.
type MayflyStrategy struct {
	search
}

// NewMayfly creates a new mayfly strategy for o.
func NewMayfly(o optimizee.Optimizee, opts ...Option) *MayflyStrategy {
	return &MayflyStrategy{search: newSearch(Mayfly, o, opts)}
}

// Optimize runs the swarm over the bounds of a numeric initial array.
func (m *MayflyStrategy) Optimize(ctx context.Context, initial parameter.Array, _ float64) (*Result, error) {
	space, ok := initial.(*parameter.Numeric)
	if !ok {
		return nil, fmt.Errorf("mayfly: %s array: %w", initial.Kind(), ErrUnsupportedRepresentation)
	}
	if m.o.EvaluateByComparison() {
		return nil, fmt.Errorf("mayfly: %w", ErrComparisonUnsupported)
	}

	best := m.start(initial)
	if m.optimal(best) {
		return m.finish(best, 0, ReasonOptimumReached), nil
	}
	if ctx.Err() != nil {
		return m.cancelled(ctx, best, 0)
	}

	evaluations := 0
	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		candidate, err := space.FromNormalized(x)
		if err != nil {
			return math.Inf(1)
		}
		evaluated := m.evaluate(candidate, nil)
		evaluations++
		if evaluated.Fitness() < best.Fitness() {
			m.log(evaluations, 0, evaluated.Fitness()-best.Fitness(), evaluated, "")
			best = evaluated
			m.notify(best)
		}
		return evaluated.Fitness()
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = objective
	config.ProblemSize = space.Len()
	config.MaxIterations = m.mayfly.MaxIterations
	config.NPop = max(20, m.mayfly.PopulationSize)
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = mathrand.New(mathrand.NewSource(int64(m.rng.Uint64())))

	if _, err := mayfly.Optimize(config); err != nil {
		return nil, fmt.Errorf("mayfly: %w", err)
	}
	if ctx.Err() != nil {
		return m.cancelled(ctx, best, m.mayfly.MaxIterations)
	}

	reason := ReasonMaxIterations
	if m.optimal(best) {
		reason = ReasonOptimumReached
	}
	return m.finish(best, m.mayfly.MaxIterations, reason), nil
}
