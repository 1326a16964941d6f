package opt

import (
	"context"
	"fmt"

	"github.com/cwbudde/metaopt/internal/improve"
	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// HillClimbingConfig configures HillClimbingStrategy.
type HillClimbingConfig struct {
	// InitialJump is the first step size, as a fraction of each range.
	InitialJump float64 `yaml:"initial_jump" json:"initial_jump"`

	// FitnessEpsPercent stops the climb once a step improves fitness by less
	// than this percentage of the fitness range.
	FitnessEpsPercent float64 `yaml:"fitness_eps_percent" json:"fitness_eps_percent"`

	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`
}

// DefaultHillClimbingConfig returns the hill climbing settings used when none are given.
func DefaultHillClimbingConfig() HillClimbingConfig {
	return HillClimbingConfig{
		InitialJump:       0.7,
		FitnessEpsPercent: 1e-7,
		MaxIterations:     1000,
	}
}

// HillClimbingStrategy repeatedly applies the local improvement step until
// progress stalls.
type HillClimbingStrategy struct {
	search
}

// NewHillClimbing creates a new hill climbing strategy for o.
func NewHillClimbing(o optimizee.Optimizee, opts ...Option) *HillClimbingStrategy {
	return &HillClimbingStrategy{search: newSearch(HillClimbing, o, opts)}
}

// Optimize climbs from initial until no step improves the candidate.
func (h *HillClimbingStrategy) Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error) {
	return h.climb(ctx, h.start(initial), fitnessRange, 0)
}

// climb continues from an evaluated candidate; offset is added to the
// reported iteration counts.
func (h *HillClimbingStrategy) climb(ctx context.Context, current parameter.Array, fitnessRange float64, offset int) (*Result, error) {
	cfg := h.hillClimbing
	eps := cfg.FitnessEpsPercent * fitnessRange / 100
	visited := parameter.NewSet()
	visited.Add(current)
	jump := cfg.InitialJump
	var gradient []float64

	for it := 0; ; it++ {
		switch {
		case h.optimal(current):
			return h.finish(current, offset+it, ReasonOptimumReached), nil
		case it >= cfg.MaxIterations:
			return h.finish(current, offset+it, ReasonMaxIterations), nil
		case ctx.Err() != nil:
			return h.cancelled(ctx, current, offset+it)
		}

		imp, err := improve.Find(h.o, h.rng, current, jump, gradient, visited)
		if err != nil {
			return nil, fmt.Errorf("hill climbing: %w", err)
		}
		h.log(offset+it, imp.JumpSize, imp.Delta, imp.Params, "")
		if imp.Delta > 0 {
			current = imp.Params
			h.notify(current)
		}
		jump, gradient = imp.JumpSize, imp.Gradient
		if imp.Delta <= eps {
			return h.finish(current, offset+it+1, ReasonConverged), nil
		}
	}
}

// GlobalHillClimbingStrategy samples the whole space first and then climbs
// from the best sample, which avoids settling in a poor local optimum.
type GlobalHillClimbingStrategy struct {
	search
}

// NewGlobalHillClimbing creates a hill climber that starts from the best of a
// set of global samples.
func NewGlobalHillClimbing(o optimizee.Optimizee, opts ...Option) *GlobalHillClimbingStrategy {
	return &GlobalHillClimbingStrategy{search: newSearch(GlobalHillClimbing, o, opts)}
}

// Optimize samples the space globally, then climbs from the best sample.
func (g *GlobalHillClimbingStrategy) Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error) {
	best, count, reason, err := g.sampleBest(ctx, initial, max(1, g.globalSampling.Samples))
	switch {
	case reason == ReasonCancelled:
		return g.cancelled(ctx, best, count)
	case err != nil:
		return nil, err
	case reason == ReasonOptimumReached:
		return g.finish(best, count, reason), nil
	}

	climber := &HillClimbingStrategy{search: g.search}
	return climber.climb(ctx, best, fitnessRange, count)
}
