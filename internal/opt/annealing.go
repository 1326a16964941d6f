package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// Schedule yields the temperature of iteration iter out of total.
type Schedule interface {
	Temperature(iter, total int) float64
}

// ExponentialSchedule cools geometrically from Start to End.
type ExponentialSchedule struct {
	Start float64
	End   float64
}

// Temperature implements Schedule.
func (e ExponentialSchedule) Temperature(iter, total int) float64 {
	if total <= 1 {
		return e.End
	}
	if e.Start <= 0 || e.End <= 0 {
		return 1e-9
	}
	frac := float64(iter) / float64(total-1)
	return e.Start * math.Pow(e.End/e.Start, frac)
}

// LinearSchedule cools linearly from Start to End.
type LinearSchedule struct {
	Start float64
	End   float64
}

// Temperature implements Schedule.
func (l LinearSchedule) Temperature(iter, total int) float64 {
	if total <= 1 {
		return l.End
	}
	frac := float64(iter) / float64(total-1)
	return l.Start + frac*(l.End-l.Start)
}

// AnnealingConfig configures AnnealingStrategy. Temperatures are fractions
// of the fitness range passed to Optimize.
type AnnealingConfig struct {
	Iterations       int     `yaml:"iterations" json:"iterations"`
	StartTemperature float64 `yaml:"start_temperature" json:"start_temperature"`
	EndTemperature   float64 `yaml:"end_temperature" json:"end_temperature"`

	// Schedule is "exponential" or "linear".
	Schedule string `yaml:"schedule" json:"schedule"`

	// InitialRadius is the neighbor radius at the start temperature. The
	// radius cools along with the temperature but never drops below
	// MinRadius.
	InitialRadius float64 `yaml:"initial_radius" json:"initial_radius"`
	MinRadius     float64 `yaml:"min_radius" json:"min_radius"`

	Convergence ConvergenceConfig `yaml:"convergence" json:"convergence"`
}

// DefaultAnnealingConfig returns the annealing settings used when none are given.
func DefaultAnnealingConfig() AnnealingConfig {
	return AnnealingConfig{
		Iterations:       2000,
		StartTemperature: 0.1,
		EndTemperature:   1e-4,
		Schedule:         "exponential",
		InitialRadius:    0.3,
		MinRadius:        0.01,
		Convergence: ConvergenceConfig{
			Enabled:   true,
			Patience:  500,
			Threshold: 1e-9,
		},
	}
}

func (c AnnealingConfig) schedule(scale float64) (Schedule, error) {
	start, end := c.StartTemperature*scale, c.EndTemperature*scale
	switch strings.ToLower(c.Schedule) {
	case "", "exponential":
		return ExponentialSchedule{Start: start, End: end}, nil
	case "linear":
		return LinearSchedule{Start: start, End: end}, nil
	}
	return nil, fmt.Errorf("unknown annealing schedule %q", c.Schedule)
}

// AnnealingStrategy is simulated annealing: a random walk that always
// accepts better neighbors and accepts worse ones with a probability that
// falls with the temperature.
type AnnealingStrategy struct {
	search
}

// NewAnnealing creates a new simulated annealing strategy for o.
func NewAnnealing(o optimizee.Optimizee, opts ...Option) *AnnealingStrategy {
	return &AnnealingStrategy{search: newSearch(SimulatedAnnealing, o, opts)}
}

// Optimize walks from initial while the temperature falls and returns the best
// candidate seen.
func (a *AnnealingStrategy) Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error) {
	cfg := a.annealing
	scale := fitnessRange
	if scale <= 0 {
		scale = 1
	}
	schedule, err := cfg.schedule(scale)
	if err != nil {
		return nil, fmt.Errorf("simulated annealing: %w", err)
	}
	t0 := schedule.Temperature(0, cfg.Iterations)

	current := a.start(initial)
	best := current
	tracker := NewConvergenceTracker(cfg.Convergence, fitnessRange)
	tracker.Update(best.Fitness())

	for it := 0; ; it++ {
		switch {
		case a.optimal(best):
			return a.finish(best, it, ReasonOptimumReached), nil
		case it >= cfg.Iterations:
			return a.finish(best, it, ReasonMaxIterations), nil
		case ctx.Err() != nil:
			return a.cancelled(ctx, best, it)
		}

		temp := schedule.Temperature(it, cfg.Iterations)
		radius := cfg.InitialRadius
		if t0 > 0 {
			radius *= temp / t0
		}
		radius = max(radius, cfg.MinRadius)

		candidate := a.evaluate(current.RandomNeighbor(a.rng, radius), current)
		delta := candidate.Fitness() - current.Fitness()
		if accept(delta, temp, a.rng) {
			current = candidate
			a.log(it+1, radius, delta, current, "")
		}
		if current.Fitness() < best.Fitness() {
			best = current
			a.notify(best)
		}
		if tracker.Update(best.Fitness()) {
			return a.finish(best, it+1, ReasonConverged), nil
		}
	}
}

// accept applies the Metropolis criterion.
func accept(delta, temp float64, rng *rand.Rand) bool {
	if delta <= 0 {
		return true
	}
	if temp <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-delta/temp)
}
