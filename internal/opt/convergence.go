package opt

import (
	"log/slog"
	"math"
)

// ConvergenceConfig decides when a stochastic search has stopped making
// progress.
type ConvergenceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Patience is the number of consecutive updates without significant
	// improvement before the search is considered converged.
	Patience int `yaml:"patience" json:"patience"`

	// Threshold is the minimum improvement that counts as progress, relative
	// to the tracker scale (or to the last significant fitness if no scale
	// is set).
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultConvergenceConfig returns an enabled tracker configuration.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  50,
		Threshold: 1e-6,
	}
}

// DisabledConvergenceConfig never reports convergence.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker follows the best fitness of a run and reports once it
// stalls.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	scale           float64
	history         []float64
	best            float64
	lastSignificant float64
	stale           int
}

// NewConvergenceTracker measures improvements as a fraction of scale, which
// is usually the fitness range of the problem. A scale <= 0 measures them
// relative to the last significant fitness instead.
func NewConvergenceTracker(config ConvergenceConfig, scale float64) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		scale:           scale,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a fitness and returns true once convergence is detected.
func (c *ConvergenceTracker) Update(fitness float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, fitness)
	c.best = min(c.best, fitness)

	if len(c.history) == 1 {
		c.lastSignificant = fitness
		return false
	}

	improvement := c.relative(c.lastSignificant - fitness)
	if improvement >= c.config.Threshold {
		c.lastSignificant = fitness
		c.stale = 0
		return false
	}

	c.stale++
	slog.Debug("No significant fitness improvement",
		"fitness", fitness,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.stale,
		"patience", c.config.Patience,
	)
	if c.stale >= c.config.Patience {
		slog.Debug("Convergence detected",
			"stale_count", c.stale,
			"best_fitness", c.best,
		)
		return true
	}
	return false
}

func (c *ConvergenceTracker) relative(delta float64) float64 {
	if c.scale > 0 {
		return delta / c.scale
	}
	if c.lastSignificant == 0 {
		if delta > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return delta / math.Abs(c.lastSignificant)
}

// BestFitness is the lowest fitness seen so far.
func (c *ConvergenceTracker) BestFitness() float64 { return c.best }
func (c *ConvergenceTracker) StaleCount() int      { return c.stale }

// History returns a copy of every recorded fitness.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64(nil), c.history...)
}

// Reset forgets all observed fitness values.
func (c *ConvergenceTracker) Reset() {
	c.history = nil
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.stale = 0
}
