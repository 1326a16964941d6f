package opt

import (
	"context"
	"math"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// GlobalSamplingConfig configures GlobalSamplingStrategy.
type GlobalSamplingConfig struct {
	// Samples is the number of global samples to request.
	Samples int64 `yaml:"samples" json:"samples"`
}

// DefaultGlobalSamplingConfig returns the sampling settings used when none are given.
func DefaultGlobalSamplingConfig() GlobalSamplingConfig {
	return GlobalSamplingConfig{Samples: 1000}
}

// GlobalSamplingStrategy evaluates a fixed number of samples spread over the
// whole space and keeps the best.
type GlobalSamplingStrategy struct {
	search
}

// NewGlobalSampling creates a new global sampling strategy for o.
func NewGlobalSampling(o optimizee.Optimizee, opts ...Option) *GlobalSamplingStrategy {
	return &GlobalSamplingStrategy{search: newSearch(GlobalSampling, o, opts)}
}

// Optimize evaluates the configured number of global samples.
func (g *GlobalSamplingStrategy) Optimize(ctx context.Context, initial parameter.Array, _ float64) (*Result, error) {
	return g.sampleOnly(ctx, initial, max(1, g.globalSampling.Samples))
}

// BruteForceConfig configures BruteForceStrategy.
type BruteForceConfig struct {
	// MaxSamples bounds the enumeration. Zero means unbounded, which is only
	// practical for finite discrete spaces: a numeric space is then
	// enumerated on a grid of about 3e9 points per axis.
	MaxSamples int64 `yaml:"max_samples" json:"max_samples"`
}

// DefaultBruteForceConfig returns the brute force settings used when none are given.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{MaxSamples: 1_000_000}
}

// BruteForceStrategy enumerates global samples until the sequence is
// exhausted or the optimum is found.
type BruteForceStrategy struct {
	search
}

// NewBruteForce creates a new brute force strategy for o.
func NewBruteForce(o optimizee.Optimizee, opts ...Option) *BruteForceStrategy {
	return &BruteForceStrategy{search: newSearch(BruteForce, o, opts)}
}

// Optimize enumerates the space until it is exhausted, the sample limit is
// hit or the optimum is found.
func (b *BruteForceStrategy) Optimize(ctx context.Context, initial parameter.Array, _ float64) (*Result, error) {
	n := b.bruteForce.MaxSamples
	if n <= 0 {
		n = math.MaxInt64
	}
	return b.sampleOnly(ctx, initial, n)
}
