// Package metrics exposes Prometheus collectors for optimization runs.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/parameter"
)

const namespace = "metaopt"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
	improvements *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	bestFitness  *prometheus.GaugeVec
}

// New registers the collectors with reg. Registering twice with the same
// registry panics, as promauto does.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: strategy, reason (optimum_reached, converged, ..., error)
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished optimization runs by strategy and stop reason",
		}, []string{"strategy", "reason"}),

		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Fitness evaluations and comparisons performed",
		}, []string{"strategy"}),

		improvements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvements_total",
			Help:      "New best candidates reported by strategies",
		}, []string{"strategy"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of optimization runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),

		bestFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Fitness of the most recent best candidate",
		}, []string{"strategy"}),
	}
}

// Listener counts improvements and tracks the best fitness of a running
// strategy.
func (m *Metrics) Listener(strategy opt.Type) opt.Listener {
	if m == nil {
		return opt.ListenerFunc(func(parameter.Array) {})
	}
	improvements := m.improvements.WithLabelValues(string(strategy))
	best := m.bestFitness.WithLabelValues(string(strategy))
	return opt.ListenerFunc(func(a parameter.Array) {
		improvements.Inc()
		if a.Evaluated() && !math.IsInf(a.Fitness(), 0) {
			best.Set(a.Fitness())
		}
	})
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(strategy opt.Type, reason string, evaluations int64, d time.Duration) {
	if m == nil {
		return
	}
	label := string(strategy)
	m.runs.WithLabelValues(label, reason).Inc()
	m.evaluations.WithLabelValues(label).Add(float64(evaluations))
	m.duration.WithLabelValues(label).Observe(d.Seconds())
}
