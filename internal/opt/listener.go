package opt

import (
	"log/slog"

	"github.com/cwbudde/metaopt/internal/parameter"
)

// Listener is notified synchronously whenever a strategy finds a new best
// candidate.
type Listener interface {
	CandidateImproved(best parameter.Array)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(best parameter.Array)

func (f ListenerFunc) CandidateImproved(best parameter.Array) { f(best) }

// MultiListener fans a notification out to every listener in order.
type MultiListener []Listener

// CandidateImproved notifies every non-nil listener in order.
func (m MultiListener) CandidateImproved(best parameter.Array) {
	for _, l := range m {
		if l != nil {
			l.CandidateImproved(best)
		}
	}
}

// Entry is one progress record of a running strategy.
type Entry struct {
	Strategy     Type
	Iteration    int
	Fitness      float64
	JumpSize     float64
	DeltaFitness float64
	Candidate    parameter.Array
	Message      string
}

// Logger records strategy progress.
type Logger interface {
	Log(e Entry)
}

// NopLogger discards every entry.
type NopLogger struct{}

func (NopLogger) Log(Entry) {}

// SlogLogger writes entries to a structured logger at debug level.
type SlogLogger struct {
	Logger *slog.Logger
}

// Log writes the entry at debug level.
func (l SlogLogger) Log(e Entry) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"strategy", e.Strategy,
		"iteration", e.Iteration,
		"fitness", e.Fitness,
		"jump_size", e.JumpSize,
		"delta_fitness", e.DeltaFitness,
	}
	if e.Candidate != nil {
		attrs = append(attrs, "candidate", e.Candidate.String())
	}
	msg := e.Message
	if msg == "" {
		msg = "Optimization progress"
	}
	logger.Debug(msg, attrs...)
}

// MultiLogger forwards entries to several loggers.
type MultiLogger []Logger

// Log forwards the entry to every non-nil logger.
func (m MultiLogger) Log(e Entry) {
	for _, l := range m {
		if l != nil {
			l.Log(e)
		}
	}
}
