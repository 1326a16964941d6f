package store

import (
	"math"
	"time"
)

// RunRecord is the persisted outcome of one optimization run.
type RunRecord struct {
	ID        string `json:"id"`
	Problem   string `json:"problem"`
	Variation string `json:"variation,omitempty"`
	Strategy  string `json:"strategy"`
	Seed      uint64 `json:"seed"`

	// Kind is the representation of the candidate (numeric, permuted,
	// variable_length).
	Kind string `json:"kind"`

	// Best holds the natural values of the best candidate.
	Best      []float64 `json:"best"`
	Candidate string    `json:"candidate"`

	Fitness        float64 `json:"fitness"`
	InitialFitness float64 `json:"initialFitness"`

	// ErrorPercent is the distance to the known solution as a percentage of
	// the fitness range.
	ErrorPercent float64 `json:"errorPercent"`

	Iterations  int    `json:"iterations"`
	Evaluations int64  `json:"evaluations"`
	Reason      string `json:"reason"`

	// Failure holds the error message of a run that did not complete.
	Failure string `json:"failure,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// RunInfo is the listing summary of a run.
type RunInfo struct {
	ID        string    `json:"id"`
	Problem   string    `json:"problem"`
	Variation string    `json:"variation,omitempty"`
	Strategy  string    `json:"strategy"`
	Fitness   float64   `json:"fitness"`
	Reason    string    `json:"reason"`
	StartedAt time.Time `json:"startedAt"`
}

// ToInfo returns the listing summary of the record.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Problem:   r.Problem,
		Variation: r.Variation,
		Strategy:  r.Strategy,
		Fitness:   r.Fitness,
		Reason:    r.Reason,
		StartedAt: r.StartedAt,
	}
}

// Validate checks that the record can be stored. JSON has no encoding for
// infinities, so every float field must be finite.
func (r *RunRecord) Validate() error {
	switch {
	case r.ID == "":
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	case r.Problem == "":
		return &ValidationError{Field: "Problem", Reason: "cannot be empty"}
	case r.Strategy == "":
		return &ValidationError{Field: "Strategy", Reason: "cannot be empty"}
	case !finite(r.Fitness):
		return &ValidationError{Field: "Fitness", Reason: "must be finite"}
	case !finite(r.InitialFitness):
		return &ValidationError{Field: "InitialFitness", Reason: "must be finite"}
	case !finite(r.ErrorPercent):
		return &ValidationError{Field: "ErrorPercent", Reason: "must be finite"}
	case r.Iterations < 0:
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	case r.Evaluations < 0:
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	case r.StartedAt.IsZero():
		return &ValidationError{Field: "StartedAt", Reason: "cannot be zero"}
	}
	for _, v := range r.Best {
		if !finite(v) {
			return &ValidationError{Field: "Best", Reason: "values must be finite"}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// ValidationError reports an invalid record field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
