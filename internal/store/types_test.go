package store

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestRunRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*RunRecord)
		field  string
	}{
		{"valid", func(*RunRecord) {}, ""},
		{"empty id", func(r *RunRecord) { r.ID = "" }, "ID"},
		{"empty problem", func(r *RunRecord) { r.Problem = "" }, "Problem"},
		{"empty strategy", func(r *RunRecord) { r.Strategy = "" }, "Strategy"},
		{"infinite fitness", func(r *RunRecord) { r.Fitness = math.Inf(1) }, "Fitness"},
		{"nan initial fitness", func(r *RunRecord) { r.InitialFitness = math.NaN() }, "InitialFitness"},
		{"infinite error", func(r *RunRecord) { r.ErrorPercent = math.Inf(-1) }, "ErrorPercent"},
		{"negative iterations", func(r *RunRecord) { r.Iterations = -1 }, "Iterations"},
		{"negative evaluations", func(r *RunRecord) { r.Evaluations = -5 }, "Evaluations"},
		{"nan best value", func(r *RunRecord) { r.Best = []float64{1, math.NaN()} }, "Best"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createTestRecord("run")
			tt.modify(rec)

			err := rec.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if !strings.Contains(verr.Error(), tt.field) {
				t.Errorf("Error() = %q does not name the field", verr.Error())
			}
		})
	}
}

func TestRunRecordValidateZeroStart(t *testing.T) {
	rec := RunRecord{ID: "z", Problem: "p", Strategy: "s"}
	var verr *ValidationError
	if err := rec.Validate(); !errors.As(err, &verr) || verr.Field != "StartedAt" {
		t.Errorf("Validate() = %v, want StartedAt error", err)
	}
}

func TestRunRecordToInfo(t *testing.T) {
	rec := createTestRecord("info")
	info := rec.ToInfo()

	if info.ID != rec.ID || info.Problem != rec.Problem || info.Variation != rec.Variation {
		t.Errorf("Identity not copied: %+v", info)
	}
	if info.Strategy != rec.Strategy || info.Fitness != rec.Fitness || info.Reason != rec.Reason {
		t.Errorf("Summary not copied: %+v", info)
	}
	if !info.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", info.StartedAt, rec.StartedAt)
	}
}

func TestRunRecordJSONFieldNames(t *testing.T) {
	rec := createTestRecord("json")
	rec.Failure = ""

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, key := range []string{"id", "problem", "strategy", "best", "fitness", "initialFitness", "errorPercent", "evaluations", "startedAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing JSON field %q", key)
		}
	}
	if _, ok := fields["failure"]; ok {
		t.Error("Empty failure should be omitted")
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{ID: "abc"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "run not found: abc" {
		t.Errorf("Error() = %q", err.Error())
	}
	if ErrNotFound.Error() != "run not found" {
		t.Errorf("ErrNotFound.Error() = %q", ErrNotFound.Error())
	}
	if errors.Is(errors.New("run not found"), ErrNotFound) {
		t.Error("Plain errors must not match ErrNotFound")
	}
}
