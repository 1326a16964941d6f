// Package store persists finished optimization runs and their progress
// traces.
package store

// Store persists run records. Implementations must be safe for concurrent
// use.
//
// Error handling conventions:
//   - LoadRun and DeleteRun return ErrNotFound for unknown IDs
//   - other failures are wrapped with context using fmt.Errorf("...: %w", err)
type Store interface {
	// SaveRun writes the record, replacing an existing one with the same ID.
	SaveRun(rec *RunRecord) error

	LoadRun(id string) (*RunRecord, error)

	// ListRuns returns summaries of every stored run, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and everything stored alongside it.
	DeleteRun(id string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing run.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
