package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// FSStore keeps every run in its own directory: <baseDir>/runs/<id>/.
// The record is run.json; a trace, if any, sits next to it.
//
// Writes go to a temp file that is renamed into place, so readers never see
// a partial record and no locks are needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates baseDir if it does not exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir is the root directory of the store.
func (fs *FSStore) BaseDir() string { return fs.baseDir }

func (fs *FSStore) runDir(id string) string {
	return RunDir(fs.baseDir, id)
}

func (fs *FSStore) recordPath(id string) string {
	return filepath.Join(fs.runDir(id), "run.json")
}

// RunDir is the directory holding everything stored for run id.
func RunDir(baseDir, id string) string {
	return filepath.Join(baseDir, "runs", id)
}

// SaveRun writes the record atomically, replacing an earlier one.
func (fs *FSStore) SaveRun(rec *RunRecord) error {
	if rec == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(fs.runDir(rec.ID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run record: %w", err)
	}

	finalPath := fs.recordPath(rec.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	slog.Debug("Run saved", "id", rec.ID, "path", finalPath)
	return nil
}

// LoadRun reads a record. A missing run yields a NotFoundError.
func (fs *FSStore) LoadRun(id string) (*RunRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	path := fs.recordPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize run record: %w", err)
	}
	return &rec, nil
}

// ListRuns summarizes every readable record, oldest first.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := fs.LoadRun(entry.Name())
		if err != nil {
			// Directories with only a trace, or a corrupted record.
			slog.Warn("Skipping run while listing", "id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, rec.ToInfo())
	}

	slices.SortStableFunc(infos, func(a, b RunInfo) int { return a.StartedAt.Compare(b.StartedAt) })
	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory, trace included.
func (fs *FSStore) DeleteRun(id string) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	dir := fs.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "id", id, "path", dir)
	return nil
}
