package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/metaopt/internal/opt"
)

// TraceEntry is one line of trace.jsonl.
type TraceEntry struct {
	Iteration    int       `json:"iteration"`
	Strategy     string    `json:"strategy"`
	Fitness      float64   `json:"fitness"`
	JumpSize     float64   `json:"jumpSize,omitempty"`
	DeltaFitness float64   `json:"deltaFitness,omitempty"`
	Values       []float64 `json:"values,omitempty"`
	Message      string    `json:"message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TraceWriter appends strategy progress to a JSONL file. It implements
// opt.Logger and is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	err    error

	// IncludeValues adds the candidate's values to every entry.
	IncludeValues bool
}

// NewTraceWriter opens <baseDir>/runs/<runID>/trace.jsonl, truncating it
// unless append is set.
func NewTraceWriter(baseDir, runID string, append bool) (*TraceWriter, error) {
	dir := RunDir(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, "trace.jsonl")
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Log implements opt.Logger. Write errors are kept and reported by Err and
// Close.
func (tw *TraceWriter) Log(e opt.Entry) {
	entry := TraceEntry{
		Iteration:    e.Iteration,
		Strategy:     string(e.Strategy),
		Fitness:      e.Fitness,
		JumpSize:     e.JumpSize,
		DeltaFitness: e.DeltaFitness,
		Message:      e.Message,
		Timestamp:    time.Now(),
	}
	if tw.IncludeValues && e.Candidate != nil {
		entry.Values = e.Candidate.Values()
	}
	if err := tw.Write(entry); err != nil {
		tw.mu.Lock()
		if tw.err == nil {
			tw.err = err
		}
		tw.mu.Unlock()
	}
}

// Write appends an entry. It is buffered until Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	entry.Fitness = sanitize(entry.Fitness)
	entry.JumpSize = sanitize(entry.JumpSize)
	entry.DeltaFitness = sanitize(entry.DeltaFitness)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// sanitize maps values JSON cannot encode onto the nearest encodable ones.
func sanitize(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}

// Err returns the first error hit by Log.
func (tw *TraceWriter) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// Flush writes buffered entries and syncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It also reports an earlier Log error.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return tw.err
}

func (tw *TraceWriter) Path() string { return tw.path }

// TraceReader reads trace entries back.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of runID. A missing trace yields a
// NotFoundError.
func NewTraceReader(baseDir, runID string) (*TraceReader, error) {
	file, err := os.Open(filepath.Join(RunDir(baseDir, runID), "trace.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: runID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next entry, or io.EOF at the end of the trace.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads the remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// DeleteTrace removes the trace of a run. A missing trace is not an error.
func DeleteTrace(baseDir, runID string) error {
	err := os.Remove(filepath.Join(RunDir(baseDir, runID), "trace.jsonl"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}
