package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/metaopt/internal/config"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer change.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// Job represents an optimization job
type Job struct {
	ID     string        `json:"id"`
	State  JobState      `json:"state"`
	Config config.Config `json:"config"`

	Best           []float64 `json:"best,omitempty"`
	Candidate      string    `json:"candidate,omitempty"`
	Fitness        float64   `json:"fitness"`
	InitialFitness float64   `json:"initialFitness"`
	ErrorPercent   float64   `json:"errorPercent"`
	Iterations     int       `json:"iterations"`
	Evaluations    int64     `json:"evaluations"`
	Reason         string    `json:"reason,omitempty"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Elapsed is the running time so far, or the total once the job ended.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs. Getters return copies, so
// callers never race with the worker updating a job.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for cfg.
func (jm *JobManager) CreateJob(cfg config.Config) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    cfg,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return snapshot(job)
}

// GetJob returns a copy of the job with id.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return snapshot(job), true
}

// ListJobs returns all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, snapshot(job))
	}
	slices.SortFunc(jobs, func(a, b Job) int { return a.StartTime.Compare(b.StartTime) })
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, snapshot(job))
		}
	}
	return running
}

// beginJob moves a pending job to running and remembers how to stop its
// worker. Jobs cancelled before their worker started are refused.
func (jm *JobManager) beginJob(id string, cancel context.CancelFunc) (Job, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.State.Terminal() {
		return Job{}, fmt.Errorf("%w: %s is %s", ErrJobFinished, id, job.State)
	}
	job.State = StateRunning
	jm.cancels[id] = cancel
	return snapshot(job), nil
}

func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob stops a pending or running job. The worker marks it cancelled
// once the strategy returns.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.State.Terminal() {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, job.State)
	}
	if cancel, ok := jm.cancels[id]; ok {
		jm.mu.Unlock()
		cancel()
		return nil
	}
	// No worker yet: it sees the state and does not start.
	endTime := time.Now()
	job.State = StateCancelled
	job.EndTime = &endTime
	final := snapshot(job)
	jm.mu.Unlock()

	jm.broadcaster.Broadcast(eventFor(final))
	jm.broadcaster.CleanupJob(id)
	return nil
}

// CancelAll stops every job that is still active.
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, cancel := range jm.cancels {
		cancel()
	}
}

func snapshot(j *Job) Job {
	c := *j
	c.Best = slices.Clone(j.Best)
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	return c
}
