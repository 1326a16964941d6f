package server

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/parameter"
	"github.com/cwbudde/metaopt/internal/runner"
)

// progressInterval throttles progress broadcasts.
var progressInterval = 500 * time.Millisecond

// runJob executes an optimization job in the background. The run shares
// deps (store, metrics) with every other job; the job ID names the run.
func runJob(ctx context.Context, jm *JobManager, deps runner.Deps, jobID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	job, err := jm.beginJob(jobID, cancel)
	if err != nil {
		return err
	}
	defer jm.clearCancel(jobID)

	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem, "strategy", job.Config.Strategy)

	deps.ID = jobID
	deps.Listener = opt.MultiListener{deps.Listener, opt.ListenerFunc(func(best parameter.Array) {
		fitness := best.Fitness()
		if math.IsInf(fitness, 0) {
			return
		}
		jm.UpdateJob(jobID, func(j *Job) {
			j.Best = best.Values()
			j.Candidate = best.String()
			j.Fitness = fitness
		})
	})}
	deps.Logger = opt.MultiLogger{deps.Logger, progressLogger{jm: jm, jobID: jobID}}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	out, err := runner.Run(ctx, job.Config, deps)
	close(progressDone)

	if out != nil {
		endTime := time.Now()
		jm.UpdateJob(jobID, func(j *Job) {
			j.Best = out.Best.Values()
			j.Candidate = out.Best.String()
			j.Fitness = out.Fitness
			j.InitialFitness = out.InitialFitness
			j.ErrorPercent = out.Error
			j.Iterations = out.Iterations
			j.Evaluations = out.Evaluations
			j.Reason = string(out.Reason)
			j.EndTime = &endTime
		})
	}

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		markJobCancelled(jm, jobID)
	case err != nil:
		markJobFailed(jm, jobID, err)
	default:
		jm.UpdateJob(jobID, func(j *Job) {
			j.State = StateCompleted
		})
		slog.Info("Job completed",
			"job_id", jobID,
			"elapsed", out.Duration,
			"initial_fitness", out.InitialFitness,
			"fitness", out.Fitness,
			"reason", out.Reason,
		)
	}

	// Final event, then release the job's subscribers.
	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(eventFor(final))
	jm.broadcaster.CleanupJob(jobID)
	return err
}

// progressLogger copies per-iteration progress into the job.
type progressLogger struct {
	jm    *JobManager
	jobID string
}

func (p progressLogger) Log(e opt.Entry) {
	p.jm.UpdateJob(p.jobID, func(j *Job) {
		if e.Iteration > j.Iterations {
			j.Iterations = e.Iteration
		}
	})
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(eventFor(job))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		if j.EndTime == nil {
			j.EndTime = &endTime
		}
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		if j.EndTime == nil {
			j.EndTime = &endTime
		}
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
