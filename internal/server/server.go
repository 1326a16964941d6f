// Package server exposes optimization runs over HTTP: jobs are submitted as
// run configurations, executed in the background and streamed as SSE.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/metrics"
	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
	"github.com/cwbudde/metaopt/internal/runner"
	"github.com/cwbudde/metaopt/internal/store"
)

// Options configures a Server. Every field is optional.
type Options struct {
	// Defaults is the configuration new jobs start from. The zero value
	// means config.Default().
	Defaults *config.Config

	Store   store.Store
	Metrics *metrics.Metrics

	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// TraceDir is where job traces go when tracing is enabled. Empty uses
	// the base directory of the default store.
	TraceDir string

	Version string
}

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	addr       string
	server     *http.Server

	defaults config.Config
	deps     runner.Deps
	gatherer prometheus.Gatherer
	version  string

	// Jobs outlive the request that created them but not the server.
	jobCtx    context.Context
	cancelAll context.CancelFunc
	workers   sync.WaitGroup
}

// NewServer creates a new server listening on addr.
func NewServer(addr string, opts Options) *Server {
	defaults := config.Default()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	// Jobs may name any store path in their config; traces stay in the
	// server's directory.
	traceDir := opts.TraceDir
	if traceDir == "" {
		traceDir = runner.StoreBaseDir(defaults.Store)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		jobManager: NewJobManager(),
		addr:       addr,
		defaults:   defaults,
		deps: runner.Deps{
			Store:    opts.Store,
			Metrics:  opts.Metrics,
			TraceDir: traceDir,
		},
		gatherer:  gatherer,
		version:   opts.Version,
		jobCtx:    ctx,
		cancelAll: cancel,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRuns)
	mux.HandleFunc("/api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("/api/v1/problems", s.handleProblems)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// their workers to record the outcome.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	err := s.server.Shutdown(ctx)

	s.cancelAll()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// submit starts a worker for a created job.
func (s *Server) submit(jobID string) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := runJob(s.jobCtx, s.jobManager, s.deps, jobID); err != nil {
			slog.Debug("Job ended with error", "job_id", jobID, "error", err)
		}
	}()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleJobsWithID handles /api/v1/jobs/{id}[/status|/stream]
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/jobs/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "job id required")
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleCancelJob(w, r, jobID)
	case len(parts) == 1 || (len(parts) == 2 && parts[1] == "status"):
		if allowMethods(w, r, http.MethodGet) {
			s.handleGetJobStatus(w, r, jobID)
		}
	case len(parts) == 2 && parts[1] == "stream":
		if allowMethods(w, r, http.MethodGet) {
			s.handleJobStream(w, r, jobID)
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleCreateJob handles POST /api/v1/jobs. The body is a partial run
// configuration; omitted fields keep the server defaults.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	cfg := s.defaults
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := cfg.Validate(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Field: verr.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.jobManager.CreateJob(cfg)
	s.submit(job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

type jobStatus struct {
	Job
	Elapsed float64 `json:"elapsed"`
}

// handleGetJobStatus handles GET /api/v1/jobs/{id}/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobStatus{Job: job, Elapsed: job.Elapsed().Seconds()})
}

// handleCancelJob handles DELETE /api/v1/jobs/{id}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	err := s.jobManager.CancelJob(jobID)
	switch {
	case errors.Is(err, ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, ErrJobFinished):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// handleRuns handles GET /api/v1/runs and /api/v1/runs/{id} from the run store.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if s.deps.Store == nil {
		writeError(w, http.StatusNotFound, "no run store configured")
		return
	}

	parts := splitPath(r.URL.Path, "/api/v1/runs")
	switch len(parts) {
	case 0:
		infos, err := s.deps.Store.ListRuns()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, infos)
	case 1:
		rec, err := s.deps.Store.LoadRun(parts[0])
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleStrategies handles GET /api/v1/strategies
func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	if allowMethods(w, r, http.MethodGet) {
		writeJSON(w, http.StatusOK, opt.Types())
	}
}

type problemInfo struct {
	Name       string   `json:"name"`
	Variations []string `json:"variations"`
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	names := problems.Names()
	infos := make([]problemInfo, len(names))
	for i, name := range names {
		infos[i] = problemInfo{Name: name, Variations: problems.Variations(name)}
	}
	writeJSON(w, http.StatusOK, infos)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
