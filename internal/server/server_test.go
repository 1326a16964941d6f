package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/metrics"
	"github.com/cwbudde/metaopt/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.FSStore) {
	t.Helper()

	dir := t.TempDir()
	fs, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defaults := config.Default()
	defaults.Seed = 42
	defaults.Store.Path = dir

	reg := prometheus.NewRegistry()
	s := NewServer(":0", Options{
		Defaults: &defaults,
		Store:    fs,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Version:  "test",
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, fs
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_CreateJob(t *testing.T) {
	s, fs := newTestServer(t)

	w := do(t, s.Handler(), http.MethodPost, "/api/v1/jobs", `{"problem": "tsp", "variation": "SIMPLE", "strategy": "hill_climbing"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.Config.Problem != "tsp" || job.Config.Seed != 42 {
		t.Errorf("Request should override defaults only where given: %+v", job.Config)
	}

	done := waitForState(t, s.jobManager, job.ID, StateCompleted)
	if done.Reason == "" || done.Evaluations == 0 {
		t.Errorf("Completed job should carry its outcome: %+v", done)
	}
	if _, err := fs.LoadRun(job.ID); err != nil {
		t.Errorf("Completed job should be stored: %v", err)
	}
}

func TestServer_CreateJob_Invalid(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed json", `{"problem":`, ""},
		{"unknown field", `{"population": 3}`, ""},
		{"unknown strategy", `{"strategy": "GRADIENT"}`, "strategy"},
		{"unknown problem", `{"problem": "knapsack"}`, "problem"},
		{"bad genetic", `{"genetic": {"cull_fraction": 1.5}}`, "genetic.cull_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/jobs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", w.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error: %v", err)
			}
			if resp.Field != tt.field {
				t.Errorf("Field = %q, want %q", resp.Field, tt.field)
			}
		})
	}

	if jobs := s.jobManager.ListJobs(); len(jobs) != 0 {
		t.Errorf("Invalid requests should not create jobs, got %d", len(jobs))
	}
}

func TestServer_ListJobs(t *testing.T) {
	s, _ := newTestServer(t)

	s.jobManager.CreateJob(config.Default())
	s.jobManager.CreateJob(config.Default())

	w := do(t, s.Handler(), http.MethodGet, "/api/v1/jobs", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var jobs []Job
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s, _ := newTestServer(t)
	job := s.jobManager.CreateJob(config.Default())

	for _, path := range []string{"/api/v1/jobs/" + job.ID, "/api/v1/jobs/" + job.ID + "/status"} {
		w := do(t, s.Handler(), http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}

		var response map[string]any
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response["id"] != job.ID {
			t.Error("Response should contain job ID")
		}
		if response["state"] != string(StatePending) {
			t.Errorf("Expected pending state, got %v", response["state"])
		}
		if _, ok := response["elapsed"]; !ok {
			t.Error("Response should contain elapsed time")
		}
	}
}

func TestServer_GetJobStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/api/v1/jobs/nonexistent/status", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	w = do(t, s.Handler(), http.MethodGet, "/api/v1/jobs/nonexistent/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown subpath, got %d", w.Code)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	body, _ := json.Marshal(map[string]any{
		"strategy":    "BRUTE_FORCE",
		"brute_force": map[string]any{"max_samples": 0},
	})
	w := do(t, h, http.MethodPost, "/api/v1/jobs", string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job Job
	json.NewDecoder(w.Body).Decode(&job)
	waitForState(t, s.jobManager, job.ID, StateRunning)

	w = do(t, h, http.MethodDelete, "/api/v1/jobs/"+job.ID, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	waitForState(t, s.jobManager, job.ID, StateCancelled)

	w = do(t, h, http.MethodDelete, "/api/v1/jobs/"+job.ID, "")
	if w.Code != http.StatusConflict {
		t.Errorf("Cancelling a finished job: expected 409, got %d", w.Code)
	}
	w = do(t, h, http.MethodDelete, "/api/v1/jobs/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Cancelling a missing job: expected 404, got %d", w.Code)
	}
}

func TestServer_ShutdownCancelsJobs(t *testing.T) {
	s, _ := newTestServer(t)

	job := s.jobManager.CreateJob(endlessConfig(t))
	s.submit(job.ID)
	waitForState(t, s.jobManager, job.ID, StateRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	stopped, _ := s.jobManager.GetJob(job.ID)
	if stopped.State != StateCancelled {
		t.Errorf("Expected cancelled after shutdown, got %s", stopped.State)
	}
}

func TestServer_Catalog(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/v1/strategies", "")
	var strategies []string
	if err := json.NewDecoder(w.Body).Decode(&strategies); err != nil {
		t.Fatalf("Failed to decode strategies: %v", err)
	}
	if len(strategies) != 10 {
		t.Errorf("Expected 10 strategies, got %d: %v", len(strategies), strategies)
	}

	w = do(t, h, http.MethodGet, "/api/v1/problems", "")
	var problems []problemInfo
	if err := json.NewDecoder(w.Body).Decode(&problems); err != nil {
		t.Fatalf("Failed to decode problems: %v", err)
	}
	found := false
	for _, p := range problems {
		if p.Name == "parabola" {
			found = len(p.Variations) == 4
		}
	}
	if !found {
		t.Errorf("parabola with 4 variations missing from %+v", problems)
	}

	w = do(t, h, http.MethodPost, "/api/v1/strategies", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestServer_RunsAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/jobs", `{"strategy": "GLOBAL_SAMPLING"}`)
	var job Job
	json.NewDecoder(w.Body).Decode(&job)
	waitForState(t, s.jobManager, job.ID, StateCompleted)

	w = do(t, h, http.MethodGet, "/api/v1/runs", "")
	var infos []store.RunInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode runs: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != job.ID {
		t.Fatalf("Expected the job's run, got %+v", infos)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+job.ID, "")
	var rec store.RunRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if rec.Strategy != "GLOBAL_SAMPLING" {
		t.Errorf("Strategy = %q", rec.Strategy)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(w.Body.String(), "metaopt_runs_total{reason=") || !strings.Contains(w.Body.String(), "strategy=\"GLOBAL_SAMPLING\"} 1\n") {
		t.Errorf("Run not counted in metrics:\n%s", w.Body.String())
	}
}

func TestServer_Index(t *testing.T) {
	s, _ := newTestServer(t)
	s.jobManager.CreateJob(config.Default())

	w := do(t, s.Handler(), http.MethodGet, "/", "")
	var resp indexResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode index: %v", err)
	}
	if resp.Version != "test" || resp.Jobs["pending"] != 1 || len(resp.Endpoints) == 0 {
		t.Errorf("Unexpected index: %+v", resp)
	}

	w = do(t, s.Handler(), http.MethodGet, "/nowhere", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodOptions, "/api/v1/jobs", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"strategy": "SIMULATED_ANNEALING", "annealing": map[string]any{"iterations": 200000}})
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()

	stream, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/stream", ts.URL, job.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %q", ct)
	}

	// Cancel once the first event arrives; the stream must end with the
	// terminal event.
	var events []ProgressEvent
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("Invalid event %q: %v", line, err)
		}
		events = append(events, event)
		if len(events) == 1 {
			s.jobManager.CancelJob(job.ID)
		}
	}

	if len(events) == 0 {
		t.Fatal("Expected SSE events")
	}
	last := events[len(events)-1]
	if !last.State.Terminal() {
		t.Errorf("Stream should end with a terminal event, got %s", last.State)
	}
	if last.JobID != job.ID {
		t.Errorf("Event for wrong job: %s", last.JobID)
	}
}

func TestServer_JobStream_FinishedJob(t *testing.T) {
	s, _ := newTestServer(t)
	job := s.jobManager.CreateJob(config.Default())
	s.jobManager.CancelJob(job.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/stream", nil)
	w := httptest.NewRecorder()
	s.handleJobStream(w, req, job.ID)

	if n := strings.Count(w.Body.String(), "data: "); n != 1 {
		t.Errorf("Expected exactly one event for a finished job, got %d", n)
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s.Handler(), http.MethodGet, "/api/v1/jobs/nonexistent/stream", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")
	eb.Broadcast(ProgressEvent{
		JobID:      "job1",
		State:      StateRunning,
		Iterations: 10,
		Fitness:    100.5,
		Timestamp:  time.Now(),
	})

	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Iterations != 10 {
			t.Errorf("Expected 10 iterations, got %d", received.Iterations)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Late subscribers get the last event replayed.
	late := eb.Subscribe("job1")
	select {
	case replayed := <-late:
		if replayed.Fitness != 100.5 {
			t.Errorf("Replayed fitness = %v", replayed.Fitness)
		}
	default:
		t.Error("Expected replayed event")
	}

	eb.Unsubscribe("job1", late)
	eb.CleanupJob("job1")
	if _, ok := <-ch; ok {
		t.Error("CleanupJob should close subscriber channels")
	}
	// Unsubscribing after cleanup must not close the channel twice.
	eb.Unsubscribe("job1", ch)
}
