package server

import (
	"net/http"
)

type indexResponse struct {
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Jobs      map[string]int `json:"jobs"`
	Endpoints []string       `json:"endpoints"`
}

// handleIndex handles GET / with a summary of the service.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	counts := map[string]int{}
	for _, job := range s.jobManager.ListJobs() {
		counts[string(job.State)]++
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Service: "metaopt",
		Version: s.version,
		Jobs:    counts,
		Endpoints: []string{
			"POST /api/v1/jobs",
			"GET /api/v1/jobs",
			"GET /api/v1/jobs/{id}",
			"GET /api/v1/jobs/{id}/status",
			"GET /api/v1/jobs/{id}/stream",
			"DELETE /api/v1/jobs/{id}",
			"GET /api/v1/runs",
			"GET /api/v1/runs/{id}",
			"GET /api/v1/strategies",
			"GET /api/v1/problems",
			"GET /metrics",
		},
	})
}
