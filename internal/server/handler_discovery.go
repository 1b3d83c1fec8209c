package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Policies    []string       `json:"policies"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "coresim API",
		Version:     "v1",
		Description: "Lockstep multi-core scheduler simulator",
		Policies:    []string{"FCFS", "SJF", "RR", "MLQ"},
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "Run a workload (POST, ?trace=true keeps per-tick snapshots) or list past runs (?policy=, ?outcome=, ?limit=, ?offset=)"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run with workload and result"},
			{"/api/v1/runs/{id}/ticks", []string{"GET"}, "Per-tick snapshots of a traced run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
			{"/ui/", []string{"GET"}, "HTML run browser (when enabled)"},
		},
	})
}
