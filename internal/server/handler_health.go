package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is reported by the health endpoint and the CLI.
const Version = "0.1.0"

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Cores     int    `json:"cores"`
	MaxRuns   int    `json:"max_runs"`
	MaxTicks  int    `json:"max_ticks"`
	Metrics   bool   `json:"metrics"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Cores:     s.sim.Cores,
		MaxRuns:   s.config.MaxRuns,
		MaxTicks:  s.config.MaxTicks,
		Metrics:   s.metrics != nil,
	})
}
