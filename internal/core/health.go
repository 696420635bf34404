package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout is the maximum time allowed for the health probe to
// complete. If it exceeds this deadline, the health check returns 503.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks a critical dependency (the database pool) that must be
// operational for the service to function.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the health check against the subsystem, respecting the
	// context deadline.
	Check(ctx context.Context) error
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes with a short timeout.
// Returns 200 OK if every probe reports healthy, 503 Service Unavailable
// otherwise. The endpoint is public and mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	components := make(map[string]componentStatus, len(s.HealthProbes))
	healthy := true
	for _, probe := range s.HealthProbes {
		if err := probe.Check(ctx); err != nil {
			healthy = false
			components[probe.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		components[probe.Name()] = componentStatus{Status: "healthy"}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	JSON(w, r, status, healthResponse{Status: overall, Components: components})
}
