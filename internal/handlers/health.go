package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency probe
const healthCheckTimeout = 5 * time.Second

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// Dependency is a named health probe
type Dependency struct {
	Name  string
	Check CheckFunc
}

// HealthChecker handles health check requests
type HealthChecker struct {
	deps []Dependency
}

// NewHealthChecker creates a health checker probing deps in extended mode.
// Dependencies with a nil Check are skipped.
func NewHealthChecker(deps ...Dependency) *HealthChecker {
	kept := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d.Check != nil {
			kept = append(kept, d)
		}
	}
	return &HealthChecker{deps: kept}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	// Basic mode only reports that the server is running
	if r.URL.Query().Get("mode") == "extended" {
		checks := make(map[string]string, len(h.deps))
		for _, d := range h.deps {
			if err := probe(r.Context(), d.Check); err != nil {
				response.Status = "unhealthy"
				checks[d.Name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			checks[d.Name] = "healthy"
		}
		response.Checks = checks
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func probe(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}
