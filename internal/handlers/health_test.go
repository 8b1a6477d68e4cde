package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		mode       string
		deps       []Dependency
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips probes",
			deps:       []Dependency{{Name: "database", Check: down}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "extended all healthy",
			mode:       "extended",
			deps:       []Dependency{{Name: "database", Check: ok}, {Name: "redis", Check: ok}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "extended with failing dependency",
			mode:       "extended",
			deps:       []Dependency{{Name: "database", Check: ok}, {Name: "rabbitmq", Check: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "healthy", "rabbitmq": "unhealthy: connection refused"},
		},
		{
			name:       "nil checks are skipped",
			mode:       "extended",
			deps:       []Dependency{{Name: "rabbitmq"}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			NewHealthChecker(tt.deps...).HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz?mode="+tt.mode, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("Checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("Check %s = %q, want %q", name, resp.Checks[name], want)
				}
			}
			wantHealthy := tt.wantStatus == http.StatusOK
			if (resp.Status == "healthy") != wantHealthy {
				t.Errorf("Status = %q", resp.Status)
			}
		})
	}
}

func TestHealthChecker_ProbeHasDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	check := func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}
	w := httptest.NewRecorder()
	NewHealthChecker(Dependency{Name: "redis", Check: check}).HealthCheck(w,
		httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))
	if !hasDeadline {
		t.Error("Expected probe context to carry a deadline")
	}
	if !strings.Contains(w.Body.String(), `"redis":"healthy"`) {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}
