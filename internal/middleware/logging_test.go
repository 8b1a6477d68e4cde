package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		body          string
	}{
		{"GET request", "GET", "/api/v1/movies/popular", http.StatusOK, `{"success":true}`},
		{"POST request", "POST", "/api/v1/me/saved-movies/toggle", http.StatusCreated, ""},
		{"404 request", "GET", "/notfound", http.StatusNotFound, "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zap.InfoLevel)

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
				_, _ = w.Write([]byte(tt.body))
			})

			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("expected one http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("status_code = %v", fields["status_code"])
			}
			if fields["path"] != tt.path || fields["method"] != tt.method {
				t.Errorf("fields = %v", fields)
			}
			if fields["bytes"] != int64(len(tt.body)) {
				t.Errorf("bytes = %v, want %d", fields["bytes"], len(tt.body))
			}
		})
	}
}

func TestLogging_ImplicitOK(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
		w.WriteHeader(http.StatusTeapot) // superfluous, ignored
	})
	Logging(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if got := logs.All()[0].ContextMap()["status_code"]; got != int64(http.StatusOK) {
		t.Errorf("status_code = %v, want 200", got)
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status int
		event  string
	}{
		{http.StatusUnauthorized, "security_event"},
		{http.StatusForbidden, "security_event"},
		{http.StatusTooManyRequests, "rate_limit_violation"},
		{http.StatusOK, ""},
		{http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		core, logs := observer.New(zap.InfoLevel)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tt.status) })
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

		if tt.event == "" {
			if logs.Len() != 0 {
				t.Errorf("status %d logged %d entries", tt.status, logs.Len())
			}
			continue
		}
		entries := logs.FilterMessage(tt.event).All()
		if len(entries) != 1 {
			t.Fatalf("status %d: expected %s entry, got %v", tt.status, tt.event, logs.All())
		}
		if ip := entries[0].ContextMap()["ip"]; ip != "203.0.113.9" {
			t.Errorf("ip = %v", ip)
		}
	}
}
