package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/moviebox/api"
	"github.com/gorilla/mux"
)

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	h, err := NewOpenAPIHandler(api.OpenAPI)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler() error = %v", err)
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/x-yaml" {
		t.Errorf("YAML: status %d, content type %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode JSON document: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Error("Expected openapi version")
	}
	for _, p := range []string{"/movies/home", "/auth/login", "/me/saved-movies/toggle"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("Path %s missing from document", p)
		}
	}
}

func TestNewOpenAPIHandler_InvalidYAML(t *testing.T) {
	t.Parallel()
	if _, err := NewOpenAPIHandler([]byte("openapi: [unclosed")); err == nil {
		t.Error("Expected parse error")
	}
}
