package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestRouteSpans checks that routed requests produce spans named after the
// route template and join an incoming trace
func TestRouteSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prop := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceName, otelmux.WithTracerProvider(tp), otelmux.WithPropagators(prop)))
	r.HandleFunc("/api/v1/movies/{id:[0-9]+}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		traceParent string
		wantTraceID string
	}{
		{name: "new trace"},
		{
			name:        "continues incoming trace",
			traceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/movies/603", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("ForceFlush() error = %v", err)
			}
			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected one span, got %d", len(spans))
			}
			span := spans[0]
			if !strings.HasSuffix(span.Name, "/api/v1/movies/{id:[0-9]+}") {
				t.Errorf("span name = %q", span.Name)
			}
			if !span.SpanContext.TraceID().IsValid() {
				t.Error("Expected a valid trace ID")
			}
			if tt.wantTraceID != "" && span.SpanContext.TraceID().String() != tt.wantTraceID {
				t.Errorf("trace ID = %s, want %s", span.SpanContext.TraceID(), tt.wantTraceID)
			}
		})
	}
}
