package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := Init(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	mw := HTTPMiddleware("")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 204 {
		t.Fatalf("middleware broke handler, got %d", rec.Code)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SOME_INT", "7")
	if got := envInt("SOME_INT", 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	t.Setenv("SOME_INT", "junk")
	if got := envInt("SOME_INT", 3); got != 3 {
		t.Fatalf("expected default, got %d", got)
	}
}
