package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeAPIDBCloser struct {
	*fakeAPIDB
	closed bool
}

func (f *fakeAPIDBCloser) Close() {
	f.closed = true
}

func okTelemetry(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func TestRunAPI(t *testing.T) {
	t.Run("telemetry_error", func(t *testing.T) {
		err := runAPI(
			func(context.Context, string) (func(context.Context) error, error) {
				return nil, errors.New("otel down")
			},
			func(context.Context) (apiDBCloser, error) {
				t.Fatal("openDB must not be called on telemetry error")
				return nil, nil
			},
			func(context.Context) (*redis.Client, error) {
				t.Fatal("openRedis must not be called on telemetry error")
				return nil, nil
			},
			func(*http.Server) error {
				t.Fatal("listen must not be called on telemetry error")
				return nil
			},
			nil,
		)
		if err == nil || !strings.Contains(err.Error(), "otel:") {
			t.Fatalf("expected wrapped telemetry error, got %v", err)
		}
	})

	t.Run("db_error", func(t *testing.T) {
		err := runAPI(
			okTelemetry,
			func(context.Context) (apiDBCloser, error) {
				return nil, errors.New("db down")
			},
			func(context.Context) (*redis.Client, error) {
				t.Fatal("openRedis must not be called on db error")
				return nil, nil
			},
			func(*http.Server) error {
				t.Fatal("listen must not be called on db error")
				return nil
			},
			nil,
		)
		if err == nil || !strings.Contains(err.Error(), "db:") {
			t.Fatalf("expected wrapped db error, got %v", err)
		}
	})

	t.Run("missing_session_secret", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "hs256")
		t.Setenv("SESSION_SECRET", "")
		db := &fakeAPIDBCloser{fakeAPIDB: &fakeAPIDB{}}
		listenCalled := false
		err := runAPI(
			okTelemetry,
			func(context.Context) (apiDBCloser, error) { return db, nil },
			func(context.Context) (*redis.Client, error) { return nil, errors.New("no redis") },
			func(*http.Server) error {
				listenCalled = true
				return nil
			},
			nil,
		)
		if err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
			t.Fatalf("expected session secret error, got %v", err)
		}
		if listenCalled {
			t.Fatal("listen should not be called when config is invalid")
		}
		if !db.closed {
			t.Fatal("db must be closed on startup failure")
		}
	})

	t.Run("starts_and_serves", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "hs256")
		t.Setenv("SESSION_SECRET", "test-secret")
		t.Setenv("INTAKE_ENABLED", "false")
		db := &fakeAPIDBCloser{fakeAPIDB: &fakeAPIDB{}}
		var handler http.Handler
		err := runAPI(
			okTelemetry,
			func(context.Context) (apiDBCloser, error) { return db, nil },
			func(context.Context) (*redis.Client, error) { return nil, errors.New("no redis") },
			func(server *http.Server) error {
				handler = server.Handler
				return nil
			},
			func(s *Server) {},
		)
		if err != nil {
			t.Fatalf("runAPI: %v", err)
		}
		if handler == nil {
			t.Fatal("expected a handler")
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
		if rec.Code != 200 || !strings.Contains(rec.Body.String(), "ok") {
			t.Fatalf("healthz failed: %d %s", rec.Code, rec.Body.String())
		}

		// Authenticated routes reject requests without a bearer token.
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/leads", nil))
		if rec.Code != 401 {
			t.Fatalf("expected 401 without token, got %d", rec.Code)
		}
	})

	t.Run("intake_config_error", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "hs256")
		t.Setenv("SESSION_SECRET", "test-secret")
		t.Setenv("INTAKE_ENABLED", "true")
		t.Setenv("KAFKA_BROKERS", " ")
		db := &fakeAPIDBCloser{fakeAPIDB: &fakeAPIDB{}}
		err := runAPI(
			okTelemetry,
			func(context.Context) (apiDBCloser, error) { return db, nil },
			func(context.Context) (*redis.Client, error) { return nil, errors.New("no redis") },
			func(*http.Server) error { return nil },
			nil,
		)
		if err == nil || !strings.Contains(err.Error(), "intake:") {
			t.Fatalf("expected intake config error, got %v", err)
		}
	})
}

func TestMainLogsFatal(t *testing.T) {
	origListen := listenFn
	origOpenDB := openDBFn
	origOpenRedis := openRedisFn
	origFatal := logFatalf
	defer func() {
		listenFn = origListen
		openDBFn = origOpenDB
		openRedisFn = origOpenRedis
		logFatalf = origFatal
	}()

	openDBFn = func(ctx context.Context) (apiDBCloser, error) { return nil, errors.New("db down") }
	openRedisFn = func(ctx context.Context) (*redis.Client, error) { return nil, nil }
	var got string
	logFatalf = func(format string, v ...any) { got = format }
	main()
	if got == "" {
		t.Fatal("expected fatal log on db failure")
	}
}
