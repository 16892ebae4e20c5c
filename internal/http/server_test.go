package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/ingest"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	store   *memory.Store
	ledger  *services.LedgerService
	metrics *metrics.Metrics
}

// newTestEnv builds a server over the memory store with a fixed clock. The
// ingest checkpoint starts one hour before testNow.
func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{store: memory.New(), metrics: metrics.New()}
	clock := func() time.Time { return testNow }

	start := testNow.Add(-time.Hour)
	if err := env.store.SaveCursor(context.Background(), ingest.Cursor{Checkpoint: start, ScanBound: start}); err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}

	env.ledger = services.NewLedgerService(env.store, env.metrics, log.Discard())
	pipeline := ingest.NewPipeline(env.store, ingest.StaticGate(true), env.store, ingest.LogPresenter(log.Discard()),
		ingest.PipelineConfig{BatchSize: 20, Location: time.UTC},
		ingest.WithClock(clock), ingest.WithLogger(log.Discard()))

	deps := Deps{
		Ledger:  env.ledger,
		Ingest:  services.NewIngestProcessor(pipeline, env.ledger, services.IngestProcessorConfig{}, log.Discard()),
		Metrics: env.metrics,
		Logger:  log.Discard(),
		Ready:   env.store.Ping,
		Clock:   clock,
	}
	for _, m := range mutate {
		m(&deps)
	}

	env.srv = NewServer(":0", deps)
	t.Cleanup(func() { env.srv.Shutdown(context.Background()) })
	return env
}

func (env *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "192.0.2.10:5000"
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rr.Body.String())
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("database is locked") }
	})

	rr := env.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if got := decode[errorResponse](t, rr); got.Error == "" {
		t.Error("error body missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "")

	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `fintrack_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Errorf("metrics output missing healthz sample:\n%s", rr.Body.String())
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	rr = env.do(t, http.MethodPut, "/v1/ledger", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /v1/ledger status = %d, want 405", rr.Code)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitPerMinute = 1 })

	if rr := env.do(t, http.MethodDelete, "/v1/ledger", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("first clear status = %d", rr.Code)
	}
	rr := env.do(t, http.MethodDelete, "/v1/ledger", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second clear status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}

	for i := 0; i < 3; i++ {
		if rr := env.do(t, http.MethodGet, "/v1/ledger", ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d, reads must not be limited", i, rr.Code)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
