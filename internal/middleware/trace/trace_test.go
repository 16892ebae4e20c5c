package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	m := NewMiddleware(log.Discard(), nil, nil)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id = %q, want generated req_ prefix", seen)
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("%s header = %q, want %q", RequestIDHeader, got, seen)
	}
}

func TestMiddlewareHonoursIncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"caller id kept", "abc-123", true},
		{"oversized id replaced", strings.Repeat("x", 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := NewMiddleware(log.Discard(), nil, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(RequestIDHeader, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), r)

			if (seen == tt.incoming) != tt.keep {
				t.Errorf("request id = %q, keep incoming %v", seen, tt.keep)
			}
		})
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	router := chi.NewRouter()
	router.Use(NewMiddleware(log.Discard(), m, nil).Handler)
	router.Delete("/v1/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/transactions/"+id, nil))
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, family := range families {
		if family.GetName() != "fintrack_http_requests_total" {
			continue
		}
		if got := len(family.GetMetric()); got != 1 {
			t.Fatalf("request series = %d, want one series for the route template", got)
		}
		for _, label := range family.GetMetric()[0].GetLabel() {
			if label.GetName() == "route" && label.GetValue() != "/v1/transactions/{id}" {
				t.Errorf("route label = %q", label.GetValue())
			}
		}
		if got := family.GetMetric()[0].GetCounter().GetValue(); got != 3 {
			t.Errorf("requests counted = %v, want 3", got)
		}
		return
	}
	t.Fatal("fintrack_http_requests_total not exported")
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
