// Package metrics exposes the tracker's Prometheus collectors. Every
// method is safe to call on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes
const (
	ScanOK               = "ok"
	ScanPermissionDenied = "permission_denied"
	ScanFailed           = "error"
	ScanCoalesced        = "coalesced"
)

// Candidate outcomes
const (
	CandidatePresented = "presented"
	CandidateDuplicate = "duplicate"
	CandidateParseMiss = "parse_miss"
	CandidateAccepted  = "accepted"
	CandidateIgnored   = "ignored"
)

type Metrics struct {
	// Registry owns every collector below and backs the /metrics endpoint.
	Registry *prometheus.Registry

	scans             *prometheus.CounterVec
	candidates        *prometheus.CounterVec
	ledgerMutations   *prometheus.CounterVec
	ledgerEntries     prometheus.Gauge
	recomputeDuration prometheus.Histogram
	persistFailures   *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

// New registers all collectors in a private registry, so it can be called
// repeatedly in tests without duplicate registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_ingest_scans_total",
				Help: "Ingestion scan cycles by outcome.",
			},
			[]string{"outcome"},
		),
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_ingest_candidates_total",
				Help: "Feed messages by classification outcome.",
			},
			[]string{"outcome"},
		),
		ledgerMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_ledger_mutations_total",
				Help: "Ledger mutations by operation.",
			},
			[]string{"operation"},
		),
		ledgerEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fintrack_ledger_entries",
				Help: "Number of entries in the current ledger snapshot.",
			},
		),
		recomputeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fintrack_ledger_recompute_duration_seconds",
				Help:    "Time spent recomputing running balances.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		persistFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_persist_failures_total",
				Help: "Best-effort persistence writes that failed.",
			},
			[]string{"store"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_http_requests_total",
				Help: "HTTP requests by route and status class.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_analytics_cache_lookups_total",
				Help: "Analytics cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) IncScan(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddCandidates(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.candidates.WithLabelValues(outcome).Add(float64(n))
}

// ObserveLedger records a mutation together with the resulting snapshot
// size and recompute time.
func (m *Metrics) ObserveLedger(operation string, entries int, recompute time.Duration) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(operation).Inc()
	m.ledgerEntries.Set(float64(entries))
	m.recomputeDuration.Observe(recompute.Seconds())
}

func (m *Metrics) IncPersistFailure(store string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(store).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
