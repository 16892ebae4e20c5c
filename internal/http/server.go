// Package http serves the tracker's JSON API: ledger reads and writes,
// analytics views and candidate review.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 10 * time.Minute
	readyTimeout     = 2 * time.Second
)

// Inbox stores forwarded notifications for the local scanner.
type Inbox interface {
	AddMessage(ctx context.Context, msg ingest.Message) (bool, error)
}

// Publisher hands forwarded notifications to the ingest worker.
type Publisher interface {
	PublishMessageArrived(ctx context.Context, msg ingest.Message) error
}

// Deps are the collaborators the API serves. Ingest may be nil when the
// process does not review candidates.
type Deps struct {
	Ledger  *services.LedgerService
	Ingest  *services.IngestProcessor
	Metrics *metrics.Metrics
	Logger  *log.Logger

	// Publisher, when set, takes precedence over Inbox.
	Inbox     Inbox
	Publisher Publisher

	// Ready reports whether storage is reachable.
	Ready func(context.Context) error
	// ScanInWorker makes POST /v1/ingest/scan refuse, because another
	// process owns the scanner.
	ScanInWorker bool

	ForecastHorizonDays int
	// CategoryLookback is the default months window; 0 means all history.
	CategoryLookback    int
	CacheSize           int
	CacheTTL            time.Duration
	RateLimitPerMinute  int

	// Clock defaults to time.Now; today's date is taken from it.
	Clock func() time.Time
}

type Server struct {
	http.Server

	deps    Deps
	logger  *log.Logger
	now     func() time.Time
	limiter *ratelimit.Limiter
	caches  *cache.Manager

	categoryCache *cache.LRUCache[[]analytics.CategoryBucket]
	trendCache    *cache.LRUCache[analytics.TrendSeries]
	forecastCache *cache.LRUCache[forecastResponse]

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.CacheSize <= 0 {
		deps.CacheSize = defaultCacheSize
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = defaultCacheTTL
	}
	if deps.ForecastHorizonDays <= 0 {
		deps.ForecastHorizonDays = analytics.DefaultHorizonDays
	}
	if deps.CategoryLookback < 0 {
		deps.CategoryLookback = 0
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	hook := cache.WithLookupHook(deps.Metrics.IncCache)
	s := &Server{
		deps:          deps,
		logger:        logger,
		now:           deps.Clock,
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		caches:        cache.NewManager(logger),
		categoryCache: cache.NewLRUCache[[]analytics.CategoryBucket](deps.CacheSize, deps.CacheTTL, hook),
		trendCache:    cache.NewLRUCache[analytics.TrendSeries](deps.CacheSize, deps.CacheTTL, hook),
		forecastCache: cache.NewLRUCache[forecastResponse](deps.CacheSize, deps.CacheTTL, hook),
	}
	s.caches.Register(s.categoryCache)
	s.caches.Register(s.trendCache)
	s.caches.Register(s.forecastCache)
	s.caches.StartCleanup(deps.CacheTTL)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	detector := security.NewDetector()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.deps.Metrics, detector.ExtractClientIP)
	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})

	r := chi.NewRouter()
	r.Use(tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(headers.Middleware)
	r.Use(detector.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Get("/balance", s.handleBalance)
		r.Get("/transactions/recent", s.handleRecent)
		r.Get("/transactions/search", s.handleSearch)
		r.Get("/summary/month", s.handleMonthSummary)

		r.Get("/categories/{kind}", s.handleCategories)
		r.Get("/trends/semimonthly", s.handleSemiMonthly)
		r.Get("/trends/weekly/{kind}", s.handleWeekly)
		r.Get("/trends/halfmonth/{kind}", s.handleHalfMonth)
		r.Get("/forecast", s.handleForecast)

		r.Get("/candidates", s.handleCandidates)

		// Mutations are rate limited per client.
		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/transactions", s.handleInsert)
			r.Delete("/transactions/{id}", s.handleDelete)
			r.Delete("/ledger", s.handleClear)
			r.Post("/ingest/scan", s.handleScan)
			r.Post("/candidates/{id}/accept", s.handleAccept)
			r.Post("/candidates/{id}/ignore", s.handleIgnore)
			r.Post("/inbox", s.handleInbox)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
