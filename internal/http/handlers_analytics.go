package http

import (
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
)

type trendResponse struct {
	analytics.TrendSeries
	PercentChange float64 `json:"percentChange"`
}

type forecastResponse struct {
	analytics.Forecast
	Trend  string            `json:"trend"`
	Points []analytics.Point `json:"points"`
}

// Every analytics view is keyed by ledger version and today's date, so a
// mutation or a new day computes afresh.

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := parseFlowKind(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	months, err := parseIntParam(r, "months", s.deps.CategoryLookback, 0, 24)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	snap := s.deps.Ledger.Snapshot()
	today := s.today()
	key := cache.Key(snap.Version, "categories", kind, months, today)
	buckets, _ := cache.GetOrCompute[[]analytics.CategoryBucket](s.categoryCache, key, func() ([]analytics.CategoryBucket, error) {
		return analytics.Aggregate(snap.Ledger.Entries(), kind, analytics.Window{Today: today, LookbackMonths: months}), nil
	})
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleSemiMonthly(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Ledger.Snapshot()
	today := s.today()
	key := cache.Key(snap.Version, "semimonthly", today)
	series, _ := cache.GetOrCompute[analytics.TrendSeries](s.trendCache, key, func() (analytics.TrendSeries, error) {
		return analytics.SemiMonthly(snap.Ledger, today), nil
	})
	writeJSON(w, http.StatusOK, trendResponse{TrendSeries: series, PercentChange: analytics.PercentChange(series.Values)})
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	s.serveKindTrend(w, r, "weekly", analytics.Weekly)
}

func (s *Server) handleHalfMonth(w http.ResponseWriter, r *http.Request) {
	s.serveKindTrend(w, r, "halfmonth", analytics.HalfMonthTotals)
}

func (s *Server) serveKindTrend(w http.ResponseWriter, r *http.Request, view string,
	build func([]core.Transaction, core.Kind, core.Date) analytics.TrendSeries) {
	kind, err := parseFlowKind(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	snap := s.deps.Ledger.Snapshot()
	today := s.today()
	key := cache.Key(snap.Version, view, kind, today)
	series, _ := cache.GetOrCompute[analytics.TrendSeries](s.trendCache, key, func() (analytics.TrendSeries, error) {
		return build(snap.Ledger.Entries(), kind, today), nil
	})
	writeJSON(w, http.StatusOK, trendResponse{TrendSeries: series, PercentChange: analytics.PercentChange(series.Values)})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Ledger.Snapshot()
	horizon := s.deps.ForecastHorizonDays
	key := cache.Key(snap.Version, "forecast", horizon)

	resp, err := cache.GetOrCompute[forecastResponse](s.forecastCache, key, func() (forecastResponse, error) {
		points := analytics.PointsFromSeries(snap.Ledger.BalanceSeries())
		f, err := analytics.Project(points, horizon)
		if err != nil {
			return forecastResponse{}, err
		}
		trend := "decreasing"
		if f.Increasing() {
			trend = "increasing"
		}
		return forecastResponse{Forecast: f, Trend: trend, Points: points}, nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
