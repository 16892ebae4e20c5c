package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type ledgerResponse struct {
	Version      uint64             `json:"version"`
	Balance      decimal.Decimal    `json:"balance"`
	Transactions []core.Transaction `json:"transactions"`
	Categories   []string           `json:"categories"`
}

type balanceResponse struct {
	AsOf      core.Date       `json:"asOf"`
	Balance   decimal.Decimal `json:"balance"`
	Formatted string          `json:"formatted"`
}

type monthSummaryResponse struct {
	core.MonthSummary
	Net decimal.Decimal `json:"net"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Ledger.Snapshot()
	writeJSON(w, http.StatusOK, ledgerResponse{
		Version:      snap.Version,
		Balance:      snap.Ledger.CurrentBalance(s.today()),
		Transactions: snap.Ledger.Entries(),
		Categories:   snap.Ledger.Categories(),
	})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	tx, err := req.transaction(s.today())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	inserted, err := s.deps.Ledger.Insert(r.Context(), tx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Clear(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, s.today())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	balance := s.deps.Ledger.Snapshot().Ledger.BalanceAsOf(asOf)
	writeJSON(w, http.StatusOK, balanceResponse{
		AsOf:      asOf,
		Balance:   balance,
		Formatted: core.FormatAmount(balance),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, s.today())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	n, err := parseIntParam(r, "n", defaultRecentN, 1, maxRecentN)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Ledger.Snapshot().Ledger.RecentEntries(n, asOf))
}

// handleSearch with an empty q lists every entry up to today.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := sanitizeInput(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, s.deps.Ledger.Snapshot().Ledger.Search(q, s.today()))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, s.today())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	summary := s.deps.Ledger.Snapshot().Ledger.MonthSummary(asOf)
	writeJSON(w, http.StatusOK, monthSummaryResponse{MonthSummary: summary, Net: summary.Net()})
}
