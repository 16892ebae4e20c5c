package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
)

const maxMessageBody = 2000

type candidatesResponse struct {
	Candidates []core.CandidateTransaction `json:"candidates"`
	Count      int                         `json:"count"`
}

// ingestAvailable answers 503 when this process does not review
// candidates.
func (s *Server) ingestAvailable(w http.ResponseWriter) bool {
	if s.deps.Ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not enabled")
		return false
	}
	return true
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAvailable(w) {
		return
	}
	if s.deps.ScanInWorker {
		writeError(w, http.StatusConflict, "scanning runs in the ingest worker")
		return
	}

	result, err := s.deps.Ingest.ScanNow(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAvailable(w) {
		return
	}
	pending, err := s.deps.Ingest.Pending(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if pending == nil {
		pending = []core.CandidateTransaction{}
	}
	writeJSON(w, http.StatusOK, candidatesResponse{Candidates: pending, Count: len(pending)})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAvailable(w) {
		return
	}
	edits, err := parseAcceptEdits(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tx, err := s.deps.Ingest.Accept(r.Context(), chi.URLParam(r, "id"), edits)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAvailable(w) {
		return
	}
	if err := s.deps.Ingest.Ignore(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inboxResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// handleInbox accepts a forwarded notification. It is published to the
// worker when one owns scanning, otherwise stored locally and scanned.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inbox == nil && s.deps.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "inbox is not enabled")
		return
	}

	var msg ingest.Message
	if err := decodeBody(r, &msg); err != nil {
		handleServiceError(w, r, err)
		return
	}
	msg.ID = strings.TrimSpace(msg.ID)
	msg.Address = sanitizeInput(msg.Address)
	switch {
	case msg.ID == "":
		handleServiceError(w, r, &core.ValidationError{Field: "id", Message: "message id is required"})
		return
	case strings.TrimSpace(msg.Body) == "":
		handleServiceError(w, r, &core.ValidationError{Field: "body", Message: "message body is required"})
		return
	case len(msg.Body) > maxMessageBody:
		handleServiceError(w, r, &core.ValidationError{Field: "body", Message: "message body too long"})
		return
	case msg.Timestamp.IsZero():
		handleServiceError(w, r, &core.ValidationError{Field: "timestamp", Message: "timestamp is required"})
		return
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishMessageArrived(r.Context(), msg); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to forward message",
				log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
			writeError(w, http.StatusServiceUnavailable, "message broker unavailable")
			return
		}
		writeJSON(w, http.StatusAccepted, inboxResponse{ID: msg.ID, Queued: true})
		return
	}

	added, err := s.deps.Inbox.AddMessage(r.Context(), msg)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !added {
		writeJSON(w, http.StatusOK, inboxResponse{ID: msg.ID})
		return
	}
	if s.deps.Ingest != nil && !s.deps.ScanInWorker {
		s.deps.Ingest.Trigger()
	}
	writeJSON(w, http.StatusAccepted, inboxResponse{ID: msg.ID, Queued: true})
}
