package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/ingest"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())
	var validation *core.ValidationError

	switch {
	case errors.As(err, &validation),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount):
		logger.DebugContext(r.Context(), "validation error", log.FieldError, err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ingest.ErrCandidateNotFound):
		logger.DebugContext(r.Context(), "not found", log.FieldError, err)
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateID),
		errors.Is(err, ledger.ErrDuplicateSource):
		logger.DebugContext(r.Context(), "conflict", log.FieldError, err)
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ingest.ErrPermissionDenied):
		logger.WarnContext(r.Context(), "feed access denied", log.FieldError, err)
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, analytics.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.ErrorContext(r.Context(), "unhandled error",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeInternal)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
