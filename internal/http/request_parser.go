package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const (
	maxBodyBytes   = 1 << 16
	defaultRecentN = 10
	maxRecentN     = 500
)

// parseAsOf reads the asOf query parameter, defaulting to today.
func parseAsOf(r *http.Request, today core.Date) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("asOf"))
	if v == "" {
		return today, nil
	}
	return core.ParseDate(v)
}

// parseIntParam reads a bounded integer query parameter.
func parseIntParam(r *http.Request, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Message: "must be a whole number"}
	}
	if n < min || n > max {
		return 0, &core.ValidationError{Field: name, Message: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return n, nil
}

// parseFlowKind reads the {kind} path parameter. Only income and expense
// have category and trend views.
func parseFlowKind(r *http.Request) (core.Kind, error) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", err
	}
	if kind == core.KindBalance {
		return "", &core.ValidationError{Field: "kind", Message: "must be income or expense"}
	}
	return kind, nil
}

// transactionRequest is the body of POST /v1/transactions. Amount may be a
// JSON number or a string such as "1,250.00".
type transactionRequest struct {
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Message: "request body is required"}
		}
		return &core.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func (req transactionRequest) transaction(today core.Date) (core.Transaction, error) {
	date := today
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		date = d
	}

	kind, err := core.ParseKind(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(amountText(req.Amount))
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Message: "must be a number"}
	}

	return core.NewTransaction(date, kind, sanitizeInput(req.Category), amount, sanitizeInput(req.Description)), nil
}

func amountText(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// parseAcceptEdits reads the optional body of an accept request.
func parseAcceptEdits(r *http.Request) (services.AcceptEdits, error) {
	var edits services.AcceptEdits
	if r.ContentLength == 0 {
		return edits, nil
	}
	if err := decodeBody(r, &edits); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) && verr.Message == "request body is required" {
			return services.AcceptEdits{}, nil
		}
		return services.AcceptEdits{}, err
	}
	edits.Category = sanitizeInput(edits.Category)
	edits.Description = sanitizeInput(edits.Description)
	return edits, nil
}
