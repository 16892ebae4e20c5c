package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
	// KindBalance marks a seed entry that sets an opening balance.
	KindBalance Kind = "balance"
)

const (
	DefaultCategory    = "Uncategorized"
	DefaultDescription = "No description"
	dateLayout         = "2006-01-02"
)

type (
	Kind string

	// Date is a calendar day. The wrapped time is always midnight UTC so
	// dates compare and subtract without zone drift.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID             string          `json:"id"`
		Date           Date            `json:"date"`
		Kind           Kind            `json:"type"`
		Category       string          `json:"category"`
		Amount         decimal.Decimal `json:"amount"`
		RunningBalance decimal.Decimal `json:"runningBalance"`
		Description    string          `json:"description"`
		SourceID       string          `json:"sourceId,omitempty"`
	}

	// CandidateTransaction is a parsed but unconfirmed transaction coming
	// from the notification feed.
	CandidateTransaction struct {
		ID         string          `json:"id"`
		Amount     decimal.Decimal `json:"amount"`
		Date       Date            `json:"date"`
		Kind       Kind            `json:"type"`
		RawText    string          `json:"rawText"`
		Merchant   string          `json:"merchant,omitempty"`
		ReceivedAt time.Time       `json:"receivedAt"`
	}
)

var (
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidationError reports a malformed field in persisted or submitted data.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindBalance:
		return true
	}
	return false
}

// ParseKind accepts the persisted kind names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysSince returns the whole number of days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.Sub(other.Time).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeAmount applies the sign convention for a kind: income is stored
// positive, expense negative, balance seeds keep the sign they were given.
func NormalizeAmount(kind Kind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case KindIncome:
		return amount.Abs()
	case KindExpense:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// NewTransaction builds a ledger entry with defaults filled in, a fresh id
// and the amount sign normalized for its kind.
func NewTransaction(date Date, kind Kind, category string, amount decimal.Decimal, description string) Transaction {
	tx := Transaction{
		Date:        date,
		Kind:        kind,
		Category:    category,
		Amount:      amount,
		Description: description,
	}
	return tx.Normalize()
}

// Normalize fills defaults and fixes the amount sign. It never touches
// RunningBalance, which only the ledger computes.
func (t Transaction) Normalize() Transaction {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = DefaultCategory
	}
	if strings.TrimSpace(t.Description) == "" {
		t.Description = DefaultDescription
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	t.Amount = NormalizeAmount(t.Kind, t.Amount)
	return t
}

// Validate checks the fields a ledger entry cannot do without.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	if !t.Kind.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown kind %q", t.Kind)}
	}
	if len(t.Description) > 200 {
		return &ValidationError{Field: "description", Message: "description too long (max 200 characters)"}
	}
	return nil
}

// Delta is the entry's contribution to the running balance.
func (t Transaction) Delta() decimal.Decimal {
	return t.Amount
}

// Draft turns an accepted candidate into an unconfirmed ledger entry.
func (c CandidateTransaction) Draft() Transaction {
	description := c.Merchant
	if description == "" {
		description = DefaultDescription
	}
	tx := NewTransaction(c.Date, c.Kind, DefaultCategory, c.Amount, description)
	tx.SourceID = c.ID
	return tx
}

func (c CandidateTransaction) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Message: "candidate id is required"}
	}
	if c.Kind != KindIncome && c.Kind != KindExpense {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("candidate kind must be income or expense, got %q", c.Kind)}
	}
	if c.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	if !c.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: ErrInvalidAmount.Error()}
	}
	return nil
}
