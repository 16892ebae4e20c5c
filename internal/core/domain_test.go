package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		kind Kind
		in   string
		want string
	}{
		{KindIncome, "100", "100"},
		{KindIncome, "-100", "100"},
		{KindExpense, "40", "-40"},
		{KindExpense, "-40", "-40"},
		{KindBalance, "-500", "-500"},
		{KindBalance, "500", "500"},
	}
	for i, tc := range cases {
		got := NormalizeAmount(tc.kind, decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("case %d: %s %s expected %s, got %s", i, tc.kind, tc.in, tc.want, got)
		}
	}
}

func TestNewTransactionDefaults(t *testing.T) {
	tx := NewTransaction(NewDate(2025, 1, 1), KindExpense, "  ", decimal.NewFromInt(12), "")
	if tx.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if tx.Category != DefaultCategory {
		t.Errorf("expected category %q, got %q", DefaultCategory, tx.Category)
	}
	if tx.Description != DefaultDescription {
		t.Errorf("expected description %q, got %q", DefaultDescription, tx.Description)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(-12)) {
		t.Errorf("expected amount -12, got %s", tx.Amount)
	}
	if !tx.RunningBalance.IsZero() {
		t.Errorf("running balance must not be authored, got %s", tx.RunningBalance)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := NewTransaction(NewDate(2025, 1, 1), KindIncome, "Salary", decimal.NewFromInt(1), "ok")
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Date: Date{Time: time.Time{}}, Kind: KindIncome},
		{Date: NewDate(2025, 1, 1), Kind: "transfer"},
	}
	for i, tx := range bads {
		err := tx.Validate()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"income", "EXPENSE", " balance "} {
		if _, err := ParseKind(s); err != nil {
			t.Fatalf("%q expected ok, got %v", s, err)
		}
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestDateOfTruncatesToLocalDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2025, 3, 10, 23, 59, 0, 0, loc)
	d := DateOf(ts)
	if d.String() != "2025-03-10" {
		t.Fatalf("expected 2025-03-10, got %s", d)
	}
	if d.AddDays(1).DaysSince(d) != 1 {
		t.Fatalf("expected one day difference")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 29))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2025-13-01"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCandidateDraft(t *testing.T) {
	c := CandidateTransaction{
		ID:       "sms-1",
		Amount:   decimal.NewFromInt(250),
		Date:     NewDate(2025, 5, 2),
		Kind:     KindExpense,
		Merchant: "Big Bazaar",
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid candidate, got %v", err)
	}
	tx := c.Draft()
	if tx.SourceID != "sms-1" {
		t.Errorf("expected source id sms-1, got %q", tx.SourceID)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(-250)) {
		t.Errorf("expected -250, got %s", tx.Amount)
	}
	if tx.Category != DefaultCategory || tx.Description != "Big Bazaar" {
		t.Errorf("unexpected draft %+v", tx)
	}
}
