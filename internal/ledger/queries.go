package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DayBalance is the closing balance of one calendar day.
type DayBalance struct {
	Date    core.Date       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceAsOf returns the running balance of the latest entry dated on or
// before asOf, or zero when there is none.
func (l Ledger) BalanceAsOf(asOf core.Date) decimal.Decimal {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !l.entries[i].Date.After(asOf) {
			return l.entries[i].RunningBalance
		}
	}
	return decimal.Zero
}

// CurrentBalance is BalanceAsOf for today.
func (l Ledger) CurrentBalance(asOf core.Date) decimal.Decimal {
	return l.BalanceAsOf(asOf)
}

// RecentEntries returns up to n entries dated on or before asOf, newest
// first. Balance seeds are bookkeeping and are left out.
func (l Ledger) RecentEntries(n int, asOf core.Date) []core.Transaction {
	out := make([]core.Transaction, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		tx := l.entries[i]
		if tx.Kind == core.KindBalance || tx.Date.After(asOf) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// BalanceSeries returns one point per distinct day in ascending order.
func (l Ledger) BalanceSeries() []DayBalance {
	var series []DayBalance
	for _, tx := range l.entries {
		if n := len(series); n > 0 && series[n-1].Date.Equal(tx.Date) {
			continue
		}
		series = append(series, DayBalance{Date: tx.Date, Balance: tx.RunningBalance})
	}
	return series
}

// Categories lists the distinct categories used by income and expense
// entries, in the order they first appear.
func (l Ledger) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tx := range l.entries {
		if tx.Kind == core.KindBalance {
			continue
		}
		if _, ok := seen[tx.Category]; ok {
			continue
		}
		seen[tx.Category] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}

// Search matches query case-insensitively against description, category,
// the date in both ISO and "02 Jan 2006" form, and the absolute amount.
// Results are dated on or before asOf, newest first.
func (l Ledger) Search(query string, asOf core.Date) []core.Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []core.Transaction
	for i := len(l.entries) - 1; i >= 0; i-- {
		tx := l.entries[i]
		if tx.Date.After(asOf) {
			continue
		}
		if q == "" || matches(tx, q) {
			out = append(out, tx)
		}
	}
	return out
}

func matches(tx core.Transaction, q string) bool {
	fields := []string{
		tx.Description,
		tx.Category,
		tx.Date.String(),
		tx.Date.Format("02 Jan 2006"),
		tx.Amount.Abs().StringFixed(2),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// MonthSummary totals the month containing asOf, counting entries up to
// and including asOf. Expense is reported as a magnitude.
func (l Ledger) MonthSummary(asOf core.Date) core.MonthSummary {
	summary := core.MonthSummary{
		Year:    asOf.Year(),
		Month:   int(asOf.Month()),
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for i := range l.entries {
		tx := l.entries[i]
		if tx.Date.After(asOf) || tx.Date.Year() != asOf.Year() || tx.Date.Month() != asOf.Month() {
			continue
		}
		switch tx.Kind {
		case core.KindIncome:
			summary.Income = summary.Income.Add(tx.Amount)
			if summary.TopIncome == nil || tx.Amount.GreaterThan(summary.TopIncome.Amount) {
				summary.TopIncome = &tx
			}
		case core.KindExpense:
			summary.Expense = summary.Expense.Add(tx.Amount.Abs())
			if summary.TopExpense == nil || tx.Amount.Abs().GreaterThan(summary.TopExpense.Amount.Abs()) {
				summary.TopExpense = &tx
			}
		}
	}
	return summary
}
