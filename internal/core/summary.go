package core

import "github.com/shopspring/decimal"

// MonthSummary is the dashboard's compact view of the current month.
type MonthSummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	TopIncome  *Transaction    `json:"topIncome,omitempty"`
	TopExpense *Transaction    `json:"topExpense,omitempty"`
}

// Net is income minus the magnitude of expenses.
func (m MonthSummary) Net() decimal.Decimal {
	return m.Income.Sub(m.Expense)
}
