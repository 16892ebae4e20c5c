// Package core holds the ledger's domain types and the money helpers
// shared by every other package.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol is the single currency the tracker records in.
const CurrencySymbol = "₹"

// ParseAmount parses a user or feed supplied amount.
//
// Currency markers ("₹", "Rs", "Rs.", "INR") and digit grouping commas are
// stripped, so both Western (1,234.50) and Indian (1,23,456.00) grouping
// parse. A leading sign is kept; callers normalize it per kind.
//
// Examples:
//
//	ParseAmount("1,234.50") -> 1234.50
//	ParseAmount("₹ 99")     -> 99
//	ParseAmount("-20")      -> -20
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{CurrencySymbol, "inr", "rs.", "rs"} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount the way the dashboard shows it, with the
// currency symbol and two decimals. Negative amounts keep their sign.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Abs().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}
