package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const (
	semiMonthlyPeriods = 5
	weeklyPeriods      = 4
	halfMonthMonths    = 3
)

// Period is a closed calendar interval.
type Period struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

func (p Period) Contains(d core.Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

type TrendSeries struct {
	Labels  []string  `json:"labels"`
	Values  []float64 `json:"values"`
	Periods []Period  `json:"periods"`
}

func (s *TrendSeries) prepend(label string, value float64, p Period) {
	s.Labels = append([]string{label}, s.Labels...)
	s.Values = append([]float64{value}, s.Values...)
	s.Periods = append([]Period{p}, s.Periods...)
}

// MiddleDay is the first day of a month's second half: 16 for 31-day
// months, 15 for 30-day months and leap Februaries, 14 otherwise.
func MiddleDay(year int, month time.Month) int {
	switch daysIn(year, month) {
	case 31:
		return 16
	case 30, 29:
		return 15
	default:
		return 14
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// semiMonthlyAnchor returns the latest half-month boundary on or before d.
func semiMonthlyAnchor(d core.Date) core.Date {
	if d.Day() >= MiddleDay(d.Year(), d.Month()) {
		return core.NewDate(d.Year(), d.Month(), MiddleDay(d.Year(), d.Month()))
	}
	return core.NewDate(d.Year(), d.Month(), 1)
}

// previousAnchor steps one half-month back from a boundary.
func previousAnchor(anchor core.Date) core.Date {
	if anchor.Day() != 1 {
		return core.NewDate(anchor.Year(), anchor.Month(), 1)
	}
	prev := anchor.AddDate(0, 0, -1)
	return core.NewDate(prev.Year(), prev.Month(), MiddleDay(prev.Year(), prev.Month()))
}

func semiMonthlyPeriod(anchor core.Date) Period {
	if anchor.Day() == 1 {
		return Period{Start: anchor, End: core.NewDate(anchor.Year(), anchor.Month(), MiddleDay(anchor.Year(), anchor.Month())-1)}
	}
	return Period{Start: anchor, End: core.NewDate(anchor.Year(), anchor.Month(), daysIn(anchor.Year(), anchor.Month()))}
}

// SemiMonthly walks half-month anchors backward from today and reports the
// closing balance of each period, oldest first. It always returns
// semiMonthlyPeriods points. A period without entries carries the balance
// standing at its end, which is zero before the ledger's first entry.
func SemiMonthly(l ledger.Ledger, today core.Date) TrendSeries {
	var series TrendSeries

	anchor := semiMonthlyAnchor(today)
	for i := 0; i < semiMonthlyPeriods; i++ {
		period := semiMonthlyPeriod(anchor)
		if period.End.After(today) {
			period.End = today
		}
		series.prepend(anchor.Format("Jan 02"), l.BalanceAsOf(period.End).InexactFloat64(), period)
		anchor = previousAnchor(anchor)
	}
	return series
}

// Weekly reports the total of kind for the four Sunday to Saturday weeks
// ending with the current one, oldest first. Expense totals are reported
// as magnitudes.
func Weekly(txs []core.Transaction, kind core.Kind, today core.Date) TrendSeries {
	var series TrendSeries
	currentStart := today.AddDays(-int(today.Weekday()))

	for offset := 0; offset < weeklyPeriods; offset++ {
		start := currentStart.AddDays(-7 * offset)
		period := Period{Start: start, End: start.AddDays(6)}

		total := decimal.Zero
		for _, tx := range txs {
			if tx.Kind == kind && period.Contains(tx.Date) && !tx.Date.After(today) {
				total = total.Add(tx.Amount)
			}
		}
		if kind == core.KindExpense {
			total = total.Abs()
		}

		label := "Current"
		if offset > 0 {
			label = fmt.Sprintf("%d-%d", period.Start.Day(), period.End.Day())
		}
		series.prepend(label, total.InexactFloat64(), period)
	}
	return series
}

// HalfMonthTotals splits the current and the two previous months at the
// 15th and totals kind in each half, oldest first. Only halves that have
// ended by today are reported, so the series never shows a partial half.
// Expense totals are magnitudes.
func HalfMonthTotals(txs []core.Transaction, kind core.Kind, today core.Date) TrendSeries {
	var series TrendSeries
	monthStart := core.NewDate(today.Year(), today.Month(), 1)

	for back := halfMonthMonths - 1; back >= 0; back-- {
		m := core.Date{Time: monthStart.AddDate(0, -back, 0)}
		halves := []Period{
			{Start: m, End: core.NewDate(m.Year(), m.Month(), 15)},
			{Start: core.NewDate(m.Year(), m.Month(), 16), End: core.NewDate(m.Year(), m.Month(), daysIn(m.Year(), m.Month()))},
		}
		for _, p := range halves {
			if p.End.After(today) {
				continue
			}
			total := decimal.Zero
			for _, tx := range txs {
				if tx.Kind == kind && p.Contains(tx.Date) && !tx.Date.After(today) {
					total = total.Add(tx.Amount.Abs())
				}
			}
			label := fmt.Sprintf("%s %d-%d", m.Format("Jan"), p.Start.Day(), p.End.Day())
			series.Labels = append(series.Labels, label)
			series.Values = append(series.Values, total.InexactFloat64())
			series.Periods = append(series.Periods, p)
		}
	}
	return series
}

// PercentChange compares the last two values of a series. Growth from
// zero counts as 100%; fewer than two values or no movement is 0%.
func PercentChange(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	prev, cur := values[len(values)-2], values[len(values)-1]
	switch {
	case prev != 0:
		return (cur - prev) / prev * 100
	case cur != 0:
		return 100
	default:
		return 0
	}
}
