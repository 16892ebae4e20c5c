package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func TestMiddleDay(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.January, 16},
		{2025, time.April, 15},
		{2024, time.February, 15},
		{2025, time.February, 14},
		{2100, time.February, 14},
	}
	for _, tc := range cases {
		if got := MiddleDay(tc.year, tc.month); got != tc.want {
			t.Errorf("MiddleDay(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestSemiMonthly(t *testing.T) {
	l := ledger.Recompute([]core.Transaction{
		{ID: "seed", Date: core.NewDate(2025, 1, 10), Kind: core.KindBalance, Amount: decimal.NewFromInt(1000)},
		{ID: "rent", Date: core.NewDate(2025, 2, 5), Kind: core.KindExpense, Amount: decimal.NewFromInt(-200)},
		{ID: "pay", Date: core.NewDate(2025, 3, 17), Kind: core.KindIncome, Amount: decimal.NewFromInt(500)},
		{ID: "later", Date: core.NewDate(2025, 3, 25), Kind: core.KindIncome, Amount: decimal.NewFromInt(1)},
	})
	today := core.NewDate(2025, 3, 20)

	series := SemiMonthly(l, today)

	wantLabels := []string{"Jan 16", "Feb 01", "Feb 14", "Mar 01", "Mar 16"}
	wantValues := []float64{1000, 800, 800, 800, 1300}
	if !reflect.DeepEqual(series.Labels, wantLabels) {
		t.Fatalf("labels = %v, want %v", series.Labels, wantLabels)
	}
	if !reflect.DeepEqual(series.Values, wantValues) {
		t.Fatalf("values = %v, want %v", series.Values, wantValues)
	}
	if got := series.Periods[1]; got.End.String() != "2025-02-13" {
		t.Fatalf("first half of February should end on the 13th, got %s", got.End)
	}
	for _, p := range series.Periods {
		if p.Start.After(today) || p.End.After(today) {
			t.Fatalf("period %v extends past today", p)
		}
	}
}

func TestSemiMonthlyYoungLedgerKeepsFullLength(t *testing.T) {
	l := ledger.Recompute([]core.Transaction{
		{ID: "seed", Date: core.NewDate(2025, 3, 5), Kind: core.KindBalance, Amount: decimal.NewFromInt(50)},
	})
	series := SemiMonthly(l, core.NewDate(2025, 3, 20))
	if want := []string{"Jan 16", "Feb 01", "Feb 14", "Mar 01", "Mar 16"}; !reflect.DeepEqual(series.Labels, want) {
		t.Fatalf("labels = %v, want %v", series.Labels, want)
	}
	if want := []float64{0, 0, 0, 50, 50}; !reflect.DeepEqual(series.Values, want) {
		t.Fatalf("values = %v, want %v", series.Values, want)
	}

	single := ledger.Recompute([]core.Transaction{
		{ID: "pay", Date: core.NewDate(2025, 3, 20), Kind: core.KindIncome, Amount: decimal.NewFromInt(100)},
	})
	got := SemiMonthly(single, core.NewDate(2025, 3, 20))
	if want := []float64{0, 0, 0, 0, 100}; !reflect.DeepEqual(got.Values, want) {
		t.Fatalf("entry dated today: values = %v, want %v", got.Values, want)
	}

	empty := SemiMonthly(ledger.Empty(), core.NewDate(2025, 3, 20))
	if len(empty.Labels) != 5 {
		t.Fatalf("empty ledger: got %d periods, want 5", len(empty.Labels))
	}
	for i, v := range empty.Values {
		if v != 0 {
			t.Errorf("empty ledger period %d = %v, want 0", i, v)
		}
	}
}

func TestSemiMonthlyAnchorOnMiddleDay(t *testing.T) {
	today := core.NewDate(2025, 4, 15)
	series := SemiMonthly(ledger.Empty(), today)
	if series.Labels[len(series.Labels)-1] != "Apr 15" {
		t.Fatalf("expected the middle day to anchor the current period, got %v", series.Labels)
	}
}

func TestWeekly(t *testing.T) {
	today := core.NewDate(2025, 3, 19) // Wednesday
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 2, 23), Kind: core.KindExpense, Amount: decimal.NewFromInt(-10)},
		{Date: core.NewDate(2025, 3, 3), Kind: core.KindExpense, Amount: decimal.NewFromInt(-50)},
		{Date: core.NewDate(2025, 3, 17), Kind: core.KindExpense, Amount: decimal.NewFromInt(-20)},
		{Date: core.NewDate(2025, 3, 21), Kind: core.KindExpense, Amount: decimal.NewFromInt(-99)},
		{Date: core.NewDate(2025, 3, 17), Kind: core.KindIncome, Amount: decimal.NewFromInt(700)},
	}

	series := Weekly(txs, core.KindExpense, today)
	if want := []string{"23-1", "2-8", "9-15", "Current"}; !reflect.DeepEqual(series.Labels, want) {
		t.Fatalf("labels = %v, want %v", series.Labels, want)
	}
	if want := []float64{10, 50, 0, 20}; !reflect.DeepEqual(series.Values, want) {
		t.Fatalf("values = %v, want %v", series.Values, want)
	}
	for _, p := range series.Periods {
		if p.Start.Weekday() != time.Sunday || p.End.Weekday() != time.Saturday {
			t.Fatalf("window %v is not Sunday to Saturday", p)
		}
	}

	income := Weekly(txs, core.KindIncome, today)
	if income.Values[3] != 700 {
		t.Fatalf("expected 700 income this week, got %v", income.Values)
	}
}

func TestHalfMonthTotals(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 1, 20), Kind: core.KindExpense, Amount: decimal.NewFromInt(-30)},
		{Date: core.NewDate(2025, 3, 2), Kind: core.KindExpense, Amount: decimal.NewFromInt(-45)},
		{Date: core.NewDate(2025, 3, 16), Kind: core.KindExpense, Amount: decimal.NewFromInt(-5)},
	}

	series := HalfMonthTotals(txs, core.KindExpense, core.NewDate(2025, 3, 16))
	if want := []string{"Jan 1-15", "Jan 16-31", "Feb 1-15", "Feb 16-28", "Mar 1-15"}; !reflect.DeepEqual(series.Labels, want) {
		t.Fatalf("labels = %v, want %v", series.Labels, want)
	}
	if want := []float64{0, 30, 0, 0, 45}; !reflect.DeepEqual(series.Values, want) {
		t.Fatalf("values = %v, want %v", series.Values, want)
	}

	// The first half of March is still running on the 10th.
	early := HalfMonthTotals(txs, core.KindExpense, core.NewDate(2025, 3, 10))
	if want := []string{"Jan 1-15", "Jan 16-31", "Feb 1-15", "Feb 16-28"}; !reflect.DeepEqual(early.Labels, want) {
		t.Fatalf("labels on the 10th = %v, want %v", early.Labels, want)
	}

	endOfMonth := HalfMonthTotals(txs, core.KindExpense, core.NewDate(2025, 3, 31))
	if last := endOfMonth.Labels[len(endOfMonth.Labels)-1]; last != "Mar 16-31" {
		t.Fatalf("last label on the 31st = %q, want Mar 16-31", last)
	}
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		values []float64
		want   float64
	}{
		{[]float64{100, 150}, 50},
		{[]float64{200, 100}, -50},
		{[]float64{0, 10}, 100},
		{[]float64{0, 0}, 0},
		{[]float64{5}, 0},
	}
	for _, tc := range cases {
		if got := PercentChange(tc.values); !almostEqual(got, tc.want) {
			t.Errorf("PercentChange(%v) = %v, want %v", tc.values, got, tc.want)
		}
	}
}
