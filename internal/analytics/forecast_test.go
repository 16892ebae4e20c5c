package analytics

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProject(t *testing.T) {
	tests := []struct {
		name          string
		points        []Point
		wantSlope     float64
		wantIntercept float64
		wantProjected float64
		wantCurrent   float64
	}{
		{
			name:          "two points",
			points:        []Point{{0, 100}, {10, 200}},
			wantSlope:     10,
			wantIntercept: 100,
			wantProjected: 500,
			wantCurrent:   200,
		},
		{
			name:          "identical x keeps zero line",
			points:        []Point{{5, 50}, {5, 80}},
			wantSlope:     0,
			wantIntercept: 0,
			wantProjected: 0,
			wantCurrent:   80,
		},
		{
			name:          "declining balance",
			points:        []Point{{0, 300}, {1, 200}, {2, 100}},
			wantSlope:     -100,
			wantIntercept: 300,
			wantProjected: -2900,
			wantCurrent:   100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Project(tt.points, DefaultHorizonDays)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(f.DailyRate, tt.wantSlope) {
				t.Errorf("slope = %v, want %v", f.DailyRate, tt.wantSlope)
			}
			if !almostEqual(f.Intercept, tt.wantIntercept) {
				t.Errorf("intercept = %v, want %v", f.Intercept, tt.wantIntercept)
			}
			if !almostEqual(f.ProjectedValue, tt.wantProjected) {
				t.Errorf("projected = %v, want %v", f.ProjectedValue, tt.wantProjected)
			}
			if !almostEqual(f.CurrentValue, tt.wantCurrent) {
				t.Errorf("current = %v, want %v", f.CurrentValue, tt.wantCurrent)
			}
		})
	}
}

func TestProjectPredictsAtForty(t *testing.T) {
	f, err := Project([]Point{{0, 100}, {10, 200}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.HorizonDays != DefaultHorizonDays {
		t.Fatalf("expected default horizon, got %d", f.HorizonDays)
	}
	if !almostEqual(f.Predict(40), 500) {
		t.Fatalf("predict(40) = %v, want 500", f.Predict(40))
	}
	if !f.Increasing() {
		t.Fatal("expected increasing trend")
	}
	if !almostEqual(f.RSquared, 1) {
		t.Fatalf("expected perfect fit, got %v", f.RSquared)
	}
}

func TestProjectInsufficientData(t *testing.T) {
	for _, points := range [][]Point{nil, {{0, 1}}} {
		if _, err := Project(points, 30); !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("expected ErrInsufficientData for %v, got %v", points, err)
		}
	}
}

func TestPointsFromSeries(t *testing.T) {
	l := ledger.Recompute([]core.Transaction{
		{ID: "a", Date: core.NewDate(2025, 1, 1), Kind: core.KindBalance, Amount: decimal.NewFromInt(100)},
		{ID: "b", Date: core.NewDate(2025, 1, 11), Kind: core.KindIncome, Amount: decimal.NewFromInt(100)},
	})
	points := PointsFromSeries(l.BalanceSeries())
	want := []Point{{0, 100}, {10, 200}}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, points[i], want[i])
		}
	}
}
