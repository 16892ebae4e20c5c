// Package analytics derives read-only views from a ledger snapshot: the
// balance forecast, category breakdowns and time-bucketed trend series.
// Every function here is pure and safe to call concurrently.
package analytics

import (
	"errors"

	"fintrack/internal/ledger"
)

// DefaultHorizonDays is how far past the last observation a forecast
// projects.
const DefaultHorizonDays = 30

// ErrInsufficientData means the series has fewer than two points.
var ErrInsufficientData = errors.New("not enough data to forecast")

// Point is one (day offset, balance) observation.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Forecast struct {
	CurrentValue   float64 `json:"currentValue"`
	ProjectedValue float64 `json:"projectedValue"`
	DailyRate      float64 `json:"dailyRate"`
	Intercept      float64 `json:"intercept"`
	RSquared       float64 `json:"rSquared"`
	HorizonDays    int     `json:"horizonDays"`
}

// Increasing reports the trend direction shown next to the forecast.
func (f Forecast) Increasing() bool {
	return f.DailyRate >= 0
}

// Predict evaluates the fitted line at x.
func (f Forecast) Predict(x float64) float64 {
	return f.DailyRate*x + f.Intercept
}

// PointsFromSeries converts daily closing balances into points whose x is
// the day offset from the first observation.
func PointsFromSeries(series []ledger.DayBalance) []Point {
	if len(series) == 0 {
		return nil
	}
	first := series[0].Date
	points := make([]Point, len(series))
	for i, day := range series {
		points[i] = Point{
			X: float64(day.Date.DaysSince(first)),
			Y: day.Balance.InexactFloat64(),
		}
	}
	return points
}

// Project fits an ordinary least squares line through points and
// extrapolates it horizonDays past the last x. A zero or negative horizon
// uses DefaultHorizonDays.
func Project(points []Point, horizonDays int) (Forecast, error) {
	if len(points) < 2 {
		return Forecast{}, ErrInsufficientData
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	slope, intercept, rSquared := linearRegression(points)
	last := points[len(points)-1]

	f := Forecast{
		CurrentValue: last.Y,
		DailyRate:    slope,
		Intercept:    intercept,
		RSquared:     rSquared,
		HorizonDays:  horizonDays,
	}
	f.ProjectedValue = f.Predict(last.X + float64(horizonDays))
	return f, nil
}

// linearRegression solves the normal equations. When every x is identical
// the denominator is zero and slope and intercept stay zero.
func linearRegression(points []Point) (slope, intercept, rSquared float64) {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumX2 += p.X * p.X
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for _, p := range points {
		predicted := slope*p.X + intercept
		ssRes += (p.Y - predicted) * (p.Y - predicted)
		ssTot += (p.Y - meanY) * (p.Y - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}
