package domain

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientHistory is returned when fewer than two distinct days are observed.
var ErrInsufficientHistory = errors.New("trend fit needs at least two observed days")

const hoursPerDay = 24

// Forecast is an ordinary least squares line of total cases against days
// since the first observation, evaluated from the last observed day forward.
// It is a presentation aid: no interval, no validation, no fit statistics.
type Forecast struct {
	Origin    time.Time       `json:"origin"`
	Intercept float64         `json:"intercept"`
	Slope     float64         `json:"slope"`
	LastDay   int             `json:"last_day"`
	Points    []ForecastPoint `json:"points"`
}

// ForecastPoint is the fitted total on one day.
type ForecastPoint struct {
	Day       int       `json:"day"`
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
}

// Predict evaluates the fitted line at the given day offset.
func (f Forecast) Predict(day float64) float64 {
	return f.Intercept + f.Slope*day
}

// DaysSince returns whole days between origin and t.
func DaysSince(origin, t time.Time) int {
	return int(t.Sub(origin).Hours() / hoursPerDay)
}

// FitTrend fits totals (ascending by date, one per date) and extrapolates
// horizon days past the last observation, yielding points for days
// last, last+1, ..., last+horizon.
func FitTrend(totals []DateTotal, horizon int) (Forecast, error) {
	if len(totals) < 2 {
		return Forecast{}, ErrInsufficientHistory
	}

	origin := totals[0].Date
	xs := make([]float64, len(totals))
	ys := make([]float64, len(totals))
	for i, t := range totals {
		xs[i] = float64(DaysSince(origin, t.Date))
		ys[i] = float64(t.Total)
	}
	if xs[len(xs)-1] == xs[0] {
		return Forecast{}, ErrInsufficientHistory
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	f := Forecast{
		Origin:    origin,
		Intercept: alpha,
		Slope:     beta,
		LastDay:   int(xs[len(xs)-1]),
	}

	if horizon < 0 {
		horizon = 0
	}
	f.Points = make([]ForecastPoint, 0, horizon+1)
	for d := f.LastDay; d <= f.LastDay+horizon; d++ {
		f.Points = append(f.Points, ForecastPoint{
			Day:       d,
			Date:      origin.AddDate(0, 0, d),
			Predicted: f.Predict(float64(d)),
		})
	}
	return f, nil
}
