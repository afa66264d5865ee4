package domain

import (
	"math"
	"time"
)

// Dataset identifies one of the three published cumulative series.
type Dataset string

const (
	Confirmed Dataset = "confirmed"
	Deaths    Dataset = "deaths"
	Recovered Dataset = "recovered"
)

// Datasets lists every series in fetch order.
var Datasets = []Dataset{Confirmed, Deaths, Recovered}

// FileName returns the upstream CSV file name for the dataset.
func (d Dataset) FileName() string {
	return "time_series_covid19_" + string(d) + "_global.csv"
}

// RawSeriesTable is one fetched CSV file in wide format.
type RawSeriesTable struct {
	Dataset Dataset
	Header  []string
	Rows    [][]string
}

// Observation is one (region, date) cell of a RawSeriesTable after reshaping.
type Observation struct {
	Dataset  Dataset
	Row      int // index of the source row, header excluded
	Country  string
	Province string    // empty when the row has no province
	Date     time.Time // zero when the column label is not a date
	Cases    *int64    // nil when the cell is empty or not a number
}

// Dated reports whether the observation carries a parsed calendar date.
func (o Observation) Dated() bool {
	return !o.Date.IsZero()
}

// Count returns the case count with missing values treated as zero.
func (o Observation) Count() int64 {
	if o.Cases == nil {
		return 0
	}
	return *o.Cases
}

// DateTotal is the sum of every region's cumulative count on one date.
type DateTotal struct {
	Date  time.Time `json:"date"`
	Total int64     `json:"total"`
}

// CountryLatest is the latest (maximum) cumulative count of one series for one country.
type CountryLatest struct {
	Country string
	Latest  *int64
}

// CountrySummary joins the latest confirmed, deaths, and recovered counts for a country.
type CountrySummary struct {
	Country   string
	Confirmed *int64
	Deaths    *int64
	Recovered *int64

	// RecoveryRate is recovered / confirmed * 100. It is NaN when either
	// metric is missing and non-finite when confirmed is zero.
	RecoveryRate float64
}

// HasFiniteRate reports whether the recovery rate can be plotted.
func (s CountrySummary) HasFiniteRate() bool {
	return !math.IsNaN(s.RecoveryRate) && !math.IsInf(s.RecoveryRate, 0)
}

// Snapshot is the aggregated output of one run, consumed by every renderer.
type Snapshot struct {
	GeneratedAt time.Time
	Totals      []DateTotal
	DailyNew    []DateTotal
	Summaries   []CountrySummary
	Top         []CountrySummary
	Forecast    Forecast
	Flags       []QualityFlag
}

// NewSnapshot stamps the aggregated results with the package clock.
func NewSnapshot(totals []DateTotal, summaries []CountrySummary, topN int, forecast Forecast, flags []QualityFlag) Snapshot {
	return Snapshot{
		GeneratedAt: Now(),
		Totals:      totals,
		DailyNew:    DailyNew(totals),
		Summaries:   summaries,
		Top:         TopByConfirmed(summaries, topN),
		Forecast:    forecast,
		Flags:       flags,
	}
}
