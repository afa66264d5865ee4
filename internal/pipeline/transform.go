package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/couchcryptid/covid-trends/internal/observability"
)

// Analysis is the aggregated result of the fetched tables plus per-dataset counts.
type Analysis struct {
	Snapshot     domain.Snapshot
	Observations map[domain.Dataset]int
	Undated      map[domain.Dataset]int
}

// SeriesTransformer normalizes, aggregates, checks, and fits the fetched tables.
type SeriesTransformer struct {
	opts    Options
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTransformer creates a SeriesTransformer.
func NewTransformer(opts Options, metrics *observability.Metrics, logger *slog.Logger) *SeriesTransformer {
	return &SeriesTransformer{opts: opts, metrics: metrics, logger: logger}
}

// Transform reduces the three raw tables to a snapshot. A missing dataset, a
// header without a country column, or too little history to fit a trend is
// an error. Data-quality issues are flagged and logged but never fail.
func (t *SeriesTransformer) Transform(tables map[domain.Dataset]domain.RawSeriesTable) (Analysis, error) {
	byDataset := make(map[domain.Dataset][]domain.Observation, len(domain.Datasets))
	analysis := Analysis{
		Observations: make(map[domain.Dataset]int, len(domain.Datasets)),
		Undated:      make(map[domain.Dataset]int, len(domain.Datasets)),
	}
	var flags []domain.QualityFlag

	for _, ds := range domain.Datasets {
		table, ok := tables[ds]
		if !ok {
			return Analysis{}, fmt.Errorf("transform: missing %s table", ds)
		}
		obs, err := domain.Normalize(table)
		if err != nil {
			return Analysis{}, fmt.Errorf("transform: %w", err)
		}
		byDataset[ds] = obs

		undated := domain.CountUndated(obs)
		analysis.Observations[ds] = len(obs)
		analysis.Undated[ds] = undated
		t.metrics.Observations.WithLabelValues(string(ds)).Add(float64(len(obs)))
		t.metrics.UndatedCells.WithLabelValues(string(ds)).Add(float64(undated))
		t.logger.Info("dataset normalized", "dataset", ds, "observations", len(obs), "undated", undated)

		flags = append(flags, domain.CheckUndatedLabels(table)...)
		flags = append(flags, domain.CheckMonotonic(obs)...)
	}

	totals := domain.TotalsByDate(byDataset[domain.Confirmed])
	summaries := domain.Summarize(byDataset)
	flags = append(flags, domain.CheckRecoveryRates(summaries)...)

	forecast, err := domain.FitTrend(totals, t.opts.ForecastDays)
	if err != nil {
		return Analysis{}, fmt.Errorf("transform: %w", err)
	}

	for _, f := range flags {
		t.metrics.QualityFlags.WithLabelValues(string(f.Check)).Inc()
	}
	if len(flags) > 0 {
		t.logger.Warn("data quality flags raised", "count", len(flags), "by_check", countByCheck(flags))
	}

	analysis.Snapshot = domain.NewSnapshot(totals, summaries, t.opts.TopN, forecast, flags)
	return analysis, nil
}

// countByCheck tallies flags per rule for logging.
func countByCheck(flags []domain.QualityFlag) map[string]int {
	out := make(map[string]int, len(domain.QualityChecks))
	for _, f := range flags {
		out[string(f.Check)]++
	}
	return out
}
