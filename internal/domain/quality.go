package domain

import (
	"fmt"
	"sort"
	"time"
)

// QualityCheck names a data-quality rule.
type QualityCheck string

const (
	CheckRecoveryRate    QualityCheck = "recovery_rate_bounds"
	CheckMonotonicSeries QualityCheck = "monotonic_series"
	CheckUndatedLabel    QualityCheck = "undated_label"
)

// QualityChecks lists every rule in report order.
var QualityChecks = []QualityCheck{CheckRecoveryRate, CheckMonotonicSeries, CheckUndatedLabel}

// QualityFlag is a data-quality signal. Flags are reported, never fatal.
type QualityFlag struct {
	Check   QualityCheck
	Dataset Dataset
	Country string
	Date    time.Time
	Detail  string
}

// CheckRecoveryRates flags countries with confirmed > 0 whose recovery rate
// falls outside [0, 100].
func CheckRecoveryRates(summaries []CountrySummary) []QualityFlag {
	var flags []QualityFlag
	for _, s := range summaries {
		if s.Confirmed == nil || *s.Confirmed <= 0 || !s.HasFiniteRate() {
			continue
		}
		if s.RecoveryRate < 0 || s.RecoveryRate > 100 {
			flags = append(flags, QualityFlag{
				Check:   CheckRecoveryRate,
				Dataset: Recovered,
				Country: s.Country,
				Detail: fmt.Sprintf("recovery rate %.2f%% (recovered %d, confirmed %d)",
					s.RecoveryRate, derefOrZero(s.Recovered), *s.Confirmed),
			})
		}
	}
	return flags
}

// seriesKey identifies one source row. Duplicate (country, province) rows stay
// separate series.
type seriesKey struct {
	dataset  Dataset
	row      int
	country  string
	province string
}

// CheckMonotonic flags every date where a region's cumulative count drops
// below its previous value.
func CheckMonotonic(obs []Observation) []QualityFlag {
	series := make(map[seriesKey][]Observation)
	var order []seriesKey
	for _, o := range obs {
		if !o.Dated() || o.Cases == nil {
			continue
		}
		k := seriesKey{o.Dataset, o.Row, o.Country, o.Province}
		if _, ok := series[k]; !ok {
			order = append(order, k)
		}
		series[k] = append(series[k], o)
	}

	var flags []QualityFlag
	for _, k := range order {
		s := series[k]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
		for i := 1; i < len(s); i++ {
			prev, cur := *s[i-1].Cases, *s[i].Cases
			if cur >= prev {
				continue
			}
			region := k.country
			if k.province != "" {
				region = k.province + ", " + k.country
			}
			flags = append(flags, QualityFlag{
				Check:   CheckMonotonicSeries,
				Dataset: k.dataset,
				Country: k.country,
				Date:    s[i].Date,
				Detail:  fmt.Sprintf("%s dropped from %d to %d", region, prev, cur),
			})
		}
	}
	return flags
}

// CheckUndatedLabels flags each value column header that does not parse as a date.
func CheckUndatedLabels(table RawSeriesTable) []QualityFlag {
	labels := UndatedLabels(table.Header)
	flags := make([]QualityFlag, 0, len(labels))
	for _, l := range labels {
		flags = append(flags, QualityFlag{
			Check:   CheckUndatedLabel,
			Dataset: table.Dataset,
			Detail:  fmt.Sprintf("column %q is not a date", l),
		})
	}
	return flags
}

func derefOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
