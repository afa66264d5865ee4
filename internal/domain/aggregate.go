package domain

import (
	"math"
	"sort"
	"time"
)

// TotalsByDate sums counts per date across all regions, missing counts as zero.
// Undated observations are skipped. The result is in ascending date order.
func TotalsByDate(obs []Observation) []DateTotal {
	sums := make(map[time.Time]int64)
	for _, o := range obs {
		if !o.Dated() {
			continue
		}
		sums[o.Date] += o.Count()
	}

	out := make([]DateTotal, 0, len(sums))
	for d, total := range sums {
		out = append(out, DateTotal{Date: d, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// DailyNew returns the per-date change of a cumulative series. The first
// entry carries its own total since there is no earlier date to subtract.
func DailyNew(totals []DateTotal) []DateTotal {
	out := make([]DateTotal, len(totals))
	var prev int64
	for i, t := range totals {
		out[i] = DateTotal{Date: t.Date, Total: t.Total - prev}
		prev = t.Total
	}
	return out
}

// LatestByCountry returns the maximum count observed for each country, in
// order of first appearance. Cumulative series are non-decreasing, so the
// maximum is the latest value. A country whose counts are all missing has a
// nil Latest.
func LatestByCountry(obs []Observation) []CountryLatest {
	index := make(map[string]int)
	var out []CountryLatest
	for _, o := range obs {
		i, ok := index[o.Country]
		if !ok {
			i = len(out)
			index[o.Country] = i
			out = append(out, CountryLatest{Country: o.Country})
		}
		if o.Cases == nil {
			continue
		}
		if out[i].Latest == nil || *o.Cases > *out[i].Latest {
			v := *o.Cases
			out[i].Latest = &v
		}
	}
	return out
}

// JoinCountries full-outer-joins the three per-country series on country name.
// Rows follow confirmed order, then countries only in deaths, then countries
// only in recovered.
func JoinCountries(confirmed, deaths, recovered []CountryLatest) []CountrySummary {
	index := make(map[string]int)
	var out []CountrySummary

	row := func(country string) *CountrySummary {
		i, ok := index[country]
		if !ok {
			i = len(out)
			index[country] = i
			out = append(out, CountrySummary{Country: country})
		}
		return &out[i]
	}

	for _, c := range confirmed {
		row(c.Country).Confirmed = c.Latest
	}
	for _, c := range deaths {
		row(c.Country).Deaths = c.Latest
	}
	for _, c := range recovered {
		row(c.Country).Recovered = c.Latest
	}

	for i := range out {
		out[i].RecoveryRate = RecoveryRate(out[i].Confirmed, out[i].Recovered)
	}
	return out
}

// RecoveryRate returns recovered / confirmed * 100 with IEEE semantics: NaN
// when either value is missing or both are zero, +Inf when only confirmed is zero.
func RecoveryRate(confirmed, recovered *int64) float64 {
	if confirmed == nil || recovered == nil {
		return math.NaN()
	}
	return float64(*recovered) / float64(*confirmed) * 100
}

// TopByConfirmed returns the n countries with the highest confirmed count.
// Countries without a confirmed count sort last; ties keep join order.
func TopByConfirmed(summaries []CountrySummary, n int) []CountrySummary {
	sorted := make([]CountrySummary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Confirmed, sorted[j].Confirmed
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Summarize runs LatestByCountry over each dataset and joins the results.
func Summarize(byDataset map[Dataset][]Observation) []CountrySummary {
	return JoinCountries(
		LatestByCountry(byDataset[Confirmed]),
		LatestByCountry(byDataset[Deaths]),
		LatestByCountry(byDataset[Recovered]),
	)
}
