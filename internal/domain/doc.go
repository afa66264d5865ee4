// Package domain models the CSSE COVID-19 global time-series data.
//
// # Data Source
//
// The Johns Hopkins CSSE repository publishes three cumulative series as CSV
// files under csse_covid_19_data/csse_covid_19_time_series/:
//
//	time_series_covid19_confirmed_global.csv
//	time_series_covid19_deaths_global.csv
//	time_series_covid19_recovered_global.csv
//
// Each file is in wide format: one row per (country, province) and one column
// per reported date. Values are cumulative counts (total to date).
//
// # Header Conventions
//
// Identifier columns:
//
//	"Province/State, Country/Region, Lat, Long"
//
// Some exports rename these ("Country.Region", "Province_State", "Long_"), so
// columns are classified by their leading word, compared case-insensitively
// with Province, Country, Lat, and Long. Every other column, "Population"
// included, is a value column.
//
// Date labels:
//
//	M/D/YY            e.g. "1/22/20"
//	M/D/YY HH:MM      e.g. "3/1/20 10:30"
//
// Labels may carry one leading non-digit marker ("X1.22.20") and may use "."
// instead of "/" as the separator. The marker is stripped, the separator is
// normalized, and the two layouts are tried in the order above. Two-digit years
// 00-68 map to 20xx. The time of day is discarded. A label that matches
// neither layout yields a zero (null) date; the observation is kept but is
// excluded from every date-keyed aggregation.
//
// # Aggregation Semantics
//
// [TotalsByDate] sums the cumulative per-region counts on each date. The result
// is itself cumulative, not a count of new cases per day. A downward revision
// in any region shows up in the total unchanged; nothing is smoothed.
//
// [JoinCountries] performs a full outer join of per-country latest values. A
// country missing from one series has a nil metric for it, and its recovery
// rate is NaN. A country with zero confirmed cases has a non-finite recovery
// rate (NaN or +Inf) which is preserved so charts can omit it.
package domain
