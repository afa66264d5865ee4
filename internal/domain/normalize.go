package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ErrMissingCountryColumn is returned when a table header has no country column.
var ErrMissingCountryColumn = errors.New("no country column in header")

// dateLayouts are tried in order. Both are fixed month-first layouts so the
// result never depends on the host locale.
var dateLayouts = []string{
	"1/2/06 15:04",
	"1/2/06",
}

// idColumns maps the leading word of an identifier header to its role.
// "Province/State", "Country_Region", and "Long_" all qualify; "Population" does not.
var idColumns = map[string]string{
	"province":  "province",
	"country":   "country",
	"lat":       "coordinate",
	"latitude":  "coordinate",
	"long":      "coordinate",
	"longitude": "coordinate",
}

type columnLayout struct {
	country  int
	province int // -1 when absent
	values   []int
}

// ParseDateLabel parses a date column header into a UTC calendar date.
// It returns false when the label matches neither accepted layout.
func ParseDateLabel(label string) (time.Time, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return time.Time{}, false
	}
	if r, size := utf8.DecodeRuneInString(s); !unicode.IsDigit(r) {
		s = s[size:]
	}
	s = strings.ReplaceAll(s, ".", "/")

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return truncateToDate(t), true
		}
	}
	return time.Time{}, false
}

// FormatDateLabel renders a date in the upstream M/D/YY header layout.
func FormatDateLabel(t time.Time) string {
	return t.Format("1/2/06")
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize reshapes a wide table into one observation per (row, value column).
// Coordinates are dropped. Unparsable date labels produce undated observations.
func Normalize(table RawSeriesTable) ([]Observation, error) {
	layout, err := classifyColumns(table.Header)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", table.Dataset, err)
	}

	dates := make([]time.Time, len(layout.values))
	for i, col := range layout.values {
		dates[i], _ = ParseDateLabel(table.Header[col])
	}

	out := make([]Observation, 0, len(table.Rows)*len(layout.values))
	for r, row := range table.Rows {
		country := cell(row, layout.country)
		province := cell(row, layout.province)
		for i, col := range layout.values {
			out = append(out, Observation{
				Dataset:  table.Dataset,
				Row:      r,
				Country:  country,
				Province: province,
				Date:     dates[i],
				Cases:    parseCount(cell(row, col)),
			})
		}
	}
	return out, nil
}

// UndatedLabels returns the value column headers that do not parse as dates.
func UndatedLabels(header []string) []string {
	layout, err := classifyColumns(header)
	if err != nil {
		return nil
	}
	var labels []string
	for _, col := range layout.values {
		if _, ok := ParseDateLabel(header[col]); !ok {
			labels = append(labels, header[col])
		}
	}
	return labels
}

// CountUndated returns the number of observations without a parsed date.
func CountUndated(obs []Observation) int {
	n := 0
	for _, o := range obs {
		if !o.Dated() {
			n++
		}
	}
	return n
}

func classifyColumns(header []string) (columnLayout, error) {
	layout := columnLayout{country: -1, province: -1}
	for i, name := range header {
		switch idColumns[leadingWord(name)] {
		case "country":
			if layout.country < 0 {
				layout.country = i
			}
		case "province":
			if layout.province < 0 {
				layout.province = i
			}
		case "coordinate":
		default:
			layout.values = append(layout.values, i)
		}
	}
	if layout.country < 0 {
		return layout, ErrMissingCountryColumn
	}
	return layout, nil
}

// leadingWord returns the first run of letters in name, lower-cased.
func leadingWord(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseCount returns nil for empty or non-numeric cells. Whole-valued floats
// ("12.0") are accepted since some exports write counts that way.
func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	v := int64(f)
	return &v
}
