// Package dashboard renders an interactive Chart.js page from a snapshot.
package dashboard

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
)

// FileName is the dashboard artifact, relative to the output directory.
const FileName = "dashboard.html"

//go:embed dashboard.html.tmpl
var pageSource string

var page = template.Must(template.New("dashboard").Parse(pageSource))

// Payload is the JSON document embedded in the page and read by its scripts.
type Payload struct {
	GeneratedAt string          `json:"generatedAt"`
	Totals      []SeriesPoint   `json:"totals"`
	DailyNew    []SeriesPoint   `json:"dailyNew"`
	Top         []CountryRow    `json:"top"`
	Countries   []CountryRow    `json:"countries"`
	Forecast    []ForecastPoint `json:"forecast"`
	Slope       float64         `json:"slope"`
	Flags       int             `json:"flags"`
}

// SeriesPoint is one dated value.
type SeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// CountryRow is a country summary with non-finite rates as null.
type CountryRow struct {
	Country      string   `json:"country"`
	Confirmed    *int64   `json:"confirmed"`
	Deaths       *int64   `json:"deaths"`
	Recovered    *int64   `json:"recovered"`
	RecoveryRate *float64 `json:"recoveryRate"`
}

// ForecastPoint is one extrapolated value.
type ForecastPoint struct {
	Date      string  `json:"date"`
	Predicted float64 `json:"predicted"`
}

// Renderer writes dashboard.html into a directory.
type Renderer struct {
	dir    string
	logger *slog.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	return &Renderer{dir: dir, logger: logger}
}

// Name identifies the renderer in logs and metrics.
func (r *Renderer) Name() string { return "dashboard" }

// Render writes the page. The file is replaced atomically so the HTTP server
// never serves a partial page.
func (r *Renderer) Render(ctx context.Context, snap domain.Snapshot) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dashboard dir: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		return nil, err
	}

	path := filepath.Join(r.dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write dashboard: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("replace dashboard: %w", err)
	}
	r.logger.Debug("dashboard saved", "path", path, "bytes", buf.Len())
	return []string{path}, nil
}

// Write executes the page template for snap into buf.
func Write(buf *bytes.Buffer, snap domain.Snapshot) error {
	data, err := json.Marshal(NewPayload(snap))
	if err != nil {
		return fmt.Errorf("marshal dashboard payload: %w", err)
	}
	view := struct {
		Title       string
		GeneratedAt string
		Payload     template.JS
	}{
		Title:       "COVID-19 global trends",
		GeneratedAt: snap.GeneratedAt.UTC().Format(time.RFC1123),
		Payload:     template.JS(data),
	}
	if err := page.Execute(buf, view); err != nil {
		return fmt.Errorf("execute dashboard template: %w", err)
	}
	return nil
}

// NewPayload flattens a snapshot into the page's JSON shape.
func NewPayload(snap domain.Snapshot) Payload {
	p := Payload{
		GeneratedAt: snap.GeneratedAt.UTC().Format(time.RFC3339),
		Totals:      seriesPoints(snap.Totals),
		DailyNew:    seriesPoints(snap.DailyNew),
		Top:         countryRows(snap.Top),
		Countries:   countryRows(snap.Summaries),
		Forecast:    make([]ForecastPoint, len(snap.Forecast.Points)),
		Slope:       snap.Forecast.Slope,
		Flags:       len(snap.Flags),
	}
	for i, fp := range snap.Forecast.Points {
		p.Forecast[i] = ForecastPoint{Date: dateLabel(fp.Date), Predicted: fp.Predicted}
	}
	return p
}

func seriesPoints(totals []domain.DateTotal) []SeriesPoint {
	out := make([]SeriesPoint, len(totals))
	for i, t := range totals {
		out[i] = SeriesPoint{Date: dateLabel(t.Date), Value: t.Total}
	}
	return out
}

func countryRows(summaries []domain.CountrySummary) []CountryRow {
	out := make([]CountryRow, len(summaries))
	for i, s := range summaries {
		out[i] = CountryRow{
			Country:   s.Country,
			Confirmed: s.Confirmed,
			Deaths:    s.Deaths,
			Recovered: s.Recovered,
		}
		if s.HasFiniteRate() {
			rate := s.RecoveryRate
			out[i].RecoveryRate = &rate
		}
	}
	return out
}

func dateLabel(t time.Time) string {
	return t.Format(time.DateOnly)
}
