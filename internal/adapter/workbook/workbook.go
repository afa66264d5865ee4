// Package workbook exports a snapshot's tables to an Excel file.
package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/xuri/excelize/v2"
)

// FileName is the workbook artifact, relative to the output directory.
const FileName = "summary.xlsx"

// Sheet names in workbook order.
const (
	SheetGlobal    = "Global"
	SheetCountries = "Countries"
	SheetForecast  = "Forecast"
	SheetQuality   = "Quality"
)

// Renderer writes summary.xlsx into a directory.
type Renderer struct {
	dir    string
	logger *slog.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	return &Renderer{dir: dir, logger: logger}
}

// Name identifies the renderer in logs and metrics.
func (r *Renderer) Name() string { return "workbook" }

// Render builds the workbook and replaces summary.xlsx atomically.
func (r *Renderer) Render(ctx context.Context, snap domain.Snapshot) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workbook dir: %w", err)
	}

	f, err := Build(snap)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("workbook close failed", "error", err)
		}
	}()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	path := filepath.Join(r.dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("replace workbook: %w", err)
	}
	r.logger.Debug("workbook saved", "path", path, "countries", len(snap.Summaries), "flags", len(snap.Flags))
	return []string{path}, nil
}

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// Build lays the snapshot out over four sheets: global totals, the country
// join, the forecast points, and the quality flags.
func Build(snap domain.Snapshot) (*excelize.File, error) {
	sheets := []sheet{
		globalSheet(snap),
		countriesSheet(snap.Summaries),
		forecastSheet(snap.Forecast),
		qualitySheet(snap.Flags),
	}

	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDE4EE"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workbook header style: %w", err)
	}

	for i, s := range sheets {
		if err := writeSheet(f, i, s, header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("workbook sheet %s: %w", s.name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, index int, s sheet, headerStyle int) error {
	if index == 0 {
		if err := f.SetSheetName("Sheet1", s.name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(s.name); err != nil {
		return err
	}

	if err := f.SetSheetRow(s.name, "A1", &s.headers); err != nil {
		return err
	}
	if err := f.SetRowStyle(s.name, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, w := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, col, col, w); err != nil {
			return err
		}
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func globalSheet(snap domain.Snapshot) sheet {
	s := sheet{
		name:    SheetGlobal,
		headers: []string{"Date", "Total confirmed", "Daily new"},
		widths:  []float64{14, 18, 14},
	}
	for i, t := range snap.Totals {
		var daily any
		if i < len(snap.DailyNew) {
			daily = snap.DailyNew[i].Total
		}
		s.rows = append(s.rows, []any{dateCell(t.Date), t.Total, daily})
	}
	return s
}

func countriesSheet(summaries []domain.CountrySummary) sheet {
	s := sheet{
		name:    SheetCountries,
		headers: []string{"Country", "Confirmed", "Deaths", "Recovered", "Recovery rate (%)"},
		widths:  []float64{32, 14, 14, 14, 18},
	}
	for _, c := range summaries {
		var rate any
		if c.HasFiniteRate() {
			rate = c.RecoveryRate
		}
		s.rows = append(s.rows, []any{c.Country, count(c.Confirmed), count(c.Deaths), count(c.Recovered), rate})
	}
	return s
}

func forecastSheet(f domain.Forecast) sheet {
	s := sheet{
		name:    SheetForecast,
		headers: []string{"Day", "Date", "Predicted total"},
		widths:  []float64{8, 14, 18},
	}
	for _, p := range f.Points {
		s.rows = append(s.rows, []any{p.Day, dateCell(p.Date), p.Predicted})
	}
	return s
}

func qualitySheet(flags []domain.QualityFlag) sheet {
	s := sheet{
		name:    SheetQuality,
		headers: []string{"Check", "Dataset", "Country", "Date", "Detail"},
		widths:  []float64{22, 12, 28, 14, 60},
	}
	for _, fl := range flags {
		var date any
		if !fl.Date.IsZero() {
			date = dateCell(fl.Date)
		}
		s.rows = append(s.rows, []any{string(fl.Check), string(fl.Dataset), fl.Country, date, fl.Detail})
	}
	return s
}

// count leaves missing metrics as empty cells.
func count(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func dateCell(t time.Time) string {
	return t.Format(time.DateOnly)
}
