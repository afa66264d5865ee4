// Package console prints snapshot tables to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const missing = "-"

// Renderer prints the top-N country table. It writes no files.
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a Renderer printing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Name identifies the renderer in logs and metrics.
func (r *Renderer) Name() string { return "console" }

// Render prints the table and returns no artifact paths.
func (r *Renderer) Render(ctx context.Context, snap domain.Snapshot) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	WriteTop(r.out, snap)
	return nil, nil
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

// WriteTop prints the snapshot's top countries with the global total as footer.
func WriteTop(out io.Writer, snap domain.Snapshot) {
	t := newTable(out)
	if n := len(snap.Totals); n > 0 {
		t.SetTitle("Top %d countries by confirmed cases, %s", len(snap.Top), domain.FormatDateLabel(snap.Totals[n-1].Date))
	}
	t.AppendHeader(table.Row{"#", "Country", "Confirmed", "Deaths", "Recovered", "Recovery rate"})
	for i, s := range snap.Top {
		t.AppendRow(table.Row{i + 1, s.Country, count(s.Confirmed), count(s.Deaths), count(s.Recovered), rate(s)})
	}
	if n := len(snap.Totals); n > 0 {
		t.AppendFooter(table.Row{"", "Global", snap.Totals[n-1].Total})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}

// WriteFlags prints quality flags, one per row.
func WriteFlags(out io.Writer, flags []domain.QualityFlag) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Check", "Dataset", "Country", "Date", "Detail"})
	for _, f := range flags {
		date := missing
		if !f.Date.IsZero() {
			date = domain.FormatDateLabel(f.Date)
		}
		country := f.Country
		if country == "" {
			country = missing
		}
		t.AppendRow(table.Row{string(f.Check), string(f.Dataset), country, date, f.Detail})
	}
	t.Render()
}

func count(v *int64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatInt(*v, 10)
}

func rate(s domain.CountrySummary) string {
	if !s.HasFiniteRate() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", s.RecoveryRate)
}
