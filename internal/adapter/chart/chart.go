// Package chart renders the static PNG views of a snapshot with gonum/plot.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Artifact file names, relative to the output directory.
const (
	GlobalCasesFile  = "global_cases.png"
	TopCountriesFile = "top_countries.png"
	RecoveryRateFile = "recovery_rate.png"
	ForecastFile     = "forecast.png"
)

const (
	minBubbleRadius = 3
	maxBubbleRadius = 18
	dateTickFormat  = "2006-01-02"
)

var (
	lineColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	barColor      = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bubbleColor   = color.RGBA{R: 214, G: 39, B: 40, A: 160}
	observedColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	trendColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Renderer writes the four chart PNGs into a directory.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	return &Renderer{dir: dir, width: 10 * vg.Inch, height: 6 * vg.Inch, logger: logger}
}

// Name identifies the renderer in logs and metrics.
func (r *Renderer) Name() string { return "chart" }

// Render builds and saves every chart, returning the written paths.
func (r *Renderer) Render(ctx context.Context, snap domain.Snapshot) ([]string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	charts := []struct {
		file  string
		build func(domain.Snapshot) (*plot.Plot, error)
	}{
		{GlobalCasesFile, globalCases},
		{TopCountriesFile, topCountries},
		{RecoveryRateFile, recoveryRate},
		{ForecastFile, forecast},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := c.build(snap)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", c.file, err)
		}
		path := filepath.Join(r.dir, c.file)
		if err := r.save(p, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", c.file, err)
		}
		r.logger.Debug("chart saved", "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// save encodes p as PNG and replaces path atomically, so the HTTP server never
// serves a partial image.
func (r *Renderer) save(p *plot.Plot, path string) error {
	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix())
}

func dateTicks(p *plot.Plot) {
	p.X.Tick.Marker = plot.TimeTicks{Format: dateTickFormat}
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
}

func totalsXYs(totals []domain.DateTotal) plotter.XYs {
	xys := make(plotter.XYs, len(totals))
	for i, t := range totals {
		xys[i].X = unixSeconds(t.Date)
		xys[i].Y = float64(t.Total)
	}
	return xys
}

func globalCases(snap domain.Snapshot) (*plot.Plot, error) {
	p := newPlot("Global confirmed cases", "Date", "Cumulative confirmed")
	dateTicks(p)
	if len(snap.Totals) == 0 {
		return p, nil
	}

	line, err := plotter.NewLine(totalsXYs(snap.Totals))
	if err != nil {
		return nil, err
	}
	line.Color = lineColor
	line.Width = vg.Points(2)
	p.Add(line)
	return p, nil
}

func topCountries(snap domain.Snapshot) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("Top %d countries by confirmed cases", len(snap.Top)), "", "Confirmed")
	if len(snap.Top) == 0 {
		return p, nil
	}

	values, labels := barValues(snap.Top)
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.Y.Min = 0
	return p, nil
}

// barValues maps countries to bar heights, a missing confirmed count as zero.
func barValues(top []domain.CountrySummary) (plotter.Values, []string) {
	values := make(plotter.Values, len(top))
	labels := make([]string, len(top))
	for i, s := range top {
		if s.Confirmed != nil {
			values[i] = float64(*s.Confirmed)
		}
		labels[i] = s.Country
	}
	return values, labels
}

// recoveryRate plots confirmed against recovery rate with the glyph radius
// scaled by deaths. Countries without a finite rate are left out.
func recoveryRate(snap domain.Snapshot) (*plot.Plot, error) {
	p := newPlot("Recovery rate by country", "Confirmed", "Recovery rate (%)")

	xys, deaths := bubblePoints(snap.Summaries)
	if len(xys) == 0 {
		return p, nil
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	maxDeaths := 0.0
	for _, d := range deaths {
		maxDeaths = math.Max(maxDeaths, d)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  bubbleColor,
			Radius: vg.Points(bubbleRadius(deaths[i], maxDeaths)),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)
	p.Y.Min = 0
	return p, nil
}

// bubblePoints returns (confirmed, rate) for every country with a confirmed
// count and a finite rate, plus each point's deaths.
func bubblePoints(summaries []domain.CountrySummary) (plotter.XYs, []float64) {
	var xys plotter.XYs
	var deaths []float64
	for _, s := range summaries {
		if s.Confirmed == nil || !s.HasFiniteRate() {
			continue
		}
		d := 0.0
		if s.Deaths != nil {
			d = float64(*s.Deaths)
		}
		xys = append(xys, plotter.XY{X: float64(*s.Confirmed), Y: s.RecoveryRate})
		deaths = append(deaths, d)
	}
	return xys, deaths
}

// bubbleRadius maps deaths onto a radius by area, so the biggest toll gets
// maxBubbleRadius and zero deaths gets minBubbleRadius.
func bubbleRadius(deaths, maxDeaths float64) float64 {
	if maxDeaths <= 0 || deaths <= 0 {
		return minBubbleRadius
	}
	return minBubbleRadius + (maxBubbleRadius-minBubbleRadius)*math.Sqrt(deaths/maxDeaths)
}

func forecast(snap domain.Snapshot) (*plot.Plot, error) {
	f := snap.Forecast
	p := newPlot(fmt.Sprintf("Linear trend, %d day forecast", max(len(f.Points)-1, 0)), "Date", "Cumulative confirmed")
	dateTicks(p)
	if len(snap.Totals) == 0 {
		return p, nil
	}

	observed, err := plotter.NewScatter(totalsXYs(snap.Totals))
	if err != nil {
		return nil, err
	}
	observed.GlyphStyle.Color = observedColor
	observed.GlyphStyle.Radius = vg.Points(2)
	p.Add(observed)
	p.Legend.Add("observed", observed)

	if len(f.Points) == 0 {
		return p, nil
	}
	fit := make(plotter.XYs, 0, len(f.Points)+1)
	fit = append(fit, plotter.XY{X: unixSeconds(f.Origin), Y: f.Predict(0)})
	for _, pt := range f.Points {
		fit = append(fit, plotter.XY{X: unixSeconds(pt.Date), Y: pt.Predicted})
	}
	trend, err := plotter.NewLine(fit)
	if err != nil {
		return nil, err
	}
	trend.Color = trendColor
	trend.Width = vg.Points(2)
	trend.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(trend)
	p.Legend.Add("trend", trend)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}
