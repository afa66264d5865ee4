package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/couchcryptid/covid-trends/internal/observability"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Extractor downloads the raw series tables for every dataset.
type Extractor interface {
	FetchAll(ctx context.Context) (map[domain.Dataset]domain.RawSeriesTable, error)
}

// Renderer turns a snapshot into output artifacts and returns their paths.
type Renderer interface {
	Name() string
	Render(ctx context.Context, snap domain.Snapshot) ([]string, error)
}

// SummaryLoader publishes per-country summaries to a downstream sink.
type SummaryLoader interface {
	LoadBatch(ctx context.Context, runID string, generatedAt time.Time, summaries []domain.CountrySummary) error
}

// Options tune the aggregation stage.
type Options struct {
	TopN         int
	ForecastDays int
}

// Report describes one completed run.
type Report struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Observations map[domain.Dataset]int
	Undated      map[domain.Dataset]int
	Snapshot     domain.Snapshot
	Artifacts    []string
}

// Pipeline orchestrates the fetch-normalize-aggregate-render pass.
type Pipeline struct {
	extractor   Extractor
	transformer *SeriesTransformer
	renderers   []Renderer
	loader      SummaryLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	running     atomic.Bool
}

// New creates a Pipeline. Pass a nil loader to disable the summary sink.
func New(e Extractor, renderers []Renderer, l SummaryLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: NewTransformer(opts, metrics, logger),
		renderers:   renderers,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Analyze fetches every dataset and aggregates it without rendering or publishing.
func (p *Pipeline) Analyze(ctx context.Context) (Analysis, error) {
	tables, err := p.extractor.FetchAll(ctx)
	if err != nil {
		return Analysis{}, fmt.Errorf("extract: %w", err)
	}
	return p.transformer.Transform(tables)
}

// Run executes one complete pass. Any stage failure aborts the run; there are no retries.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := time.Now()
	report, err := p.run(ctx, domain.Now())
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		p.logger.Error("pipeline run failed", "error", err, "duration", time.Since(start))
		return Report{}, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.SetToCurrentTime()
	p.ready.Store(true)
	p.logger.Info("pipeline run complete",
		"run_id", report.RunID,
		"dates", len(report.Snapshot.Totals),
		"countries", len(report.Snapshot.Summaries),
		"flags", len(report.Snapshot.Flags),
		"artifacts", len(report.Artifacts),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// run executes the stages of one pass. startedAt is taken before the fetch and
// identifies the run.
func (p *Pipeline) run(ctx context.Context, startedAt time.Time) (Report, error) {
	analysis, err := p.Analyze(ctx)
	if err != nil {
		return Report{}, err
	}
	snap := analysis.Snapshot

	report := Report{
		RunID:        runID(startedAt),
		StartedAt:    startedAt,
		Observations: analysis.Observations,
		Undated:      analysis.Undated,
		Snapshot:     snap,
	}

	for _, r := range p.renderers {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		paths, err := r.Render(ctx, snap)
		if err != nil {
			return Report{}, fmt.Errorf("render %s: %w", r.Name(), err)
		}
		for _, path := range paths {
			p.metrics.ChartsRendered.WithLabelValues(r.Name()).Inc()
			p.logger.Debug("artifact rendered", "renderer", r.Name(), "path", path)
		}
		report.Artifacts = append(report.Artifacts, paths...)
	}

	if p.loader != nil {
		if err := p.loader.LoadBatch(ctx, report.RunID, snap.GeneratedAt, snap.Summaries); err != nil {
			return Report{}, fmt.Errorf("load summaries: %w", err)
		}
		p.metrics.SummariesPublished.Add(float64(len(snap.Summaries)))
	}

	report.FinishedAt = domain.Now()
	return report, nil
}

// runID derives a sortable identifier from the run start time.
func runID(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
