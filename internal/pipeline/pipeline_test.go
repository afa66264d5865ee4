package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/couchcryptid/covid-trends/internal/observability"
	"github.com/couchcryptid/covid-trends/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	tables  map[domain.Dataset]domain.RawSeriesTable
	err     error
	release chan struct{} // when set, FetchAll blocks until closed
	onFetch func()
}

func (m *mockExtractor) FetchAll(ctx context.Context) (map[domain.Dataset]domain.RawSeriesTable, error) {
	if m.onFetch != nil {
		m.onFetch()
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.tables, nil
}

type mockRenderer struct {
	name  string
	paths []string
	err   error

	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (m *mockRenderer) Name() string { return m.name }

func (m *mockRenderer) Render(_ context.Context, snap domain.Snapshot) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	if m.err != nil {
		return nil, m.err
	}
	return m.paths, nil
}

type mockLoader struct {
	err         error
	runID       string
	generatedAt time.Time
	loaded      []domain.CountrySummary
}

func (m *mockLoader) LoadBatch(_ context.Context, runID string, generatedAt time.Time, summaries []domain.CountrySummary) error {
	if m.err != nil {
		return m.err
	}
	m.runID = runID
	m.generatedAt = generatedAt
	m.loaded = append(m.loaded, summaries...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// fixtureTables is two countries over two days, with the confirmed header in
// the dotted form some mirrors publish.
func fixtureTables() map[domain.Dataset]domain.RawSeriesTable {
	slashed := []string{"Province/State", "Country/Region", "Lat", "Long", "1/22/20", "1/23/20"}
	return map[domain.Dataset]domain.RawSeriesTable{
		domain.Confirmed: {
			Dataset: domain.Confirmed,
			Header:  []string{"Country.Region", "Lat", "Long", "1.22.20", "1.23.20"},
			Rows: [][]string{
				{"A", "10.0", "20.0", "0", "5"},
				{"B", "-1.5", "3.25", "2", "2"},
			},
		},
		domain.Deaths: {
			Dataset: domain.Deaths,
			Header:  slashed,
			Rows: [][]string{
				{"", "A", "10.0", "20.0", "0", "1"},
				{"", "B", "-1.5", "3.25", "0", "0"},
			},
		},
		domain.Recovered: {
			Dataset: domain.Recovered,
			Header:  slashed,
			Rows: [][]string{
				{"", "A", "10.0", "20.0", "0", "2"},
				{"", "B", "-1.5", "3.25", "1", "1"},
			},
		},
	}
}

func fixedClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })
	return now
}

func testOptions() pipeline.Options {
	return pipeline.Options{TopN: 10, ForecastDays: 30}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	now := fixedClock(t)

	charts := &mockRenderer{name: "chart", paths: []string{"global_cases.png", "forecast.png"}}
	book := &mockRenderer{name: "workbook", paths: []string{"summary.xlsx"}}
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{tables: fixtureTables()}, []pipeline.Renderer{charts, book}, ldr,
		slog.Default(), newTestMetrics(), testOptions())

	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20240310T060000Z", report.RunID)
	assert.Equal(t, now, report.StartedAt)
	assert.Equal(t, []string{"global_cases.png", "forecast.png", "summary.xlsx"}, report.Artifacts)
	assert.Equal(t, 4, report.Observations[domain.Confirmed])
	assert.Equal(t, 0, report.Undated[domain.Recovered])

	snap := report.Snapshot
	require.Len(t, snap.Totals, 2)
	assert.Equal(t, int64(2), snap.Totals[0].Total)
	assert.Equal(t, int64(7), snap.Totals[1].Total)
	assert.Equal(t, []int64{2, 5}, []int64{snap.DailyNew[0].Total, snap.DailyNew[1].Total})

	require.Len(t, snap.Summaries, 2)
	assert.Equal(t, "A", snap.Summaries[0].Country)
	assert.InDelta(t, 40.0, snap.Summaries[0].RecoveryRate, 1e-9)
	assert.InDelta(t, 50.0, snap.Summaries[1].RecoveryRate, 1e-9)
	assert.Empty(t, snap.Flags)

	// Two points at (0, 2) and (1, 7): slope 5, intercept 2.
	assert.InDelta(t, 5.0, snap.Forecast.Slope, 1e-9)
	assert.InDelta(t, 2.0, snap.Forecast.Intercept, 1e-9)
	assert.Len(t, snap.Forecast.Points, 31)

	require.Len(t, charts.snaps, 1)
	require.Len(t, book.snaps, 1)
	assert.Equal(t, report.RunID, ldr.runID)
	assert.Equal(t, now, ldr.generatedAt)
	assert.Len(t, ldr.loaded, 2)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.False(t, p.Running())
}

func TestPipeline_Run_IdentifiedByStartTime(t *testing.T) {
	start := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	// The download takes 90 seconds.
	ext := &mockExtractor{tables: fixtureTables(), onFetch: func() { clock.Advance(90 * time.Second) }}
	ldr := &mockLoader{}
	p := pipeline.New(ext, nil, ldr, slog.Default(), newTestMetrics(), testOptions())

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20240310T060000Z", report.RunID)
	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, start.Add(90*time.Second), report.Snapshot.GeneratedAt)
	assert.Equal(t, start.Add(90*time.Second), report.FinishedAt)
	assert.Equal(t, report.RunID, ldr.runID)
	assert.Equal(t, report.Snapshot.GeneratedAt, ldr.generatedAt)
}

func TestPipeline_Run_NilLoader(t *testing.T) {
	p := pipeline.New(&mockExtractor{tables: fixtureTables()}, nil, nil,
		slog.Default(), newTestMetrics(), testOptions())

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Artifacts)
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	fetchErr := errors.New("fetch confirmed: status 404")
	r := &mockRenderer{name: "chart"}
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{err: fetchErr}, []pipeline.Renderer{r}, ldr,
		slog.Default(), newTestMetrics(), testOptions())

	report, err := p.Run(context.Background())
	require.ErrorIs(t, err, fetchErr)
	assert.Contains(t, err.Error(), "extract")
	assert.Empty(t, report.RunID)
	assert.Empty(t, r.snaps, "nothing is rendered from a partial fetch")
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RenderError(t *testing.T) {
	renderErr := errors.New("disk full")
	failing := &mockRenderer{name: "workbook", err: renderErr}
	after := &mockRenderer{name: "console"}
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{tables: fixtureTables()}, []pipeline.Renderer{failing, after}, ldr,
		slog.Default(), newTestMetrics(), testOptions())

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, renderErr)
	assert.Contains(t, err.Error(), "render workbook")
	assert.Empty(t, after.snaps)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadError(t *testing.T) {
	loadErr := errors.New("broker unavailable")
	p := pipeline.New(&mockExtractor{tables: fixtureTables()}, nil, &mockLoader{err: loadErr},
		slog.Default(), newTestMetrics(), testOptions())

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, loadErr)
	assert.Contains(t, err.Error(), "load summaries")
}

func TestPipeline_Run_InsufficientHistory(t *testing.T) {
	tables := fixtureTables()
	for ds, table := range tables {
		header := table.Header[:len(table.Header)-1]
		rows := make([][]string, len(table.Rows))
		for i, row := range table.Rows {
			rows[i] = row[:len(row)-1]
		}
		tables[ds] = domain.RawSeriesTable{Dataset: ds, Header: header, Rows: rows}
	}

	p := pipeline.New(&mockExtractor{tables: tables}, nil, nil,
		slog.Default(), newTestMetrics(), testOptions())

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestPipeline_Run_RejectsConcurrentRun(t *testing.T) {
	ext := &mockExtractor{tables: fixtureTables(), release: make(chan struct{})}
	p := pipeline.New(ext, nil, nil, slog.Default(), newTestMetrics(), testOptions())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, p.Running, time.Second, 5*time.Millisecond)

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)

	close(ext.release)
	require.NoError(t, <-done)
	assert.False(t, p.Running())

	// The guard is released once the first run finishes.
	_, err = p.Run(context.Background())
	require.NoError(t, err)
}

func TestPipeline_Run_ContextCanceled(t *testing.T) {
	ext := &mockExtractor{tables: fixtureTables(), release: make(chan struct{})}
	p := pipeline.New(ext, nil, nil, slog.Default(), newTestMetrics(), testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Running())
}

func TestPipeline_Analyze_DoesNotRender(t *testing.T) {
	r := &mockRenderer{name: "chart"}
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{tables: fixtureTables()}, []pipeline.Renderer{r}, ldr,
		slog.Default(), newTestMetrics(), testOptions())

	analysis, err := p.Analyze(context.Background())
	require.NoError(t, err)
	assert.Len(t, analysis.Snapshot.Summaries, 2)
	assert.Empty(t, r.snaps)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()), "analysis alone does not mark the pipeline ready")
}
