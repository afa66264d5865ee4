package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	day := func(d int) time.Time { return time.Date(2020, time.January, 22+d, 0, 0, 0, 0, time.UTC) }
	totals := []domain.DateTotal{{Date: day(0), Total: 10}, {Date: day(1), Total: 20}}
	summaries := []domain.CountrySummary{
		{Country: "A", Confirmed: ptr(20), Deaths: ptr(2), Recovered: ptr(10), RecoveryRate: 50},
		{Country: "C<script>", Confirmed: ptr(0), Recovered: ptr(0), RecoveryRate: math.NaN()},
		{Country: "D", Confirmed: ptr(0), Recovered: ptr(4), RecoveryRate: math.Inf(1)},
	}
	f, err := domain.FitTrend(totals, 2)
	require.NoError(t, err)
	snap := domain.NewSnapshot(totals, summaries, 2, f, nil)
	snap.GeneratedAt = time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)
	return snap
}

func TestNewPayload(t *testing.T) {
	p := NewPayload(testSnapshot(t))

	assert.Equal(t, "2024-03-10T06:00:00Z", p.GeneratedAt)
	assert.Equal(t, []SeriesPoint{{Date: "2020-01-22", Value: 10}, {Date: "2020-01-23", Value: 20}}, p.Totals)
	assert.Equal(t, []SeriesPoint{{Date: "2020-01-22", Value: 10}, {Date: "2020-01-23", Value: 10}}, p.DailyNew)
	require.Len(t, p.Countries, 3)
	require.NotNil(t, p.Countries[0].RecoveryRate)
	assert.InDelta(t, 50.0, *p.Countries[0].RecoveryRate, 1e-9)
	assert.Nil(t, p.Countries[1].RecoveryRate, "NaN becomes null")
	assert.Nil(t, p.Countries[2].RecoveryRate, "Inf becomes null")
	assert.Len(t, p.Top, 2)

	require.Len(t, p.Forecast, 3)
	assert.Equal(t, "2020-01-23", p.Forecast[0].Date)
	assert.InDelta(t, 40.0, p.Forecast[2].Predicted, 1e-9)
}

func TestNewPayload_MarshalsNonFiniteAsNull(t *testing.T) {
	data, err := json.Marshal(NewPayload(testSnapshot(t)))
	require.NoError(t, err)

	var decoded struct {
		Countries []map[string]any `json:"countries"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Countries[1]["recoveryRate"])
	assert.Contains(t, decoded.Countries[1], "recoveryRate")
}

func TestWrite_EscapesCountryNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot(t)))

	html := buf.String()
	assert.Contains(t, html, "new Chart(")
	assert.Contains(t, html, "Sun, 10 Mar 2024 06:00:00 UTC")
	assert.NotContains(t, html, "C<script>", "json.Marshal escapes angle brackets")
	assert.NotContains(t, html, "NaN")
}

func TestRenderer_Render(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := NewRenderer(dir, slog.Default())
	assert.Equal(t, "dashboard", r.Name())

	paths, err := r.Render(context.Background(), testSnapshot(t))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, FileName)}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"country":"A"`)

	_, err = os.Stat(paths[0] + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRenderer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRenderer(t.TempDir(), slog.Default()).Render(ctx, testSnapshot(t))
	require.ErrorIs(t, err, context.Canceled)
}
