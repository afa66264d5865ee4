package console

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Totals: []domain.DateTotal{
			{Date: time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC), Total: 10},
			{Date: time.Date(2020, time.January, 23, 0, 0, 0, 0, time.UTC), Total: 35},
		},
		Top: []domain.CountrySummary{
			{Country: "Atlantis", Confirmed: ptr(20), Deaths: ptr(2), Recovered: ptr(10), RecoveryRate: 50},
			{Country: "Lemuria", Confirmed: ptr(15), RecoveryRate: math.NaN()},
		},
	}
}

func TestRenderer_PrintsTopCountries(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	assert.Equal(t, "console", r.Name())

	paths, err := r.Render(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Empty(t, paths)

	out := buf.String()
	assert.Contains(t, out, "Top 2 countries")
	assert.Contains(t, out, "1/23/20")
	assert.Contains(t, out, "Atlantis")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "35")
	assert.Less(t, strings.Index(out, "Atlantis"), strings.Index(out, "Lemuria"))
}

func TestRenderer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := NewRenderer(&buf).Render(ctx, testSnapshot())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestWriteFlags(t *testing.T) {
	var buf bytes.Buffer
	WriteFlags(&buf, []domain.QualityFlag{
		{Check: domain.CheckMonotonicSeries, Dataset: domain.Deaths, Country: "Atlantis",
			Date: time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC), Detail: "Atlantis dropped from 4 to 2"},
		{Check: domain.CheckUndatedLabel, Dataset: domain.Confirmed, Detail: `column "Notes" is not a date`},
	})

	out := buf.String()
	assert.Contains(t, out, "monotonic_series")
	assert.Contains(t, out, "3/1/20")
	assert.Contains(t, out, "Atlantis dropped from 4 to 2")
	assert.Contains(t, out, `column "Notes" is not a date`)
}

func TestCount(t *testing.T) {
	assert.Equal(t, "-", count(nil))
	assert.Equal(t, "42", count(ptr(42)))
}
