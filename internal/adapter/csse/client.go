package csse

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/couchcryptid/covid-trends/internal/observability"
)

// ErrEmptyTable is returned when a source file has no header row.
var ErrEmptyTable = errors.New("source file has no header row")

const utf8BOM = "\ufeff"

// Client downloads the CSSE time-series CSV files.
// It implements pipeline.Extractor.
type Client struct {
	http     *resty.Client
	baseURL  string
	datasets []domain.Dataset
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewClient creates a source client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		http:     resty.New().SetTimeout(timeout).SetHeader("Accept", "text/csv, text/plain"),
		baseURL:  baseURL,
		datasets: domain.Datasets,
		metrics:  metrics,
		logger:   logger,
	}
}

// URL returns the download location of a dataset.
func (c *Client) URL(ds domain.Dataset) string {
	return strings.TrimSuffix(c.baseURL, "/") + "/" + ds.FileName()
}

// FetchAll downloads every dataset concurrently. The first failure cancels the
// remaining downloads and is returned; there is no partial result.
func (c *Client) FetchAll(ctx context.Context) (map[domain.Dataset]domain.RawSeriesTable, error) {
	var mu sync.Mutex
	tables := make(map[domain.Dataset]domain.RawSeriesTable, len(c.datasets))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, ds := range c.datasets {
		eg.Go(func() error {
			table, err := c.Fetch(egCtx, ds)
			if err != nil {
				return err
			}
			mu.Lock()
			tables[ds] = table
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// Fetch downloads and parses one dataset.
func (c *Client) Fetch(ctx context.Context, ds domain.Dataset) (domain.RawSeriesTable, error) {
	start := time.Now()
	table, err := c.fetch(ctx, ds)
	c.metrics.FetchDuration.WithLabelValues(string(ds)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(string(ds), "error").Inc()
		return domain.RawSeriesTable{}, err
	}
	c.metrics.FetchRequests.WithLabelValues(string(ds), "success").Inc()
	c.logger.Info("source fetched",
		"dataset", ds,
		"rows", len(table.Rows),
		"columns", len(table.Header),
		"duration", time.Since(start),
	)
	return table, nil
}

func (c *Client) fetch(ctx context.Context, ds domain.Dataset) (domain.RawSeriesTable, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.URL(ds))
	if err != nil {
		return domain.RawSeriesTable{}, fmt.Errorf("fetch %s: %w", ds, err)
	}
	if !resp.IsSuccess() {
		return domain.RawSeriesTable{}, fmt.Errorf("fetch %s: status %d: %s", ds, resp.StatusCode(), truncate(resp.String(), 200))
	}

	table, err := ParseTable(ds, bytes.NewReader(resp.Body()))
	if err != nil {
		return domain.RawSeriesTable{}, fmt.Errorf("fetch %s: %w", ds, err)
	}
	return table, nil
}

// ParseTable reads a wide-format CSV with a header row. Every row must have
// as many fields as the header.
func ParseTable(ds domain.Dataset, r io.Reader) (domain.RawSeriesTable, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawSeriesTable{}, ErrEmptyTable
	}
	if err != nil {
		return domain.RawSeriesTable{}, fmt.Errorf("parse header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	rows, err := cr.ReadAll()
	if err != nil {
		return domain.RawSeriesTable{}, fmt.Errorf("parse rows: %w", err)
	}

	return domain.RawSeriesTable{Dataset: ds, Header: header, Rows: rows}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
