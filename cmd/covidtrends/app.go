package main

import (
	"io"
	"log/slog"

	"github.com/couchcryptid/covid-trends/internal/adapter/chart"
	"github.com/couchcryptid/covid-trends/internal/adapter/console"
	"github.com/couchcryptid/covid-trends/internal/adapter/csse"
	"github.com/couchcryptid/covid-trends/internal/adapter/dashboard"
	kafkaadapter "github.com/couchcryptid/covid-trends/internal/adapter/kafka"
	"github.com/couchcryptid/covid-trends/internal/adapter/workbook"
	"github.com/couchcryptid/covid-trends/internal/config"
	"github.com/couchcryptid/covid-trends/internal/observability"
	"github.com/couchcryptid/covid-trends/internal/pipeline"
	"github.com/spf13/cobra"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	writer  *kafkaadapter.Writer
}

// newApp loads configuration, applies command-line overrides, and builds the
// logger and metrics.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg),
		metrics: observability.NewMetrics(),
	}, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("top-n") {
		cfg.TopN, _ = flags.GetInt("top-n")
	}
	if flags.Changed("forecast-days") {
		cfg.ForecastDays, _ = flags.GetInt("forecast-days")
	}
	return cfg.Validate()
}

// newPipeline wires the fetcher, renderers, and optional Kafka sink. A non-nil
// out adds the console table to the renderers.
func (a *app) newPipeline(out io.Writer) *pipeline.Pipeline {
	client := csse.NewClient(a.cfg.SourceBaseURL, a.cfg.FetchTimeout, a.metrics, a.logger)

	renderers := []pipeline.Renderer{
		chart.NewRenderer(a.cfg.OutputDir, a.logger),
		dashboard.NewRenderer(a.cfg.OutputDir, a.logger),
		workbook.NewRenderer(a.cfg.OutputDir, a.logger),
	}
	if out != nil {
		renderers = append(renderers, console.NewRenderer(out))
	}

	var loader pipeline.SummaryLoader
	if a.cfg.KafkaEnabled {
		a.writer = kafkaadapter.NewWriter(a.cfg, a.logger)
		loader = a.writer
		a.logger.Info("kafka summary sink enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaSummaryTopic)
	} else {
		a.logger.Info("kafka summary sink disabled")
	}

	opts := pipeline.Options{TopN: a.cfg.TopN, ForecastDays: a.cfg.ForecastDays}
	return pipeline.New(client, renderers, loader, a.logger, a.metrics, opts)
}

// close releases the Kafka producer, if one was created.
func (a *app) close() {
	if a.writer == nil {
		return
	}
	if err := a.writer.Close(); err != nil {
		a.logger.Error("kafka writer close error", "error", err)
	}
}
