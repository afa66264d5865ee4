package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// DefaultSourceBaseURL is the CSSE time-series directory on GitHub.
const DefaultSourceBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/"

// Bounds for the tunable aggregation settings.
const (
	MaxTopN         = 250
	MaxForecastDays = 365
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceBaseURL string
	FetchTimeout  time.Duration

	OutputDir    string
	TopN         int
	ForecastDays int

	RefreshSchedule string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka summary sink configuration.
	KafkaBrokers      []string
	KafkaSummaryTopic string
	KafkaEnabled      bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	topN, err := parseBoundedInt("TOP_N", 10, 1, MaxTopN)
	if err != nil {
		return nil, err
	}

	forecastDays, err := parseBoundedInt("FORECAST_DAYS", 30, 1, MaxForecastDays)
	if err != nil {
		return nil, err
	}

	schedule := sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", "0 6 * * *")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SourceBaseURL:   sharedcfg.EnvOrDefault("SOURCE_BASE_URL", DefaultSourceBaseURL),
		FetchTimeout:    fetchTimeout,
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		TopN:            topN,
		ForecastDays:    forecastDays,
		RefreshSchedule: schedule,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:      brokers,
		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "covid-country-summaries"),
		KafkaEnabled:      kafkaEnabled,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that command-line overrides may have changed after Load.
func (c *Config) Validate() error {
	if c.SourceBaseURL == "" {
		return errors.New("SOURCE_BASE_URL is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.TopN < 1 || c.TopN > MaxTopN {
		return fmt.Errorf("invalid TOP_N: must be an integer between 1 and %d", MaxTopN)
	}
	if c.ForecastDays < 1 || c.ForecastDays > MaxForecastDays {
		return fmt.Errorf("invalid FORECAST_DAYS: must be an integer between 1 and %d", MaxForecastDays)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaSummaryTopic == "" {
		return errors.New("KAFKA_SUMMARY_TOPIC is required")
	}
	return nil
}

func parseBoundedInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}
