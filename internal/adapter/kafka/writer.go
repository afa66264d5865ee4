package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-trends/internal/config"
	"github.com/couchcryptid/covid-trends/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every summary message.
const (
	HeaderRunID       = "run_id"
	HeaderGeneratedAt = "generated_at"
)

// SummaryMessage is the JSON value of one published country summary.
// RecoveryRate is null when the rate is not finite.
type SummaryMessage struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Country      string    `json:"country"`
	Confirmed    *int64    `json:"confirmed"`
	Deaths       *int64    `json:"deaths"`
	Recovered    *int64    `json:"recovered"`
	RecoveryRate *float64  `json:"recovery_rate"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes country summaries to a Kafka topic.
// It implements pipeline.SummaryLoader.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured summary topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSummaryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaSummaryTopic, logger: logger}
}

// LoadBatch publishes every summary of one run in a single WriteMessages call.
// Messages are keyed by country so a country's history stays on one partition.
func (w *Writer) LoadBatch(ctx context.Context, runID string, generatedAt time.Time, summaries []domain.CountrySummary) error {
	if len(summaries) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(summaries))
	for i := range summaries {
		msg, err := serializeToMessage(runID, generatedAt, summaries[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d summaries to %s: %w", len(msgs), w.topic, err)
	}
	w.logger.Info("summaries published", "topic", w.topic, "run_id", runID, "count", len(msgs))
	return nil
}

// Close flushes pending messages and releases the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// NewSummaryMessage converts a summary into its published form.
func NewSummaryMessage(runID string, generatedAt time.Time, s domain.CountrySummary) SummaryMessage {
	m := SummaryMessage{
		RunID:       runID,
		GeneratedAt: generatedAt.UTC(),
		Country:     s.Country,
		Confirmed:   s.Confirmed,
		Deaths:      s.Deaths,
		Recovered:   s.Recovered,
	}
	if s.HasFiniteRate() {
		rate := s.RecoveryRate
		m.RecoveryRate = &rate
	}
	return m
}

func serializeToMessage(runID string, generatedAt time.Time, s domain.CountrySummary) (kafkago.Message, error) {
	data, err := json.Marshal(NewSummaryMessage(runID, generatedAt, s))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize summary for %s: %w", s.Country, err)
	}
	return kafkago.Message{
		Key:   []byte(s.Country),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderRunID, Value: []byte(runID)},
			{Key: HeaderGeneratedAt, Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
