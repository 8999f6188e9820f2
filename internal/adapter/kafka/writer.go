// Package kafka publishes classified observation snapshots to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/config"
	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one load's snapshots and writes them in a single
// WriteMessages call. Messages are keyed by station so a station's reports
// stay ordered within a partition.
func (w *Writer) Publish(ctx context.Context, source, loadID string, snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snaps))
	for i := range snaps {
		msg, err := serializeToMessage(source, loadID, snaps[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("snapshots published", "source", source, "load_id", loadID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(source, loadID string, snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation %s: %w", snap.StationID, err)
	}
	severity := snap.Severity.String()
	if severity == "" {
		severity = "none"
	}
	return kafkago.Message{
		Key:   []byte(snap.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(snap.Kind)},
			{Key: "severity", Value: []byte(severity)},
			{Key: "source", Value: []byte(source)},
			{Key: "load_id", Value: []byte(loadID)},
			{Key: "valid_from", Value: []byte(snap.ValidFrom.Format(time.RFC3339))},
		},
	}, nil
}
