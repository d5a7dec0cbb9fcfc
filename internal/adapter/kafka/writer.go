package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/config"
	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventType identifies the completion event.
const EventType = "frame_cache.generated"

// Event is the payload published once per written frame cache. It describes
// the artifact, not its frames.
type Event struct {
	Type             string    `json:"type"`
	GeneratedAt      time.Time `json:"generated_at"`
	FrameCount       int       `json:"frame_count"`
	StationOrder     []string  `json:"station_order"`
	Locations        []string  `json:"locations"`
	Bytes            int       `json:"bytes"`
	SHA256           string    `json:"sha256"`
	NonFiniteCoerced int       `json:"nonfinite_coerced"`
}

// Notifier publishes completion events to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured event topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes one event describing cache and the written artifact.
func (n *Notifier) Notify(ctx context.Context, cache domain.FrameCache, report domain.ExportReport) error {
	msg, err := serializeToMessage(newEvent(cache, report))
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish completion event: %w", err)
	}
	n.logger.Info("completion event published", "topic", n.writer.Topic, "sha256", report.SHA256)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

func newEvent(cache domain.FrameCache, report domain.ExportReport) Event {
	return Event{
		Type:             EventType,
		GeneratedAt:      cache.GeneratedAt.UTC(),
		FrameCount:       cache.FrameCount(),
		StationOrder:     cache.StationOrder,
		Locations:        report.Locations,
		Bytes:            report.Bytes,
		SHA256:           report.SHA256,
		NonFiniteCoerced: report.NonFiniteCoerced,
	}
}

// serializeToMessage marshals an Event into a Kafka message keyed by the
// artifact digest, so re-runs producing the same bytes share a key.
func serializeToMessage(event Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize completion event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SHA256),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "generated_at", Value: []byte(event.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
