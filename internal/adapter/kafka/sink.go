package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Sink publishes one JSON audit record per tick to a Kafka topic, keyed by
// station so a station's records stay ordered within a partition.
type Sink struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewSink creates a Kafka producer for the audit topic.
func NewSink(brokers []string, topic string, logger *slog.Logger) *Sink {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Sink{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "kafka" }

// Write publishes rec.
func (s *Sink) Write(ctx context.Context, rec domain.AuditRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, msg)
}

func (s *Sink) Close() error {
	s.logger.Info("closing kafka sink", "topic", s.writer.Topic)
	return s.writer.Close()
}

// serializeToMessage marshals an AuditRecord into a Kafka message.
func serializeToMessage(rec domain.AuditRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.StationID),
		Value: data,
		Time:  rec.Timestamp,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(rec.EventType)},
			{Key: "tick", Value: []byte(strconv.FormatUint(rec.Tick, 10))},
			{Key: "physics_risk", Value: []byte(rec.PhysicsRisk)},
		},
	}, nil
}
