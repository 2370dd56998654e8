package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every event as JSON to one topic. Messages are
// keyed by symbol, or by account for events without one, so a symbol's
// events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaWriter builds the writer used by the sink. The writer is
// asynchronous: WriteMessages returns once messages are queued for the
// next batch instead of waiting out BatchTimeout and the broker ack, so
// the dispatcher keeps draining. Failed batches are logged.
func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "kafka"))

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
	})
	w.Async = true
	w.Completion = func(msgs []kafka.Message, err error) {
		if err != nil {
			logger.Warn("kafka batch failed", zap.Int("messages", len(msgs)), zap.Error(err))
		}
	}
	return w
}

func NewKafkaSink(w messageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, e domain.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := e.Symbol
	if key == "" {
		key = e.AccountID
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Kind)},
		},
	})
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
