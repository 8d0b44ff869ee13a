package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "event-type"

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds an async writer hashing by key, so events about one
// seat or user keep their order within a partition.
func NewKafkaWriter(brokers []string, topic string, logger *zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error().Str("topic", topic).Msg(fmt.Sprintf(msg, args...))
		}),
	}
}

// KafkaSink forwards bus events to a Kafka topic.
type KafkaSink struct {
	writer  MessageWriter
	logger  *zerolog.Logger
	timeout time.Duration
}

func NewKafkaSink(writer MessageWriter, logger *zerolog.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger, timeout: 5 * time.Second}
}

// Attach subscribes the sink to every event on bus.
func (s *KafkaSink) Attach(bus *EventBus) {
	bus.SubscribeAll(s.Handle)
}

func (s *KafkaSink) Handle(event *Event) error {
	key := event.Key
	if key == "" {
		key = event.Type
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   event.Payload,
		Time:    event.CreatedAt,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(event.Type)}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type).Str("key", key).Msg("kafka publish failed")
		return fmt.Errorf("write %s to kafka: %w", event.Type, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
