package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes committed wallet events to the event topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, eventType string, payload []byte) error
	Close() error
}

// DeadLetterPublisher handles publishing rejected commands to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string, code string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
