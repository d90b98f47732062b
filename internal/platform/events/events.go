// Package events publishes resource lifecycle notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ResourceEvent describes one committed write.
type ResourceEvent struct {
	ResourceType string    `json:"resourceType"`
	Action       Action    `json:"action"`
	ID           uuid.UUID `json:"id"`
	ResourceID   string    `json:"resourceId,omitempty"`
	PatientID    string    `json:"patientId,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Publisher delivers resource events.
type Publisher interface {
	Publish(ctx context.Context, ev ResourceEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event as a JSON message keyed by document id,
// so all events of one document land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

// Writer tuning for one message per committed write. kafka-go otherwise
// holds each message for a 1s batch window.
const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 2 * time.Second
	maxAttempts  = 3
)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchSize:              1,
			BatchTimeout:           batchTimeout,
			WriteTimeout:           writeTimeout,
			MaxAttempts:            maxAttempts,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ResourceEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode resource event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "resourceType", Value: []byte(ev.ResourceType)},
			{Key: "action", Value: []byte(ev.Action)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write resource event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, ResourceEvent) error { return nil }
func (Noop) Close() error                                 { return nil }
