package push

import (
	"context"
	"encoding/json"
	"fmt"

	"friendsync/internal/kafka"
)

// Publisher publishes fan-out events to the notifications topic. A nil
// Publisher is valid and drops events, so callers on the write path can stay
// unconditional.
type Publisher struct {
	producer kafka.MessageProducer
	topic    string
}

// NewPublisher creates a Publisher over an existing producer.
func NewPublisher(producer kafka.MessageProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish sends one event, keyed by recipient so per-user ordering is kept
// within a partition.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.producer == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling push event: %w", err)
	}
	return p.producer.SendMessage(ctx, p.topic, []byte(event.ToUserID), payload)
}
