package kafkahandlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"friendsync/internal/push"
)

// NotificationFanoutLogic consumes fan-out events from the notifications
// topic and drives the platform push transport: resolve the recipient's
// device token, then deliver.
type NotificationFanoutLogic struct {
	tokens    *push.TokenRegistry
	transport push.Transport
}

// NewNotificationFanoutLogic creates the fan-out handler.
func NewNotificationFanoutLogic(tokens *push.TokenRegistry, transport push.Transport) *NotificationFanoutLogic {
	if tokens == nil || transport == nil {
		log.Panic("NotificationFanoutLogic requires a token registry and a transport")
	}
	return &NotificationFanoutLogic{tokens: tokens, transport: transport}
}

// HandleEvent is the MessageHandler passed to the Kafka consumer. Malformed
// payloads are skipped (offset committed); transient failures are returned so
// the message is retried.
func (h *NotificationFanoutLogic) HandleEvent(ctx context.Context, msg *kafka.Message) error {
	var event push.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("push worker: skipping malformed event at offset %v: %v", msg.TopicPartition.Offset, err)
		return nil
	}
	if event.ToUserID == "" {
		log.Printf("push worker: skipping event without recipient at offset %v", msg.TopicPartition.Offset)
		return nil
	}

	token, err := h.tokens.Token(ctx, event.ToUserID)
	if err != nil {
		return err // retryable
	}
	if token == "" {
		// No registered device; nothing to deliver.
		return nil
	}

	if err := h.transport.Deliver(ctx, token, event.Title(), event.Body(), event.Data()); err != nil {
		log.Printf("push worker: delivery to user %s failed: %v", event.ToUserID, err)
		return err
	}
	return nil
}
