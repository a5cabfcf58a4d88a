// Package messagebus manages the messages subtree: sending direct messages
// and deriving per-user conversation views from whole-subtree snapshots.
package messagebus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"friendsync/internal/directory"
	"friendsync/internal/models"
	"friendsync/internal/push"
	"friendsync/internal/store"
)

// ErrEmptyContent rejects a send whose content is empty after trimming; no
// store write happens.
var ErrEmptyContent = errors.New("message content must not be empty")

// MessageBus sends messages and streams conversation views.
type MessageBus struct {
	store     store.Store
	directory *directory.Directory
	fanout    *push.Publisher
	retry     store.RetryPolicy
	now       func() time.Time
}

// NewMessageBus creates a MessageBus. fanout may be nil when no push pipeline
// is configured.
func NewMessageBus(st store.Store, dir *directory.Directory, fanout *push.Publisher, retry store.RetryPolicy) *MessageBus {
	return &MessageBus{
		store:     st,
		directory: dir,
		fanout:    fanout,
		retry:     retry,
		now:       time.Now,
	}
}

// Send writes one immutable message record and emits a new_message
// notification for the receiver. The sender's display name and avatar are
// snapshotted into the record at send time. The message id comes from the
// store's key generator, so ids are lexically monotonic and the write is
// idempotent under retry.
func (b *MessageBus) Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	senderName, senderPicture := "", ""
	if sender, err := b.directory.GetUser(ctx, senderID); err == nil {
		senderName = sender.Username
		senderPicture = sender.ProfilePicture
	} else if !errors.Is(err, directory.ErrUserNotFound) {
		return nil, fmt.Errorf("resolving sender %s: %w", senderID, err)
	}

	msg := models.Message{
		ID:                   b.store.NewKey(),
		SenderID:             senderID,
		ReceiverID:           receiverID,
		Content:              content,
		Timestamp:            b.now().UnixMilli(),
		SenderName:           senderName,
		SenderProfilePicture: senderPicture,
	}
	if err := b.retry.Do(ctx, func() error {
		return b.store.Write(ctx, store.MessagePath(msg.ID), msg.Value())
	}); err != nil {
		return nil, fmt.Errorf("writing message %s: %w", msg.ID, err)
	}

	b.emitMessageNotification(ctx, msg)
	return &msg, nil
}

// emitMessageNotification writes the new_message notification record under
// the receiver and publishes the push fan-out event. Fire-and-forget: the
// message record itself is already durable.
func (b *MessageBus) emitMessageNotification(ctx context.Context, msg models.Message) {
	n := models.Notification{
		Type:         models.NotificationTypeNewMessage,
		FromUserID:   msg.SenderID,
		FromUsername: msg.SenderName,
		Content:      msg.Content,
		Timestamp:    msg.Timestamp,
		IsRead:       false,
	}
	notifPath := store.NotificationPath(msg.ReceiverID, uuid.NewString())
	if err := b.store.Write(ctx, notifPath, n.Value()); err != nil {
		log.Printf("messagebus: writing new_message notification for %s failed: %v", msg.ReceiverID, err)
	}

	if err := b.fanout.Publish(ctx, push.Event{
		Type:         models.NotificationTypeNewMessage,
		ToUserID:     msg.ReceiverID,
		FromUserID:   msg.SenderID,
		FromUsername: msg.SenderName,
		Content:      msg.Content,
		Timestamp:    msg.Timestamp,
	}); err != nil {
		log.Printf("messagebus: publishing new_message fan-out for %s failed: %v", msg.ReceiverID, err)
	}
}

// MessagesSubscription streams the cumulative, chronologically ordered
// conversation set visible to one user.
type MessagesSubscription struct {
	sub *store.Subscription
	out chan []models.Message
}

// Messages returns the stream of full, totally ordered message sets.
func (s *MessagesSubscription) Messages() <-chan []models.Message { return s.out }

// Cancel detaches the subscription.
func (s *MessagesSubscription) Cancel() { s.sub.Cancel() }

// Subscribe observes the whole messages subtree and filters every snapshot to
// records the user sent or received, ordered by timestamp with lexical id
// tie-break.
//
// Filtering on every snapshot costs O(total message count) per update
// system-wide. That matches what the store's whole-subtree push already
// costs; a store with per-user indexes would warrant subscribing to those
// instead.
func (b *MessageBus) Subscribe(uid string) *MessagesSubscription {
	return b.subscribeFiltered(func(m models.Message) bool {
		return m.SenderID == uid || m.ReceiverID == uid
	})
}

// SubscribeConversation observes the message stream between uid and one peer.
func (b *MessageBus) SubscribeConversation(uid, peerID string) *MessagesSubscription {
	return b.subscribeFiltered(func(m models.Message) bool {
		return (m.SenderID == uid && m.ReceiverID == peerID) ||
			(m.SenderID == peerID && m.ReceiverID == uid)
	})
}

func (b *MessageBus) subscribeFiltered(keep func(models.Message) bool) *MessagesSubscription {
	sub := b.store.Subscribe(store.MessagesRoot)
	out := make(chan []models.Message, 1)
	ms := &MessagesSubscription{sub: sub, out: out}

	go func() {
		defer close(out)
		for snap := range sub.Snapshots() {
			msgs := decodeMessages(snap, keep)
			select {
			case out <- msgs:
			case <-sub.Done():
				return
			}
		}
	}()
	return ms
}

func decodeMessages(snap store.Snapshot, keep func(models.Message) bool) []models.Message {
	children := snap.Children()
	msgs := make([]models.Message, 0, len(children))
	for id, value := range children {
		msg, ok := models.MessageFromValue(id, value)
		if !ok {
			log.Printf("messagebus: skipping malformed message record at %s", store.MessagePath(id))
			continue
		}
		if keep(msg) {
			msgs = append(msgs, msg)
		}
	}
	models.SortMessages(msgs)
	return msgs
}
