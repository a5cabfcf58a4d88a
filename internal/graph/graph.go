// Package graph maintains the friend graph: pending friend requests and the
// mirrored friend edges, with their cross-record invariants. The store offers
// no multi-path transactions, so every mutation is an idempotent,
// order-tolerant sequence: edges are written before requests are removed, and
// a crash mid-sequence always leaves a superset state that the session
// recovery pass can heal.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"friendsync/internal/directory"
	"friendsync/internal/models"
	"friendsync/internal/push"
	"friendsync/internal/store"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrRecipientUnknown = errors.New("recipient user does not exist")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrRequestPending   = errors.New("a friend request between these users is already pending")
	// ErrGraphWriteFailed wraps store write failures on graph mutations.
	// There is no automatic retry beyond the bounded backoff policy; the
	// caller decides what to do next.
	ErrGraphWriteFailed = errors.New("graph write failed")
)

// GraphStore manages the friend_requests and friends subtrees.
type GraphStore struct {
	store     store.Store
	directory *directory.Directory
	fanout    *push.Publisher
	retry     store.RetryPolicy
	now       func() time.Time
}

// NewGraphStore creates a GraphStore. fanout may be nil when no push pipeline
// is configured.
func NewGraphStore(st store.Store, dir *directory.Directory, fanout *push.Publisher, retry store.RetryPolicy) *GraphStore {
	return &GraphStore{
		store:     st,
		directory: dir,
		fanout:    fanout,
		retry:     retry,
		now:       time.Now,
	}
}

// SendRequest records a pending friend request from fromID to toID under the
// recipient's subtree and emits a friend_request notification for the
// recipient.
//
// Preconditions: the two users are not friends and no request is pending in
// either direction. A request already pending in the same direction is
// rewritten with equal content and reported as success, so duplicate submits
// collapse to one record.
func (g *GraphStore) SendRequest(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return ErrSelfRequest
	}

	if _, err := g.directory.GetUser(ctx, toID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return ErrRecipientUnknown
		}
		return fmt.Errorf("checking recipient %s: %w", toID, err)
	}

	edge, err := g.store.Get(ctx, store.FriendEdgePath(fromID, toID))
	if err != nil {
		return fmt.Errorf("checking friendship %s/%s: %w", fromID, toID, err)
	}
	if edge.Exists() {
		return ErrAlreadyFriends
	}

	// A pending request in the reverse direction means the other user asked
	// first; the caller should accept instead of piling on a second record.
	reverse, err := g.store.Get(ctx, store.FriendRequestPath(fromID, toID))
	if err != nil {
		return fmt.Errorf("checking reverse request: %w", err)
	}
	if reverse.Exists() {
		return ErrRequestPending
	}

	requestPath := store.FriendRequestPath(toID, fromID)
	existing, err := g.store.Get(ctx, requestPath)
	if err != nil {
		return fmt.Errorf("checking existing request: %w", err)
	}
	if existing.Exists() {
		// Idempotent overwrite with the content already stored; no second
		// notification.
		if err := g.retry.Do(ctx, func() error {
			return g.store.Write(ctx, requestPath, existing.Value)
		}); err != nil {
			return errors.Join(ErrGraphWriteFailed, err)
		}
		return nil
	}

	value := map[string]any{
		"fromUserId": fromID,
		"status":     models.FriendRequestStatusPending,
		"timestamp":  store.ServerTimestamp,
	}
	if err := g.retry.Do(ctx, func() error {
		return g.store.Write(ctx, requestPath, value)
	}); err != nil {
		return errors.Join(ErrGraphWriteFailed, err)
	}

	g.emitRequestNotification(ctx, fromID, toID)
	return nil
}

// AcceptRequest turns a pending request into a mirrored friend edge.
//
// The two edge writes are commutative and individually idempotent, so they
// are issued without waiting on each other. Request removal only starts once
// both edges are confirmed: a crash mid-sequence leaves the edge present with
// a stale request still visible, which the recovery pass deletes, never a
// state where the edge is missing but the request has vanished.
func (g *GraphStore) AcceptRequest(ctx context.Context, currentUserID, fromUserID string) error {
	paths := []string{
		store.FriendEdgePath(currentUserID, fromUserID),
		store.FriendEdgePath(fromUserID, currentUserID),
	}
	errc := make(chan error, len(paths))
	for _, p := range paths {
		go func(path string) {
			errc <- g.retry.Do(ctx, func() error {
				return g.store.Write(ctx, path, true)
			})
		}(p)
	}
	var writeErr error
	for range paths {
		if err := <-errc; err != nil && writeErr == nil {
			writeErr = err
		}
	}
	if writeErr != nil {
		return errors.Join(ErrGraphWriteFailed, writeErr)
	}

	if err := g.removeRequestPair(ctx, currentUserID, fromUserID); err != nil {
		return err
	}
	g.clearRequestNotifications(ctx, currentUserID, fromUserID)
	return nil
}

// RejectRequest discards a pending request without creating an edge.
// Idempotent: rejecting an already-absent request is a no-op.
func (g *GraphStore) RejectRequest(ctx context.Context, currentUserID, fromUserID string) error {
	if err := g.removeRequestPair(ctx, currentUserID, fromUserID); err != nil {
		return err
	}
	g.clearRequestNotifications(ctx, currentUserID, fromUserID)
	return nil
}

// Reconcile is the self-healing pass run at session start: any pending
// request whose pair already has a friend edge is a leftover from an
// interrupted accept and is deleted.
func (g *GraphStore) Reconcile(ctx context.Context, uid string) error {
	snap, err := g.store.Get(ctx, store.FriendRequestsPath(uid))
	if err != nil {
		return fmt.Errorf("reading pending requests for %s: %w", uid, err)
	}
	for fromID := range models.FriendRequestsFromValue(snap.Value) {
		edge, err := g.store.Get(ctx, store.FriendEdgePath(uid, fromID))
		if err != nil {
			return fmt.Errorf("checking edge %s/%s: %w", uid, fromID, err)
		}
		if !edge.Exists() {
			continue
		}
		log.Printf("graph: healing dangling request %s -> %s (edge already present)", fromID, uid)
		if err := g.removeRequestPair(ctx, uid, fromID); err != nil {
			return err
		}
		g.clearRequestNotifications(ctx, uid, fromID)
	}
	return nil
}

// removeRequestPair deletes the request records in both directions. Both
// removals are idempotent.
func (g *GraphStore) removeRequestPair(ctx context.Context, a, b string) error {
	for _, p := range []string{store.FriendRequestPath(a, b), store.FriendRequestPath(b, a)} {
		if err := g.retry.Do(ctx, func() error {
			return g.store.Remove(ctx, p)
		}); err != nil {
			return errors.Join(ErrGraphWriteFailed, err)
		}
	}
	return nil
}

// emitRequestNotification writes the friend_request notification record and
// publishes the push fan-out event. Both are fire-and-forget: failures are
// logged, not surfaced, since the request record itself is already durable.
func (g *GraphStore) emitRequestNotification(ctx context.Context, fromID, toID string) {
	fromUsername := ""
	if sender, err := g.directory.GetUser(ctx, fromID); err == nil {
		fromUsername = sender.Username
	}

	n := models.Notification{
		Type:         models.NotificationTypeFriendRequest,
		FromUserID:   fromID,
		FromUsername: fromUsername,
		IsRead:       false,
	}
	value := n.Value()
	value["timestamp"] = store.ServerTimestamp

	notifPath := store.NotificationPath(toID, uuid.NewString())
	if err := g.store.Write(ctx, notifPath, value); err != nil {
		log.Printf("graph: writing friend_request notification for %s failed: %v", toID, err)
	}

	if err := g.fanout.Publish(ctx, push.Event{
		Type:         models.NotificationTypeFriendRequest,
		ToUserID:     toID,
		FromUserID:   fromID,
		FromUsername: fromUsername,
		Timestamp:    g.now().UnixMilli(),
	}); err != nil {
		log.Printf("graph: publishing friend_request fan-out for %s failed: %v", toID, err)
	}
}

// clearRequestNotifications deletes the recipient's friend_request
// notification records for the given sender. Best effort: the aggregator
// filters stale entries regardless.
func (g *GraphStore) clearRequestNotifications(ctx context.Context, uid, fromID string) {
	snap, err := g.store.Get(ctx, store.NotificationsPath(uid))
	if err != nil {
		log.Printf("graph: reading notifications for %s failed: %v", uid, err)
		return
	}
	for id, n := range models.NotificationsFromValue(snap.Value) {
		if n.Type != models.NotificationTypeFriendRequest || n.FromUserID != fromID {
			continue
		}
		if err := g.store.Remove(ctx, store.NotificationPath(uid, id)); err != nil {
			log.Printf("graph: removing notification %s for %s failed: %v", id, uid, err)
		}
	}
}
