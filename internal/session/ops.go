package session

import (
	"context"

	"friendsync/internal/graph"
	"friendsync/internal/models"
)

// The op methods are the client-action surface of a session. Each failure is
// recorded as the session's single most-recent error and published as an
// error update; the consumer clears it explicitly before the next action.

// SendMessage sends a direct message from the session user.
func (s *Session) SendMessage(ctx context.Context, receiverID, content string) (*models.Message, error) {
	msg, err := s.bus.Send(ctx, s.userID, receiverID, content)
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return msg, nil
}

// SendFriendRequest sends a friend request from the session user.
func (s *Session) SendFriendRequest(ctx context.Context, toID string) error {
	if err := s.graph.SendRequest(ctx, s.userID, toID); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// AcceptRequest accepts a pending request received by the session user.
func (s *Session) AcceptRequest(ctx context.Context, fromID string) error {
	if err := s.graph.AcceptRequest(ctx, s.userID, fromID); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// RejectRequest rejects a pending request received by the session user.
func (s *Session) RejectRequest(ctx context.Context, fromID string) error {
	if err := s.graph.RejectRequest(ctx, s.userID, fromID); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// MarkRead marks one notification entry read.
func (s *Session) MarkRead(ctx context.Context, notificationID string) {
	s.notify.MarkAsRead(ctx, s.userID, notificationID)
}

// Dismiss removes one notification entry from the feed.
func (s *Session) Dismiss(ctx context.Context, notificationID string) {
	s.notify.Dismiss(ctx, s.userID, notificationID)
}

// LastError returns the most recent operation error, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError discards the recorded error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// setError replaces the session's error state and publishes an error update.
// The send happens under the session lock so it cannot race Close closing the
// stream.
func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if s.closed {
		return
	}
	select {
	case s.out <- Update{Kind: KindError, Err: err.Error()}:
	default:
	}
}

// Friends returns the cached friend set.
func (s *Session) Friends() []*models.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friends
}

// Requests returns the cached pending-request set.
func (s *Session) Requests() map[string]models.FriendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Candidates returns the cached candidate set, pending marks included.
func (s *Session) Candidates() []graph.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates
}

// Messages returns the cached ordered message set.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// FeedEntries returns the cached notification entries.
func (s *Session) FeedEntries() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// Profile returns the cached profile record.
func (s *Session) Profile() *models.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}
