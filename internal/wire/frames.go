// Package wire defines the JSON frames exchanged between the sync gateway
// and connected clients.
package wire

import (
	"friendsync/internal/graph"
	"friendsync/internal/models"
	"friendsync/internal/notify"
	"friendsync/internal/session"
)

// Client op codes.
const (
	OpSendMessage   = "send_message"
	OpFriendRequest = "friend_request"
	OpAcceptRequest = "accept_request"
	OpRejectRequest = "reject_request"
	OpMarkRead      = "mark_read"
	OpDismiss       = "dismiss"
	OpClearError    = "clear_error"
)

// ClientFrame is one inbound client action. Op selects which of the other
// fields are meaningful.
type ClientFrame struct {
	Op             string `json:"op"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Content        string `json:"content,omitempty"`
	UserID         string `json:"userId,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
}

// ServerFrame is one outbound state push. Type mirrors the session update
// kind; every carried collection is a full replacement of the client's
// previous state for that subtree, never a delta.
type ServerFrame struct {
	Type       string                          `json:"type"`
	Friends    []*models.UserRecord            `json:"friends,omitempty"`
	Requests   map[string]models.FriendRequest `json:"requests,omitempty"`
	Candidates []graph.Candidate               `json:"candidates,omitempty"`
	Messages   []models.Message                `json:"messages,omitempty"`
	Entries    []models.Notification           `json:"notifications,omitempty"`
	Feed       *notify.Feed                    `json:"feed,omitempty"`
	Profile    *models.UserRecord              `json:"profile,omitempty"`
	Error      string                          `json:"error,omitempty"`
}

// FromUpdate converts a session update into its outbound frame.
func FromUpdate(u session.Update) ServerFrame {
	frame := ServerFrame{Type: string(u.Kind)}
	switch u.Kind {
	case session.KindFriends:
		frame.Friends = u.Friends
	case session.KindRequests:
		frame.Requests = u.Requests
	case session.KindCandidates:
		frame.Candidates = u.Candidates
	case session.KindMessages:
		frame.Messages = u.Messages
	case session.KindFeed:
		frame.Entries = u.Entries
		feed := u.Feed
		frame.Feed = &feed
	case session.KindProfile:
		frame.Profile = u.Profile
	case session.KindError:
		frame.Error = u.Err
	}
	return frame
}
