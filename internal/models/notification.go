package models

// Notification types. friend_request records are deleted on accept, reject,
// or dismiss; new_message records persist and are only ever marked read.
const (
	NotificationTypeFriendRequest = "friend_request"
	NotificationTypeNewMessage    = "new_message"
)

// Notification is a feed entry as stored under
// notifications/{uid}/{notificationId}.
type Notification struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	FromUserID   string `json:"fromUserId"`
	FromUsername string `json:"fromUsername,omitempty"`
	Content      string `json:"content,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	IsRead       bool   `json:"isRead"`
}

// NotificationFromValue decodes one notifications/{uid}/{id} child value.
func NotificationFromValue(id string, value any) (Notification, bool) {
	m, ok := asMap(value)
	if !ok {
		return Notification{}, false
	}
	return Notification{
		ID:           id,
		Type:         asString(m, "type"),
		FromUserID:   asString(m, "fromUserId"),
		FromUsername: asString(m, "fromUsername"),
		Content:      asString(m, "content"),
		Timestamp:    asInt64(m, "timestamp"),
		IsRead:       asBool(m, "isRead"),
	}, true
}

// NotificationsFromValue decodes a whole notifications/{uid} subtree.
func NotificationsFromValue(value any) map[string]Notification {
	children, ok := asMap(value)
	if !ok {
		return map[string]Notification{}
	}
	out := make(map[string]Notification, len(children))
	for id, child := range children {
		if n, ok := NotificationFromValue(id, child); ok {
			out[id] = n
		}
	}
	return out
}

// Value encodes the notification for a store write.
func (n Notification) Value() map[string]any {
	m := map[string]any{
		"type":       n.Type,
		"fromUserId": n.FromUserID,
		"timestamp":  n.Timestamp,
		"isRead":     n.IsRead,
	}
	if n.FromUsername != "" {
		m["fromUsername"] = n.FromUsername
	}
	if n.Content != "" {
		m["content"] = n.Content
	}
	return m
}
