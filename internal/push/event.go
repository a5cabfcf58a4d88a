package push

// Event is the fan-out payload published to the notifications topic whenever
// a friend request or message produces a notification record. The push worker
// consumes it and drives the platform transport.
type Event struct {
	Type         string `json:"type"`
	ToUserID     string `json:"toUserId"`
	FromUserID   string `json:"fromUserId"`
	FromUsername string `json:"fromUsername,omitempty"`
	Content      string `json:"content,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Title derives the platform notification title.
func (e Event) Title() string {
	switch e.Type {
	case "new_message":
		if e.FromUsername != "" {
			return e.FromUsername
		}
		return "New message"
	case "friend_request":
		return "New friend request"
	default:
		return "Notification"
	}
}

// Body derives the platform notification body.
func (e Event) Body() string {
	switch e.Type {
	case "new_message":
		return e.Content
	case "friend_request":
		if e.FromUsername != "" {
			return e.FromUsername + " sent you a friend request"
		}
		return "You have a new friend request"
	default:
		return ""
	}
}

// Data derives the opaque data payload attached to the platform notification.
func (e Event) Data() map[string]string {
	return map[string]string{
		"type":       e.Type,
		"senderId":   e.FromUserID,
		"senderName": e.FromUsername,
	}
}
