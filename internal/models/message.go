package models

import "sort"

// Message is a direct message as stored under messages/{messageId}. Records
// are immutable once created and never deleted. SenderName and
// SenderProfilePicture are snapshotted from the sender's profile at send
// time, not live-joined.
type Message struct {
	ID                   string `json:"id"`
	SenderID             string `json:"senderId"`
	ReceiverID           string `json:"receiverId"`
	Content              string `json:"content"`
	Timestamp            int64  `json:"timestamp"`
	SenderName           string `json:"senderName,omitempty"`
	SenderProfilePicture string `json:"senderProfilePicture,omitempty"`
}

// MessageFromValue decodes one messages/{id} child value.
func MessageFromValue(id string, value any) (Message, bool) {
	m, ok := asMap(value)
	if !ok {
		return Message{}, false
	}
	msg := Message{
		ID:                   id,
		SenderID:             asString(m, "senderId"),
		ReceiverID:           asString(m, "receiverId"),
		Content:              asString(m, "content"),
		Timestamp:            asInt64(m, "timestamp"),
		SenderName:           asString(m, "senderName"),
		SenderProfilePicture: asString(m, "senderProfilePicture"),
	}
	if mid := asString(m, "id"); mid != "" {
		msg.ID = mid
	}
	return msg, true
}

// Value encodes the message for a store write.
func (m Message) Value() map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"senderId":   m.SenderID,
		"receiverId": m.ReceiverID,
		"content":    m.Content,
		"timestamp":  m.Timestamp,
	}
	if m.SenderName != "" {
		out["senderName"] = m.SenderName
	}
	if m.SenderProfilePicture != "" {
		out["senderProfilePicture"] = m.SenderProfilePicture
	}
	return out
}

// SortMessages orders messages by timestamp ascending, breaking ties by
// lexical id compare. Ids are lexically monotonic, so the result is a total,
// stable order.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
}
