package models

// FriendRequestStatusPending is the only status a stored request ever holds:
// existence means pending, acceptance or rejection deletes the record.
const FriendRequestStatusPending = "pending"

// FriendRequest is a pending request as stored under
// friend_requests/{toUid}/{fromUid}.
type FriendRequest struct {
	FromUserID string `json:"fromUserId"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

// FriendRequestFromValue decodes one friend_requests/{to}/{from} child value.
func FriendRequestFromValue(fromUID string, value any) (FriendRequest, bool) {
	m, ok := asMap(value)
	if !ok {
		return FriendRequest{}, false
	}
	r := FriendRequest{
		FromUserID: fromUID,
		Status:     asString(m, "status"),
		Timestamp:  asInt64(m, "timestamp"),
	}
	if id := asString(m, "fromUserId"); id != "" {
		r.FromUserID = id
	}
	return r, true
}

// FriendRequestsFromValue decodes a whole friend_requests/{to} subtree into a
// set keyed by sender id. Every delivered snapshot is a full replacement of
// the previous set, never a delta.
func FriendRequestsFromValue(value any) map[string]FriendRequest {
	children, ok := asMap(value)
	if !ok {
		return map[string]FriendRequest{}
	}
	out := make(map[string]FriendRequest, len(children))
	for fromUID, child := range children {
		if r, ok := FriendRequestFromValue(fromUID, child); ok {
			out[fromUID] = r
		}
	}
	return out
}

// Value encodes the request for a store write.
func (r FriendRequest) Value() map[string]any {
	return map[string]any{
		"fromUserId": r.FromUserID,
		"status":     r.Status,
		"timestamp":  r.Timestamp,
	}
}
