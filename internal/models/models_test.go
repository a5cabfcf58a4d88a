package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFromValueRoundTrip(t *testing.T) {
	u := &UserRecord{
		UID:       "u1",
		Email:     "ada@example.com",
		Username:  "ada",
		FullName:  "Ada Lovelace",
		CreatedAt: 1700000000000,
		IsOnline:  true,
	}

	decoded, ok := UserFromValue("u1", u.Value())
	require.True(t, ok)
	assert.Equal(t, u, decoded)
}

func TestUserFromValueRejectsNonRecords(t *testing.T) {
	_, ok := UserFromValue("u1", nil)
	assert.False(t, ok)

	_, ok = UserFromValue("u1", "scalar")
	assert.False(t, ok)
}

func TestUserFromValueToleratesJSONNumbers(t *testing.T) {
	// Values that crossed a JSON boundary carry float64 numbers.
	decoded, ok := UserFromValue("u1", map[string]any{
		"username":  "ada",
		"createdAt": float64(1700000000000),
	})
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), decoded.CreatedAt)
}

func TestFriendRequestsFromValue(t *testing.T) {
	reqs := FriendRequestsFromValue(map[string]any{
		"u2": map[string]any{"fromUserId": "u2", "status": "pending", "timestamp": int64(10)},
		"u3": map[string]any{"fromUserId": "u3", "status": "pending", "timestamp": int64(20)},
		"x":  "garbage",
	})

	require.Len(t, reqs, 2)
	assert.Equal(t, "u2", reqs["u2"].FromUserID)
	assert.Equal(t, int64(20), reqs["u3"].Timestamp)
}

func TestSortMessagesOrdersByTimestampThenID(t *testing.T) {
	msgs := []Message{
		{ID: "m3", Timestamp: 20},
		{ID: "m2", Timestamp: 10},
		{ID: "m1", Timestamp: 10},
	}

	SortMessages(msgs)

	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestNotificationValueRoundTrip(t *testing.T) {
	n := Notification{
		ID:           "n1",
		Type:         NotificationTypeNewMessage,
		FromUserID:   "u2",
		FromUsername: "grace",
		Content:      "hello",
		Timestamp:    42,
		IsRead:       true,
	}

	decoded, ok := NotificationFromValue("n1", n.Value())
	require.True(t, ok)
	assert.Equal(t, n, decoded)
}
