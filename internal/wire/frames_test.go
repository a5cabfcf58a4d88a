package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendsync/internal/graph"
	"friendsync/internal/models"
	"friendsync/internal/session"
)

func TestFromUpdateCarriesOnlyTheMatchingField(t *testing.T) {
	friends := []*models.UserRecord{{UID: "u2", Username: "grace"}}
	frame := FromUpdate(session.Update{Kind: session.KindFriends, Friends: friends})

	assert.Equal(t, "friends", frame.Type)
	assert.Equal(t, friends, frame.Friends)
	assert.Nil(t, frame.Messages)
	assert.Empty(t, frame.Error)
}

func TestFromUpdateCandidatesFrameCarriesPendingMarks(t *testing.T) {
	candidates := []graph.Candidate{{User: &models.UserRecord{UID: "u2", Username: "grace"}, RequestPending: true}}
	frame := FromUpdate(session.Update{Kind: session.KindCandidates, Candidates: candidates})

	assert.Equal(t, "candidates", frame.Type)
	assert.Equal(t, candidates, frame.Candidates)

	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	entry := decoded["candidates"].([]any)[0].(map[string]any)
	assert.Equal(t, true, entry["requestPending"])
}

func TestFromUpdateErrorFrame(t *testing.T) {
	frame := FromUpdate(session.Update{Kind: session.KindError, Err: "boom"})

	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "boom", frame.Error)
}

func TestServerFrameJSONOmitsEmptyCollections(t *testing.T) {
	payload, err := json.Marshal(FromUpdate(session.Update{
		Kind:     session.KindMessages,
		Messages: []models.Message{{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "hi"}},
	}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "messages", decoded["type"])
	assert.Contains(t, decoded, "messages")
	assert.NotContains(t, decoded, "friends")
	assert.NotContains(t, decoded, "notifications")
	assert.NotContains(t, decoded, "error")
}

func TestClientFrameDecoding(t *testing.T) {
	var frame ClientFrame
	require.NoError(t, json.Unmarshal([]byte(`{"op":"send_message","receiverId":"u2","content":"hi"}`), &frame))
	assert.Equal(t, OpSendMessage, frame.Op)
	assert.Equal(t, "u2", frame.ReceiverID)
	assert.Equal(t, "hi", frame.Content)
}
