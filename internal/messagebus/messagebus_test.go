package messagebus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendsync/internal/directory"
	"friendsync/internal/models"
	"friendsync/internal/store"
)

func newTestBus(t *testing.T) (*MessageBus, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	bus := NewMessageBus(st, directory.New(st), nil, store.RetryPolicy{Attempts: 1})
	return bus, st
}

func seedUser(t *testing.T, st *store.Memory, uid, username, picture string) {
	t.Helper()
	u := models.UserRecord{UID: uid, Username: username, ProfilePicture: picture, CreatedAt: 1}
	require.NoError(t, st.Write(context.Background(), store.UserPath(uid), u.Value()))
}

func TestSendWritesImmutableRecordWithSenderSnapshot(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "pic.png")
	seedUser(t, st, "bob", "bob", "")

	msg, err := bus.Send(ctx, "alice", "bob", "  hello bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", msg.Content, "content is trimmed")
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, "pic.png", msg.SenderProfilePicture)
	assert.NotZero(t, msg.Timestamp)

	snap, err := st.Get(ctx, store.MessagePath(msg.ID))
	require.NoError(t, err)
	stored, ok := models.MessageFromValue(msg.ID, snap.Value)
	require.True(t, ok)
	assert.Equal(t, *msg, stored)

	// Renaming the sender afterwards must not rewrite the stored snapshot.
	require.NoError(t, st.Update(ctx, store.UserPath("alice"), map[string]any{"username": "renamed"}))
	snap, err = st.Get(ctx, store.MessagePath(msg.ID))
	require.NoError(t, err)
	stored, _ = models.MessageFromValue(msg.ID, snap.Value)
	assert.Equal(t, "alice", stored.SenderName)
}

func TestSendEmptyContentWritesNothing(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "")

	_, err := bus.Send(ctx, "alice", "bob", "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	snap, err := st.Get(ctx, store.MessagesRoot)
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "no message record may exist")
	snap, err = st.Get(ctx, store.NotificationsPath("bob"))
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "no notification may exist")
}

func TestSendEmitsNewMessageNotification(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "")
	seedUser(t, st, "bob", "bob", "")

	msg, err := bus.Send(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	snap, err := st.Get(ctx, store.NotificationsPath("bob"))
	require.NoError(t, err)
	notifs := models.NotificationsFromValue(snap.Value)
	require.Len(t, notifs, 1)
	for _, n := range notifs {
		assert.Equal(t, models.NotificationTypeNewMessage, n.Type)
		assert.Equal(t, "alice", n.FromUserID)
		assert.Equal(t, "hi", n.Content)
		assert.Equal(t, msg.Timestamp, n.Timestamp)
		assert.False(t, n.IsRead)
	}
}

func TestSendFromUnknownSenderStillDelivers(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()

	msg, err := bus.Send(ctx, "ghost", "bob", "boo")
	require.NoError(t, err)
	assert.Empty(t, msg.SenderName)

	snap, err := st.Get(ctx, store.MessagePath(msg.ID))
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestSubscribeStreamsOrderedConversationSets(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "")
	seedUser(t, st, "bob", "bob", "")
	seedUser(t, st, "carol", "carol", "")

	// Fixed clock: every message carries the same timestamp, so ordering
	// falls back to the lexically monotonic ids.
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return at }

	first, err := bus.Send(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	second, err := bus.Send(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	// Not visible to bob's view.
	_, err = bus.Send(ctx, "alice", "carol", "aside")
	require.NoError(t, err)
	third, err := bus.Send(ctx, "alice", "bob", "three")
	require.NoError(t, err)

	sub := bus.Subscribe("bob")
	defer sub.Cancel()

	msgs := nextMessages(t, sub)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, []string{"one", "two", "three"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestSubscribeConversationFiltersToOnePeer(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "")
	seedUser(t, st, "bob", "bob", "")
	seedUser(t, st, "carol", "carol", "")

	_, err := bus.Send(ctx, "alice", "bob", "to bob")
	require.NoError(t, err)
	_, err = bus.Send(ctx, "carol", "alice", "from carol")
	require.NoError(t, err)

	sub := bus.SubscribeConversation("alice", "bob")
	defer sub.Cancel()

	msgs := nextMessages(t, sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, "to bob", msgs[0].Content)
}

func TestSubscribeGrowsCumulatively(t *testing.T) {
	bus, st := newTestBus(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice", "")
	seedUser(t, st, "bob", "bob", "")

	sub := bus.Subscribe("bob")
	defer sub.Cancel()
	assert.Empty(t, nextMessages(t, sub))

	_, err := bus.Send(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	msgs := nextMessages(t, sub)
	for len(msgs) != 1 {
		msgs = nextMessages(t, sub)
	}

	_, err = bus.Send(ctx, "alice", "bob", "two")
	require.NoError(t, err)
	for len(msgs) != 2 {
		msgs = nextMessages(t, sub)
	}
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
}

func nextMessages(t *testing.T, sub *MessagesSubscription) []models.Message {
	t.Helper()
	select {
	case msgs, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed unexpectedly")
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message set")
		return nil
	}
}
