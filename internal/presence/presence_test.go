package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendsync/internal/models"
	"friendsync/internal/store"
)

func TestSetOnlineFlipsFlag(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	u := models.UserRecord{UID: "u1", Username: "ada", CreatedAt: 1}
	require.NoError(t, st.Write(ctx, store.UserPath("u1"), u.Value()))

	tr := New(st)
	require.NoError(t, tr.SetOnline(ctx, "u1", true))

	snap, err := st.Get(ctx, store.UserPath("u1"))
	require.NoError(t, err)
	user, ok := models.UserFromValue("u1", snap.Value)
	require.True(t, ok)
	assert.True(t, user.IsOnline)
	assert.Equal(t, "ada", user.Username, "presence update must not touch other fields")
}

func TestSetOfflineStampsLastSeen(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	u := models.UserRecord{UID: "u1", Username: "ada", CreatedAt: 1, IsOnline: true}
	require.NoError(t, st.Write(ctx, store.UserPath("u1"), u.Value()))

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := New(st)
	tr.now = func() time.Time { return at }

	require.NoError(t, tr.SetOnline(ctx, "u1", false))

	snap, err := st.Get(ctx, store.UserPath("u1"))
	require.NoError(t, err)
	user, ok := models.UserFromValue("u1", snap.Value)
	require.True(t, ok)
	assert.False(t, user.IsOnline)
	assert.Equal(t, at.UnixMilli(), user.LastSeenAt)
}
