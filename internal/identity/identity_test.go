package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendsync/internal/models"
	"friendsync/internal/store"
)

func TestStoreProviderSignUpAndSignIn(t *testing.T) {
	st := store.NewMemory()
	p := NewStoreProvider(st)
	ctx := context.Background()

	uid, err := p.SignUp(ctx, "Ada@Example.com", "ada", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	// The profile record exists for the directory.
	snap, err := st.Get(ctx, store.UserPath(uid))
	require.NoError(t, err)
	user, ok := models.UserFromValue(uid, snap.Value)
	require.True(t, ok)
	assert.Equal(t, "ada", user.Username)
	assert.NotZero(t, user.CreatedAt)

	// Email lookup is case-insensitive.
	got, err := p.SignIn(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, uid, got)
}

func TestStoreProviderRejectsWrongPassword(t *testing.T) {
	p := NewStoreProvider(store.NewMemory())
	ctx := context.Background()

	_, err := p.SignUp(ctx, "ada@example.com", "ada", "hunter2")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStoreProviderRejectsUnknownEmail(t *testing.T) {
	p := NewStoreProvider(store.NewMemory())

	_, err := p.SignIn(context.Background(), "nobody@example.com", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStoreProviderRejectsDuplicateEmail(t *testing.T) {
	p := NewStoreProvider(store.NewMemory())
	ctx := context.Background()

	_, err := p.SignUp(ctx, "ada@example.com", "ada", "hunter2")
	require.NoError(t, err)

	_, err = p.SignUp(ctx, "ada@example.com", "ada2", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestStoreProviderRejectsBlankFields(t *testing.T) {
	p := NewStoreProvider(store.NewMemory())

	_, err := p.SignUp(context.Background(), "", "ada", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignUp(context.Background(), "a@b.com", "", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStaticProvider(t *testing.T) {
	s := Static{UserID: "u1"}
	uid, ok := s.CurrentUserID(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)

	empty := Static{}
	_, ok = empty.CurrentUserID(context.Background())
	assert.False(t, ok)
	_, err := empty.SignIn(context.Background(), "a@b.com", "x")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
