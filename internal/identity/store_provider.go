package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"friendsync/internal/models"
	"friendsync/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords,
	// so a caller cannot probe which emails are registered.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by SignUp for an already registered email.
	ErrEmailTaken = errors.New("email is already registered")
)

// StoreProvider is a Provider backed by the shared store: credential records
// live under credentials/{emailKey} and profiles under users/{uid}. Password
// hashes use bcrypt.
type StoreProvider struct {
	store store.Store
	now   func() time.Time
}

// NewStoreProvider creates a StoreProvider.
func NewStoreProvider(st store.Store) *StoreProvider {
	return &StoreProvider{store: st, now: time.Now}
}

// CurrentUserID implements Provider. The gateway carries identity in the
// session token, not the context, so there is never an ambient user here.
func (p *StoreProvider) CurrentUserID(context.Context) (string, bool) {
	return "", false
}

// SignIn exchanges credentials for the registered user id.
func (p *StoreProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	snap, err := p.store.Get(ctx, store.CredentialPath(store.EncodeEmailKey(email)))
	if err != nil {
		return "", fmt.Errorf("reading credentials: %w", err)
	}
	record, ok := snap.Value.(map[string]any)
	if !ok {
		return "", ErrInvalidCredentials
	}
	uid, _ := record["uid"].(string)
	hash, _ := record["passwordHash"].(string)
	if uid == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return uid, nil
}

// SignUp registers new credentials, creates the profile record, and returns
// the new user id.
func (p *StoreProvider) SignUp(ctx context.Context, email, username, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	credPath := store.CredentialPath(store.EncodeEmailKey(email))
	existing, err := p.store.Get(ctx, credPath)
	if err != nil {
		return "", fmt.Errorf("checking credentials: %w", err)
	}
	if existing.Exists() {
		return "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	uid := p.store.NewKey()
	profile := models.UserRecord{
		UID:       uid,
		Email:     email,
		Username:  username,
		CreatedAt: p.now().UnixMilli(),
	}
	if err := p.store.Write(ctx, store.UserPath(uid), profile.Value()); err != nil {
		return "", fmt.Errorf("writing profile: %w", err)
	}
	if err := p.store.Write(ctx, credPath, map[string]any{
		"uid":          uid,
		"passwordHash": string(hash),
	}); err != nil {
		return "", fmt.Errorf("writing credentials: %w", err)
	}
	return uid, nil
}
