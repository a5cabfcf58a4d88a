// Package identity declares the credential collaborator the engine consumes.
// Credential issuance and verification live outside the engine; the gateway
// only needs to resolve the current user and exchange credentials for an id.
package identity

import (
	"context"
	"errors"
)

// ErrNotSignedIn is returned when no user is associated with the context.
var ErrNotSignedIn = errors.New("not signed in")

// Provider resolves and establishes user identity.
type Provider interface {
	// CurrentUserID returns the signed-in user's id, or false when no
	// session exists.
	CurrentUserID(ctx context.Context) (string, bool)
	// SignIn exchanges credentials for a user id.
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignUp registers new credentials and returns the new user id.
	SignUp(ctx context.Context, email, username, password string) (string, error)
}

// Static is a fixed-identity Provider for tests and development.
type Static struct {
	UserID string
}

// CurrentUserID implements Provider.
func (s Static) CurrentUserID(context.Context) (string, bool) {
	return s.UserID, s.UserID != ""
}

// SignIn implements Provider.
func (s Static) SignIn(context.Context, string, string) (string, error) {
	if s.UserID == "" {
		return "", ErrNotSignedIn
	}
	return s.UserID, nil
}

// SignUp implements Provider.
func (s Static) SignUp(context.Context, string, string, string) (string, error) {
	if s.UserID == "" {
		return "", ErrNotSignedIn
	}
	return s.UserID, nil
}
