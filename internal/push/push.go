// Package push holds the platform push-notification collaborator surface:
// the Transport interface the engine drives, the device-token registry, and
// the kafka fan-out publisher feeding the push worker.
package push

import (
	"context"
	"log"

	"friendsync/internal/store"
)

// Transport delivers platform push notifications. Implementations live
// outside the engine; LogTransport ships for development.
type Transport interface {
	Deliver(ctx context.Context, targetToken, title, body string, data map[string]string) error
}

// LogTransport logs deliveries instead of sending them.
type LogTransport struct{}

// Deliver implements Transport.
func (LogTransport) Deliver(_ context.Context, targetToken, title, body string, _ map[string]string) error {
	log.Printf("push: deliver to token %s: %s: %s", targetToken, title, body)
	return nil
}

// TokenRegistry keeps each user's device push token under user_tokens/{uid},
// replacing the previous token on refresh.
type TokenRegistry struct {
	store store.Store
}

// NewTokenRegistry creates a registry over the given store.
func NewTokenRegistry(st store.Store) *TokenRegistry {
	return &TokenRegistry{store: st}
}

// RegisterToken records uid's current device token.
func (r *TokenRegistry) RegisterToken(ctx context.Context, uid, token string) error {
	return r.store.Write(ctx, store.UserTokenPath(uid), token)
}

// Token resolves uid's registered device token. Empty when none is
// registered.
func (r *TokenRegistry) Token(ctx context.Context, uid string) (string, error) {
	snap, err := r.store.Get(ctx, store.UserTokenPath(uid))
	if err != nil {
		return "", err
	}
	token, _ := snap.Value.(string)
	return token, nil
}
