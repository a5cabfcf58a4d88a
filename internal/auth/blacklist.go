package auth

import (
	"context"
	"time"
)

// TokenBlacklist stores revoked session-token ids until their original
// expiry.
type TokenBlacklist interface {
	// Add blacklists jti until the token's original expiry time.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted reports whether jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
