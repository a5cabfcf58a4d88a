// Package presence records online/offline transitions on user profiles.
//
// There is no heartbeat or liveness timeout: the transport layer must call
// SetOnline(uid, false) when it detects a disconnect. If that hook never
// fires, presence goes stale until the next transition.
package presence

import (
	"context"
	"fmt"
	"time"

	"friendsync/internal/store"
)

// Tracker writes presence transitions.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

// New creates a Tracker over the given store.
func New(st store.Store) *Tracker {
	return &Tracker{store: st, now: time.Now}
}

// SetOnline flips the isOnline flag on the user's profile. Going offline
// also stamps lastSeenAt.
func (t *Tracker) SetOnline(ctx context.Context, uid string, online bool) error {
	fields := map[string]any{"isOnline": online}
	if !online {
		fields["lastSeenAt"] = t.now().UnixMilli()
	}
	if err := t.store.Update(ctx, store.UserPath(uid), fields); err != nil {
		return fmt.Errorf("updating presence for %s: %w", uid, err)
	}
	return nil
}
