// Package directory is the read path for user profile records. Profiles are
// written by the external onboarding flow; the engine only resolves and
// observes them.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"friendsync/internal/models"
	"friendsync/internal/store"
)

// ErrUserNotFound is returned when no profile record exists for a uid.
var ErrUserNotFound = errors.New("user not found")

// Directory resolves user ids to profile records.
type Directory struct {
	store store.Store
}

// New creates a Directory over the given store.
func New(st store.Store) *Directory {
	return &Directory{store: st}
}

// GetUser fetches one profile record.
func (d *Directory) GetUser(ctx context.Context, uid string) (*models.UserRecord, error) {
	snap, err := d.store.Get(ctx, store.UserPath(uid))
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", uid, err)
	}
	user, ok := models.UserFromValue(uid, snap.Value)
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUsers resolves a set of uids to profile records. All fetches are issued
// concurrently and accumulated into a buffer sized to the input; the combined
// list is returned once every fetch has completed, so a caller never observes
// a partial set. Unknown uids are skipped; the first store failure aborts.
func (d *Directory) GetUsers(ctx context.Context, uids []string) ([]*models.UserRecord, error) {
	results := make([]*models.UserRecord, len(uids))
	errs := make([]error, len(uids))

	var wg sync.WaitGroup
	for i, uid := range uids {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			user, err := d.GetUser(ctx, uid)
			if err != nil {
				if !errors.Is(err, ErrUserNotFound) {
					errs[i] = err
				}
				return
			}
			results[i] = user
		}(i, uid)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	out := make([]*models.UserRecord, 0, len(results))
	for _, u := range results {
		if u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

// UsersSubscription streams the full user set. Every delivered slice replaces
// the previous one entirely.
type UsersSubscription struct {
	sub *store.Subscription
	out chan []*models.UserRecord
}

// Users returns the stream of full user sets, ordered by username.
func (s *UsersSubscription) Users() <-chan []*models.UserRecord { return s.out }

// Cancel detaches the subscription.
func (s *UsersSubscription) Cancel() { s.sub.Cancel() }

// ObserveUsers subscribes to the whole users subtree.
func (d *Directory) ObserveUsers() *UsersSubscription {
	sub := d.store.Subscribe(store.UsersRoot)
	out := make(chan []*models.UserRecord, 1)
	us := &UsersSubscription{sub: sub, out: out}

	go func() {
		defer close(out)
		for snap := range sub.Snapshots() {
			users := decodeUsers(snap)
			select {
			case out <- users:
			case <-sub.Done():
				return
			}
		}
	}()
	return us
}

func decodeUsers(snap store.Snapshot) []*models.UserRecord {
	children := snap.Children()
	users := make([]*models.UserRecord, 0, len(children))
	for uid, value := range children {
		user, ok := models.UserFromValue(uid, value)
		if !ok {
			log.Printf("directory: skipping malformed user record at %s", store.UserPath(uid))
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].UID < users[j].UID
	})
	return users
}
