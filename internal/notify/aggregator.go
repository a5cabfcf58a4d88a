// Package notify merges the friend-request set and the stored notification
// records into a per-user feed. The aggregator is a pure read-side merge:
// GraphStore and MessageBus are the producers of the underlying records.
package notify

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"friendsync/internal/directory"
	"friendsync/internal/graph"
	"friendsync/internal/models"
	"friendsync/internal/store"
)

// syntheticIDPrefix marks feed entries derived from a pending request that
// has no stored notification record. They exist only in the projection, so
// read/dismiss on them never reaches the store.
const syntheticIDPrefix = "req-"

// Aggregator builds per-user notification feeds.
type Aggregator struct {
	store     store.Store
	graph     *graph.GraphStore
	directory *directory.Directory
	now       func() time.Time

	mu     sync.Mutex
	states map[string]*userState
}

// userState is the local projection state for one user: read and dismissal
// overrides applied on top of whatever the store holds, plus the live feed
// subscriptions to renotify.
type userState struct {
	read      map[string]bool
	dismissed map[string]bool
	subs      map[*FeedSubscription]struct{}
}

// NewAggregator creates an Aggregator over its two event sources.
func NewAggregator(st store.Store, g *graph.GraphStore, dir *directory.Directory) *Aggregator {
	return &Aggregator{
		store:     st,
		graph:     g,
		directory: dir,
		now:       time.Now,
		states:    make(map[string]*userState),
	}
}

func (a *Aggregator) state(uid string) *userState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[uid]
	if !ok {
		s = &userState{
			read:      make(map[string]bool),
			dismissed: make(map[string]bool),
			subs:      make(map[*FeedSubscription]struct{}),
		}
		a.states[uid] = s
	}
	return s
}

// MarkAsRead marks one feed entry read. Local-first: the projection updates
// immediately and every live subscription is renotified; the store copy is
// updated asynchronously, best effort.
func (a *Aggregator) MarkAsRead(ctx context.Context, uid, id string) {
	s := a.state(uid)
	a.mu.Lock()
	s.read[id] = true
	a.mu.Unlock()

	if !strings.HasPrefix(id, syntheticIDPrefix) {
		go func() {
			if err := a.store.Update(context.WithoutCancel(ctx), store.NotificationPath(uid, id), map[string]any{"isRead": true}); err != nil {
				log.Printf("notify: marking notification %s read for %s failed: %v", id, uid, err)
			}
		}()
	}
	a.nudge(uid)
}

// Dismiss removes one entry from the projection and requests deletion of the
// underlying notification record. The friend request itself, if any, is left
// untouched; only accept or reject resolves it.
func (a *Aggregator) Dismiss(ctx context.Context, uid, id string) {
	s := a.state(uid)
	a.mu.Lock()
	s.dismissed[id] = true
	a.mu.Unlock()

	if !strings.HasPrefix(id, syntheticIDPrefix) {
		go func() {
			if err := a.store.Remove(context.WithoutCancel(ctx), store.NotificationPath(uid, id)); err != nil {
				log.Printf("notify: dismissing notification %s for %s failed: %v", id, uid, err)
			}
		}()
	}
	a.nudge(uid)
}

// clearOverrides drops the local read and dismissal state for entry ids
// whose backing source is gone. A later entry reusing the same id, such as a
// re-sent request mapping to the same synthetic id, starts fresh.
func (a *Aggregator) clearOverrides(uid string, ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[uid]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(s.read, id)
		delete(s.dismissed, id)
	}
}

func (a *Aggregator) nudge(uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[uid]
	if !ok {
		return
	}
	for sub := range s.subs {
		select {
		case sub.nudge <- struct{}{}:
		default:
		}
	}
}

// FeedSubscription streams a user's merged notification feed. Every
// delivered slice replaces the previous one entirely, newest first.
type FeedSubscription struct {
	uid        string
	agg        *Aggregator
	requests   *graph.RequestsSubscription
	records    *store.Subscription
	cancel     context.CancelFunc
	nudge      chan struct{}
	markOnView bool
	out        chan []models.Notification
}

// Entries returns the stream of merged feeds.
func (s *FeedSubscription) Entries() <-chan []models.Notification { return s.out }

// Cancel detaches the subscription from both event sources.
func (s *FeedSubscription) Cancel() {
	s.cancel()
	s.requests.Cancel()
	s.records.Cancel()

	s.agg.mu.Lock()
	if st, ok := s.agg.states[s.uid]; ok {
		delete(st.subs, s)
	}
	s.agg.mu.Unlock()
}

// Subscribe streams the merged feed without side effects.
func (a *Aggregator) Subscribe(uid string) *FeedSubscription {
	return a.subscribe(uid, false)
}

// ObserveAndMarkRead streams the merged feed and marks every delivered
// unread entry as read: consuming the feed is displaying it. Use Subscribe
// for a pure read.
func (a *Aggregator) ObserveAndMarkRead(uid string) *FeedSubscription {
	return a.subscribe(uid, true)
}

func (a *Aggregator) subscribe(uid string, markOnView bool) *FeedSubscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &FeedSubscription{
		uid:        uid,
		agg:        a,
		requests:   a.graph.SubscribeRequests(uid),
		records:    a.store.Subscribe(store.NotificationsPath(uid)),
		cancel:     cancel,
		nudge:      make(chan struct{}, 1),
		markOnView: markOnView,
		out:        make(chan []models.Notification, 1),
	}

	s := a.state(uid)
	a.mu.Lock()
	s.subs[sub] = struct{}{}
	a.mu.Unlock()

	go sub.run(ctx)
	return sub
}

// run is the merge loop: it keeps the latest value from each source and
// rebuilds the feed whenever either source or the local projection changes.
// A feed is published only once both sources have delivered their first
// snapshot, so consumers never see a partial merge. Record snapshots go
// through a reconciler so only the changed children are re-decoded and so
// removals clear the matching local overrides.
func (s *FeedSubscription) run(ctx context.Context) {
	defer close(s.out)

	var requests map[string]models.FriendRequest
	records := map[string]models.Notification{}
	reconciler := store.NewReconciler()
	seenRequests, seenRecords := false, false

	publish := func() {
		if !seenRequests || !seenRecords {
			return
		}
		entries := s.agg.merge(ctx, s.uid, requests, records)
		select {
		case s.out <- entries:
		case <-ctx.Done():
			return
		}
		if s.markOnView {
			for _, e := range entries {
				if !e.IsRead {
					s.agg.MarkAsRead(ctx, s.uid, e.ID)
				}
			}
		}
	}

	requestsCh, recordsCh := s.requests.Requests(), s.records.Snapshots()
	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-requestsCh:
			if !ok {
				return
			}
			// A resolved request retires its synthetic entry id.
			for fromID := range requests {
				if _, still := set[fromID]; !still {
					s.agg.clearOverrides(s.uid, syntheticIDPrefix+fromID)
				}
			}
			requests = set
			seenRequests = true
			publish()
		case snap, ok := <-recordsCh:
			if !ok {
				return
			}
			for _, change := range reconciler.Apply(snap) {
				if change.Kind == store.ChildRemoved {
					delete(records, change.Key)
					s.agg.clearOverrides(s.uid, change.Key)
					continue
				}
				if n, ok := models.NotificationFromValue(change.Key, change.Value); ok {
					records[change.Key] = n
				} else {
					delete(records, change.Key)
				}
			}
			seenRecords = true
			publish()
		case <-s.nudge:
			publish()
		}
	}
}

// merge builds the feed: pending requests map 1:1 to friend_request entries,
// new_message records pass through directly. Entries the user dismissed are
// dropped; read overrides apply on top of stored read flags.
func (a *Aggregator) merge(ctx context.Context, uid string, requests map[string]models.FriendRequest, records map[string]models.Notification) []models.Notification {
	a.mu.Lock()
	s := a.states[uid]
	read := make(map[string]bool, len(s.read))
	for k, v := range s.read {
		read[k] = v
	}
	dismissed := make(map[string]bool, len(s.dismissed))
	for k, v := range s.dismissed {
		dismissed[k] = v
	}
	a.mu.Unlock()

	// Index the stored friend_request records by sender so request-derived
	// entries reuse the durable record's id and read flag.
	recordBySender := make(map[string]models.Notification)
	for _, n := range records {
		if n.Type == models.NotificationTypeFriendRequest {
			recordBySender[n.FromUserID] = n
		}
	}

	entries := make([]models.Notification, 0, len(requests)+len(records))

	var unnamed []string
	for fromID, req := range requests {
		entry := models.Notification{
			ID:         syntheticIDPrefix + fromID,
			Type:       models.NotificationTypeFriendRequest,
			FromUserID: fromID,
			Timestamp:  req.Timestamp,
		}
		if rec, ok := recordBySender[fromID]; ok {
			entry.ID = rec.ID
			entry.FromUsername = rec.FromUsername
			entry.IsRead = rec.IsRead
			if rec.Timestamp != 0 {
				entry.Timestamp = rec.Timestamp
			}
		}
		if entry.FromUsername == "" {
			unnamed = append(unnamed, fromID)
		}
		entries = append(entries, entry)
	}

	if len(unnamed) > 0 {
		if users, err := a.directory.GetUsers(ctx, unnamed); err == nil {
			names := make(map[string]string, len(users))
			for _, u := range users {
				names[u.UID] = u.Username
			}
			for i := range entries {
				if entries[i].FromUsername == "" {
					entries[i].FromUsername = names[entries[i].FromUserID]
				}
			}
		} else {
			log.Printf("notify: resolving request senders for %s failed: %v", uid, err)
		}
	}

	for _, n := range records {
		if n.Type != models.NotificationTypeNewMessage {
			continue
		}
		entries = append(entries, n)
	}

	out := entries[:0]
	for _, e := range entries {
		if dismissed[e.ID] {
			continue
		}
		if read[e.ID] {
			e.IsRead = true
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}
