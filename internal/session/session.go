// Package session owns the per-connection subscription set for one client.
// A session subscribes to every subtree its user watches, projects snapshots
// into an advisory local cache, and forwards merged updates outward. On
// reconnect every subscription is re-issued from scratch: the store's only
// contract is "push current value on attach and on mutation", not "resume an
// interrupted stream".
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"friendsync/internal/graph"
	"friendsync/internal/messagebus"
	"friendsync/internal/models"
	"friendsync/internal/notify"
	"friendsync/internal/presence"
	"friendsync/internal/store"
)

// UpdateKind tags an outward update.
type UpdateKind string

const (
	KindFriends    UpdateKind = "friends"
	KindRequests   UpdateKind = "requests"
	KindCandidates UpdateKind = "candidates"
	KindMessages   UpdateKind = "messages"
	KindFeed       UpdateKind = "feed"
	KindProfile    UpdateKind = "profile"
	KindError      UpdateKind = "error"
)

// Update is one outward state push. Exactly the field matching Kind is set.
type Update struct {
	Kind       UpdateKind
	Friends    []*models.UserRecord
	Requests   map[string]models.FriendRequest
	Candidates []graph.Candidate
	Messages   []models.Message
	Entries    []models.Notification
	Feed       notify.Feed
	Profile    *models.UserRecord
	Err        string
}

// Session composes the engine for one connected client.
type Session struct {
	userID   string
	store    store.Store
	graph    *graph.GraphStore
	bus      *messagebus.MessageBus
	notify   *notify.Aggregator
	presence *presence.Tracker
	now      func() time.Time

	out chan Update

	mu         sync.Mutex
	lastErr    error
	closed     bool
	detach     func()
	friends    []*models.UserRecord
	requests   map[string]models.FriendRequest
	candidates []graph.Candidate
	messages   []models.Message
	entries    []models.Notification
	profile    *models.UserRecord
}

// New creates a session for one user.
func New(uid string, st store.Store, g *graph.GraphStore, bus *messagebus.MessageBus, agg *notify.Aggregator, pres *presence.Tracker) *Session {
	return &Session{
		userID:   uid,
		store:    st,
		graph:    g,
		bus:      bus,
		notify:   agg,
		presence: pres,
		now:      time.Now,
		out:      make(chan Update, 64),
	}
}

// UserID returns the session's user.
func (s *Session) UserID() string { return s.userID }

// Updates returns the outward update stream. Closed by Close.
func (s *Session) Updates() <-chan Update { return s.out }

// Start marks the user online, runs the self-healing recovery pass, and
// attaches every subscription.
func (s *Session) Start(ctx context.Context) error {
	if err := s.presence.SetOnline(ctx, s.userID, true); err != nil {
		log.Printf("session %s: presence online failed: %v", s.userID, err)
	}
	if err := s.graph.Reconcile(ctx, s.userID); err != nil {
		log.Printf("session %s: recovery pass failed: %v", s.userID, err)
		s.setError(err)
	}
	s.attach()
	return nil
}

// Reconnect drops every subscription and re-issues it, re-running the
// recovery pass first. The store re-pushes current values on attach, so the
// cache rebuilds itself wholesale.
func (s *Session) Reconnect(ctx context.Context) {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()
	if detach != nil {
		detach()
	}

	if err := s.graph.Reconcile(ctx, s.userID); err != nil {
		log.Printf("session %s: recovery pass on reconnect failed: %v", s.userID, err)
		s.setError(err)
	}
	s.attach()
}

// Close deregisters every owned subscription, marks the user offline via the
// transport hook, and closes the update stream.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
	if err := s.presence.SetOnline(ctx, s.userID, false); err != nil {
		log.Printf("session %s: presence offline failed: %v", s.userID, err)
	}

	s.mu.Lock()
	close(s.out)
	s.mu.Unlock()
}

// attach issues one subscription per watched subtree and starts the forward
// goroutines.
func (s *Session) attach() {
	s.mu.Lock()
	if s.closed || s.detach != nil {
		s.mu.Unlock()
		return
	}

	friendsSub := s.graph.SubscribeFriends(s.userID)
	requestsSub := s.graph.SubscribeRequests(s.userID)
	candidatesSub := s.graph.SubscribeCandidates(s.userID)
	messagesSub := s.bus.Subscribe(s.userID)
	feedSub := s.notify.ObserveAndMarkRead(s.userID)
	profileSub := s.store.Subscribe(store.UserPath(s.userID))

	var wg sync.WaitGroup
	wg.Add(6)
	done := make(chan struct{})
	s.detach = func() {
		close(done)
		friendsSub.Cancel()
		requestsSub.Cancel()
		candidatesSub.Cancel()
		messagesSub.Cancel()
		feedSub.Cancel()
		profileSub.Cancel()
		wg.Wait()
	}
	s.mu.Unlock()

	forward := func(loop func()) {
		go func() {
			defer wg.Done()
			loop()
		}()
	}

	forward(func() {
		for friends := range friendsSub.Friends() {
			s.mu.Lock()
			s.friends = friends
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindFriends, Friends: friends})
		}
	})
	forward(func() {
		for requests := range requestsSub.Requests() {
			s.mu.Lock()
			s.requests = requests
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindRequests, Requests: requests})
		}
	})
	forward(func() {
		for candidates := range candidatesSub.Candidates() {
			s.mu.Lock()
			s.candidates = candidates
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindCandidates, Candidates: candidates})
		}
	})
	forward(func() {
		for messages := range messagesSub.Messages() {
			s.mu.Lock()
			s.messages = messages
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindMessages, Messages: messages})
		}
	})
	forward(func() {
		for entries := range feedSub.Entries() {
			s.mu.Lock()
			s.entries = entries
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindFeed, Entries: entries, Feed: notify.BuildFeed(entries, s.now())})
		}
	})
	forward(func() {
		for snap := range profileSub.Snapshots() {
			profile, ok := models.UserFromValue(s.userID, snap.Value)
			if !ok {
				continue
			}
			s.mu.Lock()
			s.profile = profile
			s.mu.Unlock()
			s.publish(done, Update{Kind: KindProfile, Profile: profile})
		}
	})
}

// publish forwards one update without blocking the snapshot pumps. A full
// outward buffer drops the update; the next snapshot for that subtree
// carries the complete state anyway.
func (s *Session) publish(done <-chan struct{}, u Update) {
	select {
	case <-done:
	case s.out <- u:
	default:
		log.Printf("session %s: update buffer full, dropping %s update", s.userID, u.Kind)
	}
}
