package graph

import (
	"context"
	"log"
	"sort"

	"friendsync/internal/models"
	"friendsync/internal/store"
)

// RequestsSubscription streams the full pending-request set for one user.
// Every delivered map replaces the previous one entirely.
type RequestsSubscription struct {
	sub *store.Subscription
	out chan map[string]models.FriendRequest
}

// Requests returns the stream of pending-request sets, keyed by sender id.
func (s *RequestsSubscription) Requests() <-chan map[string]models.FriendRequest { return s.out }

// Cancel detaches the subscription.
func (s *RequestsSubscription) Cancel() { s.sub.Cancel() }

// SubscribeRequests observes friend_requests/{uid}.
func (g *GraphStore) SubscribeRequests(uid string) *RequestsSubscription {
	sub := g.store.Subscribe(store.FriendRequestsPath(uid))
	out := make(chan map[string]models.FriendRequest, 1)
	rs := &RequestsSubscription{sub: sub, out: out}

	go func() {
		defer close(out)
		for snap := range sub.Snapshots() {
			select {
			case out <- models.FriendRequestsFromValue(snap.Value):
			case <-sub.Done():
				return
			}
		}
	}()
	return rs
}

// FriendsSubscription streams the full friend-profile set for one user.
type FriendsSubscription struct {
	sub    *store.Subscription
	cancel context.CancelFunc
	out    chan []*models.UserRecord
}

// Friends returns the stream of full friend sets, ordered by username.
func (s *FriendsSubscription) Friends() <-chan []*models.UserRecord { return s.out }

// Cancel detaches the subscription.
func (s *FriendsSubscription) Cancel() {
	s.cancel()
	s.sub.Cancel()
}

// SubscribeFriends observes friends/{uid} and resolves every edge to a
// profile record. For each snapshot all profile fetches are issued together
// and the combined list is published once complete; intermediate states are
// never exposed.
func (g *GraphStore) SubscribeFriends(uid string) *FriendsSubscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := g.store.Subscribe(store.FriendsPath(uid))
	out := make(chan []*models.UserRecord, 1)
	fs := &FriendsSubscription{sub: sub, cancel: cancel, out: out}

	go func() {
		defer close(out)
		for snap := range sub.Snapshots() {
			ids := edgeKeys(snap)
			friends, err := g.directory.GetUsers(ctx, ids)
			if err != nil {
				log.Printf("graph: resolving friend profiles for %s failed: %v", uid, err)
				continue
			}
			select {
			case out <- friends:
			case <-sub.Done():
				return
			}
		}
	}()
	return fs
}

// Candidate is one user available to befriend. RequestPending reports
// whether the subscriber already has an unresolved outgoing request to this
// user, so a sender's view can mark the recipient pending.
type Candidate struct {
	User           *models.UserRecord `json:"user"`
	RequestPending bool               `json:"requestPending"`
}

// CandidatesSubscription streams the users available to befriend: everyone
// except the subscriber and their current friends, annotated with the
// subscriber's outgoing-request state.
type CandidatesSubscription struct {
	usersSub    *store.Subscription
	friendsSub  *store.Subscription
	requestsSub *store.Subscription
	out         chan []Candidate
}

// Candidates returns the stream of candidate sets.
func (s *CandidatesSubscription) Candidates() <-chan []Candidate { return s.out }

// Cancel detaches the underlying subscriptions.
func (s *CandidatesSubscription) Cancel() {
	s.usersSub.Cancel()
	s.friendsSub.Cancel()
	s.requestsSub.Cancel()
}

// SubscribeCandidates merges the user directory, the friends subtree, and the
// pending-request records. A candidate set is published only once every side
// has delivered its first snapshot, then again whenever any side changes.
// Requests are stored under the recipient, so the sender's pending marks come
// from scanning the request root for entries keyed by the subscriber.
func (g *GraphStore) SubscribeCandidates(uid string) *CandidatesSubscription {
	usersSub := g.store.Subscribe(store.UsersRoot)
	friendsSub := g.store.Subscribe(store.FriendsPath(uid))
	requestsSub := g.store.Subscribe(store.FriendRequestsRoot)
	out := make(chan []Candidate, 1)
	cs := &CandidatesSubscription{usersSub: usersSub, friendsSub: friendsSub, requestsSub: requestsSub, out: out}

	go func() {
		defer close(out)

		var users map[string]any
		friendIDs := map[string]bool{}
		sentTo := map[string]bool{}
		seenUsers, seenFriends, seenRequests := false, false, false

		publish := func() {
			if !seenUsers || !seenFriends || !seenRequests {
				return
			}
			candidates := make([]Candidate, 0, len(users))
			for id, value := range users {
				if id == uid || friendIDs[id] {
					continue
				}
				if u, ok := models.UserFromValue(id, value); ok {
					candidates = append(candidates, Candidate{User: u, RequestPending: sentTo[id]})
				}
			}
			sort.Slice(candidates, func(i, j int) bool {
				if candidates[i].User.Username != candidates[j].User.Username {
					return candidates[i].User.Username < candidates[j].User.Username
				}
				return candidates[i].User.UID < candidates[j].User.UID
			})
			select {
			case out <- candidates:
			case <-usersSub.Done():
			case <-friendsSub.Done():
			case <-requestsSub.Done():
			}
		}

		usersCh, friendsCh := usersSub.Snapshots(), friendsSub.Snapshots()
		requestsCh := requestsSub.Snapshots()
		for usersCh != nil || friendsCh != nil || requestsCh != nil {
			select {
			case snap, ok := <-usersCh:
				if !ok {
					usersCh = nil
					continue
				}
				users = snap.Children()
				seenUsers = true
				publish()
			case snap, ok := <-friendsCh:
				if !ok {
					friendsCh = nil
					continue
				}
				friendIDs = map[string]bool{}
				for _, id := range edgeKeys(snap) {
					friendIDs[id] = true
				}
				seenFriends = true
				publish()
			case snap, ok := <-requestsCh:
				if !ok {
					requestsCh = nil
					continue
				}
				sentTo = map[string]bool{}
				for toID, value := range snap.Children() {
					if _, pending := models.FriendRequestsFromValue(value)[uid]; pending {
						sentTo[toID] = true
					}
				}
				seenRequests = true
				publish()
			}
		}
	}()
	return cs
}

// edgeKeys returns the sorted child keys of a friends/{uid} snapshot.
func edgeKeys(snap store.Snapshot) []string {
	children := snap.Children()
	ids := make([]string, 0, len(children))
	for id := range children {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
