package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendsync/internal/directory"
	"friendsync/internal/models"
	"friendsync/internal/store"
)

func newTestGraph(t *testing.T) (*GraphStore, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	dir := directory.New(st)
	g := NewGraphStore(st, dir, nil, store.RetryPolicy{Attempts: 1})
	return g, st
}

func seedUser(t *testing.T, st *store.Memory, uid, username string) {
	t.Helper()
	u := models.UserRecord{UID: uid, Username: username, CreatedAt: 1}
	require.NoError(t, st.Write(context.Background(), store.UserPath(uid), u.Value()))
}

func pendingRequests(t *testing.T, st *store.Memory, uid string) map[string]models.FriendRequest {
	t.Helper()
	snap, err := st.Get(context.Background(), store.FriendRequestsPath(uid))
	require.NoError(t, err)
	return models.FriendRequestsFromValue(snap.Value)
}

func notifications(t *testing.T, st *store.Memory, uid string) map[string]models.Notification {
	t.Helper()
	snap, err := st.Get(context.Background(), store.NotificationsPath(uid))
	require.NoError(t, err)
	return models.NotificationsFromValue(snap.Value)
}

func edgeExists(t *testing.T, st *store.Memory, a, b string) bool {
	t.Helper()
	snap, err := st.Get(context.Background(), store.FriendEdgePath(a, b))
	require.NoError(t, err)
	return snap.Exists()
}

func TestSendRequestRecordsPendingRequestAndNotification(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	reqs := pendingRequests(t, st, "bob")
	require.Len(t, reqs, 1)
	req := reqs["alice"]
	assert.Equal(t, "alice", req.FromUserID)
	assert.Equal(t, models.FriendRequestStatusPending, req.Status)
	assert.NotZero(t, req.Timestamp, "timestamp must be store-assigned")

	// The sender's own pending set stays empty.
	assert.Empty(t, pendingRequests(t, st, "alice"))

	notifs := notifications(t, st, "bob")
	require.Len(t, notifs, 1)
	for _, n := range notifs {
		assert.Equal(t, models.NotificationTypeFriendRequest, n.Type)
		assert.Equal(t, "alice", n.FromUserID)
		assert.Equal(t, "alice", n.FromUsername)
		assert.False(t, n.IsRead)
	}
}

func TestSendRequestToSelf(t *testing.T) {
	g, st := newTestGraph(t)
	seedUser(t, st, "alice", "alice")

	err := g.SendRequest(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendRequestToUnknownRecipient(t *testing.T) {
	g, st := newTestGraph(t)
	seedUser(t, st, "alice", "alice")

	err := g.SendRequest(context.Background(), "alice", "ghost")
	assert.ErrorIs(t, err, ErrRecipientUnknown)
}

func TestSendRequestWhenAlreadyFriends(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, st.Write(ctx, store.FriendEdgePath("alice", "bob"), true))
	require.NoError(t, st.Write(ctx, store.FriendEdgePath("bob", "alice"), true))

	err := g.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestSendRequestWhenReverseRequestPending(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "bob", "alice"))

	err := g.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestSendRequestDuplicateCollapsesToOneRecord(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	first := pendingRequests(t, st, "bob")["alice"]

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	reqs := pendingRequests(t, st, "bob")
	require.Len(t, reqs, 1)
	assert.Equal(t, first, reqs["alice"], "duplicate submit must not change the stored record")
	assert.Len(t, notifications(t, st, "bob"), 1, "duplicate submit must not emit a second notification")
}

func TestAcceptRequestCreatesMirroredEdgesAndClearsRequest(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))

	// Symmetry: both halves of the edge exist.
	assert.True(t, edgeExists(t, st, "alice", "bob"))
	assert.True(t, edgeExists(t, st, "bob", "alice"))

	// Exclusivity: no pending request survives in either direction.
	assert.Empty(t, pendingRequests(t, st, "bob"))
	assert.Empty(t, pendingRequests(t, st, "alice"))

	// The friend_request notification record is cleared.
	assert.Empty(t, notifications(t, st, "bob"))
}

func TestAcceptRequestIsIdempotent(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))
	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))

	assert.True(t, edgeExists(t, st, "alice", "bob"))
	assert.True(t, edgeExists(t, st, "bob", "alice"))
}

func TestRejectRequestRemovesRequestWithoutEdge(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	require.NoError(t, g.RejectRequest(ctx, "bob", "alice"))

	assert.Empty(t, pendingRequests(t, st, "bob"))
	assert.False(t, edgeExists(t, st, "alice", "bob"))
	assert.False(t, edgeExists(t, st, "bob", "alice"))
	assert.Empty(t, notifications(t, st, "bob"))

	// Rejecting again is a no-op.
	require.NoError(t, g.RejectRequest(ctx, "bob", "alice"))
}

func TestRejectThenSendAgain(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, g.RejectRequest(ctx, "bob", "alice"))
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	require.Len(t, pendingRequests(t, st, "bob"), 1)
}

func TestReconcileHealsInterruptedAccept(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	// Simulate an accept that crashed after the edge writes: both edges are
	// durable but the request and its notification were never removed.
	require.NoError(t, st.Write(ctx, store.FriendEdgePath("bob", "alice"), true))
	require.NoError(t, st.Write(ctx, store.FriendEdgePath("alice", "bob"), true))
	require.Len(t, pendingRequests(t, st, "bob"), 1)

	require.NoError(t, g.Reconcile(ctx, "bob"))

	assert.Empty(t, pendingRequests(t, st, "bob"))
	assert.Empty(t, notifications(t, st, "bob"))
	assert.True(t, edgeExists(t, st, "bob", "alice"))
	assert.True(t, edgeExists(t, st, "alice", "bob"))
}

func TestReconcileLeavesHealthyStateAlone(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))

	require.NoError(t, g.Reconcile(ctx, "bob"))

	require.Len(t, pendingRequests(t, st, "bob"), 1)
	require.Len(t, notifications(t, st, "bob"), 1)
}

func TestSubscribeRequestsStreamsFullSets(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	seedUser(t, st, "carol", "carol")

	sub := g.SubscribeRequests("bob")
	defer sub.Cancel()

	assert.Empty(t, nextRequests(t, sub))

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	set := nextRequests(t, sub)
	for len(set) < 1 {
		set = nextRequests(t, sub)
	}
	assert.Contains(t, set, "alice")

	require.NoError(t, g.SendRequest(ctx, "carol", "bob"))
	for len(set) < 2 {
		set = nextRequests(t, sub)
	}
	assert.Contains(t, set, "alice")
	assert.Contains(t, set, "carol")

	require.NoError(t, g.RejectRequest(ctx, "bob", "alice"))
	for len(set) != 1 {
		set = nextRequests(t, sub)
	}
	assert.Contains(t, set, "carol")
}

func TestSubscribeFriendsPublishesCompleteProfileSets(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	seedUser(t, st, "carol", "carol")

	sub := g.SubscribeFriends("bob")
	defer sub.Cancel()

	assert.Empty(t, nextFriends(t, sub))

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))
	require.NoError(t, g.SendRequest(ctx, "carol", "bob"))
	require.NoError(t, g.AcceptRequest(ctx, "bob", "carol"))

	friends := nextFriends(t, sub)
	for len(friends) != 2 {
		friends = nextFriends(t, sub)
	}
	// Complete set, ordered by the sorted edge keys.
	assert.Equal(t, "alice", friends[0].UID)
	assert.Equal(t, "carol", friends[1].UID)
	assert.Equal(t, "alice", friends[0].Username)
}

func TestSubscribeCandidatesExcludesSelfAndFriends(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")
	seedUser(t, st, "carol", "carol")

	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))

	sub := g.SubscribeCandidates("bob")
	defer sub.Cancel()

	candidates := nextCandidates(t, sub)
	require.Len(t, candidates, 1)
	assert.Equal(t, "carol", candidates[0].User.UID)
	assert.False(t, candidates[0].RequestPending)
}

func TestSubscribeCandidatesMarksOutgoingRequestPending(t *testing.T) {
	g, st := newTestGraph(t)
	ctx := context.Background()
	seedUser(t, st, "alice", "alice")
	seedUser(t, st, "bob", "bob")

	sub := g.SubscribeCandidates("alice")
	defer sub.Cancel()

	pendingTo := func(candidates []Candidate, uid string) bool {
		for _, c := range candidates {
			if c.User.UID == uid {
				return c.RequestPending
			}
		}
		return false
	}

	candidates := nextCandidates(t, sub)
	require.Len(t, candidates, 1)
	assert.False(t, pendingTo(candidates, "bob"))

	// The sender's own view marks the recipient pending.
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	for !pendingTo(candidates, "bob") {
		candidates = nextCandidates(t, sub)
	}

	// A rejected request clears the mark but keeps the candidate.
	require.NoError(t, g.RejectRequest(ctx, "bob", "alice"))
	for len(candidates) != 1 || pendingTo(candidates, "bob") {
		candidates = nextCandidates(t, sub)
	}
	assert.Equal(t, "bob", candidates[0].User.UID)

	// An accepted request removes the new friend from the candidate set.
	require.NoError(t, g.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, g.AcceptRequest(ctx, "bob", "alice"))
	for len(candidates) != 0 {
		candidates = nextCandidates(t, sub)
	}
}

func nextRequests(t *testing.T, sub *RequestsSubscription) map[string]models.FriendRequest {
	t.Helper()
	select {
	case set, ok := <-sub.Requests():
		require.True(t, ok, "subscription closed unexpectedly")
		return set
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request set")
		return nil
	}
}

func nextFriends(t *testing.T, sub *FriendsSubscription) []*models.UserRecord {
	t.Helper()
	select {
	case friends, ok := <-sub.Friends():
		require.True(t, ok, "subscription closed unexpectedly")
		return friends
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for friend set")
		return nil
	}
}

func nextCandidates(t *testing.T, sub *CandidatesSubscription) []Candidate {
	t.Helper()
	select {
	case candidates, ok := <-sub.Candidates():
		require.True(t, ok, "subscription closed unexpectedly")
		return candidates
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for candidate set")
		return nil
	}
}
