package store

import (
	"context"
	"sync"
)

// Store is the engine's only dependency surface on the external hierarchical
// push store. All authoritative state lives behind this interface; in-process
// caches are advisory projections rebuilt from snapshots.
//
// Subscribe delivers the whole current subtree on attach and again after every
// mutation at, under, or above the subscribed path. Snapshots for a single
// subscription arrive in write order; nothing is guaranteed about interleaving
// between two different subscriptions.
type Store interface {
	// Write replaces the subtree at path with value.
	Write(ctx context.Context, path string, value any) error
	// Update merges the given fields into the node at path, leaving
	// siblings untouched.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Remove deletes the subtree at path. Removing a missing path is a no-op.
	Remove(ctx context.Context, path string) error
	// Get returns a one-shot snapshot of the subtree at path.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Subscribe attaches a listener to the subtree at path.
	Subscribe(path string) *Subscription
	// NewKey returns a fresh store-assigned key. Keys are lexically
	// monotonic: a key generated later compares greater than one generated
	// earlier.
	NewKey() string
}

// serverTimestamp is the sentinel materialized by the store at write time.
type serverTimestamp struct{}

// ServerTimestamp, written as a value or field, is replaced by the store's
// own clock (unix milliseconds) when the write is applied.
var ServerTimestamp any = serverTimestamp{}

// Snapshot is the complete current value rooted at a path. Value is either a
// scalar leaf, a map[string]any branch, or nil when the path does not exist.
type Snapshot struct {
	Path  string
	Value any
}

// Exists reports whether the snapshot holds any value.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Children returns the snapshot's child map, or nil for leaves and missing
// paths.
func (s Snapshot) Children() map[string]any {
	m, _ := s.Value.(map[string]any)
	return m
}

// Child returns the snapshot of a direct child key.
func (s Snapshot) Child(key string) Snapshot {
	var v any
	if m := s.Children(); m != nil {
		v = m[key]
	}
	return Snapshot{Path: Join(s.Path, key), Value: v}
}

// Subscription is a live listener on one subtree. Snapshots are queued
// internally and drained by a pump goroutine, so publishers never block and
// per-subscription delivery order is preserved.
type Subscription struct {
	path string

	mu    sync.Mutex
	queue []Snapshot
	wake  chan struct{}

	out  chan Snapshot
	done chan struct{}
	once sync.Once
}

// NewSubscription creates a subscription for path. Store implementations feed
// it via Push; consumers read Snapshots and call Cancel when finished.
func NewSubscription(path string) *Subscription {
	s := &Subscription{
		path: path,
		wake: make(chan struct{}, 1),
		out:  make(chan Snapshot),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Path returns the subscribed path.
func (s *Subscription) Path() string { return s.path }

// Snapshots returns the ordered stream of subtree snapshots. The channel is
// closed after Cancel.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.out }

// Push enqueues a snapshot for delivery. It never blocks the caller.
func (s *Subscription) Push(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Cancel detaches the subscription. Pending snapshots are discarded.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed when the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			snap := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- snap:
			case <-s.done:
				return
			}
		}
	}
}
