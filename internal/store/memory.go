package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory is an in-memory Store. It honors the full snapshot-resend contract:
// every subscription receives the complete current subtree on attach and again
// after each mutation touching its path, in write order.
//
// It backs the standalone server and the test suite; production deployments
// bind the engine to the real store behind the same interface.
type Memory struct {
	mu   sync.Mutex
	root map[string]any
	subs map[*Subscription]struct{}
	now  func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store whose server timestamps and
// generated keys derive from the given clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		root:    make(map[string]any),
		subs:    make(map[*Subscription]struct{}),
		now:     now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now().UnixNano())), 0),
	}
}

// NewKey returns a fresh lexically monotonic key (ULID).
func (m *Memory) NewKey() string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(m.now()), m.entropy).String()
}

// Write replaces the subtree at path with value.
func (m *Memory) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return NewTransientError(path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(Split(path), m.materialize(value))
	m.notifyLocked(path)
	return nil
}

// Update merges fields into the node at path. A nil field value deletes that
// child.
func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return NewTransientError(path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range fields {
		m.setLocked(append(Split(path), key), m.materialize(v))
	}
	m.notifyLocked(path)
	return nil
}

// Remove deletes the subtree at path.
func (m *Memory) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewTransientError(path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(Split(path), nil)
	m.notifyLocked(path)
	return nil
}

// Get returns a one-shot snapshot of the subtree at path.
func (m *Memory) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, NewTransientError(path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Path: path, Value: deepCopy(m.getLocked(Split(path)))}, nil
}

// Subscribe attaches a listener at path. The current subtree is pushed
// immediately.
func (m *Memory) Subscribe(path string) *Subscription {
	sub := NewSubscription(path)
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	sub.Push(Snapshot{Path: path, Value: deepCopy(m.getLocked(Split(path)))})
	m.mu.Unlock()

	go func() {
		<-sub.Done()
		m.mu.Lock()
		delete(m.subs, sub)
		m.mu.Unlock()
	}()
	return sub
}

// materialize deep-copies value and resolves ServerTimestamp sentinels.
func (m *Memory) materialize(value any) any {
	switch v := value.(type) {
	case serverTimestamp:
		return m.now().UnixMilli()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if c := m.materialize(child); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return v
	}
}

func (m *Memory) setLocked(segs []string, value any) {
	if len(segs) == 0 {
		root, _ := value.(map[string]any)
		if root == nil {
			root = make(map[string]any)
		}
		m.root = root
		return
	}
	setChild(m.root, segs, value)
}

// setChild writes value at segs under parent, pruning empty branches so that
// a node with no children does not exist.
func setChild(parent map[string]any, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(parent, key)
		} else {
			parent[key] = value
		}
		return
	}
	child, _ := parent[key].(map[string]any)
	if child == nil {
		if value == nil {
			return
		}
		child = make(map[string]any)
		parent[key] = child
	}
	setChild(child, segs[1:], value)
	if len(child) == 0 {
		delete(parent, key)
	}
}

func (m *Memory) getLocked(segs []string) any {
	var cur any = m.root
	for _, seg := range segs {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[seg]
	}
	if node, ok := cur.(map[string]any); ok && len(node) == 0 {
		return nil
	}
	return cur
}

// notifyLocked pushes fresh snapshots to every subscription whose path
// overlaps the mutated path. A mutation at M affects a listener at L when one
// path is a segment prefix of the other.
func (m *Memory) notifyLocked(mutated string) {
	mutSegs := Split(mutated)
	for sub := range m.subs {
		if !pathsOverlap(Split(sub.Path()), mutSegs) {
			continue
		}
		sub.Push(Snapshot{Path: sub.Path(), Value: deepCopy(m.getLocked(Split(sub.Path())))})
	}
}

func pathsOverlap(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func deepCopy(value any) any {
	node, ok := value.(map[string]any)
	if !ok {
		return value
	}
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = deepCopy(v)
	}
	return out
}
