package store

import (
	"reflect"
	"sort"
)

// ChangeKind classifies a reconciled child event.
type ChangeKind int

const (
	ChildAdded ChangeKind = iota + 1
	ChildChanged
	ChildRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChildAdded:
		return "added"
	case ChildChanged:
		return "changed"
	case ChildRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one structured difference between two successive snapshots of the
// same subtree.
type Change struct {
	Kind  ChangeKind
	Key   string
	Value any
}

// Reconciler turns the store's whole-subtree snapshot pushes into precise
// per-child change events. The whole-snapshot contract stays intact at the
// boundary; components that want deltas diff through a Reconciler instead of
// re-scanning every record.
//
// Not safe for concurrent use; each subscription owns its own Reconciler.
type Reconciler struct {
	last map[string]any
}

// NewReconciler creates a reconciler with no prior snapshot. The first Apply
// reports every child as added.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Apply diffs snap against the previously applied snapshot and returns the
// child-level changes, ordered by key.
func (r *Reconciler) Apply(snap Snapshot) []Change {
	next := snap.Children()
	prev := r.last
	r.last = next

	var changes []Change
	for key, value := range next {
		old, existed := prev[key]
		switch {
		case !existed:
			changes = append(changes, Change{Kind: ChildAdded, Key: key, Value: value})
		case !reflect.DeepEqual(old, value):
			changes = append(changes, Change{Kind: ChildChanged, Key: key, Value: value})
		}
	}
	for key, old := range prev {
		if _, still := next[key]; !still {
			changes = append(changes, Change{Kind: ChildRemoved, Key: key, Value: old})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Key != changes[j].Key {
			return changes[i].Key < changes[j].Key
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}
