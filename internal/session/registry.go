package session

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative mapping of connection id to display name.
// The roster it derives preserves registration order; re-registering an id
// (a rename) updates the name without moving the entry.
//
// All operations are total: registering an existing id overwrites it and
// removing an absent id is a no-op.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

// Register inserts or overwrites the entry for id with the given display
// name. Names are not required to be unique.
func (r *Registry) Register(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[id]; !exists {
		r.order = append(r.order, id)
	}
	r.names[id] = name
}

// Remove deletes the entry for id if present and reports whether an entry
// was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[id]; !exists {
		return false
	}
	delete(r.names, id)
	r.order = lo.Without(r.order, id)
	return true
}

// Contains reports whether id has a registered entry.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.names[id]
	return exists
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Snapshot returns a point-in-time roster in registration order.
func (r *Registry) Snapshot() []RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) RosterEntry {
		return RosterEntry{ID: id, Name: r.names[id]}
	})
}
