// Package identity provides the per-unit-of-work identity map: the table
// from identity key to live object that guarantees one object per logical
// row within one scope.
package identity

import (
	"github.com/google/uuid"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Map implements core.IdentityMap. It is owned by the session layer; the
// hydration engine only reads and inserts. Not safe for concurrent use:
// the runtime's single-threaded access model is assumed and required.
type Map struct {
	token   string
	entries map[string]*core.Instance
}

// NewMap creates an empty identity map with a fresh scope token.
func NewMap() *Map {
	return &Map{
		token:   uuid.NewString(),
		entries: make(map[string]*core.Instance),
	}
}

// NewMapWithToken creates an empty identity map using a caller-chosen scope
// token, e.g. a shard identifier.
func NewMapWithToken(token string) *Map {
	return &Map{
		token:   token,
		entries: make(map[string]*core.Instance),
	}
}

// Token returns the scope's identity token.
func (m *Map) Token() string {
	return m.token
}

// Get returns the live object for a key, if present.
func (m *Map) Get(key core.IdentityKey) (*core.Instance, bool) {
	inst, ok := m.entries[key.Hash()]
	return inst, ok
}

// AddUnpresent records a freshly materialized object under its key and
// marks the state as owned by this scope.
func (m *Map) AddUnpresent(state *core.InstanceState, key core.IdentityKey) {
	state.Scope = m
	m.entries[key.Hash()] = state.Instance()
}

// Remove drops a key from the map. Owner-side operation: the hydration
// engine never calls this except when an expired object turns out deleted.
func (m *Map) Remove(key core.IdentityKey) {
	delete(m.entries, key.Hash())
}

// Len returns the number of tracked objects.
func (m *Map) Len() int {
	return len(m.entries)
}
