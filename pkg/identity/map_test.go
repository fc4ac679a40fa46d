package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

type stubType string

func (s stubType) TypeName() string { return string(s) }

func (s stubType) IsSubtypeOf(o core.TypeInfo) bool { return s.TypeName() == o.TypeName() }

func TestMap_AddAndGet(t *testing.T) {
	m := NewMap()
	assert.NotEmpty(t, m.Token())

	inst := core.NewInstance(stubType("Person"))
	key := core.IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: m.Token()}
	m.AddUnpresent(inst.State, key)

	got, ok := m.Get(key)
	require.True(t, ok)
	assert.Same(t, inst, got)
	assert.Same(t, core.IdentityMap(m), inst.State.Scope)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get(core.IdentityKey{Class: "Person", PK: []any{int64(2)}, Token: m.Token()})
	assert.False(t, ok)
}

func TestMap_TokenDiscriminatesKeys(t *testing.T) {
	m := NewMapWithToken("shard-1")
	inst := core.NewInstance(stubType("Person"))
	key := core.IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: "shard-1"}
	m.AddUnpresent(inst.State, key)

	other := key
	other.Token = "shard-2"
	_, ok := m.Get(other)
	assert.False(t, ok, "same pk under another token is a distinct identity")
}

func TestMap_Remove(t *testing.T) {
	m := NewMap()
	inst := core.NewInstance(stubType("Person"))
	key := core.IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: m.Token()}
	m.AddUnpresent(inst.State, key)

	m.Remove(key)
	_, ok := m.Get(key)
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}
