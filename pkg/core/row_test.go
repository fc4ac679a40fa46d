package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prefixAdapter qualifies bare column names with a table alias, the way a
// subquery wrapper would.
type prefixAdapter struct {
	table string
}

func (a prefixAdapter) AdaptColumn(col ColumnRef) (ColumnRef, bool) {
	if col.Table != "" {
		return col, false
	}
	return ColumnRef{Table: a.table, Name: col.Name}, true
}

func TestColumnRefLabel(t *testing.T) {
	assert.Equal(t, "id", ColumnRef{Name: "id"}.Label())
	assert.Equal(t, "p.id", ColumnRef{Table: "p", Name: "id"}.Label())
}

func TestResultMeta_Getter(t *testing.T) {
	meta := NewResultMeta([]string{"id", "name"}, nil)

	get, ok := meta.Getter(ColumnRef{Name: "name"})
	require.True(t, ok)
	v, present := get(Row{"id": int64(1), "name": "A"})
	assert.True(t, present)
	assert.Equal(t, "A", v)

	// NULL and absent are distinct.
	v, present = get(Row{"id": int64(1), "name": nil})
	assert.True(t, present)
	assert.Nil(t, v)
	_, present = get(Row{"id": int64(1)})
	assert.False(t, present)

	_, ok = meta.Getter(ColumnRef{Name: "missing"})
	assert.False(t, ok)
}

func TestResultMeta_AdapterFallback(t *testing.T) {
	meta := NewResultMeta([]string{"p.id", "p.name"}, prefixAdapter{table: "p"})

	// A pre-adaptation reference resolves through the adapter.
	get, ok := meta.Getter(ColumnRef{Name: "id"})
	require.True(t, ok)
	v, _ := get(Row{"p.id": int64(7)})
	assert.Equal(t, int64(7), v)

	// An already-adapted reference resolves directly.
	get, ok = meta.Getter(ColumnRef{Table: "p", Name: "id"})
	require.True(t, ok)
	v, _ = get(Row{"p.id": int64(7)})
	assert.Equal(t, int64(7), v)
}

func TestResultMeta_TupleGetter(t *testing.T) {
	meta := NewResultMeta([]string{"id", "tenant_id"}, nil)
	get := meta.TupleGetter([]ColumnRef{{Name: "id"}, {Name: "tenant_id"}, {Name: "absent"}})

	tuple := get(Row{"id": int64(1), "tenant_id": int64(2)})
	assert.Equal(t, []any{int64(1), int64(2), nil}, tuple)
}

func TestIdentityKey_Hash(t *testing.T) {
	a := IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: "t"}
	b := IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: "t"}
	assert.Equal(t, a.Hash(), b.Hash())

	// Dynamic type participates: int64(1) and "1" are distinct keys.
	c := IdentityKey{Class: "Person", PK: []any{"1"}, Token: "t"}
	assert.NotEqual(t, a.Hash(), c.Hash())

	// Token and class participate.
	d := a
	d.Token = "u"
	assert.NotEqual(t, a.Hash(), d.Hash())
	e := a
	e.Class = "Animal"
	assert.NotEqual(t, a.Hash(), e.Hash())
}

func TestIdentityKey_NilPolicies(t *testing.T) {
	assert.False(t, IdentityKey{PK: []any{int64(1), int64(2)}}.AnyNil())
	assert.True(t, IdentityKey{PK: []any{int64(1), nil}}.AnyNil())
	assert.False(t, IdentityKey{PK: []any{int64(1), nil}}.AllNil())
	assert.True(t, IdentityKey{PK: []any{nil, nil}}.AllNil())
}

func TestLoadPath(t *testing.T) {
	root := LoadPath{}
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.Key())
	assert.Equal(t, "(root)", root.String())

	p := root.Child("addresses", "Address").Child("city", "City")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "addresses:Address/city:City", p.Key())
	assert.True(t, p.Equal(NewLoadPath(
		PathStep{Relationship: "addresses", Target: "Address"},
		PathStep{Relationship: "city", Target: "City"},
	)))
	assert.False(t, p.Equal(root))

	// Child does not mutate the receiver.
	q := p.Child("country", "Country")
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 3, q.Len())

	joined := NewLoadPath(PathStep{Relationship: "a", Target: "A"}).
		Append(NewLoadPath(PathStep{Relationship: "b", Target: "B"}))
	assert.Equal(t, "a:A/b:B", joined.Key())
	assert.True(t, root.Append(p).Equal(p))
	assert.True(t, p.Append(root).Equal(p))
}
