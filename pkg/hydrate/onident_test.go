package hydrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/internal/testutil"
	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/identity"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// fakeIdentQuery records its invocations and plays back canned results.
type fakeIdentQuery struct {
	result *core.Instance
	err    error

	calls int
	pk    []any
	opts  LoadOptions
}

func (f *fakeIdentQuery) One(_ context.Context, pk []any, opts LoadOptions) (*core.Instance, error) {
	f.calls++
	f.pk = pk
	f.opts = opts
	return f.result, f.err
}

// addPerson places a keyed Person instance into the scope.
func addPerson(t *testing.T, mapper *mapping.Mapper, scope *identity.Map, id int64) *core.Instance {
	t.Helper()
	inst := mapper.NewInstance()
	inst.Attrs["id"] = id
	key := core.IdentityKey{Class: mapper.IdentityClass(), PK: []any{id}, Token: scope.Token()}
	inst.State.Key = &key
	inst.State.Token = scope.Token()
	scope.AddUnpresent(inst.State, key)
	return inst
}

func TestLoadOnIdent_NormalizesOptions(t *testing.T) {
	mapper := personMapper(t)
	q := &fakeIdentQuery{}
	state := mapper.NewInstance().State
	key := core.IdentityKey{Class: "Person", PK: []any{int64(7)}, Token: "shard-1"}

	_, err := LoadOnIdent(context.Background(), q, key, LoadOptions{RefreshState: state})
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)
	assert.Equal(t, []any{int64(7)}, q.pk)
	assert.True(t, q.opts.PopulateExisting, "refresh implies populate-existing")
	assert.Equal(t, "shard-1", q.opts.IdentityToken)
}

func TestGetFromIdentity_AbsentKey(t *testing.T) {
	scope := identity.NewMap()
	q := &fakeIdentQuery{}
	key := core.IdentityKey{Class: "Person", PK: []any{int64(1)}, Token: scope.Token()}

	inst, err := GetFromIdentity(context.Background(), scope, q, key)
	require.NoError(t, err)
	assert.Nil(t, inst)
	assert.Zero(t, q.calls)
}

func TestGetFromIdentity_PresentNotExpired(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	want := addPerson(t, mapper, scope, 1)
	q := &fakeIdentQuery{}

	got, err := GetFromIdentity(context.Background(), scope, q, *want.State.Key)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Zero(t, q.calls, "an unexpired object needs no round trip")
}

func TestGetFromIdentity_ExpiredReloaded(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	want := addPerson(t, mapper, scope, 1)
	want.State.FullyExpired = true
	q := &fakeIdentQuery{result: want}

	got, err := GetFromIdentity(context.Background(), scope, q, *want.State.Key)
	require.NoError(t, err)
	assert.Same(t, want, got)
	require.Equal(t, 1, q.calls)
	assert.Same(t, want.State, q.opts.RefreshState)
}

func TestGetFromIdentity_ExpiredRowGone(t *testing.T) {
	// An expired object whose row no longer exists reads as absent, and the
	// stale entry is evicted from the scope.
	mapper := personMapper(t)
	scope := identity.NewMap()
	stale := addPerson(t, mapper, scope, 1)
	stale.State.FullyExpired = true
	key := *stale.State.Key

	for _, q := range []*fakeIdentQuery{
		{result: nil},
		{err: &ObjectDeletedError{Key: key}},
	} {
		scope.AddUnpresent(stale.State, key)
		got, err := GetFromIdentity(context.Background(), scope, q, key)
		require.NoError(t, err)
		assert.Nil(t, got)
		_, present := scope.Get(key)
		assert.False(t, present)
	}
}

func TestGetFromIdentity_NilQuerySkipsRevalidation(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	want := addPerson(t, mapper, scope, 1)
	want.State.FullyExpired = true

	got, err := GetFromIdentity(context.Background(), scope, nil, *want.State.Key)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestLoadScalarAttributes_Detached(t *testing.T) {
	mapper := personMapper(t)
	inst := mapper.NewInstance()

	err := LoadScalarAttributes(context.Background(), mapper, inst, []string{"name"}, &fakeIdentQuery{}, nil)
	var detached *DetachedInstanceError
	require.ErrorAs(t, err, &detached)
	assert.Equal(t, "Person", detached.Type)
}

func TestLoadScalarAttributes_RefreshesKeyedObject(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	inst := addPerson(t, mapper, scope, 1)
	q := &fakeIdentQuery{result: inst}

	err := LoadScalarAttributes(context.Background(), mapper, inst,
		[]string{"name", "not_mapped"}, q, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)
	assert.Equal(t, []any{int64(1)}, q.pk)
	assert.Equal(t, []string{"name"}, q.opts.OnlyLoadProps, "unmapped names are filtered out")
	assert.Same(t, inst.State, q.opts.RefreshState)
}

func TestLoadScalarAttributes_KeyedRowGone(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	inst := addPerson(t, mapper, scope, 1)
	q := &fakeIdentQuery{result: nil}

	err := LoadScalarAttributes(context.Background(), mapper, inst, []string{"name"}, q, nil)
	var deleted *ObjectDeletedError
	require.ErrorAs(t, err, &deleted)
	assert.Equal(t, []any{int64(1)}, deleted.Key.PK)
}

func TestLoadScalarAttributes_MidFlushComputedKey(t *testing.T) {
	// No assigned key yet, but the key attributes are loaded: the key is
	// computed from them and absence of the row is tolerated.
	mapper := personMapper(t)
	scope := identity.NewMap()
	inst := mapper.NewInstance()
	inst.Attrs["id"] = int64(5)
	inst.State.Scope = scope
	q := &fakeIdentQuery{result: nil}

	err := LoadScalarAttributes(context.Background(), mapper, inst, []string{"name"}, q, nil)
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)
	assert.Equal(t, []any{int64(5)}, q.pk)
}

func TestLoadScalarAttributes_MidFlushExpiredKey(t *testing.T) {
	mapper := personMapper(t)
	scope := identity.NewMap()
	inst := mapper.NewInstance()
	inst.State.Scope = scope
	inst.State.Expired["id"] = struct{}{}

	err := LoadScalarAttributes(context.Background(), mapper, inst, []string{"name"}, &fakeIdentQuery{}, nil)
	var incomplete *IncompleteIdentityError
	require.ErrorAs(t, err, &incomplete)
}

func TestLoadScalarAttributes_NilKeySkips(t *testing.T) {
	// A fully-null key cannot address a row; the refresh is skipped with a
	// warning rather than raised.
	mapper := personMapper(t)
	scope := identity.NewMap()
	inst := mapper.NewInstance()
	key := core.IdentityKey{Class: mapper.IdentityClass(), PK: []any{nil}, Token: scope.Token()}
	inst.State.Key = &key
	scope.AddUnpresent(inst.State, key)
	q := &fakeIdentQuery{}

	err := LoadScalarAttributes(context.Background(), mapper, inst, []string{"name"}, q, testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Zero(t, q.calls)
}
