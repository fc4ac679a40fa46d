package hydrate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// Scope is the owner-side view of an identity map: the engine removes an
// entry only when an expired object turns out deleted during lookup.
type Scope interface {
	core.IdentityMap
	Remove(key core.IdentityKey)
}

// LoadOptions carries the load flags a refresh-by-identity hands to the
// query layer.
type LoadOptions struct {
	// RefreshState pins the load to a specific object; the row processor
	// resolves every row to it.
	RefreshState *core.InstanceState

	// OnlyLoadProps restricts the load to a property subset.
	OnlyLoadProps []string

	// VersionCheck requests optimistic-concurrency validation.
	VersionCheck bool

	// PopulateExisting forces re-population of already-loaded objects.
	// Implied by RefreshState.
	PopulateExisting bool

	// IdentityToken is the scope token the identity was computed under.
	IdentityToken string
}

// IdentQuery is the narrow slice of the query layer a refresh-by-identity
// needs: load at most one object for a primary key. A nil instance with a
// nil error means no row matched.
type IdentQuery interface {
	One(ctx context.Context, pk []any, opts LoadOptions) (*core.Instance, error)
}

// LoadOnIdent loads one identity key through the query collaborator,
// normalizing the option flags: a refresh implies populate-existing, and
// the key's token rides along.
func LoadOnIdent(ctx context.Context, q IdentQuery, key core.IdentityKey, opts LoadOptions) (*core.Instance, error) {
	if opts.IdentityToken == "" {
		opts.IdentityToken = key.Token
	}
	if opts.RefreshState != nil {
		opts.PopulateExisting = true
	}
	return q.One(ctx, key.PK, opts)
}

// GetFromIdentity looks a key up in the identity scope, revalidating
// expired objects against the database. An expired object whose row is
// gone is treated as deleted: it is removed from the scope and the lookup
// reports absence instead of raising. Passing a nil query skips
// revalidation, for callers inside a flush where expired state is checked
// soon enough anyway.
func GetFromIdentity(ctx context.Context, scope Scope, q IdentQuery, key core.IdentityKey) (*core.Instance, error) {
	inst, ok := scope.Get(key)
	if !ok {
		return nil, nil
	}

	state := inst.State
	if state.FullyExpired && q != nil {
		reloaded, err := LoadOnIdent(ctx, q, key, LoadOptions{RefreshState: state})
		if err != nil {
			var deleted *ObjectDeletedError
			if errors.As(err, &deleted) {
				scope.Remove(key)
				return nil, nil
			}
			return nil, err
		}
		if reloaded == nil {
			scope.Remove(key)
			return nil, nil
		}
	}
	return inst, nil
}

// LoadScalarAttributes initiates a column-based attribute refresh for one
// object: requested names are filtered to the mapped property set, the
// identity key is taken from the object's state (or computed from its
// loaded key attributes mid-flush), and the query collaborator reloads the
// attributes through the regular refresh pipeline.
func LoadScalarAttributes(ctx context.Context, mapper *mapping.Mapper, inst *core.Instance, attributeNames []string, q IdentQuery, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	state := inst.State
	if state.Scope == nil {
		return &DetachedInstanceError{Type: state.Type.TypeName()}
	}

	hasKey := state.HasIdentity()

	// Inherited class managers may expose attribute keys the mapper never
	// mapped; filter them out rather than asking the row pipeline for them.
	var names []string
	for _, name := range attributeNames {
		if _, ok := mapper.Property(name); ok {
			names = append(names, name)
		}
	}

	var key core.IdentityKey
	if hasKey {
		key = *state.Key
	} else {
		// Rare mid-flush path: the object is becoming persistent but has
		// no assigned key yet; its key attributes must all be loaded.
		for _, pkProp := range mapper.PKProps() {
			if _, expired := state.Expired[pkProp]; expired {
				return &IncompleteIdentityError{Type: mapper.TypeName()}
			}
		}
		computed, ok := mapper.IdentityKeyFromInstance(inst, state.Token)
		if !ok {
			return &IncompleteIdentityError{Type: mapper.TypeName()}
		}
		key = computed
	}

	if key.AllNil() || (key.AnyNil() && !mapper.AllowPartialPKs()) {
		logger.Warn("instance to be refreshed does not contain a full primary key; skipping refresh",
			"type", mapper.TypeName(), "key", key.String())
		return nil
	}

	result, err := LoadOnIdent(ctx, q, key, LoadOptions{
		RefreshState:  state,
		OnlyLoadProps: names,
	})
	if err != nil {
		return err
	}

	// A pending instance may legitimately find no row; a keyed one may not.
	if hasKey && result == nil {
		return &ObjectDeletedError{Key: key}
	}
	return nil
}
