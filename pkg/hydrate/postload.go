package hydrate

import (
	"context"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// PostLoadState is one accumulated (object, first-sight) pair handed to a
// post-load operation.
type PostLoadState struct {
	State *core.InstanceState

	// FirstSight reports whether the row that accumulated this object was a
	// full (first-sight) population rather than a partial one.
	FirstSight bool
}

// PostLoadFunc is a second-phase operation: invoked once per row batch with
// every accumulated object whose type matches the registration's filter.
// loadKeys is the restricted attribute subset originally requested, nil for
// a full load. Operations may issue new queries that recurse into the
// row-processing pipeline.
type PostLoadFunc func(ctx context.Context, rc *RunContext, path core.LoadPath, states []PostLoadState, loadKeys []string) error

type postLoader struct {
	token   string
	limitTo core.TypeInfo
	fn      PostLoadFunc
}

// PostLoad tracks second-phase operations and affected objects for one load
// path. One record exists per distinct path within a run; the pending set
// accumulates across the current row batch and is cleared on invocation.
type PostLoad struct {
	path        core.LoadPath
	loaders     map[string]postLoader
	loaderOrder []string

	// states preserves accumulation order; index dedupes by state so the
	// same object appearing in several rows is recorded once, with the
	// first-sight flag of its latest row.
	states   []PostLoadState
	index    map[*core.InstanceState]int
	loadKeys []string
}

func newPostLoad(path core.LoadPath) *PostLoad {
	return &PostLoad{
		path:    path,
		loaders: make(map[string]postLoader),
		index:   make(map[*core.InstanceState]int),
	}
}

// AddState appends an object to the pending set. States for a polymorphic
// load are shared within one PostLoad record among multiple subtypes;
// per-subtype filtering is done at invocation.
func (pl *PostLoad) AddState(state *core.InstanceState, firstSight bool) {
	if i, ok := pl.index[state]; ok {
		pl.states[i].FirstSight = firstSight
		return
	}
	pl.index[state] = len(pl.states)
	pl.states = append(pl.states, PostLoadState{State: state, FirstSight: firstSight})
}

// Invoke fires every registered operation whose type filter matches at
// least one pending object, then clears the pending set whether or not any
// operation matched.
func (pl *PostLoad) Invoke(ctx context.Context, rc *RunContext) error {
	if len(pl.states) == 0 {
		return nil
	}
	defer func() {
		pl.states = nil
		pl.index = make(map[*core.InstanceState]int)
	}()

	for _, token := range pl.loaderOrder {
		loader := pl.loaders[token]
		var matched []PostLoadState
		for _, entry := range pl.states {
			if entry.State.Type.IsSubtypeOf(loader.limitTo) {
				matched = append(matched, entry)
			}
		}
		if len(matched) == 0 {
			continue
		}
		rc.Logger.Debug("invoking post-load",
			"path", pl.path.String(), "token", token, "states", len(matched))
		if err := loader.fn(ctx, rc, pl.path, matched, pl.loadKeys); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPostLoad registers a second-phase operation under a unique token
// for one load path, creating the path's record if needed. limitTo filters
// the operation to objects whose type is limitTo or a subtype of it.
func (rc *RunContext) RegisterPostLoad(path core.LoadPath, token string, limitTo core.TypeInfo, fn PostLoadFunc) {
	pl, ok := rc.postLoadPaths[path.Key()]
	if !ok {
		pl = newPostLoad(path)
		rc.postLoadPaths[path.Key()] = pl
		rc.pathOrder = append(rc.pathOrder, path.Key())
	}
	if _, ok := pl.loaders[token]; !ok {
		pl.loaderOrder = append(pl.loaderOrder, token)
	}
	pl.loaders[token] = postLoader{token: token, limitTo: limitTo, fn: fn}
}

// PostLoadExists reports whether an operation is registered under a token
// for a path.
func (rc *RunContext) PostLoadExists(path core.LoadPath, token string) bool {
	pl, ok := rc.postLoadPaths[path.Key()]
	if !ok {
		return false
	}
	_, ok = pl.loaders[token]
	return ok
}

// postLoadFor returns the path's record when operations are registered for
// it, stamping the restricted key set when one applies.
func (rc *RunContext) postLoadFor(path core.LoadPath, onlyLoadProps []string) *PostLoad {
	pl, ok := rc.postLoadPaths[path.Key()]
	if !ok {
		return nil
	}
	if onlyLoadProps != nil {
		pl.loadKeys = onlyLoadProps
	}
	return pl
}

// invokePostLoads fires pending post-load operations for every path, in
// registration order. Called once per row batch.
func (rc *RunContext) invokePostLoads(ctx context.Context) error {
	for _, key := range rc.pathOrder {
		if err := rc.postLoadPaths[key].Invoke(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}
