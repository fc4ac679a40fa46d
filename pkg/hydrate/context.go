// Package hydrate is the row-to-object hydration engine of leaporm: it
// converts raw tabular query results into graphs of identity-tracked
// objects, reconciling rows against the identity map, dispatching
// polymorphic subtypes, applying full or partial attribute population, and
// coordinating deferred post-load operations.
//
// The engine is single-threaded and pulls rows batch-wise on the calling
// goroutine. It mutates the identity map it is given but never removes
// entries from it; concurrent use of one identity map is undefined and must
// be prevented by the caller.
package hydrate

import (
	"log/slog"
	"sync/atomic"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/event"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// RunSequence issues monotonically increasing run ids. One sequence is
// owned by the top-level query-execution context; run ids tag which load
// pass last touched an object.
type RunSequence struct {
	n atomic.Uint64
}

// Next returns the next run id.
func (s *RunSequence) Next() uint64 {
	return s.n.Add(1)
}

// Config configures one execution-scoped run context.
type Config struct {
	// IdentityMap is the shared per-unit-of-work identity scope. Required.
	IdentityMap core.IdentityMap

	// Sequence issues the run id. Required. Every run touching the same
	// identity map must draw from one shared sequence: colliding run ids
	// make objects from an earlier run look current, silently disabling
	// version checks and partial population.
	Sequence *RunSequence

	// IdentityToken discriminates identities across scopes (e.g. shards).
	// Defaults to the identity map's own token when it exposes one.
	IdentityToken string

	// VersionCheck enables optimistic-concurrency validation of already
	// loaded objects against each row's version column.
	VersionCheck bool

	// PopulateExisting forces full re-population of objects that were
	// already loaded before this run.
	PopulateExisting bool

	// PropagateOptions marks that caller loader options propagate onto
	// loaded objects' states.
	PropagateOptions bool

	// DisableEagerInvoke excludes partially-populated objects from
	// post-load accumulation; by default they are included.
	DisableEagerInvoke bool

	// CurrentPath is the load path prefix the query executes under, set
	// when a refresh re-enters the pipeline mid-path.
	CurrentPath core.LoadPath

	// Events receives lifecycle notifications. Optional.
	Events *event.Dispatcher

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// tokenSource is implemented by identity maps that carry their own token.
type tokenSource interface {
	Token() string
}

// RunContext is the per-execution-scope state of one load run: the run id,
// option flags, the partial-population coalescing map, the post-load
// registrations and the memoized per-path quick setups. Discarded when the
// run ends.
type RunContext struct {
	RunID            uint64
	IdentityMap      core.IdentityMap
	IdentityToken    string
	VersionCheck     bool
	PopulateExisting bool
	PropagateOptions bool
	InvokeAllEagers  bool
	CurrentPath      core.LoadPath
	Events           *event.Dispatcher
	Logger           *slog.Logger

	// partials coalesces partial refresh requests for one object across the
	// rows of a batch: state -> attribute names already requested this run.
	partials map[*core.InstanceState]map[string]struct{}

	// postLoadPaths holds one PostLoad record per distinct load path.
	postLoadPaths map[string]*PostLoad
	pathOrder     []string

	// memoizedSetups holds the per-path fast-path entries recorded by
	// SetupEntityQuery, keyed by load path then property.
	memoizedSetups map[string]map[string]mapping.QuickSetup
}

// NewRunContext stamps a fresh run id and builds the per-run state.
func NewRunContext(cfg Config) *RunContext {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	token := cfg.IdentityToken
	if token == "" {
		if ts, ok := cfg.IdentityMap.(tokenSource); ok {
			token = ts.Token()
		}
	}
	return &RunContext{
		RunID:            cfg.Sequence.Next(),
		IdentityMap:      cfg.IdentityMap,
		IdentityToken:    token,
		VersionCheck:     cfg.VersionCheck,
		PopulateExisting: cfg.PopulateExisting,
		PropagateOptions: cfg.PropagateOptions,
		InvokeAllEagers:  !cfg.DisableEagerInvoke,
		CurrentPath:      cfg.CurrentPath,
		Events:           cfg.Events,
		Logger:           logger,
		partials:         make(map[*core.InstanceState]map[string]struct{}),
		postLoadPaths:    make(map[string]*PostLoad),
		memoizedSetups:   make(map[string]map[string]mapping.QuickSetup),
	}
}

// resetPartials clears the coalescing map at each batch boundary.
func (rc *RunContext) resetPartials() {
	rc.partials = make(map[*core.InstanceState]map[string]struct{})
}

// memoizedFor returns the fast-path setups recorded for a load path, nil
// when no setup phase ran for it.
func (rc *RunContext) memoizedFor(path core.LoadPath) map[string]mapping.QuickSetup {
	return rc.memoizedSetups[path.Key()]
}

// SetupEntityQuery runs the setup phase for one mapped type at one load
// path: each property pre-registers its fast-path column getter (or
// deferral marker) into the run context, for reuse by every processor
// constructed for that path. Properties outside onlyLoadProps are skipped.
func (rc *RunContext) SetupEntityQuery(mapper *mapping.Mapper, path core.LoadPath, adapter core.ColumnAdapter, onlyLoadProps []string) {
	only := toSet(onlyLoadProps)
	memoized := make(map[string]mapping.QuickSetup)
	rc.memoizedSetups[path.Key()] = memoized

	sc := &mapping.SetupContext{
		Path:          path,
		Adapter:       adapter,
		OnlyLoadProps: only,
		Memoized:      memoized,
	}
	for _, prop := range mapper.Properties() {
		if only != nil {
			if _, ok := only[prop.Key()]; !ok {
				continue
			}
		}
		prop.Setup(sc)
	}
	rc.Logger.Debug("entity query setup",
		"type", mapper.TypeName(), "path", path.String(), "quick_setups", len(memoized))
}

func toSet(keys []string) map[string]struct{} {
	if keys == nil {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
