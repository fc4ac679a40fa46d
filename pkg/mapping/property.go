package mapping

import "github.com/leapstack-labs/leaporm/pkg/core"

// QuickKind tags a memoized per-path setup for one property.
type QuickKind int

const (
	// QuickColumn marks a trivial scalar column read.
	QuickColumn QuickKind = iota

	// QuickDeferForState marks an attribute deferred until first access.
	QuickDeferForState

	// QuickSetDeferredExpired marks an attribute excluded from the result;
	// no fallback search through the row is attempted.
	QuickSetDeferredExpired
)

// QuickSetup is one memoized fast-path entry, recorded during query setup
// and reused by processor construction without consulting the property.
type QuickSetup struct {
	Kind QuickKind
	Col  core.ColumnRef
}

// SetupContext carries the per-path state a property's Setup phase writes
// into: the memoized quick setups for the load path being prepared.
type SetupContext struct {
	Path          core.LoadPath
	Adapter       core.ColumnAdapter
	OnlyLoadProps map[string]struct{}

	// Memoized receives fast-path entries keyed by property.
	Memoized map[string]QuickSetup
}

// Property is one mapped property's loading strategy. Setup pre-registers
// fast-path column getters for a load path; CreateRowProcessor contributes
// populators into the bucketed set when no fast path applies.
type Property interface {
	Key() string
	Setup(sc *SetupContext)
	CreateRowProcessor(meta *core.ResultMeta, path core.LoadPath, pop *core.PopulatorSet)
}
