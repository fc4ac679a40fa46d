package core

// Populator applies one property's row value to an object. Implementations
// receive the full row so multi-column transforms can see everything.
type Populator func(state *InstanceState, inst *Instance, row Row) error

// QuickPopulator is the fast path for trivial scalar columns: a pre-resolved
// getter written straight into the attribute dictionary.
type QuickPopulator struct {
	Key string
	Get Getter
}

// ExpirePopulator marks an attribute deferred/expired instead of reading it
// from the row. When MarkUnloaded is false the attribute is only cleared
// under populate-existing, without joining the unloaded set.
type ExpirePopulator struct {
	Key          string
	MarkUnloaded bool
}

// KeyedPopulator pairs a property key with its populator.
type KeyedPopulator struct {
	Key      string
	Populate Populator
}

// PopulatorSet is the bucketed population strategy for one mapped type at
// one load path. Buckets are applied in a fixed order depending on whether
// the target object is first-sight or already loaded:
//
//	Quick    - direct column reads
//	Expire   - attributes to mark deferred/expired
//	New      - first-sight transforms
//	Delayed  - transforms that require full row context
//	Existing - merge-safe transforms for already-seen objects
//	Eager    - attributes populated by a nested loader
type PopulatorSet struct {
	Quick    []QuickPopulator
	Expire   []ExpirePopulator
	New      []KeyedPopulator
	Delayed  []KeyedPopulator
	Existing []KeyedPopulator
	Eager    []KeyedPopulator
}

// Empty reports whether no bucket holds a populator.
func (p *PopulatorSet) Empty() bool {
	return len(p.Quick) == 0 && len(p.Expire) == 0 && len(p.New) == 0 &&
		len(p.Delayed) == 0 && len(p.Existing) == 0 && len(p.Eager) == 0
}
