package mapping

import "github.com/leapstack-labs/leaporm/pkg/core"

// ColumnProperty maps one scalar column straight into an attribute. The
// common case; resolved through the quick fast path whenever the column is
// present in the result.
type ColumnProperty struct {
	PropKey string
	Col     core.ColumnRef
}

// Column builds a ColumnProperty whose attribute and column share a name.
func Column(name string) *ColumnProperty {
	return &ColumnProperty{PropKey: name, Col: core.ColumnRef{Name: name}}
}

func (p *ColumnProperty) Key() string { return p.PropKey }

func (p *ColumnProperty) Setup(sc *SetupContext) {
	sc.Memoized[p.PropKey] = QuickSetup{Kind: QuickColumn, Col: p.Col}
}

func (p *ColumnProperty) CreateRowProcessor(meta *core.ResultMeta, _ core.LoadPath, pop *core.PopulatorSet) {
	if getter, ok := meta.Getter(p.Col); ok {
		pop.Quick = append(pop.Quick, core.QuickPopulator{Key: p.PropKey, Get: getter})
	} else {
		// Column not part of this result; the attribute stays unloaded.
		pop.Expire = append(pop.Expire, core.ExpirePopulator{Key: p.PropKey, MarkUnloaded: true})
	}
}

// DeferredColumnProperty maps a column whose value is not loaded with the
// main row. RaiseOnRow controls the two deferral flavors: when true the
// attribute joins the unloaded set on first sight (defer-for-state), when
// false it is merely excluded from the result without joining the unloaded
// set (set-deferred-expired).
type DeferredColumnProperty struct {
	PropKey    string
	Col        core.ColumnRef
	RaiseOnRow bool
}

// Deferred builds a defer-for-state column property.
func Deferred(name string) *DeferredColumnProperty {
	return &DeferredColumnProperty{PropKey: name, Col: core.ColumnRef{Name: name}, RaiseOnRow: true}
}

func (p *DeferredColumnProperty) Key() string { return p.PropKey }

func (p *DeferredColumnProperty) Setup(sc *SetupContext) {
	if p.RaiseOnRow {
		sc.Memoized[p.PropKey] = QuickSetup{Kind: QuickDeferForState, Col: p.Col}
	} else {
		sc.Memoized[p.PropKey] = QuickSetup{Kind: QuickSetDeferredExpired, Col: p.Col}
	}
}

func (p *DeferredColumnProperty) CreateRowProcessor(_ *core.ResultMeta, _ core.LoadPath, pop *core.PopulatorSet) {
	pop.Expire = append(pop.Expire, core.ExpirePopulator{Key: p.PropKey, MarkUnloaded: p.RaiseOnRow})
}

// ExpressionProperty derives an attribute from the full row rather than a
// single column, e.g. a composite of several columns. Contributes to the
// delayed bucket on first sight and merges idempotently on repeat rows.
type ExpressionProperty struct {
	PropKey string
	Compute func(row core.Row) (any, error)
}

func (p *ExpressionProperty) Key() string { return p.PropKey }

func (p *ExpressionProperty) Setup(_ *SetupContext) {
	// No fast path: needs full row context every time.
}

func (p *ExpressionProperty) CreateRowProcessor(_ *core.ResultMeta, _ core.LoadPath, pop *core.PopulatorSet) {
	populate := func(_ *core.InstanceState, inst *core.Instance, row core.Row) error {
		v, err := p.Compute(row)
		if err != nil {
			return err
		}
		inst.Attrs[p.PropKey] = v
		return nil
	}
	pop.Delayed = append(pop.Delayed, core.KeyedPopulator{Key: p.PropKey, Populate: populate})
	pop.Existing = append(pop.Existing, core.KeyedPopulator{Key: p.PropKey, Populate: populate})
}

// EagerProperty is a relationship attribute populated by a nested loader
// that shares this query's rows, as a joined eager load does. Populate runs
// on first-sight rows; Merge runs for repeat rows and for already-loaded
// objects receiving fresh eager data. When Merge is nil, Populate serves
// both roles and must therefore be idempotent.
type EagerProperty struct {
	PropKey  string
	Populate core.Populator
	Merge    core.Populator
}

func (p *EagerProperty) Key() string { return p.PropKey }

func (p *EagerProperty) Setup(_ *SetupContext) {
	// Nested loaders contribute per-row; no scalar fast path exists.
}

func (p *EagerProperty) CreateRowProcessor(_ *core.ResultMeta, _ core.LoadPath, pop *core.PopulatorSet) {
	merge := p.Merge
	if merge == nil {
		merge = p.Populate
	}
	pop.New = append(pop.New, core.KeyedPopulator{Key: p.PropKey, Populate: p.Populate})
	pop.Existing = append(pop.Existing, core.KeyedPopulator{Key: p.PropKey, Populate: merge})
	pop.Eager = append(pop.Eager, core.KeyedPopulator{Key: p.PropKey, Populate: merge})
}
