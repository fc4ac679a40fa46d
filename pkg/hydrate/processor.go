package hydrate

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/mapping"
)

// ProcessorConfig configures an InstanceProcessor for one mapped entity of
// one query.
type ProcessorConfig struct {
	// Mapper is the mapped type this processor hydrates. Required.
	Mapper *mapping.Mapper

	// Meta describes the result set's columns. Required.
	Meta *core.ResultMeta

	// Path is the entity's load path relative to the query root.
	Path core.LoadPath

	// Adapter rewrites column references, if the query applied one.
	Adapter core.ColumnAdapter

	// OnlyLoadProps restricts population to a property subset. Names not
	// mapped on the type are silently excluded.
	OnlyLoadProps []string

	// RefreshState pins the processor to a specific object being
	// refreshed; every row resolves to it.
	RefreshState *core.InstanceState

	// PolymorphicDiscriminator overrides the mapper's discriminator
	// column for this query.
	PolymorphicDiscriminator *core.ColumnRef
}

// InstanceProcessor turns rows into mapped instances for one entity of one
// query. Construction resolves the population strategy once; ProcessRow is
// the per-row hot path. Not safe for concurrent use.
type InstanceProcessor struct {
	rc     *RunContext
	mapper *mapping.Mapper
	meta   *core.ResultMeta

	path          core.LoadPath
	loadPath      core.LoadPath
	onlyLoadProps []string
	propKeys      []string

	populators core.PopulatorSet

	refreshState *core.InstanceState
	refreshKey   *core.IdentityKey

	pkGetter        core.TupleGetter
	isNotPrimaryKey func(pk []any) bool
	versionGetter   core.Getter

	populateExisting bool
	postLoad         *PostLoad

	loadEvt       bool
	refreshEvt    bool
	persistentEvt bool

	poly *polymorphicSwitch
}

// NewInstanceProcessor compiles the row-processing strategy for one mapped
// entity: populator buckets (reusing memoized fast-path setups recorded by
// SetupEntityQuery), primary-key and version getters, post-load wiring and,
// for polymorphic hierarchies, the per-discriminator dispatch.
func NewInstanceProcessor(rc *RunContext, cfg ProcessorConfig) (*InstanceProcessor, error) {
	return newInstanceProcessor(rc, cfg, nil)
}

func newInstanceProcessor(rc *RunContext, cfg ProcessorConfig, polymorphicFrom *mapping.Mapper) (*InstanceProcessor, error) {
	mapper := cfg.Mapper
	if mapper == nil {
		return nil, fmt.Errorf("processor requires a mapper")
	}
	if cfg.Meta == nil {
		return nil, fmt.Errorf("processor requires result metadata")
	}

	p := &InstanceProcessor{
		rc:               rc,
		mapper:           mapper,
		meta:             cfg.Meta,
		path:             cfg.Path,
		loadPath:         rc.CurrentPath.Append(cfg.Path),
		refreshState:     cfg.RefreshState,
		populateExisting: rc.PopulateExisting || mapper.AlwaysRefresh(),
		loadEvt:          rc.Events.HasLoad(),
		refreshEvt:       rc.Events.HasRefresh(),
		persistentEvt:    rc.Events.HasLoadedAsPersistent(),
	}

	props := mapper.Properties()
	if cfg.OnlyLoadProps != nil {
		only := toSet(cfg.OnlyLoadProps)
		filtered := make([]mapping.Property, 0, len(only))
		for _, prop := range props {
			if _, ok := only[prop.Key()]; ok {
				filtered = append(filtered, prop)
				p.onlyLoadProps = append(p.onlyLoadProps, prop.Key())
			}
		}
		props = filtered
	}
	p.propKeys = make([]string, len(props))
	for i, prop := range props {
		p.propKeys[i] = prop.Key()
	}

	p.buildPopulators(props)

	if cfg.RefreshState == nil && polymorphicFrom != nil {
		if loader := mapper.SubclassLoader(); loader != nil && mapper != polymorphicFrom {
			// A subclass reached through a base-type polymorphic load gets
			// its remaining columns via a second-phase IN-list load.
			rc.RegisterPostLoad(p.loadPath, "subclass:"+mapper.TypeName(), mapper, subclassInPostLoad(loader))
		}
	}
	p.postLoad = rc.postLoadFor(p.loadPath, p.onlyLoadProps)

	if cfg.RefreshState != nil {
		if cfg.RefreshState.Key != nil {
			p.refreshKey = cfg.RefreshState.Key
		} else {
			// A refresh on an object with no assigned key only occurs
			// mid-flush; compute the key from its loaded attributes.
			key, ok := mapper.IdentityKeyFromInstance(cfg.RefreshState.Instance(), rc.IdentityToken)
			if !ok {
				return nil, &IncompleteIdentityError{Type: mapper.TypeName()}
			}
			p.refreshKey = &key
		}
	} else {
		p.pkGetter = cfg.Meta.TupleGetter(mapper.PrimaryKey())
	}

	if mapper.AllowPartialPKs() {
		p.isNotPrimaryKey = allNil
	} else {
		p.isNotPrimaryKey = anyNil
	}

	if col := mapper.VersionCol(); col != nil {
		if getter, ok := cfg.Meta.Getter(*col); ok {
			p.versionGetter = getter
		}
	}

	if mapper.PolymorphicMap() != nil && polymorphicFrom == nil && cfg.RefreshState == nil {
		poly, err := newPolymorphicSwitch(p, cfg)
		if err != nil {
			return nil, err
		}
		p.poly = poly
	}

	rc.Logger.Debug("instance processor ready",
		"type", mapper.TypeName(),
		"path", p.loadPath.String(),
		"quick", len(p.populators.Quick),
		"polymorphic", p.poly != nil)

	return p, nil
}

// buildPopulators fills the buckets, preferring memoized fast-path setups
// over asking each property.
func (p *InstanceProcessor) buildPopulators(props []mapping.Property) {
	quick := p.rc.memoizedFor(p.path)

	for _, prop := range props {
		setup, ok := quick[prop.Key()]
		if !ok {
			prop.CreateRowProcessor(p.meta, p.path, &p.populators)
			continue
		}
		switch setup.Kind {
		case mapping.QuickDeferForState:
			key := prop.Key()
			p.populators.New = append(p.populators.New, core.KeyedPopulator{
				Key: key,
				Populate: func(state *core.InstanceState, _ *core.Instance, _ core.Row) error {
					state.Expired[key] = struct{}{}
					return nil
				},
			})
		case mapping.QuickSetDeferredExpired:
			// Deliberately excluded from the result; no fallback search
			// through the row is attempted.
			p.populators.Expire = append(p.populators.Expire, core.ExpirePopulator{
				Key: prop.Key(), MarkUnloaded: false,
			})
		default:
			if getter, ok := p.meta.Getter(setup.Col); ok {
				p.populators.Quick = append(p.populators.Quick, core.QuickPopulator{
					Key: prop.Key(), Get: getter,
				})
			} else {
				// The memoized column is not in this result after all;
				// let the property search its own column set.
				prop.CreateRowProcessor(p.meta, p.path, &p.populators)
			}
		}
	}
}

// Mapper returns the mapped type this processor hydrates.
func (p *InstanceProcessor) Mapper() *mapping.Mapper {
	return p.mapper
}

// LoadPath returns the processor's effective load path.
func (p *InstanceProcessor) LoadPath() core.LoadPath {
	return p.loadPath
}

// ProcessRow resolves one row to an object and populates it. A nil
// instance with nil error means the row denotes no entity (all-NULL
// primary key, or NULL discriminator with all-NULL key).
func (p *InstanceProcessor) ProcessRow(row core.Row) (*core.Instance, error) {
	if p.poly != nil {
		return p.poly.process(row)
	}
	return p.processRow(row)
}

func (p *InstanceProcessor) processRow(row core.Row) (*core.Instance, error) {
	var (
		state          *core.InstanceState
		inst           *core.Instance
		isnew          bool
		currentload    bool
		loadedInstance bool
	)

	if p.refreshKey != nil {
		// Fixed object being refreshed.
		state = p.refreshState
		inst = state.Instance()
		isnew = state.RunID != p.rc.RunID
		currentload = true
	} else {
		key := core.IdentityKey{
			Class: p.mapper.IdentityClass(),
			PK:    p.pkGetter(row),
			Token: p.rc.IdentityToken,
		}

		if existing, ok := p.rc.IdentityMap.Get(key); ok {
			inst = existing
			state = inst.State
			isnew = state.RunID != p.rc.RunID
			currentload = !isnew

			// Every row carrying an already-loaded identity is validated,
			// including same-run duplicates.
			if p.rc.VersionCheck {
				if err := p.validateVersion(inst, row); err != nil {
					return nil, err
				}
			}
		} else {
			// No entity for a row whose key components are absent per the
			// type's partial-key policy.
			if p.isNotPrimaryKey(key.PK) {
				return nil, nil
			}

			isnew = true
			currentload = true
			loadedInstance = true

			inst = p.mapper.NewInstance()
			state = inst.State
			assigned := key
			state.Key = &assigned
			state.Token = p.rc.IdentityToken
			p.rc.IdentityMap.AddUnpresent(state, key)
		}
	}

	if currentload || p.populateExisting {
		// Full population: the object is either freshly part of this run
		// or re-population is forced.
		if isnew && (p.rc.PropagateOptions || !p.populateExisting) {
			// Under populate-existing, keep the path from the original
			// load so deferred options are maintained.
			state.LoadPath = p.loadPath
		}

		if err := p.populateFull(row, state, inst, isnew); err != nil {
			return nil, err
		}

		if isnew {
			if loadedInstance {
				if p.loadEvt {
					p.rc.Events.FireLoad(inst)
				}
				if p.persistentEvt {
					p.rc.Events.FireLoadedAsPersistent(inst)
				}
			} else if p.refreshEvt {
				p.rc.Events.FireRefresh(inst, p.onlyLoadProps)
			}

			if p.refreshState != nil && p.onlyLoadProps != nil {
				state.Commit(p.onlyLoadProps)
			} else {
				state.CommitAll()
			}
		}

		if p.postLoad != nil {
			p.postLoad.AddState(state, true)
		}
	} else {
		// Partial population: the object predates this run and is not
		// being force-repopulated; refresh whatever is still unloaded and
		// feed eager loaders.
		unloaded := state.Unloaded(p.propKeys)
		_, seen := p.rc.partials[state]
		isnew = !seen

		if !isnew || len(unloaded) > 0 || len(p.populators.Eager) > 0 {
			toLoad, err := p.populatePartial(row, state, inst, isnew, unloaded)
			if err != nil {
				return nil, err
			}

			if isnew {
				keys := sortedKeys(toLoad)
				if p.refreshEvt {
					p.rc.Events.FireRefresh(inst, keys)
				}
				state.Commit(keys)
			}
		}

		if p.postLoad != nil && p.rc.InvokeAllEagers {
			p.postLoad.AddState(state, false)
		}
	}

	return inst, nil
}

func (p *InstanceProcessor) populateFull(row core.Row, state *core.InstanceState, inst *core.Instance, isnew bool) error {
	switch {
	case isnew:
		// First row with this identity this run.
		state.RunID = p.rc.RunID

		for _, q := range p.populators.Quick {
			v, _ := q.Get(row)
			inst.Attrs[q.Key] = v
		}
		if p.populateExisting {
			for _, e := range p.populators.Expire {
				delete(inst.Attrs, e.Key)
				if e.MarkUnloaded {
					state.Expired[e.Key] = struct{}{}
				}
			}
		} else {
			for _, e := range p.populators.Expire {
				if e.MarkUnloaded {
					state.Expired[e.Key] = struct{}{}
				}
			}
		}
		for _, kp := range p.populators.New {
			if err := kp.Populate(state, inst, row); err != nil {
				return err
			}
		}
		for _, kp := range p.populators.Delayed {
			if err := kp.Populate(state, inst, row); err != nil {
				return err
			}
		}

	case !p.loadPath.Equal(state.LoadPath):
		// Same object reached via a new path, e.g. present in more than
		// one column position across a series of rows.
		state.LoadPath = p.loadPath

		for _, q := range p.populators.Quick {
			if _, ok := inst.Attrs[q.Key]; !ok {
				v, _ := q.Get(row)
				inst.Attrs[q.Key] = v
			}
		}
		for _, kp := range p.populators.Existing {
			if err := kp.Populate(state, inst, row); err != nil {
				return err
			}
		}

	default:
		// Repeat row with this identity on the same path.
		for _, kp := range p.populators.Existing {
			if err := kp.Populate(state, inst, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *InstanceProcessor) populatePartial(row core.Row, state *core.InstanceState, inst *core.Instance, isnew bool, unloaded map[string]struct{}) (map[string]struct{}, error) {
	var toLoad map[string]struct{}
	if !isnew {
		// Object already touched earlier in this batch: reuse the recorded
		// to-load set so rows coalesce.
		toLoad = p.rc.partials[state]
		for _, kp := range p.populators.Existing {
			if _, ok := toLoad[kp.Key]; ok {
				if err := kp.Populate(state, inst, row); err != nil {
					return nil, err
				}
			}
		}
	} else {
		toLoad = unloaded
		p.rc.partials[state] = toLoad

		for _, q := range p.populators.Quick {
			if _, ok := toLoad[q.Key]; ok {
				v, _ := q.Get(row)
				inst.Attrs[q.Key] = v
			}
		}
		for _, e := range p.populators.Expire {
			if _, ok := toLoad[e.Key]; ok {
				delete(inst.Attrs, e.Key)
				if e.MarkUnloaded {
					state.Expired[e.Key] = struct{}{}
				}
			}
		}
		for _, kp := range p.populators.New {
			if _, ok := toLoad[kp.Key]; ok {
				if err := kp.Populate(state, inst, row); err != nil {
					return nil, err
				}
			}
		}
		for _, kp := range p.populators.Delayed {
			if _, ok := toLoad[kp.Key]; ok {
				if err := kp.Populate(state, inst, row); err != nil {
					return nil, err
				}
			}
		}
	}

	// Already-loaded relationships still receive fresh eager-loaded data.
	for _, kp := range p.populators.Eager {
		if _, ok := unloaded[kp.Key]; !ok {
			if err := kp.Populate(state, inst, row); err != nil {
				return nil, err
			}
		}
	}
	return toLoad, nil
}

// validateVersion checks the row's version column against the object's
// loaded version before any attribute is touched.
func (p *InstanceProcessor) validateVersion(inst *core.Instance, row core.Row) error {
	if p.versionGetter == nil {
		return nil
	}
	have := inst.Attrs[p.mapper.VersionProp()]
	loaded, _ := p.versionGetter(row)
	if have != loaded {
		var key core.IdentityKey
		if inst.State.Key != nil {
			key = *inst.State.Key
		}
		return &StaleDataError{Key: key, Have: have, Loaded: loaded}
	}
	return nil
}

func anyNil(pk []any) bool {
	for _, v := range pk {
		if v == nil {
			return true
		}
	}
	return false
}

func allNil(pk []any) bool {
	for _, v := range pk {
		if v != nil {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	if set == nil {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	// Deterministic ordering for events and commits.
	sort.Strings(keys)
	return keys
}
