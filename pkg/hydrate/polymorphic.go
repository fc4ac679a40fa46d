package hydrate

import (
	"github.com/leapstack-labs/leaporm/pkg/core"
)

// polymorphicSwitch routes rows of a polymorphic hierarchy to a
// subtype-specific processor based on the discriminator column. One
// sub-processor is configured lazily per distinct discriminator value,
// scoped to this query execution.
type polymorphicSwitch struct {
	base    *InstanceProcessor
	discCol core.ColumnRef
	getter  core.Getter

	// memo caches configured sub-processors; a nil entry means the
	// discriminator names the base type itself.
	memo map[any]*InstanceProcessor

	cfg ProcessorConfig
}

func newPolymorphicSwitch(base *InstanceProcessor, cfg ProcessorConfig) (*polymorphicSwitch, error) {
	discCol := cfg.PolymorphicDiscriminator
	if discCol == nil {
		discCol = base.mapper.PolymorphicOn()
	}
	if discCol == nil {
		return nil, nil
	}
	getter, ok := base.meta.Getter(*discCol)
	if !ok {
		return nil, &NoSuchDiscriminatorError{Value: discCol.Label(), Mapper: base.mapper.TypeName()}
	}
	return &polymorphicSwitch{
		base:    base,
		discCol: *discCol,
		getter:  getter,
		memo:    make(map[any]*InstanceProcessor),
		cfg:     cfg,
	}, nil
}

func (ps *polymorphicSwitch) process(row core.Row) (*core.Instance, error) {
	discriminator, _ := ps.getter(row)
	if discriminator == nil {
		// A NULL discriminator is only consistent with "no entity": the
		// primary key must be fully absent too.
		if err := ps.ensureNoPK(row); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sub, ok := ps.memo[discriminator]
	if !ok {
		var err error
		sub, err = ps.configure(discriminator)
		if err != nil {
			return nil, err
		}
		ps.memo[discriminator] = sub
	}
	if sub != nil {
		return sub.processRow(row)
	}
	return ps.base.processRow(row)
}

// configure builds the sub-processor for one discriminator value. A nil
// result delegates to the base processor.
func (ps *polymorphicSwitch) configure(discriminator any) (*InstanceProcessor, error) {
	subMapper, ok := ps.base.mapper.PolymorphicMap()[discriminator]
	if !ok {
		return nil, &NoSuchDiscriminatorError{Value: discriminator, Mapper: ps.base.mapper.TypeName()}
	}
	if subMapper == ps.base.mapper {
		return nil, nil
	}

	subCfg := ps.cfg
	subCfg.Mapper = subMapper
	return newInstanceProcessor(ps.base.rc, subCfg, ps.base.mapper)
}

func (ps *polymorphicSwitch) ensureNoPK(row core.Row) error {
	key := core.IdentityKey{
		Class: ps.base.mapper.IdentityClass(),
		PK:    ps.base.pkGetter(row),
		Token: ps.base.rc.IdentityToken,
	}
	if !ps.base.isNotPrimaryKey(key.PK) {
		return &InvalidRowError{Key: key, Discriminator: ps.discCol}
	}
	return nil
}
