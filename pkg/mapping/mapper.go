// Package mapping holds the type metadata consumed by the hydration
// engine: mapped types, their properties, primary keys, version columns
// and polymorphic configuration. It is the leaporm analogue of a mapper
// registry; query building and schema management live elsewhere.
package mapping

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// SubclassInLoader loads the remaining columns of a polymorphic subtype for
// a set of primary keys, typically via a secondary IN-list query that
// recurses into the row-processing pipeline.
type SubclassInLoader interface {
	LoadSubclassRows(ctx context.Context, pks [][]any, populateExisting bool) error
}

// Config describes one mapped type.
type Config struct {
	// Type is the mapped type name, unique within the hierarchy.
	Type string

	// Base links a subtype to its parent mapper. Primary key, version and
	// discriminator configuration are inherited when unset.
	Base *Mapper

	// Properties is the ordered property set. Subtypes inherit the base
	// mapper's properties; same-key entries here override them.
	Properties []Property

	// PrimaryKey lists the primary-key columns in order.
	PrimaryKey []core.ColumnRef

	// PKProps names the properties holding the primary-key values, aligned
	// with PrimaryKey. Defaults to the column names.
	PKProps []string

	// PolymorphicOn is the discriminator column, set on the hierarchy root.
	PolymorphicOn *core.ColumnRef

	// PolymorphicIdentity is this type's discriminator value. Registering
	// it on the root's polymorphic map happens during construction.
	PolymorphicIdentity any

	// VersionCol is the optimistic-concurrency version column, if any.
	VersionCol *core.ColumnRef

	// VersionProp names the property holding the version value. Defaults
	// to the version column name.
	VersionProp string

	// AllowPartialPKs controls the partial-key tolerance policy: when true,
	// a row denotes a valid identity unless every key component is NULL;
	// when false, any NULL component voids the identity.
	AllowPartialPKs bool

	// AlwaysRefresh forces full re-population of already-loaded objects on
	// every load of this type.
	AlwaysRefresh bool

	// SubclassLoader, when set on a subtype, loads the subtype's remaining
	// columns in a post-load pass after a base-type polymorphic load.
	SubclassLoader SubclassInLoader
}

// Mapper is the compiled metadata for one mapped type.
type Mapper struct {
	typeName        string
	base            *Mapper
	properties      []Property
	propIndex       map[string]Property
	primaryKey      []core.ColumnRef
	pkProps         []string
	polymorphicOn   *core.ColumnRef
	polymorphicMap  map[any]*Mapper
	versionCol      *core.ColumnRef
	versionProp     string
	allowPartialPKs bool
	alwaysRefresh   bool
	subclassLoader  SubclassInLoader
}

// New compiles a mapper from its configuration. Subtypes must be
// constructed after their base.
func New(cfg Config) (*Mapper, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("mapper type name not specified")
	}

	m := &Mapper{
		typeName:        cfg.Type,
		base:            cfg.Base,
		primaryKey:      cfg.PrimaryKey,
		pkProps:         cfg.PKProps,
		polymorphicOn:   cfg.PolymorphicOn,
		versionCol:      cfg.VersionCol,
		versionProp:     cfg.VersionProp,
		allowPartialPKs: cfg.AllowPartialPKs,
		alwaysRefresh:   cfg.AlwaysRefresh,
		subclassLoader:  cfg.SubclassLoader,
	}

	if m.base != nil {
		if len(m.primaryKey) == 0 {
			m.primaryKey = m.base.primaryKey
			m.pkProps = m.base.pkProps
		}
		if m.polymorphicOn == nil {
			m.polymorphicOn = m.base.polymorphicOn
		}
		if m.versionCol == nil {
			m.versionCol = m.base.versionCol
			m.versionProp = m.base.versionProp
		}
		if !m.allowPartialPKs {
			m.allowPartialPKs = m.base.allowPartialPKs
		}
	}

	if len(m.primaryKey) == 0 {
		return nil, fmt.Errorf("mapper %q has no primary key columns", cfg.Type)
	}
	if len(m.pkProps) == 0 {
		m.pkProps = make([]string, len(m.primaryKey))
		for i, col := range m.primaryKey {
			m.pkProps[i] = col.Name
		}
	}
	if len(m.pkProps) != len(m.primaryKey) {
		return nil, fmt.Errorf("mapper %q: %d pk properties for %d pk columns",
			cfg.Type, len(m.pkProps), len(m.primaryKey))
	}
	if m.versionCol != nil && m.versionProp == "" {
		m.versionProp = m.versionCol.Name
	}

	// Effective property set: inherited first, overrides in place, new
	// properties appended in declaration order.
	m.propIndex = make(map[string]Property)
	if m.base != nil {
		for _, p := range m.base.properties {
			m.properties = append(m.properties, p)
			m.propIndex[p.Key()] = p
		}
	}
	for _, p := range cfg.Properties {
		if _, ok := m.propIndex[p.Key()]; ok {
			for i, existing := range m.properties {
				if existing.Key() == p.Key() {
					m.properties[i] = p
					break
				}
			}
		} else {
			m.properties = append(m.properties, p)
		}
		m.propIndex[p.Key()] = p
	}

	if cfg.PolymorphicIdentity != nil {
		root := m.Root()
		if root.polymorphicMap == nil {
			root.polymorphicMap = make(map[any]*Mapper)
		}
		root.polymorphicMap[cfg.PolymorphicIdentity] = m
	}

	return m, nil
}

// MustNew is New, panicking on configuration errors. Intended for
// statically-known mapper setups.
func MustNew(cfg Config) *Mapper {
	m, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// TypeName returns the mapped type name.
func (m *Mapper) TypeName() string {
	return m.typeName
}

// IsSubtypeOf reports whether m's type is other's type or a descendant.
func (m *Mapper) IsSubtypeOf(other core.TypeInfo) bool {
	for cur := m; cur != nil; cur = cur.base {
		if cur.typeName == other.TypeName() {
			return true
		}
	}
	return false
}

// Root returns the base-most mapper of the hierarchy.
func (m *Mapper) Root() *Mapper {
	cur := m
	for cur.base != nil {
		cur = cur.base
	}
	return cur
}

// IdentityClass returns the type tag under which identity keys for this
// hierarchy are computed: the root type's name.
func (m *Mapper) IdentityClass() string {
	return m.Root().typeName
}

// Base returns the parent mapper, nil for a hierarchy root.
func (m *Mapper) Base() *Mapper {
	return m.base
}

// Properties returns the ordered property set.
func (m *Mapper) Properties() []Property {
	return m.properties
}

// PropertyKeys returns the ordered property keys.
func (m *Mapper) PropertyKeys() []string {
	keys := make([]string, len(m.properties))
	for i, p := range m.properties {
		keys[i] = p.Key()
	}
	return keys
}

// Property looks up one property by key.
func (m *Mapper) Property(key string) (Property, bool) {
	p, ok := m.propIndex[key]
	return p, ok
}

// PrimaryKey returns the primary-key columns.
func (m *Mapper) PrimaryKey() []core.ColumnRef {
	return m.primaryKey
}

// PKProps returns the property keys aligned with PrimaryKey.
func (m *Mapper) PKProps() []string {
	return m.pkProps
}

// PolymorphicOn returns the discriminator column, nil when the type is not
// polymorphic.
func (m *Mapper) PolymorphicOn() *core.ColumnRef {
	return m.polymorphicOn
}

// PolymorphicMap returns the discriminator value to subtype mapper table of
// the hierarchy. Nil when no subtypes registered an identity.
func (m *Mapper) PolymorphicMap() map[any]*Mapper {
	return m.Root().polymorphicMap
}

// VersionCol returns the version column, nil when versioning is off.
func (m *Mapper) VersionCol() *core.ColumnRef {
	return m.versionCol
}

// VersionProp returns the property key holding the version value.
func (m *Mapper) VersionProp() string {
	return m.versionProp
}

// AllowPartialPKs returns the partial-key tolerance policy.
func (m *Mapper) AllowPartialPKs() bool {
	return m.allowPartialPKs
}

// AlwaysRefresh reports whether loads of this type force re-population.
func (m *Mapper) AlwaysRefresh() bool {
	return m.alwaysRefresh
}

// SubclassLoader returns the subtype's post-load loader, if any.
func (m *Mapper) SubclassLoader() SubclassInLoader {
	return m.subclassLoader
}

// NewInstance materializes an empty instance of this type.
func (m *Mapper) NewInstance() *core.Instance {
	return core.NewInstance(m)
}

// IdentityKeyFromInstance computes the identity key from an instance's
// loaded primary-key attributes. The second return is false when any key
// attribute is unloaded.
func (m *Mapper) IdentityKeyFromInstance(inst *core.Instance, token string) (core.IdentityKey, bool) {
	pk := make([]any, len(m.pkProps))
	for i, key := range m.pkProps {
		v, ok := inst.Attrs[key]
		if !ok {
			return core.IdentityKey{}, false
		}
		pk[i] = v
	}
	return core.IdentityKey{Class: m.IdentityClass(), PK: pk, Token: token}, true
}
