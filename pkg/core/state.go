package core

// Instance is one materialized domain object: an attribute dictionary plus
// the bookkeeping state the runtime keeps alongside it.
type Instance struct {
	// Attrs holds the loaded attribute values, keyed by property name.
	Attrs map[string]any

	// State is the per-object runtime metadata. Never nil for an instance
	// produced by a mapper factory.
	State *InstanceState
}

// InstanceState carries per-object mutable metadata. It is created when an
// object is first materialized, mutated on every row that resolves to it,
// and released together with its identity scope.
type InstanceState struct {
	// Type identifies the mapped type that produced the object.
	Type TypeInfo

	// Key is the assigned identity key, nil until the first persistent load.
	Key *IdentityKey

	// Token is the identity token the object was loaded under.
	Token string

	// RunID tags which load pass last touched this object.
	RunID uint64

	// LoadPath is the traversal path that produced this object.
	LoadPath LoadPath

	// Expired holds attribute names marked unloaded/expired.
	Expired map[string]struct{}

	// Committed is the clean baseline of attribute values, updated by
	// Commit/CommitAll after population.
	Committed map[string]any

	// Scope is the owning identity scope; nil means detached.
	Scope IdentityMap

	// FullyExpired marks an object whose loaded state was expired wholesale
	// and must be revalidated against the database on next access.
	FullyExpired bool

	instance *Instance
}

// NewInstance builds an empty instance of the given type with fresh state.
func NewInstance(typ TypeInfo) *Instance {
	inst := &Instance{
		Attrs: make(map[string]any),
		State: &InstanceState{
			Type:    typ,
			Expired: make(map[string]struct{}),
		},
	}
	inst.State.instance = inst
	return inst
}

// Instance returns the object this state belongs to.
func (s *InstanceState) Instance() *Instance {
	return s.instance
}

// HasIdentity reports whether the object has been assigned a persistent
// identity key.
func (s *InstanceState) HasIdentity() bool {
	return s.Key != nil
}

// Commit moves the named attributes into the clean baseline and clears
// their expired marks. Missing attributes are left untouched.
func (s *InstanceState) Commit(keys []string) {
	if s.Committed == nil {
		s.Committed = make(map[string]any, len(keys))
	}
	for _, key := range keys {
		if v, ok := s.instance.Attrs[key]; ok {
			s.Committed[key] = v
		}
		delete(s.Expired, key)
	}
	s.FullyExpired = false
}

// CommitAll moves every loaded attribute into the clean baseline and clears
// all expired marks for loaded attributes.
func (s *InstanceState) CommitAll() {
	if s.Committed == nil {
		s.Committed = make(map[string]any, len(s.instance.Attrs))
	}
	for key, v := range s.instance.Attrs {
		s.Committed[key] = v
		delete(s.Expired, key)
	}
	s.FullyExpired = false
}

// Unloaded returns the attribute names from props that carry no loaded
// value, plus any attributes explicitly marked expired.
func (s *InstanceState) Unloaded(props []string) map[string]struct{} {
	unloaded := make(map[string]struct{})
	for _, key := range props {
		if _, ok := s.instance.Attrs[key]; !ok {
			unloaded[key] = struct{}{}
		}
	}
	for key := range s.Expired {
		unloaded[key] = struct{}{}
	}
	return unloaded
}

// Expire marks the whole object as expired: every attribute becomes
// unloaded and the next identity lookup revalidates against the database.
func (s *InstanceState) Expire(props []string) {
	for _, key := range props {
		s.Expired[key] = struct{}{}
		delete(s.instance.Attrs, key)
	}
	s.FullyExpired = true
}
