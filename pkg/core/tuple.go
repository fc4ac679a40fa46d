package core

// KeyedTuple is an ordered, named tuple produced for multi-entity result
// rows. Single-entity queries bypass this wrapping entirely.
type KeyedTuple struct {
	labels []string
	index  map[string]int
	values []any
}

// KeyedTupleFactory builds tuples sharing one label set, so per-row
// construction only copies values.
type KeyedTupleFactory struct {
	labels []string
	index  map[string]int
}

// NewKeyedTupleFactory prepares a factory for the given ordered labels.
func NewKeyedTupleFactory(labels []string) *KeyedTupleFactory {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	return &KeyedTupleFactory{labels: labels, index: index}
}

// New wraps one row's values. The slice is taken over, not copied.
func (f *KeyedTupleFactory) New(values []any) KeyedTuple {
	return KeyedTuple{labels: f.labels, index: f.index, values: values}
}

// Labels returns the ordered column labels.
func (t KeyedTuple) Labels() []string {
	return t.labels
}

// Values returns the ordered values.
func (t KeyedTuple) Values() []any {
	return t.values
}

// At returns the value at position i.
func (t KeyedTuple) At(i int) any {
	return t.values[i]
}

// Get returns the value under a label.
func (t KeyedTuple) Get(label string) (any, bool) {
	i, ok := t.index[label]
	if !ok {
		return nil, false
	}
	return t.values[i], true
}

// Len returns the tuple arity.
func (t KeyedTuple) Len() int {
	return len(t.values)
}
