package core

// Row is one materialized result row, keyed by column label.
// A missing key and a present key holding nil are distinct: the former means
// the column was not part of the result, the latter means SQL NULL.
type Row map[string]any

// ColumnRef identifies a result column. Table is optional; when set, the
// column's label is qualified as "table.name".
type ColumnRef struct {
	Table string
	Name  string
}

// Label returns the result-set label this column is looked up under.
func (c ColumnRef) Label() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// ColumnAdapter rewrites column references, e.g. when a query wraps the
// original statement in a subquery or applies aliasing. AdaptColumn returns
// the rewritten reference and whether a rewrite applied.
type ColumnAdapter interface {
	AdaptColumn(col ColumnRef) (ColumnRef, bool)
}

// Getter extracts one value from a row. The second return reports whether
// the column was present in the row at all.
type Getter func(row Row) (any, bool)

// TupleGetter extracts an ordered tuple of values from a row, typically the
// primary key columns.
type TupleGetter func(row Row) []any

// ResultMeta describes the columns available in one result set and resolves
// column references against them. Lookup tolerates adapter rewrites: if a
// direct lookup fails the reference is resolved through the adapter before
// the column is declared absent, and the other way around, since the
// reference at hand may or may not already be a product of the adapter.
type ResultMeta struct {
	labels  map[string]struct{}
	adapter ColumnAdapter
}

// NewResultMeta builds result metadata from the ordered column labels of a
// result set. The adapter is optional.
func NewResultMeta(labels []string, adapter ColumnAdapter) *ResultMeta {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return &ResultMeta{labels: set, adapter: adapter}
}

// Has reports whether a label is part of the result set.
func (m *ResultMeta) Has(label string) bool {
	_, ok := m.labels[label]
	return ok
}

// Getter resolves a column reference to a row getter. It returns false when
// neither the reference nor its adapted form is part of the result set.
func (m *ResultMeta) Getter(col ColumnRef) (Getter, bool) {
	label, ok := m.resolve(col)
	if !ok {
		return nil, false
	}
	return func(row Row) (any, bool) {
		v, ok := row[label]
		return v, ok
	}, true
}

// TupleGetter resolves an ordered set of column references to a tuple
// getter. Columns absent from the result set read as nil.
func (m *ResultMeta) TupleGetter(cols []ColumnRef) TupleGetter {
	labels := make([]string, len(cols))
	for i, col := range cols {
		if label, ok := m.resolve(col); ok {
			labels[i] = label
		} else {
			labels[i] = col.Label()
		}
	}
	return func(row Row) []any {
		tuple := make([]any, len(labels))
		for i, label := range labels {
			tuple[i] = row[label]
		}
		return tuple
	}
}

// Value reads one column from a row, applying the same adapter fallback as
// Getter. The second return is false when the column is absent.
func (m *ResultMeta) Value(row Row, col ColumnRef) (any, bool) {
	if v, ok := row[col.Label()]; ok {
		return v, ok
	}
	if m.adapter != nil {
		if adapted, ok := m.adapter.AdaptColumn(col); ok {
			v, ok := row[adapted.Label()]
			return v, ok
		}
	}
	return nil, false
}

// AdaptColumn applies the adapter, if any, to a column reference.
func (m *ResultMeta) AdaptColumn(col ColumnRef) ColumnRef {
	if m.adapter != nil {
		if adapted, ok := m.adapter.AdaptColumn(col); ok {
			return adapted
		}
	}
	return col
}

func (m *ResultMeta) resolve(col ColumnRef) (string, bool) {
	// Try the adapted form first: a reference that predates the adapter must
	// be rewritten to be found, while a reference already rewritten will not
	// survive a second pass through the adapter.
	if m.adapter != nil {
		if adapted, ok := m.adapter.AdaptColumn(col); ok {
			if m.Has(adapted.Label()) {
				return adapted.Label(), true
			}
		}
	}
	if m.Has(col.Label()) {
		return col.Label(), true
	}
	return "", false
}
