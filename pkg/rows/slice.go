// Package rows provides core.RowSource implementations: an in-memory
// source for tests and re-processing, and an adapter over database/sql
// cursors.
package rows

import "github.com/leapstack-labs/leaporm/pkg/core"

// SliceSource serves already-materialized rows from memory.
type SliceSource struct {
	columns []string
	rows    []core.Row
	pos     int
	closed  bool
}

// NewSliceSource builds a source over the given rows. The slice is read in
// place, not copied.
func NewSliceSource(columns []string, rows []core.Row) *SliceSource {
	return &SliceSource{columns: columns, rows: rows}
}

// Columns returns the ordered column labels.
func (s *SliceSource) Columns() []string {
	return s.columns
}

// FetchBatch returns up to n rows; empty at end-of-stream.
func (s *SliceSource) FetchBatch(n int) ([]core.Row, error) {
	if s.closed || s.pos >= len(s.rows) {
		return nil, nil
	}
	end := s.pos + n
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := s.rows[s.pos:end]
	s.pos = end
	return batch, nil
}

// FetchAll drains the remaining rows.
func (s *SliceSource) FetchAll() ([]core.Row, error) {
	if s.closed {
		return nil, nil
	}
	batch := s.rows[s.pos:]
	s.pos = len(s.rows)
	return batch, nil
}

// Close marks the source exhausted.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
