package rows

import (
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// SQLSource adapts a database/sql cursor to core.RowSource, scanning each
// row into a column-label-keyed core.Row. The cursor is owned by the
// source: Close releases it.
type SQLSource struct {
	rows    *sql.Rows
	columns []string
	closed  bool
}

// NewSQLSource wraps an open *sql.Rows. Column labels are read once from
// the cursor.
func NewSQLSource(rows *sql.Rows) (*SQLSource, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	return &SQLSource{rows: rows, columns: columns}, nil
}

// Columns returns the ordered column labels.
func (s *SQLSource) Columns() []string {
	return s.columns
}

// FetchBatch scans up to n rows; empty at end-of-stream.
func (s *SQLSource) FetchBatch(n int) ([]core.Row, error) {
	if s.closed {
		return nil, nil
	}
	var batch []core.Row
	for len(batch) < n && s.rows.Next() {
		row, err := s.scanRow()
		if err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}
	if len(batch) < n {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating rows: %w", err)
		}
	}
	return batch, nil
}

// FetchAll drains the cursor.
func (s *SQLSource) FetchAll() ([]core.Row, error) {
	if s.closed {
		return nil, nil
	}
	var all []core.Row
	for s.rows.Next() {
		row, err := s.scanRow()
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}
	if err := s.rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return all, nil
}

// Close releases the underlying cursor. Safe to call more than once.
func (s *SQLSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rows.Close()
}

func (s *SQLSource) scanRow() (core.Row, error) {
	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	row := make(core.Row, len(s.columns))
	for i, label := range s.columns {
		if b, ok := values[i].([]byte); ok {
			// Drivers reuse []byte buffers between scans.
			row[label] = string(b)
		} else {
			row[label] = values[i]
		}
	}
	return row, nil
}
