package core

// RowSource is the engine's view of an open cursor over already-materialized
// rows. The engine pulls batch-wise and guarantees Close is called before
// any error propagates out of row processing.
type RowSource interface {
	// Columns returns the ordered column labels of the result set.
	Columns() []string

	// FetchBatch returns up to n rows. An empty slice signals end-of-stream.
	FetchBatch(n int) ([]Row, error)

	// FetchAll drains the remaining rows.
	FetchAll() ([]Row, error)

	// Close releases the underlying cursor. Safe to call more than once.
	Close() error
}
