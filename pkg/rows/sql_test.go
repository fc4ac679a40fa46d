package rows

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

func TestSQLSource_FetchAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, name FROM people").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "A").
			AddRow(int64(2), nil))

	rs, err := db.Query("SELECT id, name FROM people")
	require.NoError(t, err)

	src, err := NewSQLSource(rs)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.Equal(t, []string{"id", "name"}, src.Columns())

	all, err := src.FetchAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, core.Row{"id": int64(1), "name": "A"}, all[0])
	assert.Equal(t, core.Row{"id": int64(2), "name": nil}, all[1])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_FetchBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT id FROM people").WillReturnRows(rows)

	rs, err := db.Query("SELECT id FROM people")
	require.NoError(t, err)
	src, err := NewSQLSource(rs)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	var sizes []int
	for {
		batch, err := src.FetchBatch(2)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestSQLSource_ByteSlicesCopied(t *testing.T) {
	// Drivers hand out []byte values; they must come through as strings so
	// later rows cannot alias earlier buffers.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT name FROM people").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow([]byte("abc")))

	rs, err := db.Query("SELECT name FROM people")
	require.NoError(t, err)
	src, err := NewSQLSource(rs)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	all, err := src.FetchAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "abc", all[0]["name"])
}

func TestSQLSource_RowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id FROM people").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).
			AddRow(int64(1)).
			RowError(0, errors.New("connection lost")))

	rs, err := db.Query("SELECT id FROM people")
	require.NoError(t, err)
	src, err := NewSQLSource(rs)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = src.FetchAll()
	require.ErrorContains(t, err, "connection lost")
}

func TestSQLSource_CloseIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id FROM people").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	rs, err := db.Query("SELECT id FROM people")
	require.NoError(t, err)
	src, err := NewSQLSource(rs)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	// A closed source reads as exhausted.
	all, err := src.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]string{"id"}, []core.Row{
		{"id": int64(1)},
		{"id": int64(2)},
		{"id": int64(3)},
	})
	assert.Equal(t, []string{"id"}, src.Columns())

	batch, err := src.FetchBatch(2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	rest, err := src.FetchAll()
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	end, err := src.FetchBatch(2)
	require.NoError(t, err)
	assert.Empty(t, end)

	require.NoError(t, src.Close())
	all, err := src.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}
