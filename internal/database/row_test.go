package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// queryRows runs q against a mock returning rows and hands back the
// *sql.Rows wrapped for ScanRowSet.
func queryRows(t *testing.T, rows *sqlmock.Rows) Rows {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	r, err := db.Query("SELECT")
	require.NoError(t, err)
	return &sqlRows{rows: r}
}

func TestScanRowSet(t *testing.T) {
	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "Alice").
		AddRow(2, []byte("Bob")).
		AddRow(3, nil)

	rs, err := ScanRowSet(queryRows(t, rows))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, rs.Columns)
	require.Equal(t, 3, rs.Len())
	assert.EqualValues(t, 1, rs.Rows[0][0])
	assert.Equal(t, "Alice", rs.Rows[0][1])
	assert.Equal(t, "Bob", rs.Rows[1][1], "[]byte is normalised to string")
	assert.Nil(t, rs.Rows[2][1])
}

func TestScanRowSet_Empty(t *testing.T) {
	rs, err := ScanRowSet(queryRows(t, sqlmock.NewRows([]string{"id"})))
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rs.Columns)
	assert.Equal(t, 0, rs.Len())
	assert.NotNil(t, rs.Rows)
}

func TestScanRowSet_DuplicateColumns(t *testing.T) {
	rows := sqlmock.NewRows([]string{"id", "name", "id"}).AddRow(1, "Alice", 99)

	rs, err := ScanRowSet(queryRows(t, rows))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, rs.Columns, "first position kept")
	assert.EqualValues(t, 99, rs.Rows[0][0], "last value wins")
	assert.Equal(t, "Alice", rs.Rows[0][1])
}

func TestScanRowSet_IterationError(t *testing.T) {
	rows := sqlmock.NewRows([]string{"id"}).
		AddRow(1).
		RowError(0, errors.New("connection reset"))

	_, err := ScanRowSet(queryRows(t, rows))
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestDedupeColumns(t *testing.T) {
	cols, target := dedupeColumns([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, cols)
	assert.Equal(t, []int{0, 1, 0, 2, 1}, target)
}

