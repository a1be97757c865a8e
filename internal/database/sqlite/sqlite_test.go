package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/database/sqlite"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/schema"
	"github.com/koustreak/sqlpilot/internal/testutil"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sqlite:///app.db", "app.db?_pragma=foreign_keys(1)"},
		{"sqlite:////data/app.db", "/data/app.db?_pragma=foreign_keys(1)"},
		{"sqlite://", ":memory:?_pragma=foreign_keys(1)"},
		{"sqlite:///:memory:", ":memory:?_pragma=foreign_keys(1)"},
		{"/tmp/x.db", "/tmp/x.db?_pragma=foreign_keys(1)"},
		{"file:x.db?mode=ro", "file:x.db?mode=ro&_pragma=foreign_keys(1)"},
		{"x.db?_pragma=foreign_keys(0)", "x.db?_pragma=foreign_keys(0)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlite.DSN(tt.in))
		})
	}
}

func open(t *testing.T, url string) *sqlite.Session {
	t.Helper()
	s, err := sqlite.Open(t.Context(), url, database.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_Inspect(t *testing.T) {
	s := open(t, testutil.SQLiteFixture(t, testutil.ShopSchema...))
	assert.Equal(t, database.DialectSQLite, s.Dialect())

	info, err := schema.Inspect(t.Context(), s)
	require.NoError(t, err)

	require.Len(t, info.Tables, 3)
	assert.Equal(t, "line_items", info.Tables[0].Name)
	assert.Equal(t, "orders", info.Tables[1].Name)
	assert.Equal(t, "users", info.Tables[2].Name)

	users := info.Tables[2]
	require.Len(t, users.Columns, 3)
	assert.Equal(t, schema.ColumnInfo{Name: "id", DataType: "INTEGER", IsNullable: true, IsPrimaryKey: true}, users.Columns[0])
	assert.Equal(t, "VARCHAR(100)", users.Columns[1].DataType)
	assert.False(t, users.Columns[1].IsNullable)

	orders := info.Tables[1]
	require.NotNil(t, orders.Columns[2].DefaultValue)
	assert.Equal(t, "0", *orders.Columns[2].DefaultValue)

	items := info.Tables[0]
	assert.True(t, items.Columns[0].IsPrimaryKey)
	assert.True(t, items.Columns[1].IsPrimaryKey)
	assert.False(t, items.Columns[2].IsPrimaryKey)

	assert.Equal(t, []schema.ForeignKey{
		{Name: "line_items_fk_0", FromTable: "line_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id"},
		{Name: "orders_fk_0", FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"},
	}, info.ForeignKeys)
}

func TestSession_Execute(t *testing.T) {
	s := open(t, testutil.SQLiteFixture(t, testutil.ShopSchema...))
	ctx := t.Context()

	t.Run("rows", func(t *testing.T) {
		res, err := s.Execute(ctx, "SELECT id, name, email FROM users ORDER BY id")
		require.NoError(t, err)
		require.True(t, res.Tabular())
		assert.Equal(t, []string{"id", "name", "email"}, res.RowSet.Columns)
		require.Equal(t, 2, res.RowSet.Len())
		assert.EqualValues(t, 1, res.RowSet.Rows[0][0])
		assert.Equal(t, "Alice", res.RowSet.Rows[0][1])
		assert.Nil(t, res.RowSet.Rows[1][2])
	})

	t.Run("zero rows still tabular", func(t *testing.T) {
		res, err := s.Execute(ctx, "SELECT id FROM users WHERE id < 0")
		require.NoError(t, err)
		assert.True(t, res.Tabular())
		assert.Equal(t, []string{"id"}, res.RowSet.Columns)
		assert.Equal(t, 0, res.RowSet.Len())
	})

	t.Run("args", func(t *testing.T) {
		res, err := s.Execute(ctx, "SELECT name FROM users WHERE id = ?", 2)
		require.NoError(t, err)
		assert.Equal(t, "Bob", res.RowSet.Rows[0][0])
	})

	t.Run("affected count", func(t *testing.T) {
		res, err := s.Execute(ctx, "UPDATE orders SET total = total + 1")
		require.NoError(t, err)
		assert.False(t, res.Tabular())
		assert.EqualValues(t, 2, res.RowsAffected)
	})

	t.Run("foreign keys enforced", func(t *testing.T) {
		_, err := s.Execute(ctx, "INSERT INTO orders (id, user_id) VALUES (99, 12345)")
		require.Error(t, err)
		assert.True(t, errs.IsQueryFailed(err))
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := s.Execute(ctx, "SELECT * FROM nope")
		require.Error(t, err)
		assert.True(t, errs.IsQueryFailed(err))
		assert.Contains(t, errs.MessageOf(err), "no such table")
	})
}

func TestSession_Preview(t *testing.T) {
	s := open(t, testutil.SQLiteFixture(t, testutil.ShopSchema...))

	q, args, err := database.Select("users", s.Dialect()).OrderBy("id", database.Asc).Limit(1).Build()
	require.NoError(t, err)

	res, err := s.Execute(t.Context(), q, args...)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowSet.Len())
	assert.Equal(t, "Alice", res.RowSet.Rows[0][1])
}

func TestOpen_Unreachable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")

	_, err := sqlite.Open(t.Context(), "sqlite:///"+missing, database.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}
