package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/testutil"
)

func TestDefault_Supported(t *testing.T) {
	r := Default(database.DefaultConfig())
	assert.ElementsMatch(t,
		[]database.Driver{database.DriverPostgres, database.DriverMySQL, database.DriverSQLite},
		r.Supported())
}

func TestDefault_OpenSQLite(t *testing.T) {
	url := testutil.SQLiteFixture(t, testutil.ShopSchema...)
	r := Default(database.DefaultConfig())

	for _, dbType := range []string{"sqlite", "SQLite3"} {
		s, err := r.Open(t.Context(), dbType, url)
		require.NoError(t, err, dbType)
		assert.Equal(t, database.DialectSQLite, s.Dialect())
		require.NoError(t, s.Close())
	}
}

func TestDefault_UnknownEngine(t *testing.T) {
	_, err := Default(database.DefaultConfig()).Open(t.Context(), "oracle", "oracle://x")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}
