package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/errs"
)

func TestParseDriver(t *testing.T) {
	tests := []struct {
		in   string
		want Driver
		ok   bool
	}{
		{"postgres", DriverPostgres, true},
		{" PostgreSQL ", DriverPostgres, true},
		{"pg", DriverPostgres, true},
		{"mariadb", DriverMySQL, true},
		{"sqlite3", DriverSQLite, true},
		{"oracle", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDriver(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Open(t *testing.T) {
	r := NewRegistry(Config{ConnectTimeout: 3})

	var gotURL string
	var gotCfg Config
	r.Register(DriverMySQL, func(_ context.Context, url string, cfg Config) (Session, error) {
		gotURL, gotCfg = url, cfg
		return nil, errs.New(errs.ErrKindConnectionFailed, "refused")
	})

	_, err := r.Open(context.Background(), "MariaDB", "mysql://db/shop")
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Equal(t, "mysql://db/shop", gotURL)
	assert.Equal(t, Config{ConnectTimeout: 3}, gotCfg)

	_, err = r.Open(context.Background(), "postgres", "postgres://db")
	assert.True(t, errs.IsInvalidInput(err), "known engine without a registered driver")

	_, err = r.Open(context.Background(), "oracle", "x")
	assert.True(t, errs.IsInvalidInput(err))
}
