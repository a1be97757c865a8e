// Package drivers wires every supported engine into a database.Registry.
package drivers

import (
	"context"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/database/mysql"
	"github.com/koustreak/sqlpilot/internal/database/postgres"
	"github.com/koustreak/sqlpilot/internal/database/sqlite"
)

// Default returns a registry with PostgreSQL, MySQL and SQLite registered.
func Default(cfg database.Config) *database.Registry {
	r := database.NewRegistry(cfg)
	r.Register(database.DriverPostgres, func(ctx context.Context, url string, cfg database.Config) (database.Session, error) {
		return postgres.Open(ctx, url, cfg)
	})
	r.Register(database.DriverMySQL, func(ctx context.Context, url string, cfg database.Config) (database.Session, error) {
		return mysql.Open(ctx, url, cfg)
	})
	r.Register(database.DriverSQLite, func(ctx context.Context, url string, cfg database.Config) (database.Session, error) {
		return sqlite.Open(ctx, url, cfg)
	})
	return r
}
