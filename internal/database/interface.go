package database

import (
	"context"

	"github.com/koustreak/sqlpilot/internal/schema"
)

// Session is one ephemeral connection to a registered target database.
// Sessions are not shared: each Execute or index pass opens its own and
// closes it when done.
type Session interface {
	schema.Introspector

	// Dialect reports how identifiers and placeholders are written.
	Dialect() Dialect

	// Execute runs a single command. Row-returning statements produce a
	// Result with a RowSet; everything else produces RowsAffected.
	Execute(ctx context.Context, sql string, args ...any) (*Result, error)

	Close() error
}

// Opener creates sessions for a db_type and connection URL. The query
// executor and the indexer receive it as a dependency so tests can observe
// (or forbid) connection attempts.
type Opener interface {
	Open(ctx context.Context, dbType, url string) (Session, error)
}

// Rows is the minimal cursor ScanRowSet consumes. It is satisfied by
// *sql.Rows through a thin adapter and by pgx rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}
