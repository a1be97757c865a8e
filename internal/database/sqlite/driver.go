// Package sqlite implements database.Session for SQLite files on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/koustreak/sqlpilot/internal/database"
)

const affectedSQL = "SELECT changes()"

// Session is one ephemeral connection to a SQLite database file.
type Session struct {
	*database.SQLSession
}

var _ database.Session = (*Session)(nil)

// Open opens the database at url. Foreign-key enforcement is switched on so
// that the target behaves like a server database would.
func Open(ctx context.Context, url string, cfg database.Config) (*Session, error) {
	s, err := database.OpenSQL(ctx, "sqlite", DSN(url), cfg, mapError, affectedSQL)
	if err != nil {
		return nil, err
	}
	return &Session{SQLSession: s}, nil
}

// Dialect implements database.Session.
func (s *Session) Dialect() database.Dialect { return database.DialectSQLite }

// DSN maps a connection URL onto a modernc file name. URLs follow the
// SQLAlchemy convention:
//
//	sqlite:///app.db        -> app.db          (relative)
//	sqlite:////data/app.db  -> /data/app.db    (absolute)
//	sqlite://               -> :memory:
//	file:app.db?mode=ro     -> unchanged
//
// Foreign-key enforcement is appended unless the URL already sets it.
func DSN(url string) string {
	path := url
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			path = strings.TrimPrefix(rest, "/")
			break
		}
	}
	if path == "" {
		path = ":memory:"
	}

	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}
