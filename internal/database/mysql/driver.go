// Package mysql implements database.Session for MySQL and MariaDB on
// go-sql-driver/mysql.
package mysql

import (
	"context"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver

	"github.com/koustreak/sqlpilot/internal/database"
)

// affectedSQL reports the rows changed by the previous statement on the
// same connection.
const affectedSQL = "SELECT ROW_COUNT()"

// Session is one ephemeral MySQL connection.
type Session struct {
	*database.SQLSession
}

var _ database.Session = (*Session)(nil)

// Open converts url to a driver DSN, connects, and pings within
// cfg.ConnectTimeout.
func Open(ctx context.Context, url string, cfg database.Config) (*Session, error) {
	dsn, err := DSN(url)
	if err != nil {
		return nil, database.ConnectionError("invalid connection url", err)
	}

	s, err := database.OpenSQL(ctx, "mysql", dsn, cfg, mapError, affectedSQL)
	if err != nil {
		return nil, err
	}
	return &Session{SQLSession: s}, nil
}

// Dialect implements database.Session.
func (s *Session) Dialect() database.Dialect { return database.DialectMySQL }
