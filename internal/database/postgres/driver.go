// Package postgres implements database.Session for PostgreSQL on pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/koustreak/sqlpilot/internal/database"
)

// Session is one ephemeral pgx connection. It is not safe for concurrent
// use; every caller opens its own.
type Session struct {
	conn *pgx.Conn
}

var _ database.Session = (*Session)(nil)

// Open connects to url and pings it within cfg.ConnectTimeout.
func Open(ctx context.Context, url string, cfg database.Config) (*Session, error) {
	connCfg, err := pgx.ParseConfig(NormalizeURL(url))
	if err != nil {
		return nil, database.ConnectionError("invalid connection url", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, database.ConnectionError("failed to connect", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close(context.Background())
		return nil, database.ConnectionError("ping failed", err)
	}

	return &Session{conn: conn}, nil
}

// Dialect implements database.Session.
func (s *Session) Dialect() database.Dialect { return database.DialectPostgres }

// Execute runs one statement. When the server describes result columns the
// rows are materialised; otherwise the command tag supplies the count.
func (s *Session) Execute(ctx context.Context, sql string, args ...any) (*database.Result, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "statement failed")
	}

	if len(rows.FieldDescriptions()) > 0 {
		rs, err := database.ScanRowSet(&pgxRows{rows: rows})
		if err != nil {
			return nil, remap(err, rows)
		}
		return &database.Result{RowSet: rs}, nil
	}

	for rows.Next() {
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "statement failed")
	}
	return &database.Result{RowsAffected: rows.CommandTag().RowsAffected()}, nil
}

// Close terminates the connection.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.conn.Close(ctx)
}

// remap prefers the server's own error over the generic scan failure so the
// SQLSTATE message reaches the caller.
func remap(scanErr error, rows pgx.Rows) error {
	if err := rows.Err(); err != nil {
		return mapError(err, "statement failed")
	}
	return scanErr
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}
