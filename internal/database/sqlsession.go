package database

import (
	"context"
	"database/sql"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// ErrorMapper translates a driver's native error into *errs.Error.
type ErrorMapper func(err error, msg string) *errs.Error

// SQLSession holds the database/sql plumbing shared by the drivers built on
// it (MySQL, SQLite). Concrete drivers embed it and add Dialect plus
// introspection.
//
// A session pins a single *sql.Conn so that a follow-up statement such as
// SELECT ROW_COUNT() observes the previous one.
type SQLSession struct {
	DB   *sql.DB
	Conn *sql.Conn

	// AffectedSQL returns the number of rows changed by the previous
	// statement on the same connection.
	AffectedSQL string

	MapError ErrorMapper
}

// OpenSQL opens driverName/dsn, pins one connection and pings it within
// cfg.ConnectTimeout.
func OpenSQL(ctx context.Context, driverName, dsn string, cfg Config, mapErr ErrorMapper, affectedSQL string) (*SQLSession, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, ConnectionError("invalid connection url", err)
	}
	db.SetMaxOpenConns(1)

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := db.Conn(connectCtx)
	if err != nil {
		_ = db.Close()
		return nil, ConnectionError("failed to connect", err)
	}
	if err := conn.PingContext(connectCtx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, ConnectionError("ping failed", err)
	}

	return &SQLSession{DB: db, Conn: conn, AffectedSQL: affectedSQL, MapError: mapErr}, nil
}

// Execute runs one command. Statements that report result columns are
// materialised; for the rest the rows are drained and AffectedSQL is asked
// for the change count.
func (s *SQLSession) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := s.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.MapError(err, "statement failed")
	}

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, s.MapError(err, "failed to read result columns")
	}

	if len(cols) > 0 {
		rs, err := ScanRowSet(&sqlRows{rows: rows})
		if err != nil {
			return nil, err
		}
		return &Result{RowSet: rs}, nil
	}

	// Drain so the driver surfaces any deferred error, then close before
	// issuing the next statement on the pinned connection.
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, s.MapError(err, "statement failed")
	}
	if err := rows.Close(); err != nil {
		return nil, s.MapError(err, "statement failed")
	}

	var affected int64
	if s.AffectedSQL != "" {
		if err := s.Conn.QueryRowContext(ctx, s.AffectedSQL).Scan(&affected); err != nil {
			return nil, s.MapError(err, "failed to read affected row count")
		}
	}
	return &Result{RowsAffected: affected}, nil
}

// QueryStrings runs q and collects the first column of every row. Used by
// introspection queries.
func (s *SQLSession) QueryStrings(ctx context.Context, q, errMsg string, args ...any) ([]string, error) {
	rows, err := s.Conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.MapError(err, errMsg)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, s.MapError(err, errMsg)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.MapError(err, errMsg)
	}
	return list, nil
}

// Close releases the pinned connection and the handle.
func (s *SQLSession) Close() error {
	connErr := s.Conn.Close()
	if err := s.DB.Close(); err != nil {
		return err
	}
	return connErr
}

// sqlRows adapts *sql.Rows to Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }
