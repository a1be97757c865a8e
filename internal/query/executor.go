// Package query runs validated SQL against registered connections.
package query

import (
	"context"
	"time"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/logger"
	"github.com/koustreak/sqlpilot/internal/validator"
)

const (
	// DefaultPreviewLimit is used when a preview asks for no particular size.
	DefaultPreviewLimit = 50

	// MaxPreviewLimit caps preview requests.
	MaxPreviewLimit = 1000
)

// Config bounds executions.
type Config struct {
	// QueryTimeout bounds connect plus execute. Zero means no extra bound.
	QueryTimeout time.Duration

	// PreviewLimit is the row count used by Preview when limit <= 0.
	PreviewLimit int
}

// Executor resolves a connection, validates the SQL, and runs it on a
// fresh target session. Nothing is shared between calls.
type Executor struct {
	store  catalog.Store
	opener database.Opener
	cfg    Config
	log    *logger.Logger
}

// New returns an Executor.
func New(store catalog.Store, opener database.Opener, cfg Config, log *logger.Logger) *Executor {
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = DefaultPreviewLimit
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{store: store, opener: opener, cfg: cfg, log: log}
}

// Execute runs sql on connection connID.
//
// Errors: ErrKindNotFound for an unknown connection, ErrKindRejected when the
// validator refuses the text (the target is never contacted),
// ErrKindConnectionFailed when the target is unreachable, ErrKindQueryFailed
// when the target rejects the statement, ErrKindTimeout on deadline.
func (e *Executor) Execute(ctx context.Context, connID int64, sql string) (*database.Result, error) {
	conn, err := e.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}

	// Unknown types fall back to PostgreSQL here and fail in Open below.
	driver, _ := database.ParseDriver(conn.DBType)
	if err := validator.ValidateFor(driver.Dialect(), sql); err != nil {
		e.log.Event().
			Int64("connection_id", connID).
			Str("reason", errs.MessageOf(err)).
			Msg("statement rejected")
		return nil, err
	}

	return e.run(ctx, conn, fixed(sql))
}

// Preview returns up to limit rows of table after skipping offset, ordered
// by the primary key recorded in the catalog so pages are stable. The table
// must be in the catalog for connID; the query is built here, not taken
// from the caller.
func (e *Executor) Preview(ctx context.Context, connID int64, table string, limit, offset int) (*database.Result, error) {
	conn, err := e.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}

	tables, err := e.store.GetTables(ctx, connID)
	if err != nil {
		return nil, err
	}
	t := findTable(tables, table)
	if t == nil {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q not found for connection %d", table, connID)
	}

	switch {
	case limit <= 0:
		limit = e.cfg.PreviewLimit
	case limit > MaxPreviewLimit:
		limit = MaxPreviewLimit
	}
	if offset < 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "offset must not be negative, got %d", offset)
	}

	return e.run(ctx, conn, func(sess database.Session) (string, []any, error) {
		q := database.Select(t.Name, sess.Dialect())
		for _, c := range t.Columns {
			if c.IsPrimaryKey {
				q.OrderBy(c.Name, database.Asc)
			}
		}
		q.Limit(limit)
		if offset > 0 {
			q.Offset(offset)
		}
		return q.Build()
	})
}

// statementFunc yields the SQL to run once the session, and so the
// dialect, is known.
type statementFunc func(sess database.Session) (string, []any, error)

func fixed(sql string) statementFunc {
	return func(database.Session) (string, []any, error) { return sql, nil, nil }
}

func (e *Executor) run(ctx context.Context, conn *catalog.Connection, stmt statementFunc) (*database.Result, error) {
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()

	sess, err := e.opener.Open(ctx, conn.DBType, conn.ConnectionURL)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	sql, args, err := stmt(sess)
	if err != nil {
		return nil, err
	}

	res, err := sess.Execute(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	ev := e.log.Event().
		Int64("connection_id", conn.ID).
		Dur("duration", time.Since(start))
	if res.Tabular() {
		ev = ev.Int("rows", res.RowSet.Len())
	} else {
		ev = ev.Int64("rows_affected", res.RowsAffected)
	}
	ev.Msg("statement executed")

	return res, nil
}

func findTable(tables []*catalog.Table, name string) *catalog.Table {
	for _, t := range tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}
