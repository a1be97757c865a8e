package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // register "sqlite3" driver

	"github.com/koustreak/sqlpilot/internal/errs"
)

// MemoryPath opens a private in-memory catalog.
const MemoryPath = ":memory:"

// SQLiteStore is the Store backed by a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the catalog at path and runs
// pending migrations. Use MemoryPath for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	var dsn string
	if path == MemoryPath {
		dsn = ":memory:?_foreign_keys=on"
	} else {
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open catalog", err)
	}
	if path == MemoryPath {
		// Every new connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to ping catalog", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindUnknown, "catalog migration failed", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the file the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the handle for maintenance commands and tests.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- connections ---

func (s *SQLiteStore) CreateConnection(ctx context.Context, in ConnectionInput) (*Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO db_connections (name, db_type, connection_url, created_at)
		VALUES (?, ?, ?, ?)`,
		in.Name, in.DBType, in.ConnectionURL, now)
	if err != nil {
		return nil, mapError(err, "failed to insert connection")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapError(err, "failed to read connection id")
	}

	return &Connection{
		ID:            id,
		Name:          in.Name,
		DBType:        in.DBType,
		ConnectionURL: in.ConnectionURL,
		CreatedAt:     now,
	}, nil
}

func (s *SQLiteStore) GetConnection(ctx context.Context, id int64) (*Connection, error) {
	const q = `
		SELECT id, name, db_type, connection_url, created_at
		FROM db_connections
		WHERE id = ?`

	var c Connection
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.DBType, &c.ConnectionURL, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.Newf(errs.ErrKindNotFound, "connection %d not found", id)
		}
		return nil, mapError(err, "failed to load connection")
	}
	return &c, nil
}

func (s *SQLiteStore) ListConnections(ctx context.Context, offset, limit int) ([]*Connection, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	const q = `
		SELECT id, name, db_type, connection_url, created_at
		FROM db_connections
		ORDER BY id
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, mapError(err, "failed to list connections")
	}
	defer rows.Close()

	conns := make([]*Connection, 0)
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.Name, &c.DBType, &c.ConnectionURL, &c.CreatedAt); err != nil {
			return nil, mapError(err, "failed to scan connection")
		}
		conns = append(conns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating connections")
	}
	return conns, nil
}

func (s *SQLiteStore) DeleteConnection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM db_connections WHERE id = ?`, id)
	if err != nil {
		return mapError(err, "failed to delete connection")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "failed to delete connection")
	}
	if n == 0 {
		return errs.Newf(errs.ErrKindNotFound, "connection %d not found", id)
	}
	return nil
}

// --- tables ---

func (s *SQLiteStore) ReplaceTables(ctx context.Context, connID int64, tables []TableSpec) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin catalog transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM db_connections WHERE id = ?`, connID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.Newf(errs.ErrKindNotFound, "connection %d not found", connID)
		}
		return mapError(err, "failed to check connection")
	}

	// Columns go with their tables (ON DELETE CASCADE).
	if _, err = tx.ExecContext(ctx, `DELETE FROM table_metadata WHERE connection_id = ?`, connID); err != nil {
		return mapError(err, "failed to clear tables")
	}

	insertTable, err := tx.PrepareContext(ctx, `
		INSERT INTO table_metadata (connection_id, table_name, description)
		VALUES (?, ?, ?)`)
	if err != nil {
		return mapError(err, "failed to prepare table insert")
	}
	defer insertTable.Close()

	insertColumn, err := tx.PrepareContext(ctx, `
		INSERT INTO column_metadata (table_id, column_name, data_type, ordinal_position, is_primary_key, is_foreign_key)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return mapError(err, "failed to prepare column insert")
	}
	defer insertColumn.Close()

	for _, t := range tables {
		res, execErr := insertTable.ExecContext(ctx, connID, t.Name, t.Description)
		if execErr != nil {
			err = mapError(execErr, fmt.Sprintf("failed to insert table %q", t.Name))
			return err
		}
		tableID, idErr := res.LastInsertId()
		if idErr != nil {
			err = mapError(idErr, "failed to read table id")
			return err
		}

		for i, c := range t.Columns {
			if _, execErr := insertColumn.ExecContext(ctx, tableID, c.Name, c.DataType, i+1, c.IsPrimaryKey, c.IsForeignKey); execErr != nil {
				err = mapError(execErr, fmt.Sprintf("failed to insert column %q.%q", t.Name, c.Name))
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return mapError(err, "failed to commit catalog transaction")
	}
	return nil
}

func (s *SQLiteStore) GetTables(ctx context.Context, connID int64) ([]*Table, error) {
	// One statement, so the result is a consistent snapshot even while a
	// ReplaceTables for the same connection is in flight.
	const q = `
		SELECT t.id, t.table_name, t.description,
		       c.id, c.column_name, c.data_type, c.is_primary_key, c.is_foreign_key
		FROM table_metadata t
		LEFT JOIN column_metadata c ON c.table_id = t.id
		WHERE t.connection_id = ?
		ORDER BY t.table_name, t.id, c.ordinal_position, c.id`

	rows, err := s.db.QueryContext(ctx, q, connID)
	if err != nil {
		return nil, mapError(err, "failed to load tables")
	}
	defer rows.Close()

	tables := make([]*Table, 0)
	var current *Table
	for rows.Next() {
		var (
			tableID int64
			name    string
			desc    sql.NullString
			colID   sql.NullInt64
			colName sql.NullString
			colType sql.NullString
			isPK    sql.NullBool
			isFK    sql.NullBool
		)
		if err := rows.Scan(&tableID, &name, &desc, &colID, &colName, &colType, &isPK, &isFK); err != nil {
			return nil, mapError(err, "failed to scan table")
		}

		if current == nil || current.ID != tableID {
			current = &Table{
				ID:           tableID,
				ConnectionID: connID,
				Name:         name,
				Columns:      make([]*Column, 0),
			}
			if desc.Valid {
				d := desc.String
				current.Description = &d
			}
			tables = append(tables, current)
		}

		if colID.Valid {
			current.Columns = append(current.Columns, &Column{
				ID:           colID.Int64,
				TableID:      tableID,
				Name:         colName.String,
				DataType:     colType.String,
				IsPrimaryKey: isPK.Bool,
				IsForeignKey: isFK.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

// mapError wraps catalog storage failures.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindUnknown, msg, err)
}
