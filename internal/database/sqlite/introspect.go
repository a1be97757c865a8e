package sqlite

import (
	"context"

	"github.com/koustreak/sqlpilot/internal/schema"
)

// ListTables returns user tables, skipping sqlite_ internals.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	return s.QueryStrings(ctx, q, "failed to list tables")
}

// InspectTable reads pragma_table_info. Declared types are reported as
// written in the CREATE TABLE statement.
func (s *Session) InspectTable(ctx context.Context, table string) (*schema.TableInfo, error) {
	const q = `
		SELECT name, type, "notnull" = 0, dflt_value, pk > 0
		FROM pragma_table_info(?)
		ORDER BY cid`

	rows, err := s.Conn.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	info := &schema.TableInfo{Name: table, Columns: make([]schema.ColumnInfo, 0)}
	for rows.Next() {
		var col schema.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.DefaultValue, &col.IsPrimaryKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		info.Columns = append(info.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return info, nil
}

// ListForeignKeys joins every table against pragma_foreign_key_list. SQLite
// constraints are unnamed, so Name is "<table>_fk_<id>". A reference with no
// explicit target column points at the parent's primary key and is reported
// with an empty ToColumn.
func (s *Session) ListForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	const q = `
		SELECT m.name || '_fk_' || fk.id,
		       m.name,
		       fk."from",
		       fk."table",
		       COALESCE(fk."to", '')
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) fk
		WHERE m.type = 'table'
		  AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, fk.id, fk.seq`

	rows, err := s.Conn.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	fks := make([]schema.ForeignKey, 0)
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Name, &fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating foreign keys")
	}
	return fks, nil
}
