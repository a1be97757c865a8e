package mysql

import (
	"context"

	"github.com/koustreak/sqlpilot/internal/schema"
)

// ListTables returns all base tables in the connection's default database.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	return s.QueryStrings(ctx, q, "failed to list tables")
}

// InspectTable returns column details for a single table. data_type is
// column_type, which keeps length and signedness (varchar(100),
// int unsigned).
func (s *Session) InspectTable(ctx context.Context, table string) (*schema.TableInfo, error) {
	const q = `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable = 'YES'  AS is_nullable,
			c.column_default,
			(c.column_key = 'PRI') AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE() AND c.table_name = ?
		ORDER BY c.ordinal_position`

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

// ListForeignKeys returns all FK column pairs in the database.
func (s *Session) ListForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	const q = `
		SELECT
			kcu.constraint_name,
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = DATABASE()
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`

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
