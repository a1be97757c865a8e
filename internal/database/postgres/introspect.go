package postgres

import (
	"context"

	"github.com/koustreak/sqlpilot/internal/schema"
)

// ListTables returns the ordinary and partitioned tables of the session's
// current schema.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT c.relname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
		  AND c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		ORDER BY c.relname`

	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

// InspectTable returns the table's live columns in ordinal order. data_type
// is format_type(), so modifiers survive: character varying(100),
// numeric(10,2).
func (s *Session) InspectTable(ctx context.Context, table string) (*schema.TableInfo, error) {
	const q = `
		SELECT a.attname,
		       pg_catalog.format_type(a.atttypid, a.atttypmod),
		       NOT a.attnotnull,
		       pg_catalog.pg_get_expr(d.adbin, d.adrelid),
		       EXISTS (
		           SELECT 1 FROM pg_catalog.pg_index i
		           WHERE i.indrelid = c.oid
		             AND i.indisprimary
		             AND a.attnum = ANY (i.indkey)
		       )
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = current_schema()
		  AND c.relname = $1
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	rows, err := s.conn.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	info := &schema.TableInfo{Name: table, Columns: make([]schema.ColumnInfo, 0)}
	for rows.Next() {
		var c schema.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.IsPrimaryKey); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return info, nil
}

// ListForeignKeys returns one entry per column pair of every foreign-key
// constraint declared in the current schema.
func (s *Session) ListForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	const q = `
		SELECT con.conname,
		       src.relname,
		       sa.attname,
		       dst.relname,
		       da.attname
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class src ON src.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = src.relnamespace
		JOIN pg_catalog.pg_class dst ON dst.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(src_att, dst_att)
		JOIN pg_catalog.pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = k.src_att
		JOIN pg_catalog.pg_attribute da ON da.attrelid = con.confrelid AND da.attnum = k.dst_att
		WHERE con.contype = 'f'
		  AND n.nspname = current_schema()
		ORDER BY src.relname, con.conname, sa.attnum`

	rows, err := s.conn.Query(ctx, q)
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
