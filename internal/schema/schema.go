// Package schema turns a live database into the table tree stored in the
// catalog.
package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/sqlpilot/internal/catalog"
)

// Introspector reads the structure of a database (tables, columns, foreign
// keys). Each driver implements the engine-specific queries; Inspect is
// shared.
type Introspector interface {
	// ListTables returns user table names in the session's default schema.
	ListTables(ctx context.Context) ([]string, error)

	// InspectTable returns the columns of one table in ordinal order, with
	// primary-key membership set.
	InspectTable(ctx context.Context, table string) (*TableInfo, error)

	// ListForeignKeys returns every foreign-key column of every table.
	ListForeignKeys(ctx context.Context) ([]ForeignKey, error)
}

// Inspect builds the full SchemaInfo by orchestrating the Introspector.
// Any error aborts the whole pass; a partial schema is never returned.
func Inspect(ctx context.Context, i Introspector) (*SchemaInfo, error) {
	tables, err := i.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	info := &SchemaInfo{Tables: make([]TableInfo, 0, len(tables))}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ti, err := i.InspectTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", table, err)
		}
		info.Tables = append(info.Tables, *ti)
	}

	fks, err := i.ListForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing foreign keys: %w", err)
	}
	info.ForeignKeys = fks
	return info, nil
}

// Specs converts the schema into the catalog's replace-all input. A column
// is a foreign key when it takes part in any foreign-key constraint of its
// table, whatever the target.
func (s *SchemaInfo) Specs() []catalog.TableSpec {
	fkCols := make(map[string]map[string]bool)
	for _, fk := range s.ForeignKeys {
		cols, ok := fkCols[fk.FromTable]
		if !ok {
			cols = make(map[string]bool)
			fkCols[fk.FromTable] = cols
		}
		cols[fk.FromColumn] = true
	}

	specs := make([]catalog.TableSpec, 0, len(s.Tables))
	for _, t := range s.Tables {
		spec := catalog.TableSpec{
			Name:    t.Name,
			Columns: make([]catalog.ColumnSpec, 0, len(t.Columns)),
		}
		for _, c := range t.Columns {
			spec.Columns = append(spec.Columns, catalog.ColumnSpec{
				Name:         c.Name,
				DataType:     c.DataType,
				IsPrimaryKey: c.IsPrimaryKey,
				IsForeignKey: fkCols[t.Name][c.Name],
			})
		}
		specs = append(specs, spec)
	}
	return specs
}
