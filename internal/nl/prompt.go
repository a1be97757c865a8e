package nl

import (
	"fmt"
	"strings"

	"github.com/koustreak/sqlpilot/internal/catalog"
)

const systemTemplate = `You are an expert database engineer. Convert the user's natural language question into a valid SQL query.
The database schema is as follows:
%s
Rules:
1. Return a JSON object with two keys: "sql" and "export_format".
2. "sql": a single valid SQL query string.
3. "export_format": "csv" or "json" if the user explicitly asks for an export or a file, otherwise null.
4. Do not use markdown blocks.
5. Do not add explanations or introductory text.
6. Ensure the SQL is compatible with %s.
7. Only read data; never modify it.
8. If the question cannot be answered with the schema, return "sql": "SELECT 'ERROR: Cannot answer'".
`

// SystemPrompt renders tables as CREATE TABLE statements inside the
// instruction block.
func SystemPrompt(tables []*catalog.Table, dialect string) string {
	return fmt.Sprintf(systemTemplate, SchemaDDL(tables), dialect)
}

// SchemaDDL renders the catalog as DDL, one statement per table.
func SchemaDDL(tables []*catalog.Table) string {
	var sb strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&sb, "CREATE TABLE %s (\n", t.Name)
		for i, c := range t.Columns {
			sb.WriteString("  ")
			sb.WriteString(c.Name)
			sb.WriteByte(' ')
			sb.WriteString(c.DataType)
			if c.IsPrimaryKey {
				sb.WriteString(" PRIMARY KEY")
			}
			if i < len(t.Columns)-1 {
				sb.WriteByte(',')
			}
			if c.IsForeignKey {
				sb.WriteString(" -- references another table")
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(");\n\n")
	}
	return sb.String()
}
