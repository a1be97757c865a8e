package schema

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string
	DataType     string // driver-reported: integer, character varying(100), TEXT, …
	IsNullable   bool
	IsPrimaryKey bool
	DefaultValue *string // nil if no default
}

// TableInfo describes a table and its columns, in ordinal order.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// ForeignKey is one column pair of a foreign-key constraint. Composite
// constraints produce one ForeignKey per column, sharing Name.
type ForeignKey struct {
	Name       string
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// SchemaInfo is the full introspected database schema
type SchemaInfo struct {
	Tables      []TableInfo
	ForeignKeys []ForeignKey
}
