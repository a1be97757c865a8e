// Package catalog stores registered connections and the table/column
// metadata harvested from them.
//
// The set of tables for a connection is only ever replaced as a whole
// (ReplaceTables); readers see either the previous set or the new one.
// Deleting a connection removes its tables and columns with it.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// DefaultListLimit caps ListConnections when the caller passes limit <= 0.
const DefaultListLimit = 100

// Connection identifies an external database that sqlpilot can introspect
// and query. ConnectionURL is opaque to the catalog.
type Connection struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	DBType        string    `json:"db_type"`
	ConnectionURL string    `json:"connection_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConnectionInput is what a caller supplies to register a connection.
type ConnectionInput struct {
	Name          string `json:"name"`
	DBType        string `json:"db_type"`
	ConnectionURL string `json:"connection_url"`
}

// Validate normalises DBType and rejects empty fields.
func (in *ConnectionInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.DBType = strings.ToLower(strings.TrimSpace(in.DBType))
	in.ConnectionURL = strings.TrimSpace(in.ConnectionURL)

	switch {
	case in.Name == "":
		return errs.New(errs.ErrKindInvalidInput, "name is required")
	case in.DBType == "":
		return errs.New(errs.ErrKindInvalidInput, "db_type is required")
	case in.ConnectionURL == "":
		return errs.New(errs.ErrKindInvalidInput, "connection_url is required")
	}
	return nil
}

// Table is one indexed table of a connection.
type Table struct {
	ID           int64     `json:"id"`
	ConnectionID int64     `json:"connection_id"`
	Name         string    `json:"table_name"`
	Description  *string   `json:"description"`
	Columns      []*Column `json:"columns"`
}

// Column is one column of an indexed table. DataType is the type name the
// target driver reported, without normalisation.
type Column struct {
	ID           int64  `json:"id"`
	TableID      int64  `json:"table_id"`
	Name         string `json:"column_name"`
	DataType     string `json:"data_type"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	IsForeignKey bool   `json:"is_foreign_key"`
}

// TableSpec is the introspected shape handed to ReplaceTables.
type TableSpec struct {
	Name        string
	Description *string
	Columns     []ColumnSpec
}

// ColumnSpec is one column of a TableSpec, in ordinal order.
type ColumnSpec struct {
	Name         string
	DataType     string
	IsPrimaryKey bool
	IsForeignKey bool
}

// Store is the catalog contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// CreateConnection registers a connection and returns it with its ID.
	CreateConnection(ctx context.Context, in ConnectionInput) (*Connection, error)

	// GetConnection returns ErrKindNotFound for an unknown id.
	GetConnection(ctx context.Context, id int64) (*Connection, error)

	// ListConnections returns connections ordered by id.
	ListConnections(ctx context.Context, offset, limit int) ([]*Connection, error)

	// DeleteConnection removes the connection and, by cascade, its tables
	// and columns. ErrKindNotFound for an unknown id.
	DeleteConnection(ctx context.Context, id int64) error

	// ReplaceTables swaps the full table set of a connection atomically.
	ReplaceTables(ctx context.Context, connID int64, tables []TableSpec) error

	// GetTables returns the tables of a connection ordered by name, each
	// with its columns in ordinal order. An empty slice means "not indexed
	// yet" as far as callers are concerned.
	GetTables(ctx context.Context, connID int64) ([]*Table, error)

	Close() error
}
