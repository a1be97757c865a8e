package database

import (
	"strings"
	"time"
)

// Driver identifies the target database engine.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// aliases maps the db_type strings users register connections with onto a
// Driver.
var aliases = map[string]Driver{
	"postgres":   DriverPostgres,
	"postgresql": DriverPostgres,
	"pg":         DriverPostgres,
	"mysql":      DriverMySQL,
	"mariadb":    DriverMySQL,
	"sqlite":     DriverSQLite,
	"sqlite3":    DriverSQLite,
}

// ParseDriver resolves a db_type string. ok is false for unknown engines.
func ParseDriver(dbType string) (Driver, bool) {
	d, ok := aliases[strings.ToLower(strings.TrimSpace(dbType))]
	return d, ok
}

// Config bounds every ephemeral session a driver opens.
type Config struct {
	// ConnectTimeout limits dialing plus the initial ping.
	ConnectTimeout time.Duration

	// QueryTimeout is the default per-statement deadline, applied by callers.
	QueryTimeout time.Duration
}

// DefaultConfig returns the timeouts used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   60 * time.Second,
	}
}

// Dialect returns how d writes identifiers and placeholders.
func (d Driver) Dialect() Dialect {
	switch d {
	case DriverMySQL:
		return DialectMySQL
	case DriverSQLite:
		return DialectSQLite
	default:
		return DialectPostgres
	}
}
