// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/database/sqlite"
)

// ShopSchema is a small store database: users, orders referencing users,
// and a composite-key line_items table referencing orders.
var ShopSchema = []string{
	`CREATE TABLE users (
		id    INTEGER PRIMARY KEY,
		name  VARCHAR(100) NOT NULL,
		email TEXT
	)`,
	`CREATE TABLE orders (
		id      INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		total   NUMERIC(10,2) DEFAULT 0
	)`,
	`CREATE TABLE line_items (
		order_id INTEGER NOT NULL REFERENCES orders(id),
		line     INTEGER NOT NULL,
		sku      TEXT,
		PRIMARY KEY (order_id, line)
	)`,
	`INSERT INTO users (id, name, email) VALUES (1, 'Alice', 'alice@example.com'), (2, 'Bob', NULL)`,
	`INSERT INTO orders (id, user_id, total) VALUES (10, 1, 12.5), (11, 2, 3)`,
}

// SQLiteFixture creates a SQLite file in t.TempDir, runs stmts against it and
// returns a sqlite:/// URL for it.
func SQLiteFixture(t testing.TB, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	url := "sqlite:///" + path

	s, err := sqlite.Open(context.Background(), url, database.DefaultConfig())
	require.NoError(t, err)
	defer s.Close()

	for _, stmt := range stmts {
		_, err := s.Execute(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	return url
}
