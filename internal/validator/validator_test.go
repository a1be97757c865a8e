package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
)

func TestCheck_Safe(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"plain select", "SELECT id, name FROM users"},
		{"join and aggregate", "SELECT u.name, count(*) FROM users u JOIN orders o ON o.user_id = u.id GROUP BY u.name"},
		{"cte", "WITH recent AS (SELECT * FROM orders WHERE created_at > now() - interval '1 day') SELECT * FROM recent"},
		{"keyword in string literal", "SELECT 'DROP TABLE users' AS note"},
		{"keyword in comment", "SELECT 1 -- DELETE FROM users\n"},
		{"keyword in block comment", "/* UPDATE users SET x = 1 */ SELECT 1"},
		{"quoted identifier", `SELECT "drop", "insert" FROM "update"`},
		{"row locking", "SELECT * FROM users FOR UPDATE"},
		{"explain", "EXPLAIN SELECT * FROM users"},
		{"set operation", "SELECT id FROM a UNION ALL SELECT id FROM b"},
		{"truncate is not listed", "TRUNCATE users"},
		{"trailing semicolon", "SELECT 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.sql)
			assert.True(t, v.Safe, v.Reason)
			assert.Empty(t, v.Reason)
			assert.NoError(t, Validate(tt.sql))
		})
	}
}

func TestCheck_Destructive(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want Kind
	}{
		{"drop table", "DROP TABLE users", KindDrop},
		{"drop index", "DROP INDEX idx_users_name", KindDrop},
		{"drop database", "DROP DATABASE shop", KindDrop},
		{"delete", "DELETE FROM users WHERE id = 1", KindDelete},
		{"alter", "ALTER TABLE users ADD COLUMN age int", KindAlter},
		{"rename", "ALTER TABLE users RENAME TO people", KindAlter},
		{"update", "UPDATE users SET name = 'x'", KindUpdate},
		{"insert", "INSERT INTO users (name) VALUES ('x')", KindInsert},
		{"insert select", "INSERT INTO archive SELECT * FROM users", KindInsert},
		{"create table", "CREATE TABLE t (id int)", KindCreate},
		{"create table as", "CREATE TABLE t AS SELECT * FROM users", KindCreate},
		{"create view", "CREATE VIEW v AS SELECT 1", KindCreate},
		{"create index", "CREATE INDEX i ON users (name)", KindCreate},
		{"select into", "SELECT * INTO backup FROM users", KindCreate},
		{"lowercase", "drop table users", KindDrop},
		{"delete in cte", "WITH gone AS (DELETE FROM users RETURNING *) SELECT * FROM gone", KindDelete},
		{"update in nested cte", "WITH a AS (WITH b AS (UPDATE users SET name = 'x' RETURNING id) SELECT * FROM b) SELECT * FROM a", KindUpdate},
		{"insert in subquery cte", "SELECT * FROM (WITH i AS (INSERT INTO t VALUES (1) RETURNING *) SELECT * FROM i) s", KindInsert},
		{"explain analyze delete", "EXPLAIN ANALYZE DELETE FROM users", KindDelete},
		{"merge", "MERGE INTO t USING s ON t.id = s.id WHEN MATCHED THEN DELETE", KindDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.sql)
			assert.False(t, v.Safe)
			assert.Equal(t, tt.want, v.Kind)
			assert.Equal(t, "destructive command detected: "+string(tt.want), v.Reason)

			err := Validate(tt.sql)
			require.Error(t, err)
			assert.True(t, errs.IsRejected(err))
			assert.Equal(t, v.Reason, errs.MessageOf(err))
		})
	}
}

func TestCheck_PriorityWithinStatement(t *testing.T) {
	v := Check("WITH d AS (DELETE FROM a RETURNING id) INSERT INTO b SELECT id FROM d")
	assert.Equal(t, KindDelete, v.Kind)
}

func TestCheck_MultiStatement(t *testing.T) {
	v := Check("SELECT 1; SELECT 2")
	assert.True(t, v.Safe)
	assert.Equal(t, 2, v.Statements)

	v = Check("SELECT * FROM users; DROP TABLE users")
	assert.False(t, v.Safe)
	assert.Equal(t, KindDrop, v.Kind)
	assert.Equal(t, 2, v.Statements)

	v = Check("UPDATE t SET a = 1; DROP TABLE t")
	assert.Equal(t, KindUpdate, v.Kind, "first unsafe statement decides")
}

func TestCheck_InvalidSyntax(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason string
	}{
		{"empty", "", "invalid syntax: empty statement"},
		{"blank", "   \n\t", "invalid syntax: empty statement"},
		{"comment only", "-- nothing here", "invalid syntax: empty statement"},
		{"typo", "SELEC * FROM users", ""},
		{"unterminated", "SELECT 'abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.sql)
			assert.False(t, v.Safe)
			assert.Empty(t, v.Kind)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, v.Reason)
			} else {
				assert.Contains(t, v.Reason, "invalid syntax: ")
			}
			assert.True(t, errs.IsRejected(Validate(tt.sql)))
		})
	}
}

func TestCheckFor_TargetSyntax(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		sql     string
	}{
		{"mysql backticks", database.DialectMySQL, "SELECT `name` FROM `users` LIMIT 10"},
		{"mysql limit offset, count", database.DialectMySQL, "SELECT name FROM users LIMIT 5, 10"},
		{"mysql hash comment", database.DialectMySQL, "SELECT id FROM users # newest first\nORDER BY id DESC"},
		{"mysql double-quoted string", database.DialectMySQL, `SELECT "Alice" AS name`},
		{"mysql interval", database.DialectMySQL, "SELECT * FROM orders WHERE created_at > NOW() - INTERVAL 7 DAY"},
		{"mysql dashes without space are arithmetic", database.DialectMySQL, "SELECT 1--1"},
		{"mysql optimizer hint", database.DialectMySQL, "SELECT /*+ MAX_EXECUTION_TIME(1000) */ id FROM users"},
		{"mysql keyword in string", database.DialectMySQL, "SELECT 'DROP TABLE users', \"DELETE\""},
		{"mysql limit in subquery", database.DialectMySQL, "SELECT * FROM (SELECT id FROM users LIMIT 2, 3) t"},
		{"sqlite brackets and backticks", database.DialectSQLite, "SELECT [name] FROM `users` LIMIT 2, 1"},
		{"sqlite quoted identifier", database.DialectSQLite, `SELECT "name" FROM "users"`},
		{"sqlite comment", database.DialectSQLite, "/* UPDATE users SET x = 1 */ SELECT 1 -- DELETE"},
		{"postgres unchanged", database.DialectPostgres, "SELECT $$DROP$$ AS note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckFor(tt.dialect, tt.sql)
			assert.True(t, v.Safe, v.Reason)
			assert.NoError(t, ValidateFor(tt.dialect, tt.sql))
		})
	}
}

func TestCheckFor_TargetDestructive(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		sql     string
		want    Kind
	}{
		{"mysql delete", database.DialectMySQL, "DELETE FROM `users` WHERE id = 1", KindDelete},
		{"mysql after hash comment", database.DialectMySQL, "SELECT 1 # note\n; DROP TABLE `users`", KindDrop},
		{"mysql insert with double-quoted value", database.DialectMySQL, "INSERT INTO `users` (name) VALUES (\"x\")", KindInsert},
		{"sqlite bracketed update", database.DialectSQLite, "UPDATE [users] SET name = 'x'", KindUpdate},
		{"sqlite create", database.DialectSQLite, "CREATE TABLE `t` (id INTEGER)", KindCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckFor(tt.dialect, tt.sql)
			assert.False(t, v.Safe)
			assert.Equal(t, tt.want, v.Kind)
		})
	}
}

// Text the PostgreSQL grammar reads as harmless but the target does not.
func TestCheckFor_AmbiguousComments(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		sql     string
		reason  string
	}{
		{"sqlite nested comment", database.DialectSQLite, "/* /* */ UPDATE users SET name = 'pwned' -- */ SELECT 1", "nested block comment"},
		{"mysql nested comment", database.DialectMySQL, "/* /* */ DELETE FROM users -- */ SELECT 1", "nested block comment"},
		{"mysql executable comment", database.DialectMySQL, "/*! DELETE FROM users WHERE id IN */ (SELECT 1)", "executable comment"},
		{"mariadb executable comment", database.DialectMySQL, "/*M!100101 DELETE FROM users */ SELECT 1", "executable comment"},
		{"mysql versioned comment", database.DialectMySQL, "SELECT 1 /*!50000 , (SELECT 1 FROM users FOR UPDATE) */", "executable comment"},
		{"mysql escaped quote", database.DialectMySQL, "SELECT 'x\\' ; DELETE FROM users; -- '", "backslash-escaped quote"},
		{"sqlite hash", database.DialectSQLite, "SELECT 1 # DELETE FROM users", "# outside a string literal"},
		{"sqlite unterminated comment", database.DialectSQLite, "SELECT 1 /* DELETE FROM users", "unterminated block comment"},
		{"mysql unterminated string", database.DialectMySQL, "SELECT 'abc", "unterminated string literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckFor(tt.dialect, tt.sql)
			assert.False(t, v.Safe)
			assert.Empty(t, v.Kind)
			assert.Contains(t, v.Reason, "invalid syntax: ")
			assert.Contains(t, v.Reason, tt.reason)
			assert.True(t, errs.IsRejected(ValidateFor(tt.dialect, tt.sql)))
		})
	}

	// A dollar sign is an identifier character on MySQL, not a quote.
	assert.False(t, CheckFor(database.DialectMySQL, "SELECT $$ ; DELETE FROM users; $$").Safe)
}

func TestPortable(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		sql     string
		want    string
	}{
		{"backticks and limit", database.DialectMySQL, "SELECT `name` FROM `users` LIMIT 5, 10", `SELECT "name" FROM "users" LIMIT 10 OFFSET 5`},
		{"comments and dashes", database.DialectMySQL, "SELECT id FROM t -- note\n# more\nWHERE a--1", "SELECT id FROM t WHERE a- -1"},
		{"strings", database.DialectMySQL, `SELECT "it's", E'x'`, `SELECT 'it''s', E 'x'`},
		{"interval", database.DialectMySQL, "SELECT NOW() - INTERVAL 1 DAY", "SELECT NOW() - INTERVAL '1' DAY"},
		{"limit before for update", database.DialectMySQL, "SELECT a FROM t LIMIT 2, 3 FOR UPDATE", "SELECT a FROM t LIMIT 3 OFFSET 2 FOR UPDATE"},
		{"limit in subquery", database.DialectMySQL, "SELECT (SELECT b FROM u LIMIT 1, 1) FROM t", "SELECT (SELECT b FROM u LIMIT 1 OFFSET 1) FROM t"},
		{"dollar identifier", database.DialectMySQL, "SELECT x$y FROM t", `SELECT "x$y" FROM t`},
		{"sqlite identifiers", database.DialectSQLite, `SELECT [order id], "x""y" FROM t LIMIT 1`, `SELECT "order id", "x""y" FROM t LIMIT 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := portable(tt.sql, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
