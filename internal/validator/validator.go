// Package validator decides whether SQL text is read-only before it is sent
// to a target database. It parses with the PostgreSQL grammar and walks the
// complete syntax tree, so keywords inside comments, string literals or
// quoted identifiers never count, while statements nested in CTEs and
// subqueries always do.
//
// MySQL and SQLite text is first re-tokenized with the target's own lexical
// rules, so a comment or literal the target reads differently cannot hide a
// statement from the parser.
package validator

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
)

// Kind names a class of destructive statement.
type Kind string

const (
	KindDrop   Kind = "DROP"
	KindDelete Kind = "DELETE"
	KindAlter  Kind = "ALTER"
	KindUpdate Kind = "UPDATE"
	KindInsert Kind = "INSERT"
	KindCreate Kind = "CREATE"
)

// priority is the order kinds are reported in when one statement contains
// several.
var priority = []Kind{KindDrop, KindDelete, KindAlter, KindUpdate, KindInsert, KindCreate}

// Verdict is the outcome of Check.
type Verdict struct {
	Safe       bool   `json:"safe"`
	Kind       Kind   `json:"kind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Statements int    `json:"statements"`
}

// Validate returns nil when sql is safe to run on a PostgreSQL target and an
// errs.ErrKindRejected error naming the reason otherwise.
func Validate(sql string) error {
	return ValidateFor(database.DialectPostgres, sql)
}

// ValidateFor is Validate for a target speaking dialect d.
func ValidateFor(d database.Dialect, sql string) error {
	v := CheckFor(d, sql)
	if v.Safe {
		return nil
	}
	return errs.New(errs.ErrKindRejected, v.Reason)
}

// Check parses sql and classifies every statement in it as a PostgreSQL
// target reads it. The whole input is unsafe if any statement is.
func Check(sql string) Verdict {
	return CheckFor(database.DialectPostgres, sql)
}

// CheckFor is Check for a target speaking dialect d.
func CheckFor(d database.Dialect, sql string) Verdict {
	if strings.TrimSpace(sql) == "" {
		return rejectSyntax("empty statement", 0)
	}

	if d != database.DialectPostgres {
		text, err := portable(sql, d)
		if err != nil {
			return rejectSyntax(err.Error(), 0)
		}
		sql = text
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return rejectSyntax(err.Error(), 0)
	}
	n := len(tree.GetStmts())
	if n == 0 {
		return rejectSyntax("empty statement", 0)
	}

	for _, raw := range tree.GetStmts() {
		if k, found := destructiveKind(raw); found {
			return Verdict{
				Kind:       k,
				Reason:     "destructive command detected: " + string(k),
				Statements: n,
			}
		}
	}
	return Verdict{Safe: true, Statements: n}
}

func rejectSyntax(detail string, n int) Verdict {
	return Verdict{Reason: "invalid syntax: " + detail, Statements: n}
}

// destructiveKind walks one statement and returns the highest-priority
// destructive kind anywhere inside it.
func destructiveKind(stmt *pg_query.RawStmt) (Kind, bool) {
	seen := make(map[Kind]bool)
	walk(stmt.ProtoReflect(), seen)
	for _, k := range priority {
		if seen[k] {
			return k, true
		}
	}
	return "", false
}

// walk visits m and every message reachable from it, in field declaration
// order.
func walk(m protoreflect.Message, seen map[Kind]bool) {
	if seen[KindDrop] {
		return
	}
	classify(m, seen)

	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Kind() != protoreflect.MessageKind || fd.IsMap() || !m.Has(fd) {
			continue
		}
		v := m.Get(fd)
		if fd.IsList() {
			list := v.List()
			for j := 0; j < list.Len(); j++ {
				walk(list.Get(j).Message(), seen)
			}
			continue
		}
		walk(v.Message(), seen)
	}
}

// createNodes are statement nodes that create objects without a Create
// prefix in their message name.
var createNodes = map[string]bool{
	"ViewStmt":          true,
	"IndexStmt":         true,
	"RuleStmt":          true,
	"CompositeTypeStmt": true,
	"DefineStmt":        true,
}

func classify(m protoreflect.Message, seen map[Kind]bool) {
	name := string(m.Descriptor().Name())
	switch {
	case name == "DeleteStmt":
		seen[KindDelete] = true
	case name == "UpdateStmt":
		seen[KindUpdate] = true
	case name == "InsertStmt":
		seen[KindInsert] = true
	case name == "RenameStmt":
		seen[KindAlter] = true
	case name == "SelectStmt":
		// SELECT ... INTO creates a table.
		if fd := m.Descriptor().Fields().ByName("into_clause"); fd != nil && m.Has(fd) {
			seen[KindCreate] = true
		}
	case name == "MergeWhenClause":
		if k, ok := mergeAction(m); ok {
			seen[k] = true
		}
	case !strings.HasSuffix(name, "Stmt"):
	case strings.HasPrefix(name, "Drop"):
		seen[KindDrop] = true
	case strings.HasPrefix(name, "Alter"):
		seen[KindAlter] = true
	case strings.HasPrefix(name, "Create"), createNodes[name]:
		seen[KindCreate] = true
	}
}

// mergeAction maps a MERGE branch's command type onto the matching kind.
func mergeAction(m protoreflect.Message) (Kind, bool) {
	fd := m.Descriptor().Fields().ByName("command_type")
	if fd == nil || fd.Kind() != protoreflect.EnumKind {
		return "", false
	}
	val := fd.Enum().Values().ByNumber(m.Get(fd).Enum())
	if val == nil {
		return "", false
	}
	switch string(val.Name()) {
	case "CMD_INSERT":
		return KindInsert, true
	case "CMD_UPDATE":
		return KindUpdate, true
	case "CMD_DELETE":
		return KindDelete, true
	}
	return "", false
}
