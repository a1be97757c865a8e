package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koustreak/sqlpilot/internal/database"
)

// portable rewrites sql written for a MySQL or SQLite target into text the
// PostgreSQL parser splits into the same tokens the target does. Comments
// are dropped, literals and quoted identifiers are re-quoted the PostgreSQL
// way, and LIMIT offset, count becomes LIMIT count OFFSET offset. The result
// is only ever classified, never executed.
//
// Text the target and PostgreSQL would split differently is an error:
// executable /*! comments, nested block comments, backslash-escaped quotes
// and, on SQLite, a bare #.
func portable(sql string, d database.Dialect) (string, error) {
	l := &lexer{src: sql, dialect: d}
	if err := l.run(); err != nil {
		return "", err
	}
	return string(l.out), nil
}

type lexer struct {
	src     string
	pos     int
	dialect database.Dialect
	out     []byte

	// gap is set when whitespace or a comment separated the last token
	// from the next one.
	gap      bool
	depth    int
	limit    *limitClause
	interval bool
}

// limitClause tracks a LIMIT at one parenthesis depth until its end.
type limitClause struct {
	depth  int
	start  int
	offset []byte
}

// limitEnds are keywords that may follow a LIMIT clause at the same depth.
var limitEnds = map[string]bool{
	"FOR": true, "UNION": true, "INTERSECT": true, "EXCEPT": true,
	"INTO": true, "LOCK": true, "PROCEDURE": true,
}

func (l *lexer) mysql() bool { return l.dialect == database.DialectMySQL }

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		var err error
		switch {
		case c <= ' ':
			l.pos++
			l.gap = true
		case c == '-' && l.peek(1) == '-' && l.lineComment():
			l.skipLine()
		case c == '#':
			if !l.mysql() {
				return errors.New("# outside a string literal")
			}
			l.skipLine()
		case c == '/' && l.peek(1) == '*':
			err = l.blockComment()
		case c == '\'':
			err = l.stringLiteral(c)
		case c == '"' && l.mysql():
			err = l.stringLiteral(c)
		case c == '"':
			err = l.identifier('"', '"')
		case c == '`':
			err = l.identifier('`', '`')
		case c == '[' && l.dialect == database.DialectSQLite:
			err = l.identifier('[', ']')
		case isWordStart(c):
			l.word()
		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			l.number()
		default:
			l.punct(c)
		}
		if err != nil {
			return err
		}
	}
	l.endLimit()
	return nil
}

// lineComment reports whether the -- at pos opens a comment. MySQL needs
// whitespace or a control character after the dashes; elsewhere -- always
// does.
func (l *lexer) lineComment() bool {
	if !l.mysql() {
		return true
	}
	next := l.peek(2)
	return l.pos+2 >= len(l.src) || next <= ' '
}

func (l *lexer) skipLine() {
	if i := strings.IndexByte(l.src[l.pos:], '\n'); i >= 0 {
		l.pos += i + 1
	} else {
		l.pos = len(l.src)
	}
	l.gap = true
}

func (l *lexer) blockComment() error {
	body := l.src[l.pos+2:]
	if l.mysql() && (strings.HasPrefix(body, "!") || strings.HasPrefix(body, "M!")) {
		return errors.New("executable comment /*! is not allowed")
	}
	end := strings.Index(body, "*/")
	if end < 0 {
		return errors.New("unterminated block comment")
	}
	if strings.Contains(body[:end], "/*") {
		return errors.New("nested block comment")
	}
	l.pos += 2 + end + 2
	l.gap = true
	return nil
}

// stringLiteral reads a literal quoted with q. MySQL honours backslash
// escapes unless NO_BACKSLASH_ESCAPES is set, so a backslash before the
// closing quote is refused rather than guessed.
func (l *lexer) stringLiteral(q byte) error {
	var b strings.Builder
	for i := l.pos + 1; i < len(l.src); {
		c := l.src[i]
		switch {
		case c == q && i+1 < len(l.src) && l.src[i+1] == q:
			b.WriteByte(q)
			i += 2
		case c == q:
			l.pos = i + 1
			// Backslashes are dropped so the rendering does not depend on
			// standard_conforming_strings.
			l.emitQuoted('\'', strings.ReplaceAll(b.String(), `\`, ""))
			return nil
		case c == '\\' && l.mysql():
			if i+1 < len(l.src) && l.src[i+1] == q {
				return fmt.Errorf(`backslash-escaped quote in string literal; write %c%c instead`, q, q)
			}
			if i+1 < len(l.src) {
				b.WriteByte(l.src[i+1])
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return errors.New("unterminated string literal")
}

// identifier reads a quoted identifier. A doubled closing quote escapes
// itself except for [brackets], which have no escape.
func (l *lexer) identifier(open, closing byte) error {
	var b strings.Builder
	for i := l.pos + 1; i < len(l.src); {
		c := l.src[i]
		switch {
		case c == closing && open != '[' && i+1 < len(l.src) && l.src[i+1] == closing:
			b.WriteByte(closing)
			i += 2
		case c == closing:
			l.pos = i + 1
			l.emitQuoted('"', b.String())
			return nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return fmt.Errorf("unterminated quoted identifier %c", open)
}

func (l *lexer) word() {
	start := l.pos
	for l.pos < len(l.src) && isWordChar(l.src[l.pos]) {
		l.pos++
	}
	w := l.src[start:l.pos]

	// $ is an identifier character on the targets but opens a dollar
	// quote in PostgreSQL.
	if strings.IndexByte(w, '$') >= 0 {
		l.emitQuoted('"', w)
		return
	}

	kw := strings.ToUpper(w)
	if l.limit != nil && l.depth == l.limit.depth && limitEnds[kw] {
		l.endLimit()
	}
	l.emit(w)

	switch kw {
	case "LIMIT":
		l.endLimit()
		l.limit = &limitClause{depth: l.depth, start: len(l.out)}
	case "INTERVAL":
		// MySQL writes INTERVAL 1 DAY where PostgreSQL wants '1'.
		l.interval = l.mysql()
	}
}

func (l *lexer) number() {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isDigit(c), isLetter(c), c == '_', c == '.':
			l.pos++
			continue
		case (c == '+' || c == '-') && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E') && isDigit(l.peek(1)):
			l.pos++
			continue
		}
		break
	}
	n := l.src[start:l.pos]
	if l.interval {
		l.emitQuoted('\'', n)
		return
	}
	l.emit(n)
}

func (l *lexer) punct(c byte) {
	l.pos++
	switch c {
	case '(':
		l.depth++
	case ')':
		if l.limit != nil && l.depth == l.limit.depth {
			l.endLimit()
		}
		l.depth--
	case ';':
		l.endLimit()
	case ',':
		if lc := l.limit; lc != nil && lc.offset == nil && l.depth == lc.depth {
			lc.offset = append([]byte(nil), l.out[lc.start:]...)
			l.out = l.out[:lc.start]
			l.gap = true
			return
		}
	}
	// Keep operator characters from fusing into -- /* or */.
	if n := len(l.out); n > 0 && joins(l.out[n-1], c) {
		l.gap = true
	}
	l.emit(string(c))
}

func (l *lexer) endLimit() {
	if l.limit == nil {
		return
	}
	if off := l.limit.offset; off != nil {
		l.out = append(l.out, " OFFSET"...)
		if len(off) > 0 && off[0] != ' ' {
			l.out = append(l.out, ' ')
		}
		l.out = append(l.out, off...)
	}
	l.limit = nil
}

func (l *lexer) emit(s string) {
	if l.gap && len(l.out) > 0 {
		l.out = append(l.out, ' ')
	}
	l.out = append(l.out, s...)
	l.gap = false
	l.interval = false
}

// emitQuoted always leaves a space in front so the quote never binds to a
// prefix such as E, U& or B.
func (l *lexer) emitQuoted(q byte, s string) {
	l.gap = true
	l.emit(string(q) + strings.ReplaceAll(s, string(q), string([]byte{q, q})) + string(q))
}

func joins(prev, next byte) bool {
	return (prev == '-' && next == '-') || (prev == '/' && next == '*') || (prev == '*' && next == '/')
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isWordStart(c byte) bool {
	return isLetter(c) || c == '_' || c == '$' || c >= 0x80
}

func isWordChar(c byte) bool {
	return isWordStart(c) || isDigit(c)
}
