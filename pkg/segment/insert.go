package segment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapchunk/pkg/sqlscan"
)

// ErrNotDecomposable is returned by ParseInsert when an INSERT has no explicit
// column list or a body that cannot be aligned with it.
var ErrNotDecomposable = errors.New("insert is not decomposable")

// InsertForm distinguishes the two bodies ParseInsert understands.
type InsertForm int

// Insert forms.
const (
	// FormValues is INSERT INTO t (cols) VALUES (...), (...).
	FormValues InsertForm = iota
	// FormSelect is INSERT INTO t (cols) [WITH ...] SELECT ... FROM ...
	FormSelect
)

// setOperators cannot follow a select whose projections are pruned.
var setOperators = []string{"UNION", "INTERSECT", "EXCEPT", "MINUS"}

// ParsedInsert is the structure of an INSERT with an explicit column list.
// In FormValues every row has len(Columns) values. In FormSelect Projections is
// aligned 1:1 with Columns.
type ParsedInsert struct {
	Form InsertForm
	// Prefix is the statement text before the column list, e.g. "INSERT INTO t".
	Prefix  string
	Columns []string

	Rows [][]string

	// Leading is the text between the column list and SELECT, e.g. a WITH clause.
	Leading string
	// Modifier is a DISTINCT or ALL directly after SELECT.
	Modifier    string
	Projections []string
	// Tail runs from the top-level FROM to the end of the statement.
	Tail string
}

// ParseInsert decomposes an INSERT statement. A trailing ';' is ignored.
// Every failure wraps ErrNotDecomposable.
func ParseInsert(sql string) (*ParsedInsert, error) {
	stmt := trimStatement(sql)
	headerEnd, ok := sqlscan.MatchKeywordAt(stmt, 0, "INSERT INTO")
	if !ok {
		return nil, fmt.Errorf("%w: not an INSERT INTO statement", ErrNotDecomposable)
	}

	open := skipTableName(stmt, skipSpace(stmt, headerEnd))
	if open < 0 {
		return nil, fmt.Errorf("%w: missing table name", ErrNotDecomposable)
	}
	open = skipSpace(stmt, open)
	if open >= len(stmt) || stmt[open] != '(' {
		return nil, fmt.Errorf("%w: no column list after table name", ErrNotDecomposable)
	}
	closing := sqlscan.FindMatchingParen(stmt, open)
	if closing == sqlscan.NotFound {
		return nil, fmt.Errorf("%w: unbalanced column list", ErrNotDecomposable)
	}
	columns := sqlscan.SplitTopLevelCommas(stmt[open+1 : closing])
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: empty column list", ErrNotDecomposable)
	}

	p := &ParsedInsert{
		Prefix:  strings.TrimSpace(stmt[:open]),
		Columns: columns,
	}
	rest := strings.TrimSpace(stmt[closing+1:])
	if sqlscan.HasKeywordPrefix(rest, "VALUES") {
		return p, p.parseValues(strings.TrimSpace(rest[len("VALUES"):]))
	}
	return p, p.parseSelect(rest)
}

func (p *ParsedInsert) parseValues(body string) error {
	p.Form = FormValues
	groups := sqlscan.SplitTopLevelCommas(body)
	if len(groups) == 0 {
		return fmt.Errorf("%w: VALUES without rows", ErrNotDecomposable)
	}
	for i, group := range groups {
		if !isParenthesized(group) {
			return fmt.Errorf("%w: row %d is not a parenthesized group", ErrNotDecomposable, i+1)
		}
		values := sqlscan.SplitTopLevelCommas(group[1 : len(group)-1])
		if len(values) != len(p.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns",
				ErrNotDecomposable, i+1, len(values), len(p.Columns))
		}
		p.Rows = append(p.Rows, values)
	}
	return nil
}

func (p *ParsedInsert) parseSelect(rest string) error {
	p.Form = FormSelect
	sel := sqlscan.FindTopLevelKeyword(rest, "SELECT", 0)
	if sel == sqlscan.NotFound {
		return fmt.Errorf("%w: neither VALUES nor SELECT follows the column list", ErrNotDecomposable)
	}
	body := rest[sel:]
	from := sqlscan.FindTopLevelKeyword(body, "FROM", len("SELECT"))
	if from == sqlscan.NotFound {
		return fmt.Errorf("%w: SELECT without a top-level FROM", ErrNotDecomposable)
	}

	projections := strings.TrimSpace(body[len("SELECT"):from])
	for _, mod := range []string{"DISTINCT", "ALL"} {
		if sqlscan.HasKeywordPrefix(projections, mod) {
			p.Modifier = projections[:len(mod)]
			projections = strings.TrimSpace(projections[len(mod):])
			break
		}
	}

	p.Leading = strings.TrimSpace(rest[:sel])
	p.Projections = sqlscan.SplitTopLevelCommas(projections)
	p.Tail = strings.TrimSpace(body[from:])
	if len(p.Projections) != len(p.Columns) {
		return fmt.Errorf("%w: %d projections for %d columns",
			ErrNotDecomposable, len(p.Projections), len(p.Columns))
	}
	for _, op := range setOperators {
		if sqlscan.FindTopLevelKeyword(p.Tail, op, 0) != sqlscan.NotFound {
			return fmt.Errorf("%w: select is combined with %s", ErrNotDecomposable, op)
		}
	}
	return nil
}

// Build serializes the statement restricted to the columns at idxs, in the order
// given. The result ends with ';'.
func (p *ParsedInsert) Build(idxs []int) string {
	var b strings.Builder
	b.WriteString(p.Prefix)
	b.WriteString(" (")
	writeJoined(&b, p.Columns, idxs)
	b.WriteString(") ")

	switch p.Form {
	case FormValues:
		b.WriteString("VALUES ")
		for r, row := range p.Rows {
			if r > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			writeJoined(&b, row, idxs)
			b.WriteByte(')')
		}
	case FormSelect:
		if p.Leading != "" {
			b.WriteString(p.Leading)
			b.WriteByte(' ')
		}
		b.WriteString("SELECT ")
		if p.Modifier != "" {
			b.WriteString(p.Modifier)
			b.WriteByte(' ')
		}
		writeJoined(&b, p.Projections, idxs)
		b.WriteByte(' ')
		b.WriteString(p.Tail)
	}
	b.WriteByte(';')
	return b.String()
}

func writeJoined(b *strings.Builder, items []string, idxs []int) {
	for n, i := range idxs {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(items[i])
	}
}

// skipTableName returns the offset just past the table name starting at i, or
// -1 when there is none. Quoted names may contain spaces and parentheses.
func skipTableName(stmt string, i int) int {
	start := i
	for i < len(stmt) {
		switch ch := stmt[i]; ch {
		case '"', '`':
			end := strings.IndexByte(stmt[i+1:], ch)
			if end < 0 {
				return -1
			}
			i += end + 2
		case ' ', '\t', '\n', '\r', '(', ';':
			if i == start {
				return -1
			}
			return i
		default:
			i++
		}
	}
	if i == start {
		return -1
	}
	return i
}

// isParenthesized reports whether s is one balanced parenthesized group.
func isParenthesized(s string) bool {
	return len(s) >= 2 && s[0] == '(' && sqlscan.FindMatchingParen(s, 0) == len(s)-1
}

// trimStatement drops surrounding whitespace and any trailing semicolons.
func trimStatement(sql string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}
