package segment

import (
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapchunk/pkg/sqlscan"
)

// SplitFunc rewrites an oversized statement as several smaller ones with the same
// effect. It returns at least two pieces on success, or the input terminated by
// ';' as its only element when it does not apply.
//
// The Segmenter also counts a single piece that differs from the input as
// progress and requeues it. MaxSplitDepth bounds such rewrites.
type SplitFunc func(stmt string, budget int) []string

// Strategy is a named SplitFunc.
type Strategy struct {
	Name  string
	Split SplitFunc
}

// DefaultStrategies is the order in which the Segmenter tries strategies.
var DefaultStrategies = []Strategy{
	{Name: "values", Split: SplitValueGroups},
	{Name: "union", Split: SplitUnionBranches},
	{Name: "columns", Split: SplitColumns},
}

// SplitValueGroups emits one INSERT per row group of an INSERT ... VALUES
// statement with at least two parenthesized row groups. The header before the
// rows is reused verbatim.
func SplitValueGroups(stmt string, _ int) []string {
	base := trimStatement(stmt)
	unchanged := []string{base + ";"}
	if !sqlscan.HasKeywordPrefix(base, "INSERT INTO") {
		return unchanged
	}
	pos := sqlscan.FindTopLevelKeyword(base, "VALUES", 0)
	if pos == sqlscan.NotFound {
		return unchanged
	}
	header := strings.TrimSpace(base[:pos+len("VALUES")])
	groups := sqlscan.SplitTopLevelCommas(base[pos+len("VALUES"):])
	if len(groups) < 2 {
		return unchanged
	}
	for _, g := range groups {
		if !isParenthesized(g) {
			return unchanged
		}
	}

	pieces := make([]string, len(groups))
	for i, g := range groups {
		pieces[i] = header + " " + g + ";"
	}
	return pieces
}

// SplitUnionBranches emits one INSERT per top-level UNION ALL branch of an
// INSERT ... SELECT statement. A WITH clause before the first SELECT is repeated
// in front of every branch.
func SplitUnionBranches(stmt string, _ int) []string {
	base := trimStatement(stmt)
	unchanged := []string{base + ";"}
	if !sqlscan.HasKeywordPrefix(base, "INSERT") {
		return unchanged
	}

	bodyStart := sqlscan.NotFound
	for _, kw := range []string{"VALUES", "WITH", "SELECT"} {
		pos := sqlscan.FindTopLevelKeyword(base, kw, 0)
		if pos != sqlscan.NotFound && (bodyStart == sqlscan.NotFound || pos < bodyStart) {
			bodyStart = pos
		}
	}
	if bodyStart == sqlscan.NotFound {
		return unchanged
	}
	prefix := strings.TrimSpace(base[:bodyStart])
	rest := base[bodyStart:]
	if sqlscan.HasKeywordPrefix(rest, "VALUES") {
		return unchanged
	}

	with := ""
	if sqlscan.HasKeywordPrefix(rest, "WITH") {
		sel := sqlscan.FindTopLevelKeyword(rest, "SELECT", 0)
		if sel == sqlscan.NotFound {
			return unchanged
		}
		with = strings.TrimSpace(rest[:sel])
		rest = rest[sel:]
	}

	branches := sqlscan.SplitTopLevelKeywordAll(rest, "UNION ALL")
	if len(branches) < 2 {
		return unchanged
	}
	pieces := make([]string, len(branches))
	for i, branch := range branches {
		if with != "" {
			branch = with + " " + branch
		}
		pieces[i] = prefix + " " + branch + ";"
	}
	return pieces
}

// SplitColumns packs the columns of an INSERT with an explicit column list into
// consecutive groups, each serialized within budget. Column and row order are
// kept. When a single column cannot fit, the statement is returned unchanged.
func SplitColumns(stmt string, budget int) []string {
	base := trimStatement(stmt)
	unchanged := []string{base + ";"}
	p, err := ParseInsert(base)
	if err != nil || len(p.Columns) < 2 {
		return unchanged
	}

	var pieces []string
	for start := 0; start < len(p.Columns); {
		idxs := []int{start}
		piece := p.Build(idxs)
		if utf8.RuneCountInString(piece) > budget {
			return unchanged
		}
		for next := start + 1; next < len(p.Columns); next++ {
			candidate := p.Build(append(idxs, next))
			if utf8.RuneCountInString(candidate) > budget {
				break
			}
			idxs = append(idxs, next)
			piece = candidate
		}
		pieces = append(pieces, piece)
		start = idxs[len(idxs)-1] + 1
	}
	return pieces
}
