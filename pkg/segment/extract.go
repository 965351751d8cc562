package segment

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapchunk/pkg/sqlscan"
)

// tableModifiers may appear around TABLE in a CREATE TABLE header.
var tableModifiers = []string{"TEMPORARY", "TEMP", "EXTERNAL"}

// Extract returns the INSERT INTO and CREATE TABLE ... AS SELECT statements of
// normalized text, ordered by line. CREATE TABLE statements without an AS SELECT
// body are skipped silently. Statements without a table name or terminating ';',
// or with unbalanced parentheses, are skipped with a warning and extraction
// resumes after them.
func Extract(text string) ([]Statement, []Diagnostic) {
	var diags []Diagnostic

	inserts, d := extractInserts(text)
	diags = append(diags, d...)
	creates, d := extractCreateTableAs(text)
	diags = append(diags, d...)

	stmts := make([]Statement, 0, len(inserts)+len(creates))
	stmts = append(stmts, inserts...)
	stmts = append(stmts, creates...)
	slices.SortStableFunc(stmts, func(a, b Statement) int {
		return cmp.Compare(a.LineNumber, b.LineNumber)
	})

	diags = append(diags, Diagnostic{
		Severity: SeverityInfo,
		Message: fmt.Sprintf("extracted %d INSERT and %d CREATE TABLE AS statements",
			len(inserts), len(creates)),
	})
	return stmts, diags
}

func extractInserts(text string) ([]Statement, []Diagnostic) {
	var (
		stmts []Statement
		diags []Diagnostic
	)
	for from := 0; from < len(text); {
		pos, headerEnd := sqlscan.FindKeywordOutsideQuotes(text, "INSERT INTO", from)
		if pos == sqlscan.NotFound {
			break
		}
		line := lineAt(text, pos)
		end := sqlscan.FindStatementEnd(text, pos)
		if end == sqlscan.NotFound {
			semi := sqlscan.FindCharOutsideQuotes(text, ';', pos)
			if semi == sqlscan.NotFound {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Line:     line,
					Message:  "INSERT statement has no terminating semicolon",
				})
				break
			}
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Line:     line,
				Message:  "INSERT statement has unbalanced parentheses",
			})
			from = semi + 1
			continue
		}
		from = end + 1

		table := tableNameAt(text[:end], headerEnd)
		if table == "" {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Line:     line,
				Message:  "INSERT statement has no table name",
			})
			continue
		}
		stmts = append(stmts, Statement{
			SQL:        strings.TrimSpace(text[pos : end+1]),
			TableName:  table,
			LineNumber: line,
			Kind:       KindInsert,
		})
	}
	return stmts, diags
}

func extractCreateTableAs(text string) ([]Statement, []Diagnostic) {
	var (
		stmts []Statement
		diags []Diagnostic
	)
	for from := 0; from < len(text); {
		pos, createEnd := sqlscan.FindKeywordOutsideQuotes(text, "CREATE", from)
		if pos == sqlscan.NotFound {
			break
		}
		headerEnd, ok := matchCreateTableHeader(text, createEnd)
		if !ok {
			from = createEnd
			continue
		}
		line := lineAt(text, pos)
		end := sqlscan.FindStatementEnd(text, pos)
		if end == sqlscan.NotFound {
			if semi := sqlscan.FindCharOutsideQuotes(text, ';', pos); semi != sqlscan.NotFound {
				if hasSelectBody(text[pos : semi+1]) {
					diags = append(diags, Diagnostic{
						Severity: SeverityWarning,
						Line:     line,
						Message:  "CREATE TABLE AS statement has unbalanced parentheses",
					})
				}
				from = semi + 1
				continue
			}
		}
		body := text[pos:]
		if end != sqlscan.NotFound {
			body = text[pos : end+1]
		}
		if !hasSelectBody(body) {
			if end == sqlscan.NotFound {
				break
			}
			from = end + 1
			continue
		}
		if end == sqlscan.NotFound {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Line:     line,
				Message:  "CREATE TABLE AS statement has no terminating semicolon",
			})
			break
		}
		from = end + 1

		table := tableNameAt(text[:end], headerEnd)
		if table == "" || strings.EqualFold(table, "AS") {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Line:     line,
				Message:  "CREATE TABLE AS statement has no table name",
			})
			continue
		}
		stmts = append(stmts, Statement{
			SQL:        strings.TrimSpace(body),
			TableName:  table,
			LineNumber: line,
			Kind:       KindCreateTableAs,
		})
	}
	return stmts, diags
}

// matchCreateTableHeader matches
// [TEMPORARY|TEMP|EXTERNAL] TABLE [IF NOT EXISTS] [TEMPORARY|TEMP|EXTERNAL]
// after CREATE and returns the offset where the table name should begin.
func matchCreateTableHeader(text string, i int) (int, bool) {
	i = skipSpace(text, i)
	if end, ok := matchAny(text, i, tableModifiers); ok {
		i = skipSpace(text, end)
	}
	end, ok := sqlscan.MatchKeywordAt(text, i, "TABLE")
	if !ok {
		return 0, false
	}
	i = skipSpace(text, end)
	if end, ok := sqlscan.MatchKeywordAt(text, i, "IF NOT EXISTS"); ok {
		i = skipSpace(text, end)
	}
	if end, ok := matchAny(text, i, tableModifiers); ok {
		i = skipSpace(text, end)
	}
	return i, true
}

// hasSelectBody reports whether a CREATE TABLE statement has a depth-0 AS
// followed by WITH or SELECT.
func hasSelectBody(stmt string) bool {
	for from := 0; ; {
		pos := sqlscan.FindTopLevelKeyword(stmt, "AS", from)
		if pos == sqlscan.NotFound {
			return false
		}
		rest := stmt[pos+len("AS"):]
		if sqlscan.HasKeywordPrefix(rest, "SELECT") || sqlscan.HasKeywordPrefix(rest, "WITH") {
			return true
		}
		from = pos + len("AS")
	}
}

// tableNameAt reads the table name token that starts at or after i. The token
// runs until whitespace, '(' or ';'.
func tableNameAt(text string, i int) string {
	i = skipSpace(text, i)
	start := i
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '(', ';':
			return text[start:i]
		}
		i++
	}
	return text[start:]
}

func matchAny(text string, i int, keywords []string) (int, bool) {
	for _, kw := range keywords {
		if end, ok := sqlscan.MatchKeywordAt(text, i, kw); ok {
			return end, true
		}
	}
	return 0, false
}

func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	return i
}

// lineAt returns the 1-based line of offset pos.
func lineAt(text string, pos int) int {
	return strings.Count(text[:pos], "\n") + 1
}
