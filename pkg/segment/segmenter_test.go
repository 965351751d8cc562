package segment

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapchunk/internal/testutil"
)

func newTestSegmenter(t *testing.T, budget int) *Segmenter {
	t.Helper()
	return New(Options{Budget: budget, Logger: testutil.NewTestLogger(t)})
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultBudget, s.Budget())
	assert.Len(t, s.strategies, 3)
	assert.NotNil(t, s.logger)
}

func TestMaxSplitDepth(t *testing.T) {
	tests := []struct {
		length, budget, want int
	}{
		{length: 100, budget: 10, want: 10},
		{length: 101, budget: 10, want: 11},
		{length: 10, budget: 100, want: 4},
		{length: 0, budget: 0, want: 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.length, tt.budget), func(t *testing.T) {
			assert.Equal(t, tt.want, MaxSplitDepth(tt.length, tt.budget))
		})
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestSplit_TwoRowValues(t *testing.T) {
	s := newTestSegmenter(t, 40)

	pieces, diags := s.Split("INSERT INTO t (a, b) VALUES (1, 2), (3, 4);")

	assert.Equal(t, []string{
		"INSERT INTO t (a, b) VALUES (1, 2);",
		"INSERT INTO t (a, b) VALUES (3, 4);",
	}, pieces)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityInfo, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "values split")
}

func TestSplit_CompactValues(t *testing.T) {
	s := newTestSegmenter(t, 38)

	pieces, _ := s.Split("INSERT INTO t (a,b) VALUES (1,2),(3,4);")

	assert.Equal(t, []string{
		"INSERT INTO t (a,b) VALUES (1,2);",
		"INSERT INTO t (a,b) VALUES (3,4);",
	}, pieces)
}

func TestSegmentText_NoSplitUnderBudget(t *testing.T) {
	raw := "-- nightly load\n" +
		"INSERT INTO a (x) VALUES (1), (2);\n" +
		"CREATE TABLE b AS SELECT x FROM a;\n" +
		"INSERT INTO c SELECT * FROM b UNION ALL SELECT * FROM a;\n"
	s := newTestSegmenter(t, 1000)

	res := s.SegmentText(raw)

	stmts, _ := Extract(Normalize(raw))
	require.Len(t, res.Pieces, len(stmts))
	for i, stmt := range stmts {
		assert.Equal(t, stmt.SQL, res.Pieces[i].SQL)
		assert.Equal(t, stmt.TableName, res.Pieces[i].TableName)
		assert.Equal(t, stmt.LineNumber, res.Pieces[i].LineNumber)
		assert.Equal(t, 1, res.Pieces[i].Parts)
	}
	assert.Equal(t, 3, res.Statements)
	assert.Zero(t, res.Split)
	assert.Zero(t, res.Dropped)
	assert.Empty(t, res.Errors())
}

func TestSegment_OversizedCreateTableAsDropped(t *testing.T) {
	stmt := Statement{
		SQL:        "CREATE TABLE x AS SELECT a, b FROM y;",
		TableName:  "x",
		LineNumber: 7,
		Kind:       KindCreateTableAs,
	}
	s := newTestSegmenter(t, 20)

	res := s.Segment([]Statement{stmt})

	assert.Empty(t, res.Pieces)
	assert.Equal(t, 1, res.Split)
	assert.Equal(t, 1, res.Dropped)
	errs := res.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 7, errs[0].Line)
	assert.Contains(t, errs[0].Message, "cannot fit 37 characters within 20")
	assert.Contains(t, errs[0].Message, stmt.SQL)
}

func TestSegment_KeepOversized(t *testing.T) {
	stmt := Statement{SQL: "CREATE TABLE x AS SELECT a, b FROM y;", TableName: "x", LineNumber: 1, Kind: KindCreateTableAs}
	s := New(Options{Budget: 20, KeepOversized: true, Logger: testutil.NewTestLogger(t)})

	res := s.Segment([]Statement{stmt})

	require.Len(t, res.Pieces, 1)
	assert.Equal(t, stmt.SQL, res.Pieces[0].SQL)
	assert.Zero(t, res.Dropped)
	assert.Len(t, res.Errors(), 1)
}

// =============================================================================
// Properties
// =============================================================================

func TestSplit_UnionThenColumns(t *testing.T) {
	s := newTestSegmenter(t, 45)

	pieces, diags := s.Split("INSERT INTO t (a, b) SELECT aaaaaaaa, bbbbbbbb FROM x UNION ALL SELECT cccccccc, dddddddd FROM y;")

	assert.Equal(t, []string{
		"INSERT INTO t (a) SELECT aaaaaaaa FROM x;",
		"INSERT INTO t (b) SELECT bbbbbbbb FROM x;",
		"INSERT INTO t (a) SELECT cccccccc FROM y;",
		"INSERT INTO t (b) SELECT dddddddd FROM y;",
	}, pieces)
	require.Len(t, diags, 3)
	assert.Contains(t, diags[0].Message, "union split")
	assert.Contains(t, diags[1].Message, "columns split")
	assert.Contains(t, diags[2].Message, "columns split")
}

func TestSplit_BudgetInvariant(t *testing.T) {
	var rows []string
	for i := 0; i < 60; i++ {
		rows = append(rows, fmt.Sprintf("(%d, '名字%d', 'note; with, punctuation -- %d')", i, i, i))
	}
	stmt := "INSERT INTO people (id, name, note) VALUES " + strings.Join(rows, ", ") + ";"

	for _, budget := range []int{70, 90, 200, 1000} {
		t.Run(fmt.Sprint(budget), func(t *testing.T) {
			s := newTestSegmenter(t, budget)
			pieces, _ := s.Split(stmt)
			require.NotEmpty(t, pieces)
			for _, p := range pieces {
				assert.LessOrEqual(t, utf8.RuneCountInString(p), budget)
				assert.True(t, strings.HasSuffix(p, ";"))
				assert.Equal(t, strings.TrimSpace(p), p)
			}
		})
	}
}

func TestSplit_LosslessValues(t *testing.T) {
	var rows []string
	for i := 0; i < 30; i++ {
		rows = append(rows, fmt.Sprintf("(%d, 'it''s row %d')", i, i))
	}
	stmt := "INSERT INTO t (id, label) VALUES " + strings.Join(rows, ", ") + ";"
	orig, err := ParseInsert(stmt)
	require.NoError(t, err)

	s := newTestSegmenter(t, 60)
	pieces, diags := s.Split(stmt)
	for _, d := range diags {
		assert.NotEqual(t, SeverityError, d.Severity, d.Message)
	}

	var got [][]string
	for _, piece := range pieces {
		p, err := ParseInsert(piece)
		require.NoError(t, err)
		assert.Equal(t, orig.Columns, p.Columns)
		got = append(got, p.Rows...)
	}
	assert.Equal(t, orig.Rows, got)
}

func TestSplit_QuoteSafety(t *testing.T) {
	stmt := "INSERT INTO t (a) VALUES ('a;b,c--d');"

	stmts, _ := Extract(Normalize(stmt))
	require.Len(t, stmts, 1)
	assert.Equal(t, stmt, stmts[0].SQL)

	pieces, diags := newTestSegmenter(t, 100).Split(stmt)
	assert.Equal(t, []string{stmt}, pieces)
	assert.Empty(t, diags)

	// One row and one column: nothing to split on, and nothing split inside the literal.
	pieces, diags = newTestSegmenter(t, 20).Split(stmt)
	assert.Empty(t, pieces)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityError, diags[0].Severity)
}

func TestSplit_Idempotent(t *testing.T) {
	stmt := "INSERT INTO t (a, b, c) SELECT x1, x2, x3 FROM s UNION ALL SELECT y1, y2, y3 FROM r;"
	s := newTestSegmenter(t, 40)

	first, _ := s.Split(stmt)
	require.NotEmpty(t, first)

	var second []string
	for _, p := range first {
		again, diags := s.Split(p)
		assert.Empty(t, diags)
		second = append(second, again...)
	}
	assert.Equal(t, first, second)
}

func TestSplit_DepthBound(t *testing.T) {
	duplicate := Strategy{
		Name: "duplicate",
		Split: func(stmt string, _ int) []string {
			return []string{stmt + ";", stmt + " ;"}
		},
	}
	s := New(Options{Budget: 10, Strategies: []Strategy{duplicate}, Logger: testutil.NewTestLogger(t)})

	res := s.Segment([]Statement{{SQL: "INSERT INTO t VALUES (1);", TableName: "t", LineNumber: 1}})

	assert.Empty(t, res.Pieces)
	assert.Equal(t, 16, res.Dropped)
	errs := res.Errors()
	require.Len(t, errs, 16)
	assert.Contains(t, errs[0].Message, "split depth 4 reached")
}

func TestSplit_SinglePieceRewrite(t *testing.T) {
	squeeze := Strategy{
		Name: "squeeze",
		Split: func(stmt string, _ int) []string {
			return []string{strings.ReplaceAll(stmt, "  ", " ") + ";"}
		},
	}
	grow := Strategy{
		Name: "grow",
		Split: func(stmt string, _ int) []string {
			return []string{stmt + " x;"}
		},
	}

	s := New(Options{Budget: 25, Strategies: []Strategy{squeeze}, Logger: testutil.NewTestLogger(t)})
	pieces, _ := s.Split("INSERT INTO t  VALUES (1);")
	assert.Equal(t, []string{"INSERT INTO t VALUES (1);"}, pieces)

	s = New(Options{Budget: 10, Strategies: []Strategy{grow}, Logger: testutil.NewTestLogger(t)})
	res := s.Segment([]Statement{{SQL: "INSERT INTO t VALUES (1);", TableName: "t", LineNumber: 1}})
	assert.Empty(t, res.Pieces)
	assert.Equal(t, 1, res.Dropped)
	errs := res.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "split depth 4 reached")
}

func TestSplit_EmptyInput(t *testing.T) {
	pieces, diags := New(Options{}).Split("  ;  ")
	assert.Empty(t, pieces)
	assert.Empty(t, diags)
}

func TestSplit_TruncatesDiagnosticText(t *testing.T) {
	stmt := "CREATE TABLE x AS SELECT " + strings.Repeat("a", 500) + " FROM y;"

	_, diags := newTestSegmenter(t, 100).Split(stmt)

	require.Len(t, diags, 1)
	assert.True(t, strings.HasSuffix(diags[0].Message, "..."))
	assert.Less(t, utf8.RuneCountInString(diags[0].Message), 260)
}

func TestSegment_PieceMetadata(t *testing.T) {
	s := newTestSegmenter(t, 40)
	res := s.Segment([]Statement{
		{SQL: "INSERT INTO t (a, b) VALUES (1, 2), (3, 4);", TableName: "t", LineNumber: 3, Kind: KindInsert},
	})

	require.Len(t, res.Pieces, 2)
	for i, p := range res.Pieces {
		assert.Equal(t, "t", p.TableName)
		assert.Equal(t, 3, p.LineNumber)
		assert.Equal(t, KindInsert, p.Kind)
		assert.Equal(t, i+1, p.Part)
		assert.Equal(t, 2, p.Parts)
		assert.Equal(t, p.SQL+"\n", p.Text())
	}
	assert.Equal(t, 1, res.Split)
}
