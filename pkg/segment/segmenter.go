package segment

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// DefaultBudget is the statement length limit used when Options.Budget is unset.
const DefaultBudget = 10000

// diagnosticTextLimit bounds the statement excerpt quoted in a diagnostic.
const diagnosticTextLimit = 200

// minSplitDepth is the smallest re-split depth MaxSplitDepth returns.
const minSplitDepth = 4

// Options configures a Segmenter.
type Options struct {
	// Budget is the maximum length of an emitted piece, in characters.
	Budget int
	// KeepOversized emits pieces that cannot be split below the budget instead
	// of dropping them. They are still reported as errors.
	KeepOversized bool
	// Strategies overrides DefaultStrategies.
	Strategies []Strategy
	// Logger receives every diagnostic. Optional.
	Logger *slog.Logger
}

// Segmenter splits statements so every piece fits a length budget.
// It holds no mutable state and is safe for concurrent use.
type Segmenter struct {
	budget        int
	keepOversized bool
	strategies    []Strategy
	logger        *slog.Logger
}

// New creates a Segmenter.
func New(opts Options) *Segmenter {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Strategies == nil {
		opts.Strategies = DefaultStrategies
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Segmenter{
		budget:        opts.Budget,
		keepOversized: opts.KeepOversized,
		strategies:    opts.Strategies,
		logger:        logger,
	}
}

// Budget returns the configured budget.
func (s *Segmenter) Budget() int {
	return s.budget
}

// MaxSplitDepth bounds how often a piece derived from a statement of the given
// length may be split again: length/budget rounded up, never below 4.
func MaxSplitDepth(length, budget int) int {
	if budget <= 0 {
		return minSplitDepth
	}
	return max(minSplitDepth, (length+budget-1)/budget)
}

// Split splits one statement into pieces within the budget. Pieces that cannot
// be split are reported and dropped unless KeepOversized is set.
func (s *Segmenter) Split(sql string) ([]string, []Diagnostic) {
	out := s.split(sql, 0)
	return out.pieces, out.diags
}

// SegmentText normalizes raw script text, extracts its statements and segments them.
func (s *Segmenter) SegmentText(raw string) *Result {
	stmts, diags := Extract(Normalize(raw))
	for _, d := range diags {
		s.log(d)
	}
	res := s.Segment(stmts)
	res.Diagnostics = append(diags, res.Diagnostics...)
	return res
}

// Segment splits every statement and returns the pieces in statement order.
func (s *Segmenter) Segment(stmts []Statement) *Result {
	res := &Result{Statements: len(stmts)}
	for _, stmt := range stmts {
		out := s.split(stmt.SQL, stmt.LineNumber)
		if out.oversized {
			res.Split++
		}
		res.Dropped += out.dropped
		res.Diagnostics = append(res.Diagnostics, out.diags...)
		for i, sql := range out.pieces {
			res.Pieces = append(res.Pieces, Piece{
				SQL:        sql,
				TableName:  stmt.TableName,
				LineNumber: stmt.LineNumber,
				Kind:       stmt.Kind,
				Part:       i + 1,
				Parts:      len(out.pieces),
			})
		}
	}
	return res
}

type queued struct {
	text  string
	depth int
}

type splitOutput struct {
	pieces    []string
	diags     []Diagnostic
	oversized bool
	dropped   int
}

func (s *Segmenter) split(sql string, line int) splitOutput {
	var out splitOutput
	seed := terminate(sql)
	if seed == ";" {
		return out
	}
	maxDepth := MaxSplitDepth(utf8.RuneCountInString(seed), s.budget)
	queue := []queued{{text: seed}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		length := utf8.RuneCountInString(cur.text)
		if length <= s.budget {
			out.pieces = append(out.pieces, cur.text)
			continue
		}
		out.oversized = true

		if cur.depth >= maxDepth {
			out.reject(s, cur.text, line,
				fmt.Sprintf("split depth %d reached with %d characters", cur.depth, length))
			continue
		}

		name, pieces := s.applyStrategies(cur.text)
		if pieces == nil {
			out.reject(s, cur.text, line,
				fmt.Sprintf("cannot fit %d characters within %d", length, s.budget))
			continue
		}

		d := Diagnostic{
			Severity: SeverityInfo,
			Line:     line,
			Message:  fmt.Sprintf("%s split turned %d characters into %d pieces", name, length, len(pieces)),
		}
		out.diags = append(out.diags, d)
		s.log(d)

		next := make([]queued, 0, len(pieces)+len(queue))
		for _, p := range pieces {
			next = append(next, queued{text: p, depth: cur.depth + 1})
		}
		queue = append(next, queue...)
	}
	return out
}

// applyStrategies returns the first strategy result that makes progress, or nil.
func (s *Segmenter) applyStrategies(text string) (string, []string) {
	base := trimStatement(text)
	for _, st := range s.strategies {
		s.logger.Debug("trying split strategy",
			slog.String("strategy", st.Name),
			slog.Int("length", utf8.RuneCountInString(text)),
			slog.Int("budget", s.budget))

		var pieces []string
		for _, p := range st.Split(base, s.budget) {
			if p = terminate(p); p != ";" {
				pieces = append(pieces, p)
			}
		}
		if len(pieces) == 0 {
			continue
		}
		if len(pieces) == 1 && trimStatement(pieces[0]) == base {
			continue
		}
		return st.Name, pieces
	}
	return "", nil
}

func (o *splitOutput) reject(s *Segmenter, text string, line int, reason string) {
	d := Diagnostic{
		Severity: SeverityError,
		Line:     line,
		Message:  reason + ": " + truncate(text, diagnosticTextLimit),
	}
	o.diags = append(o.diags, d)
	s.log(d)
	if s.keepOversized {
		o.pieces = append(o.pieces, text)
		return
	}
	o.dropped++
}

func (s *Segmenter) log(d Diagnostic) {
	attrs := []any{slog.String("message", d.Message)}
	if d.Line > 0 {
		attrs = append(attrs, slog.Int("line", d.Line))
	}
	switch d.Severity {
	case SeverityError:
		s.logger.Error("segment", attrs...)
	case SeverityWarning:
		s.logger.Warn("segment", attrs...)
	default:
		s.logger.Info("segment", attrs...)
	}
}

// terminate trims sql and ends it with exactly one ';'.
func terminate(sql string) string {
	return trimStatement(sql) + ";"
}

// truncate cuts s to at most n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
