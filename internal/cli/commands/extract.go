package commands

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapchunk/internal/cli/output"
	"github.com/leapstack-labs/leapchunk/internal/source"
	"github.com/leapstack-labs/leapchunk/pkg/segment"
)

// StatementInfo describes one extracted statement.
type StatementInfo struct {
	Line   int          `json:"line" yaml:"line"`
	Kind   segment.Kind `json:"kind" yaml:"kind"`
	Table  string       `json:"table" yaml:"table"`
	Length int          `json:"length" yaml:"length"`
	Fits   bool         `json:"fits" yaml:"fits"`
	SQL    string       `json:"sql,omitempty" yaml:"sql,omitempty"`
}

// ExtractOutput is the structured result of the extract command.
type ExtractOutput struct {
	Source      string               `json:"source" yaml:"source"`
	Encoding    string               `json:"encoding" yaml:"encoding"`
	Budget      int                  `json:"budget" yaml:"budget"`
	Statements  []StatementInfo      `json:"statements" yaml:"statements"`
	Diagnostics []segment.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "List the statements found in a SQL script",
		Long: `Normalize a SQL script and list the INSERT and CREATE TABLE AS statements
it contains, with their length and whether they fit the budget. Nothing is written.`,
		Example: `  # Show which statements of a script need splitting
  leapchunk extract sql/daily.sql --budget 4000

  # Include the normalized statement text
  leapchunk extract sql/daily.sql --sql -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], showSQL)
		},
	}

	cmd.Flags().Int("budget", segment.DefaultBudget, "Maximum characters per statement")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Include the normalized statement text")

	return cmd
}

func runExtract(cmd *cobra.Command, path string, showSQL bool) error {
	cmdCtx := NewCommandContext(cmd)

	src, err := source.Load(path)
	if err != nil {
		return err
	}

	stmts, diags := segment.Extract(segment.Normalize(src.Text))
	out := ExtractOutput{
		Source:      path,
		Encoding:    src.Encoding,
		Budget:      cmdCtx.Cfg.Budget,
		Statements:  make([]StatementInfo, 0, len(stmts)),
		Diagnostics: diags,
	}
	for _, s := range stmts {
		length := utf8.RuneCountInString(s.SQL)
		info := StatementInfo{
			Line:   s.LineNumber,
			Kind:   s.Kind,
			Table:  s.TableName,
			Length: length,
			Fits:   length <= cmdCtx.Cfg.Budget,
		}
		if showSQL {
			info.SQL = s.SQL
		}
		out.Statements = append(out.Statements, info)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeYAML:
		return r.YAML(out)
	}

	r.Header(1, fmt.Sprintf("%s: %d statements", path, len(out.Statements)))
	rows := make([][]any, 0, len(out.Statements))
	over := 0
	for _, s := range out.Statements {
		fits := "yes"
		if !s.Fits {
			fits = "no"
			over++
		}
		rows = append(rows, []any{s.Line, s.Kind.String(), s.Table, s.Length, fits})
	}
	r.Table([]string{"Line", "Kind", "Table", "Length", "Fits"}, rows)

	for _, d := range diags {
		if d.Severity != segment.SeverityInfo {
			r.StatusLine("line "+strconv.Itoa(d.Line), d.Severity.String(), d.Message)
		}
	}
	if showSQL {
		for _, s := range out.Statements {
			r.Println("")
			r.Println(output.FormatCodeBlock("sql", s.SQL))
		}
	}
	if over > 0 {
		r.Warning(fmt.Sprintf("%d of %d statements exceed the budget of %d", over, len(out.Statements), out.Budget))
	}
	return nil
}
