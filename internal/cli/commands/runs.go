package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapchunk/internal/cli/output"
	"github.com/leapstack-labs/leapchunk/internal/state"
)

// RunDetail is the structured result of "runs show".
type RunDetail struct {
	Run         *state.Run         `json:"run" yaml:"run"`
	Chunks      []state.Chunk      `json:"chunks" yaml:"chunks"`
	Diagnostics []state.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded segmentation runs",
		Long:  `List the most recent runs recorded in the state database, newest first.`,
		Example: `  # Show the last 10 runs
  leapchunk runs --limit 10

  # Inspect one run
  leapchunk runs show <run-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListRuns(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the chunks and diagnostics of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowRun(cmd, args[0])
		},
	})

	return cmd
}

func runListRuns(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(runs)
	case output.ModeYAML:
		return r.YAML(runs)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			run.Budget,
			run.Sources,
			run.Statements,
			run.Pieces,
			run.Dropped,
		})
	}
	r.Table([]string{"ID", "Status", "Started", "Budget", "Sources", "Statements", "Pieces", "Dropped"}, rows)
	return nil
}

func runShowRun(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContext(cmd)
	store, cleanup, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	chunks, err := store.ListChunks(ctx, id)
	if err != nil {
		return err
	}
	diags, err := store.ListDiagnostics(ctx, id)
	if err != nil {
		return err
	}
	detail := RunDetail{Run: run, Chunks: chunks, Diagnostics: diags}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(detail)
	case output.ModeYAML:
		return r.YAML(detail)
	}

	r.Header(1, "Run "+run.ID)
	r.StatusLine("status", string(run.Status), run.Error)
	r.Println(output.FormatKeyValue("Budget", strconv.Itoa(run.Budget)))
	r.Println(output.FormatKeyValue("Chunk directory", run.ChunkDir))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.DateTime)))
	if run.CompletedAt != nil {
		r.Println(output.FormatKeyValue("Duration", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()))
	}
	r.Println("")

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, []any{relPath(cmdCtx.Cfg.ProjectRoot, c.Path), c.TableName, c.LineNumber, c.Kind, c.Length})
	}
	r.Table([]string{"Chunk", "Table", "Line", "Kind", "Length"}, rows)

	for _, d := range diags {
		if d.Severity == "info" && !cmdCtx.Cfg.Verbose {
			continue
		}
		name := relPath(cmdCtx.Cfg.ProjectRoot, d.Source)
		if d.Line > 0 {
			name += ":" + strconv.Itoa(d.Line)
		}
		r.StatusLine(name, d.Severity, d.Message)
	}
	return nil
}
