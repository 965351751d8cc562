package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapchunk/internal/cli/output"
	"github.com/leapstack-labs/leapchunk/internal/pipeline"
	"github.com/leapstack-labs/leapchunk/internal/source"
	"github.com/leapstack-labs/leapchunk/internal/state"
	"github.com/leapstack-labs/leapchunk/pkg/segment"
)

// SegmentOptions holds options for the segment command.
type SegmentOptions struct {
	Watch bool
}

// NewSegmentCommand creates the segment command.
func NewSegmentCommand() *cobra.Command {
	opts := &SegmentOptions{}

	cmd := &cobra.Command{
		Use:   "segment [paths...]",
		Short: "Split SQL scripts into statements that fit the budget",
		Long: `Extract INSERT and CREATE TABLE AS statements from SQL scripts and write
each one, split until it fits the character budget, to its own chunk file.

Paths may be files or directories. Without paths the configured sql_dir is used.
Chunk files are named <script>_<n>.sql. Statements that cannot be split below
the budget are reported and skipped unless --keep-oversized is set.`,
		Example: `  # Segment every script in ./sql
  leapchunk segment

  # Segment one script with a smaller budget
  leapchunk segment etl/daily.sql --budget 4000

  # Re-run whenever a script changes
  leapchunk segment --watch`,
		Aliases: []string{"split"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegment(cmd, args, opts)
		},
	}

	cmd.Flags().Int("budget", segment.DefaultBudget, "Maximum characters per statement")
	cmd.Flags().String("chunk-dir", "", "Directory chunk files are written to")
	cmd.Flags().Int("workers", pipeline.DefaultWorkers, "Scripts processed concurrently")
	cmd.Flags().Bool("keep-oversized", false, "Write statements that cannot fit the budget instead of dropping them")
	cmd.Flags().Bool("no-state", false, "Do not record the run in the state database")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when a script changes")

	return cmd
}

func runSegment(cmd *cobra.Command, args []string, opts *SegmentOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	if len(args) == 0 {
		if err := cfg.ValidateSQLDir(); err != nil {
			return err
		}
	}
	resolve := func() ([]string, error) {
		return source.Resolve(args, cfg.SQLDir)
	}
	paths, err := resolve()
	if err != nil {
		return err
	}
	if len(paths) == 0 && !opts.Watch {
		cmdCtx.Renderer.Warning("No SQL scripts found")
		return nil
	}

	var store state.Store
	if !cfg.NoState {
		s, cleanup, err := cmdCtx.OpenStore()
		if err != nil {
			return err
		}
		defer cleanup()
		store = s
	}

	runner := pipeline.New(pipeline.Options{
		Budget:        cfg.Budget,
		KeepOversized: cfg.KeepOversized,
		ChunkDir:      cfg.ChunkDir,
		Clean:         cfg.Clean,
		Workers:       cfg.Workers,
		Store:         store,
		Logger:        cmdCtx.Logger,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(paths) > 0 {
		report, err := runner.Run(ctx, paths)
		if err != nil {
			return err
		}
		if err := renderReport(cmdCtx, report); err != nil {
			return err
		}
	}

	if !opts.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	watcher, err := runner.NewWatcher(watchDirs(args, cfg.SQLDir), resolve)
	if err != nil {
		return err
	}
	cmdCtx.Renderer.Muted("Watching for changes (Ctrl+C to stop)...")
	return watcher.Run(ctx, func(report *pipeline.Report, err error) {
		if err != nil {
			cmdCtx.Renderer.Error(err.Error())
			return
		}
		if err := renderReport(cmdCtx, report); err != nil {
			cmdCtx.Logger.Error("failed to render report", "error", err)
		}
	})
}

// watchDirs returns the directories holding the given paths.
func watchDirs(args []string, sqlDir string) []string {
	if len(args) == 0 {
		return []string{sqlDir}
	}
	var dirs []string
	seen := make(map[string]bool)
	for _, arg := range args {
		dir := arg
		if info, err := os.Stat(arg); err != nil || !info.IsDir() {
			dir = filepath.Dir(arg)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func renderReport(cmdCtx *CommandContext, report *pipeline.Report) error {
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeYAML:
		return r.YAML(report)
	case output.ModeMarkdown:
		reportMarkdown(cmdCtx, report)
	default:
		reportText(cmdCtx, report)
	}
	return nil
}

func reportRows(cmdCtx *CommandContext, report *pipeline.Report) [][]any {
	rows := make([][]any, 0, len(report.Files))
	for _, f := range report.Files {
		rows = append(rows, []any{
			relPath(cmdCtx.Cfg.ProjectRoot, f.Source),
			f.Encoding,
			f.Statements,
			f.Split,
			f.Pieces,
			f.Dropped,
		})
	}
	return rows
}

var reportHeader = []string{"Source", "Encoding", "Statements", "Split", "Pieces", "Dropped"}

func reportText(cmdCtx *CommandContext, report *pipeline.Report) {
	r := cmdCtx.Renderer
	summary := report.Summary()

	r.Header(1, fmt.Sprintf("Segmented %d scripts (budget %d)", summary.Sources, report.Budget))
	r.Table(reportHeader, reportRows(cmdCtx, report))

	for _, f := range report.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == segment.SeverityInfo && !cmdCtx.Cfg.Verbose {
				continue
			}
			name := relPath(cmdCtx.Cfg.ProjectRoot, f.Source)
			if d.Line > 0 {
				name += ":" + strconv.Itoa(d.Line)
			}
			r.StatusLine(name, d.Severity.String(), d.Message)
		}
	}

	msg := fmt.Sprintf("%d pieces written to %s", summary.Pieces, relPath(cmdCtx.Cfg.ProjectRoot, report.ChunkDir))
	if summary.Dropped > 0 {
		r.Warning(fmt.Sprintf("%s, %d dropped", msg, summary.Dropped))
		return
	}
	r.Success(msg)
}

func reportMarkdown(cmdCtx *CommandContext, report *pipeline.Report) {
	r := cmdCtx.Renderer
	summary := report.Summary()

	r.Println(output.FormatHeader(1, "Segmentation Report"))
	r.Println("")
	if report.RunID != "" {
		r.Println(output.FormatKeyValue("Run", report.RunID))
	}
	r.Println(output.FormatKeyValue("Budget", strconv.Itoa(report.Budget)))
	r.Println(output.FormatKeyValue("Chunk directory", relPath(cmdCtx.Cfg.ProjectRoot, report.ChunkDir)))
	r.Println(output.FormatKeyValue("Pieces", strconv.Itoa(summary.Pieces)))
	r.Println(output.FormatKeyValue("Dropped", strconv.Itoa(summary.Dropped)))
	r.Println("")
	r.Table(reportHeader, reportRows(cmdCtx, report))

	var printed bool
	for _, f := range report.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == segment.SeverityInfo {
				continue
			}
			if !printed {
				r.Println("")
				r.Println(output.FormatHeader(2, "Diagnostics"))
				r.Println("")
				printed = true
			}
			loc := relPath(cmdCtx.Cfg.ProjectRoot, f.Source)
			if d.Line > 0 {
				loc += ":" + strconv.Itoa(d.Line)
			}
			r.Printf("- **%s** `%s`: %s\n", titleCaser.String(d.Severity.String()), loc, d.Message)
		}
	}
}
