// Package pipeline runs the segmenter over SQL scripts and writes the chunk files.
//
// A run loads every source, segments it, writes one file per piece into the
// chunk directory as <name>_<n>.sql and, when a state store is configured,
// records the run with its chunks and diagnostics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapchunk/internal/source"
	"github.com/leapstack-labs/leapchunk/internal/state"
	"github.com/leapstack-labs/leapchunk/pkg/segment"
)

// DefaultWorkers is the number of sources processed concurrently when unset.
const DefaultWorkers = 4

// Options configures a Runner.
type Options struct {
	Budget        int
	KeepOversized bool
	ChunkDir      string
	// Clean removes the chunk directory before writing.
	Clean   bool
	Workers int
	// Store records runs. Optional.
	Store  state.Store
	Logger *slog.Logger
}

// FileReport is the outcome for one source file.
type FileReport struct {
	Source      string               `json:"source" yaml:"source"`
	Encoding    string               `json:"encoding" yaml:"encoding"`
	Statements  int                  `json:"statements" yaml:"statements"`
	Split       int                  `json:"split" yaml:"split"`
	Pieces      int                  `json:"pieces" yaml:"pieces"`
	Dropped     int                  `json:"dropped" yaml:"dropped"`
	Chunks      []string             `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	Diagnostics []segment.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	chunks []state.Chunk
}

// Report is the outcome of a run. Files keep the order of the input paths.
type Report struct {
	RunID    string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Budget   int           `json:"budget" yaml:"budget"`
	ChunkDir string        `json:"chunk_dir" yaml:"chunk_dir"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Files    []FileReport  `json:"files" yaml:"files"`
}

// Summary adds up the per-file counters.
func (r *Report) Summary() state.RunSummary {
	s := state.RunSummary{Sources: len(r.Files)}
	for _, f := range r.Files {
		s.Statements += f.Statements
		s.Pieces += f.Pieces
		s.Dropped += f.Dropped
	}
	return s
}

// Errors counts error diagnostics across all files.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == segment.SeverityError {
				n++
			}
		}
	}
	return n
}

// Runner executes segmentation runs.
type Runner struct {
	opts      Options
	segmenter *segment.Segmenter
	logger    *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		opts: opts,
		segmenter: segment.New(segment.Options{
			Budget:        opts.Budget,
			KeepOversized: opts.KeepOversized,
			Logger:        logger,
		}),
		logger: logger,
	}
}

// Run segments the given sources. Source and chunk I/O errors abort the run;
// statements that cannot be split are reported in the file's diagnostics.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{
		Budget:   r.segmenter.Budget(),
		ChunkDir: r.opts.ChunkDir,
	}

	if err := checkNames(paths); err != nil {
		return nil, err
	}
	if err := r.checkChunkDir(paths); err != nil {
		return nil, err
	}

	if r.opts.Store != nil {
		run, err := r.opts.Store.CreateRun(ctx, report.Budget, r.opts.ChunkDir)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
	}

	if err := r.execute(ctx, paths, report); err != nil {
		r.finish(ctx, report, state.RunStatusFailed, err.Error())
		return nil, err
	}

	if r.opts.Store != nil {
		for _, f := range report.Files {
			if err := r.opts.Store.RecordSource(ctx, report.RunID, f.Source, f.chunks, stateDiagnostics(f.Diagnostics)); err != nil {
				r.finish(ctx, report, state.RunStatusFailed, err.Error())
				return nil, fmt.Errorf("failed to record %s: %w", f.Source, err)
			}
		}
	}

	report.Duration = time.Since(start)
	r.finish(ctx, report, state.RunStatusCompleted, "")

	summary := report.Summary()
	r.logger.Info("segmentation complete",
		slog.Int("sources", summary.Sources),
		slog.Int("statements", summary.Statements),
		slog.Int("pieces", summary.Pieces),
		slog.Int("dropped", summary.Dropped),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) execute(ctx context.Context, paths []string, report *Report) error {
	if err := r.prepareChunkDir(); err != nil {
		return err
	}

	files := make([]FileReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := r.processFile(path)
			if err != nil {
				return err
			}
			files[i] = *f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report.Files = files
	return nil
}

func (r *Runner) prepareChunkDir() error {
	if r.opts.Clean {
		if err := os.RemoveAll(r.opts.ChunkDir); err != nil {
			return fmt.Errorf("failed to clean chunk directory: %w", err)
		}
	}
	if err := os.MkdirAll(r.opts.ChunkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}
	return nil
}

func (r *Runner) processFile(path string) (*FileReport, error) {
	src, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With(slog.String("source", path))
	logger.Debug("loaded source", slog.String("encoding", src.Encoding))

	res := r.segmenter.SegmentText(src.Text)
	f := &FileReport{
		Source:      path,
		Encoding:    src.Encoding,
		Statements:  res.Statements,
		Split:       res.Split,
		Pieces:      len(res.Pieces),
		Dropped:     res.Dropped,
		Diagnostics: res.Diagnostics,
	}
	if res.Statements == 0 {
		logger.Info("no INSERT or CREATE TABLE AS statements, skipping")
		return f, nil
	}

	for i, p := range res.Pieces {
		chunkPath := filepath.Join(r.opts.ChunkDir, fmt.Sprintf("%s_%d%s", src.Name, i+1, source.Extension))
		if err := os.WriteFile(chunkPath, []byte(p.Text()), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write chunk %s: %w", chunkPath, err)
		}
		f.Chunks = append(f.Chunks, chunkPath)
		f.chunks = append(f.chunks, state.Chunk{
			Source:     path,
			Path:       chunkPath,
			TableName:  p.TableName,
			LineNumber: p.LineNumber,
			Kind:       p.Kind.String(),
			Length:     utf8.RuneCountInString(p.SQL),
		})
		logger.Debug("wrote chunk", slog.String("path", chunkPath))
	}
	return f, nil
}

func (r *Runner) finish(ctx context.Context, report *Report, status state.RunStatus, errMsg string) {
	if r.opts.Store == nil || report.RunID == "" {
		return
	}
	// The run must be closed even when ctx was cancelled.
	if err := r.opts.Store.CompleteRun(context.WithoutCancel(ctx), report.RunID, status, report.Summary(), errMsg); err != nil {
		r.logger.Error("failed to complete run", slog.String("run", report.RunID), slog.String("error", err.Error()))
	}
}

// checkNames rejects sources whose chunk files would overwrite each other.
func checkNames(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		name := base[:len(base)-len(filepath.Ext(base))]
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("sources %s and %s would write the same chunk files", prev, p)
		}
		seen[name] = p
	}
	return nil
}

// checkChunkDir rejects a chunk directory holding any source, since preparing
// it would delete or overwrite the scripts being read.
func (r *Runner) checkChunkDir(paths []string) error {
	for _, p := range paths {
		if source.Within(r.opts.ChunkDir, p) {
			return fmt.Errorf("chunk directory %s contains source %s", r.opts.ChunkDir, p)
		}
	}
	return nil
}

func stateDiagnostics(diags []segment.Diagnostic) []state.Diagnostic {
	out := make([]state.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, state.Diagnostic{
			Severity: d.Severity.String(),
			Line:     d.Line,
			Message:  d.Message,
		})
	}
	return out
}
