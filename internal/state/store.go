// Package state records segmentation runs in SQLite.
// It tracks runs, the chunk files each run wrote and the diagnostics it raised.
package state

import (
	"context"
	"time"
)

// RunStatus represents the status of a segmentation run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the segment pipeline.
type Run struct {
	ID          string     `json:"id" yaml:"id"`
	Status      RunStatus  `json:"status" yaml:"status"`
	Budget      int        `json:"budget" yaml:"budget"`
	ChunkDir    string     `json:"chunk_dir" yaml:"chunk_dir"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Sources     int        `json:"sources" yaml:"sources"`
	Statements  int        `json:"statements" yaml:"statements"`
	Pieces      int        `json:"pieces" yaml:"pieces"`
	Dropped     int        `json:"dropped" yaml:"dropped"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary holds the counters written when a run completes.
type RunSummary struct {
	Sources    int
	Statements int
	Pieces     int
	Dropped    int
}

// Chunk is one chunk file written by a run.
type Chunk struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	Source     string `json:"source" yaml:"source"`
	Path       string `json:"path" yaml:"path"`
	TableName  string `json:"table_name" yaml:"table_name"`
	LineNumber int    `json:"line_number" yaml:"line_number"`
	Kind       string `json:"kind" yaml:"kind"`
	Length     int    `json:"length" yaml:"length"`
}

// Diagnostic is a diagnostic raised while segmenting a source file.
type Diagnostic struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Source   string `json:"source" yaml:"source"`
	Severity string `json:"severity" yaml:"severity"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Store is the run history the pipeline writes to.
type Store interface {
	CreateRun(ctx context.Context, budget int, chunkDir string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, summary RunSummary, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordSource(ctx context.Context, runID, source string, chunks []Chunk, diags []Diagnostic) error
	ListChunks(ctx context.Context, runID string) ([]Chunk, error)
	ListDiagnostics(ctx context.Context, runID string) ([]Diagnostic, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
