package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/leapchunk/internal/source"
)

// DebounceInterval is how long the watcher waits for writes to settle.
const DebounceInterval = 100 * time.Millisecond

// Watcher re-runs the pipeline when a watched script changes.
type Watcher struct {
	runner   *Runner
	fsw      *fsnotify.Watcher
	resolve  func() ([]string, error)
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher watches dirs for *.sql changes. resolve is called before every
// run to pick up added or removed scripts.
func (r *Runner) NewWatcher(dirs []string, resolve func() ([]string, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		r.logger.Debug("watching directory", slog.String("dir", dir))
	}
	return &Watcher{
		runner:   r,
		fsw:      fsw,
		resolve:  resolve,
		interval: DebounceInterval,
		logger:   r.logger,
	}, nil
}

// Run blocks until ctx is done, calling onRun after every triggered run.
// Runs never overlap. Run closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onRun func(*Report, error)) error {
	defer func() { _ = w.fsw.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("source changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.interval)
			fire = timer.C

		case <-fire:
			fire = nil
			paths, err := w.resolve()
			if err != nil {
				onRun(nil, err)
				continue
			}
			onRun(w.runner.Run(ctx, paths))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether event changes a script. Chunk files written by the
// runner never count, whether paths are relative or absolute.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !strings.EqualFold(filepath.Ext(event.Name), source.Extension) {
		return false
	}
	return !source.Within(w.runner.opts.ChunkDir, event.Name)
}

// Close stops watching without running.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
