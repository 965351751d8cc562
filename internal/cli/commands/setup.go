// Package commands implements the leapchunk subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapchunk/internal/cli/config"
	"github.com/leapstack-labs/leapchunk/internal/cli/output"
	"github.com/leapstack-labs/leapchunk/internal/state"
)

var titleCaser = cases.Title(language.English)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// OpenStore opens the run state database.
// Returns the store and a cleanup function that must be called (typically via defer).
func (c *CommandContext) OpenStore() (*state.SQLiteStore, func(), error) {
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &config.Config{
		Budget:       config.DefaultBudget,
		SQLDir:       filepath.Join(cwd, config.DefaultSQLDir),
		ChunkDir:     filepath.Join(cwd, config.DefaultChunkDir),
		StatePath:    filepath.Join(cwd, config.DefaultStateFile),
		Workers:      config.DefaultWorkers,
		Clean:        true,
		OutputFormat: config.DefaultOutput,
		LogFormat:    config.DefaultLogFormat,
		ProjectRoot:  cwd,
	}
}

// relPath shortens path relative to the project root for display.
func relPath(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
