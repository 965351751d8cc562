package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapchunk/internal/source"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ChunkDir == "" {
		return fmt.Errorf("chunk_dir is required")
	}
	if err := c.validateChunkDir(); err != nil {
		return err
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if !slices.Contains(LogFormats, c.LogFormat) {
		return fmt.Errorf("unknown log format %q (want one of %s)", c.LogFormat, strings.Join(LogFormats, ", "))
	}
	return nil
}

// validateChunkDir rejects a chunk directory that would swallow the scripts or
// the project when it is cleaned.
func (c *Config) validateChunkDir() error {
	if c.SQLDir != "" && source.Within(c.ChunkDir, c.SQLDir) {
		return fmt.Errorf("chunk_dir %s must not contain sql_dir %s", c.ChunkDir, c.SQLDir)
	}
	if c.ProjectRoot != "" && source.Within(c.ChunkDir, c.ProjectRoot) {
		return fmt.Errorf("chunk_dir %s must not contain the project root %s", c.ChunkDir, c.ProjectRoot)
	}
	return nil
}

// ValidateSQLDir checks that the SQL source directory exists.
func (c *Config) ValidateSQLDir() error {
	info, err := os.Stat(c.SQLDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("sql directory does not exist: %s\nHint: Create the directory, pass files as arguments or use --sql-dir", c.SQLDir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat sql directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sql_dir is not a directory: %s", c.SQLDir)
	}
	return nil
}
