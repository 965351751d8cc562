package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp switches into a fresh temporary directory for the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(ResetConfig)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("budget", DefaultBudget, "")
	fs.Int("workers", DefaultWorkers, "")
	fs.String("chunk-dir", DefaultChunkDir, "")
	fs.String("state", DefaultStateFile, "")
	fs.Bool("keep-oversized", false, "")
	fs.String("output", DefaultOutput, "")
	return fs
}

// =============================================================================
// LoadConfig
// =============================================================================

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBudget, cfg.Budget)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.True(t, cfg.Clean)
	assert.False(t, cfg.KeepOversized)
	assert.False(t, cfg.NoState)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultSQLDir), cfg.SQLDir)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultChunkDir), cfg.ChunkDir)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultStateFile), cfg.StatePath)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "budget: 500\nchunk_dir: out\nworkers: 2\nkeep_oversized: true\nclean: false\n")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Budget)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.KeepOversized)
	assert.False(t, cfg.Clean)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "out"), cfg.ChunkDir)
	assert.Equal(t, ConfigFileName, filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_FoundInParentDirectory(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "budget: 123\n")
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 123, cfg.Budget)
	assert.Equal(t, "nested", filepath.Base(filepath.Dir(sub)))
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "chunks"), cfg.ChunkDir)
	assert.NotEqual(t, sub, cfg.ProjectRoot)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	other := filepath.Join(dir, "conf")
	require.NoError(t, os.MkdirAll(other, 0o755))
	path := writeConfig(t, other, "sql_dir: scripts\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "conf", filepath.Base(cfg.ProjectRoot))
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "scripts"), cfg.SQLDir)
}

func TestLoadConfig_BadFile(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "budget: [unclosed\n")

	_, err := LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_Env(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		budget int
	}{
		{name: "legacy variable", env: map[string]string{"SQLFLOW_CHAR_LIMIT": "300"}, budget: 300},
		{name: "prefixed variable", env: map[string]string{"LEAPCHUNK_BUDGET": "700"}, budget: 700},
		{
			name:   "prefixed wins over legacy",
			env:    map[string]string{"SQLFLOW_CHAR_LIMIT": "300", "LEAPCHUNK_BUDGET": "700"},
			budget: 700,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			writeConfig(t, dir, "budget: 500\n")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.budget, cfg.Budget)
		})
	}
}

func TestLoadConfig_EnvWeakTyping(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEAPCHUNK_KEEP_OVERSIZED", "true")
	t.Setenv("LEAPCHUNK_WORKERS", "9")
	t.Setenv("LEAPCHUNK_OUTPUT", "json")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.True(t, cfg.KeepOversized)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "budget: 500\nworkers: 2\n")
	t.Setenv("LEAPCHUNK_BUDGET", "700")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--budget=50", "--chunk-dir=pieces", "--state=run/state.db"}))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Budget)
	assert.Equal(t, 2, cfg.Workers, "unset flags keep lower layers")
	assert.Equal(t, filepath.Join(cwd, "pieces"), cfg.ChunkDir)
	assert.Equal(t, filepath.Join(cwd, "run", "state.db"), cfg.StatePath)
}

// =============================================================================
// Validate
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Budget:       100,
			Workers:      1,
			ChunkDir:     "chunks",
			OutputFormat: "text",
			LogFormat:    "json",
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero budget", mutate: func(c *Config) { c.Budget = 0 }, errSubstr: "budget must be positive"},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, errSubstr: "workers must be positive"},
		{name: "no chunk dir", mutate: func(c *Config) { c.ChunkDir = "" }, errSubstr: "chunk_dir is required"},
		{name: "unknown output", mutate: func(c *Config) { c.OutputFormat = "csv" }, errSubstr: `unknown output format "csv"`},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: `unknown log format "xml"`},
		{
			name:   "chunk dir inside project",
			mutate: func(c *Config) { c.ProjectRoot, c.SQLDir, c.ChunkDir = "/p", "/p/sql", "/p/chunks" },
		},
		{
			name:      "chunk dir is sql dir",
			mutate:    func(c *Config) { c.ProjectRoot, c.SQLDir, c.ChunkDir = "/p", "/p/sql", "/p/sql/" },
			errSubstr: "must not contain sql_dir",
		},
		{
			name:      "chunk dir above sql dir",
			mutate:    func(c *Config) { c.ProjectRoot, c.SQLDir, c.ChunkDir = "/p", "/p/src/sql", "/p/src" },
			errSubstr: "must not contain sql_dir",
		},
		{
			name:      "chunk dir is project root",
			mutate:    func(c *Config) { c.ProjectRoot, c.SQLDir, c.ChunkDir = "/p", "/elsewhere/sql", "/p/./" },
			errSubstr: "must not contain the project root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_ValidateSQLDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.sql")
	require.NoError(t, os.WriteFile(file, []byte("SELECT 1;"), 0o600))

	assert.NoError(t, (&Config{SQLDir: dir}).ValidateSQLDir())

	err := (&Config{SQLDir: filepath.Join(dir, "missing")}).ValidateSQLDir()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql directory does not exist")

	err = (&Config{SQLDir: file}).ValidateSQLDir()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

// =============================================================================
// Logging
// =============================================================================

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	var buf bytes.Buffer
	logger := NewLogger(&Config{LogFormat: "json"}, &buf)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))

	GetLogger(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&Config{}, &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&Config{Verbose: true}, &buf).Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestLoadConfig_ChunkDirOverSources(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, "chunk_dir: .\n")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not contain sql_dir")
}
