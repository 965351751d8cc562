// Package config provides configuration management for the leapchunk CLI.
//
// Values are layered, lowest to highest: built-in defaults, leapchunk.yaml,
// LEAPCHUNK_* environment variables, explicitly set flags.
package config

import "github.com/leapstack-labs/leapchunk/pkg/segment"

// Config holds all CLI configuration options.
type Config struct {
	// Budget is the maximum length of an emitted statement, in characters.
	Budget        int    `koanf:"budget"`
	SQLDir        string `koanf:"sql_dir"`
	ChunkDir      string `koanf:"chunk_dir"`
	StatePath     string `koanf:"state_path"`
	Workers       int    `koanf:"workers"`
	KeepOversized bool   `koanf:"keep_oversized"`
	// Clean recreates the chunk directory at the start of every run.
	Clean        bool   `koanf:"clean"`
	NoState      bool   `koanf:"no_state"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogFormat    string `koanf:"log_format"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultBudget    = segment.DefaultBudget
	DefaultSQLDir    = "sql"
	DefaultChunkDir  = "chunks"
	DefaultStateFile = ".leapchunk/state.db"
	DefaultWorkers   = 4
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat = "text"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapchunk.yaml"
	ConfigFileNameAlt = "leapchunk.yml"
)

// EnvPrefix prefixes every environment variable read into the config.
const EnvPrefix = "LEAPCHUNK_"

// LegacyBudgetEnv is the budget variable of the original pipeline scripts.
// LEAPCHUNK_BUDGET takes precedence over it.
const LegacyBudgetEnv = "SQLFLOW_CHAR_LIMIT"

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{"auto", "text", "json", "yaml", "markdown"}

// LogFormats lists the accepted values of the log_format key.
var LogFormats = []string{"text", "json"}
