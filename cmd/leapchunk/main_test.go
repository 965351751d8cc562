// Package main provides tests for the leapchunk CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapchunk/internal/cli"
	"github.com/leapstack-labs/leapchunk/internal/cli/config"
	"github.com/leapstack-labs/leapchunk/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	testutil.SetupTestProject(t, "")

	output, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "leapchunk") {
		t.Errorf("version output should contain 'leapchunk', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	output, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help command error = %v", err)
	}

	for _, expected := range []string{"init", "doctor", "segment", "extract", "runs", "completion", "version"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	output, err := run(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion command error = %v", err)
	}
	if !strings.Contains(output, "leapchunk") {
		t.Errorf("completion script should mention leapchunk")
	}

	if _, err := run(t, "completion", "tcsh"); err == nil {
		t.Error("completion should reject unknown shells")
	}
}

func TestSegmentCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, "budget: 1000\n")

	output, err := run(t, "segment", "--budget", "40", "--no-state", "-o", "markdown")
	if err != nil {
		t.Fatalf("segment command error = %v", err)
	}

	testutil.AssertNoANSI(t, output)
	testutil.AssertValidMarkdown(t, output)
	if !strings.Contains(output, "- **Budget:** 40") {
		t.Errorf("flag budget should override the config file, got: %s", output)
	}

	for i, want := range []string{
		"INSERT INTO t (a, b) VALUES (1, 2);\n",
		"INSERT INTO t (a, b) VALUES (3, 4);\n",
	} {
		path := filepath.Join(dir, "chunks", "load_"+string(rune('1'+i))+".sql")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("chunk %s missing: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("chunk %s = %q, want %q", path, data, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultStateFile)); !os.IsNotExist(err) {
		t.Errorf("--no-state should not create the state database")
	}
}

func TestSegmentCommand_LegacyBudgetVariable(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")
	t.Setenv("SQLFLOW_CHAR_LIMIT", "40")

	if _, err := run(t, "segment", "--no-state", "-o", "json", "--chunk-dir", "out"); err != nil {
		t.Fatalf("segment command error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "load_2.sql")); err != nil {
		t.Errorf("SQLFLOW_CHAR_LIMIT should set the budget: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	testutil.SetupTestProject(t, "budget: 0\n")

	_, err := run(t, "segment")
	if err == nil || !strings.Contains(err.Error(), "budget must be positive") {
		t.Errorf("expected budget validation error, got %v", err)
	}

	_, err = run(t, "extract", "sql/load.sql", "-o", "csv", "--budget", "10")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("expected output format validation error, got %v", err)
	}
}

func TestInitThenSegment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := run(t, "init", "--example"); err != nil {
		t.Fatalf("init command error = %v", err)
	}

	output, err := run(t, "doctor", "-o", "markdown")
	if err != nil {
		t.Fatalf("doctor command error = %v", err)
	}
	if !strings.Contains(output, "- **Scripts:** 2") {
		t.Errorf("doctor should find the example scripts, got: %s", output)
	}

	if _, err := run(t, "segment", "--no-state", "-o", "json"); err != nil {
		t.Fatalf("segment command error = %v", err)
	}
	for _, name := range []string{"orders_1.sql", "orders_2.sql", "customers_1.sql"} {
		if _, err := os.Stat(filepath.Join(dir, "chunks", name)); err != nil {
			t.Errorf("chunk %s missing: %v", name, err)
		}
	}
}

func TestSegmentCommand_ChunkDirOverScripts(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")

	_, err := run(t, "segment", "--no-state", "--chunk-dir", "sql")
	if err == nil || !strings.Contains(err.Error(), "must not contain sql_dir") {
		t.Errorf("expected chunk dir validation error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sql", "load.sql")); err != nil {
		t.Errorf("script must survive: %v", err)
	}
}
