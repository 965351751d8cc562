package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapchunk/internal/cli/config"
	"github.com/leapstack-labs/leapchunk/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapchunk project",
		Long: `Initialize a new leapchunk project with a default configuration.

This creates:
  - leapchunk.yaml configuration file
  - sql/ directory for the scripts to segment
  - .gitignore excluding chunks/ and the state database

Use --example to add sample scripts whose statements exceed the budget,
so that 'leapchunk segment' has something to split.`,
		Example: `  # Initialize in current directory
  leapchunk init

  # Initialize a new directory with sample scripts
  leapchunk init my-project --example

  # Force overwrite existing config
  leapchunk init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			name := templateMinimal
			if example {
				name = templateExample
			}
			return runInit(r, dir, name, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Add sample scripts that need splitting")

	return cmd
}

func runInit(r *output.Renderer, dir, templateName string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	written, err := copyTemplate(templateName, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles(templateName)
	for _, f := range files {
		status := "skipped"
		for _, w := range written {
			if w == f {
				status = "created"
				break
			}
		}
		r.StatusLine(f, status, "")
	}

	r.Println("")
	r.Success("leapchunk project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if templateName == templateExample {
		r.Println("  1. Run 'leapchunk extract sql/orders.sql' to see which statements exceed the budget")
		r.Println("  2. Run 'leapchunk segment' to write chunks/")
	} else {
		r.Println("  1. Put your SQL scripts in sql/")
		r.Println("  2. Adjust budget in leapchunk.yaml")
		r.Println("  3. Run 'leapchunk segment' to write chunks/")
	}
	r.Println("  Run 'leapchunk runs' to review past runs")

	return nil
}
