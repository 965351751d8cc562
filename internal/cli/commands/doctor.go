package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapchunk/internal/cli/config"
	"github.com/leapstack-labs/leapchunk/internal/cli/output"
	"github.com/leapstack-labs/leapchunk/internal/source"
	"github.com/leapstack-labs/leapchunk/pkg/segment"
)

// Health check groups.
const (
	groupConfig  = "config"
	groupSources = "sources"
	groupOutput  = "output"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// maxDetails bounds the details shown per check in text mode.
const maxDetails = 3

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project setup before segmenting",
		Long: `Check the leapchunk project for problems before running segment.

The doctor command reports:
- The configuration in effect and where it came from
- Whether the sql directory holds readable scripts
- Statements that cannot be split below the budget and would be dropped
- Whether the chunk directory and state database are usable
- A health score (0-100) and recommendations

Nothing is written to the chunk directory.`,
		Example: `  # Run health check
  leapchunk doctor

  # Output as JSON
  leapchunk doctor -o json`,
		RunE: runDoctor,
	}
}

// DoctorOutput is the structured output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary" yaml:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks" yaml:"health_checks"`
	Score           int            `json:"score" yaml:"score"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
	IssueCount      int            `json:"issue_count" yaml:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Budget     int    `json:"budget" yaml:"budget"`
	Scripts    int    `json:"scripts" yaml:"scripts"`
	Statements int    `json:"statements" yaml:"statements"`
	Oversized  int    `json:"oversized" yaml:"oversized"`
	Pieces     int    `json:"pieces" yaml:"pieces"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Status     string   `json:"status" yaml:"status"`
	IssueCount int      `json:"issue_count" yaml:"issue_count"`
	Details    []string `json:"details,omitempty" yaml:"details,omitempty"`
}

func (h *HealthCheck) fail(status, detail string) {
	if h.Status != statusError {
		h.Status = status
	}
	h.IssueCount++
	h.Details = append(h.Details, detail)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContext(cmd)
	out := diagnose(cmdCtx)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeYAML:
		return r.YAML(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

// diagnose runs every health check against the current configuration.
func diagnose(c *CommandContext) *DoctorOutput {
	cfg := c.Cfg
	summary := ProjectSummary{
		ConfigFile: config.GetConfigFileUsed(),
		Budget:     cfg.Budget,
	}

	checks := []HealthCheck{
		checkConfigFile(summary.ConfigFile),
	}
	checks = append(checks, checkSources(cfg, &summary)...)
	checks = append(checks, checkChunkDir(cfg), checkStateStore(c))

	score := calculateHealthScore(checks, summary.Scripts)
	issues := 0
	for _, check := range checks {
		issues += check.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           score,
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func checkConfigFile(path string) HealthCheck {
	check := HealthCheck{ID: "CF01", Name: "Configuration file", Group: groupConfig, Status: statusPass}
	if path == "" {
		check.fail(statusWarn, "no leapchunk.yaml found, using defaults")
	}
	return check
}

// checkSources loads every script and dry-runs segmentation at the configured budget.
func checkSources(cfg *config.Config, summary *ProjectSummary) []HealthCheck {
	dir := HealthCheck{ID: "SR01", Name: "SQL directory", Group: groupSources, Status: statusPass}
	readable := HealthCheck{ID: "SR02", Name: "Scripts readable", Group: groupSources, Status: statusPass}
	fits := HealthCheck{ID: "SR03", Name: "Statements fit the budget", Group: groupSources, Status: statusPass}

	if err := cfg.ValidateSQLDir(); err != nil {
		dir.fail(statusError, strings.SplitN(err.Error(), "\n", 2)[0])
		return []HealthCheck{dir, readable, fits}
	}

	paths, err := source.Discover(cfg.SQLDir)
	if err != nil {
		dir.fail(statusError, err.Error())
		return []HealthCheck{dir, readable, fits}
	}
	if len(paths) == 0 {
		dir.fail(statusWarn, fmt.Sprintf("no *.sql scripts in %s", relPath(cfg.ProjectRoot, cfg.SQLDir)))
	}

	seg := segment.New(segment.Options{Budget: cfg.Budget})
	for _, path := range paths {
		src, err := source.Load(path)
		if err != nil {
			readable.fail(statusError, err.Error())
			continue
		}
		summary.Scripts++

		res := seg.SegmentText(src.Text)
		summary.Statements += res.Statements
		summary.Oversized += res.Split
		summary.Pieces += len(res.Pieces)

		name := relPath(cfg.ProjectRoot, src.Path)
		for _, d := range res.Errors() {
			fits.fail(statusError, fmt.Sprintf("%s:%d: %s", name, d.Line, d.Message))
		}
	}

	return []HealthCheck{dir, readable, fits}
}

func checkChunkDir(cfg *config.Config) HealthCheck {
	check := HealthCheck{ID: "OU01", Name: "Chunk directory writable", Group: groupOutput, Status: statusPass}

	info, err := os.Stat(cfg.ChunkDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return check
	case err != nil:
		check.fail(statusError, err.Error())
		return check
	case !info.IsDir():
		check.fail(statusError, fmt.Sprintf("%s is not a directory", cfg.ChunkDir))
		return check
	}

	f, err := os.CreateTemp(cfg.ChunkDir, ".doctor-*")
	if err != nil {
		check.fail(statusError, err.Error())
		return check
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return check
}

// checkStateStore opens an existing state database and reads its schema version.
// A missing database is created by the first segment run and is not an issue.
func checkStateStore(c *CommandContext) HealthCheck {
	check := HealthCheck{ID: "OU02", Name: "State database", Group: groupOutput, Status: statusPass}
	if c.Cfg.NoState {
		check.Details = append(check.Details, "run history disabled")
		return check
	}
	if _, err := os.Stat(c.Cfg.StatePath); errors.Is(err, os.ErrNotExist) {
		return check
	}

	store, cleanup, err := c.OpenStore()
	if err != nil {
		check.fail(statusError, err.Error())
		return check
	}
	defer cleanup()

	version, err := store.GetMigrationVersion()
	if err != nil {
		check.fail(statusError, err.Error())
		return check
	}
	check.Details = append(check.Details, fmt.Sprintf("schema version %d", version))
	return check
}

// calculateHealthScore computes a health score from 0-100.
// More scripts means each individual issue has less impact.
func calculateHealthScore(checks []HealthCheck, scriptCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if scriptCount > 10 {
		basePenalty = 3.0
	}
	if scriptCount > 50 {
		basePenalty = 2.0
	}
	if scriptCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2 // Errors count double
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(min(max(score, 0), 100))
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Run 'leapchunk init' to create leapchunk.yaml"
	case "SR01":
		return "Create the sql directory or point sql_dir at your scripts"
	case "SR02":
		return "Fix file permissions or remove unreadable scripts"
	case "SR03":
		return "Raise budget or set keep_oversized to keep statements that cannot be split"
	case "OU01":
		return "Point chunk_dir at a writable directory"
	case "OU02":
		return "Delete the state database or set no_state to disable run history"
	default:
		return ""
	}
}

func statusIcon(status string) string {
	switch status {
	case statusWarn:
		return "!"
	case statusError:
		return "✗"
	default:
		return "✓"
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	r.Header(1, "leapchunk Project Health Report")
	r.Muted(strings.Repeat("=", 55))
	r.Println("")

	r.Header(2, "Project Summary")
	cfgName := out.Summary.ConfigFile
	if cfgName == "" {
		cfgName = "(defaults)"
	}
	r.Printf("   Config: %s | Budget: %d\n", cfgName, out.Summary.Budget)
	r.Printf("   Scripts: %d | Statements: %d | Oversized: %d | Pieces: %d\n",
		out.Summary.Scripts, out.Summary.Statements, out.Summary.Oversized, out.Summary.Pieces)
	r.Println("")

	r.Header(2, "Health Checks")
	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("   " + titleCaser.String(currentGroup))
			r.Muted("   " + strings.Repeat("-", 40))
		}

		line := fmt.Sprintf("%s %s: %s", statusIcon(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			line += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + line)

		for i, detail := range check.Details {
			if i >= maxDetails {
				r.Muted(fmt.Sprintf("       ... and %d more", len(check.Details)-maxDetails))
				break
			}
			r.Muted("       - " + detail)
		}
	}
	r.Println("")

	r.Muted(strings.Repeat("=", 55))
	msg := fmt.Sprintf("Health Score: %d/100", out.Score)
	if out.Score < 70 {
		r.Warning(msg)
	} else {
		r.Success(msg)
	}
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Header(2, "Recommendations")
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# leapchunk Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.Summary.ConfigFile))
	}
	r.Println(output.FormatKeyValue("Budget", fmt.Sprint(out.Summary.Budget)))
	r.Println(output.FormatKeyValue("Scripts", fmt.Sprint(out.Summary.Scripts)))
	r.Println(output.FormatKeyValue("Statements", fmt.Sprint(out.Summary.Statements)))
	r.Println(output.FormatKeyValue("Oversized", fmt.Sprint(out.Summary.Oversized)))
	r.Println(output.FormatKeyValue("Pieces", fmt.Sprint(out.Summary.Pieces)))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
