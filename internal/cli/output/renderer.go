// Package output renders command results as styled text, markdown, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode selects how results are rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeJSON     Mode = "json"
	ModeYAML     Mode = "yaml"
	ModeMarkdown Mode = "markdown"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	w     io.Writer
	errW  io.Writer
	mode  Mode
	isTTY bool
	out   *termenv.Output
}

// NewRenderer creates a renderer. Styling is only applied when w is a terminal.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(w, errW, isTerminal(w), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
// A simulated terminal is styled with basic ANSI colors.
func NewRendererWithTTY(w, errW io.Writer, isTTY bool, mode Mode) *Renderer {
	var out *termenv.Output
	switch {
	case isTTY && isTerminal(w):
		out = termenv.NewOutput(w)
	case isTTY:
		out = termenv.NewOutput(w, termenv.WithProfile(termenv.ANSI))
	default:
		out = termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return &Renderer{
		w:     w,
		errW:  errW,
		mode:  mode,
		isTTY: isTTY,
		out:   out,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves auto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeAuto || r.mode == "" {
		if r.isTTY {
			return ModeText
		}
		return ModeMarkdown
	}
	return r.mode
}

// Writer returns the primary output writer.
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Printf writes formatted text to the output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println()
		return
	}
	r.Println(r.out.String(text).Bold().String())
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.style("✓ "+msg, "2"))
}

// Warning writes a warning message.
func (r *Renderer) Warning(msg string) {
	r.Println(r.style("! "+msg, "3"))
}

// Error writes an error message to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.style("✗ "+msg, "1"))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.out.String(msg).Faint().String())
}

// StatusLine writes "name  status  detail" with the status colored by outcome.
func (r *Renderer) StatusLine(name, status, detail string) {
	color := "2"
	switch status {
	case "failed", "error":
		color = "1"
	case "running", "warning":
		color = "3"
	}
	line := fmt.Sprintf("  %-40s %s", name, r.style(status, color))
	if detail != "" {
		line += "  " + r.out.String(detail).Faint().String()
	}
	r.Println(line)
}

func (r *Renderer) style(s, color string) string {
	return r.out.String(s).Foreground(r.out.Color(color)).String()
}

// Table writes rows as a box-drawn table in text mode or a pipe table in markdown mode.
func (r *Renderer) Table(header []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
