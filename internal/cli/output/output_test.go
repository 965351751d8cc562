package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{ModeAuto, ModeMarkdown},
		{"", ModeMarkdown},
		{ModeText, ModeText},
		{ModeJSON, ModeJSON},
		{ModeYAML, ModeYAML},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_PlainTextWhenNotTTY(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeText)

	r.Header(1, "Report")
	r.Success("done")
	r.Warning("careful")
	r.StatusLine("a.sql", "failed", "2 errors")
	r.Error("boom")

	assert.True(t, strings.HasPrefix(out.String(), "Report\n✓ done\n! careful\n"), out.String())
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "a.sql")
	assert.Contains(t, out.String(), "2 errors")
	assert.Equal(t, "✗ boom\n", errOut.String())
}

func TestRenderer_MarkdownHeader(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeMarkdown)

	r.Header(2, "Files")

	assert.Equal(t, "## Files\n\n", out.String())
}

func TestRenderer_Table(t *testing.T) {
	rows := [][]any{{"a.sql", 3}, {"b.sql", 1}}

	var text bytes.Buffer
	NewRenderer(&text, &bytes.Buffer{}, ModeText).Table([]string{"Source", "Pieces"}, rows)
	assert.Contains(t, text.String(), "┌")
	assert.Contains(t, text.String(), "a.sql")

	var md bytes.Buffer
	NewRenderer(&md, &bytes.Buffer{}, ModeMarkdown).Table([]string{"Source", "Pieces"}, rows)
	assert.Contains(t, strings.ToLower(md.String()), "| source | pieces |")
	assert.Contains(t, md.String(), "| a.sql | 3 |")
}

func TestRenderer_JSONAndYAML(t *testing.T) {
	v := map[string]int{"pieces": 2}

	var js bytes.Buffer
	require.NoError(t, NewRenderer(&js, nil, ModeJSON).JSON(v))
	assert.JSONEq(t, `{"pieces": 2}`, js.String())

	var ym bytes.Buffer
	require.NoError(t, NewRenderer(&ym, nil, ModeYAML).YAML(v))
	assert.YAMLEq(t, "pieces: 2\n", ym.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(1, "Title"))
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Sub", FormatHeader(3, "Sub"))
	assert.Equal(t, "- **Budget:** 40", FormatKeyValue("Budget", "40"))
	assert.Equal(t, "```sql\nSELECT 1;\n```", FormatCodeBlock("sql", "SELECT 1;\n"))
}
