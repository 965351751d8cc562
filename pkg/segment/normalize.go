package segment

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapchunk/pkg/sqlscan"
)

var (
	// Block comments are removed without regard to quotes. A literal containing
	// "/*" and "*/" is damaged; scripts in practice do not carry them.
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	noLoggingRe    = regexp.MustCompile(`(?i)\bNOLOGGING\b`)

	fullWidth = strings.NewReplacer("（", "(", "）", ")", "，", ",", "。", ".")
)

// Normalize prepares raw script text for Extract. It strips block comments, the
// NOLOGGING keyword and line comments, trims every line, drops blank lines and maps
// full-width punctuation to ASCII. Lines keep their relative order.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	text := blockCommentRe.ReplaceAllString(raw, "")
	text = noLoggingRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if pos := sqlscan.FindLineComment(line); pos != sqlscan.NotFound {
			line = line[:pos]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, fullWidth.Replace(line))
	}
	return strings.Join(out, "\n")
}
