package segment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Kind
// =============================================================================

// Kind identifies the shape of an extracted statement.
type Kind int

// Statement kinds.
const (
	// KindInsert is an INSERT INTO ... statement.
	KindInsert Kind = iota
	// KindCreateTableAs is a CREATE TABLE ... AS SELECT statement.
	KindCreateTableAs
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindCreateTableAs:
		return "create_table_as"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "insert":
		*k = KindInsert
	case "create_table_as":
		*k = KindCreateTableAs
	default:
		return fmt.Errorf("unknown statement kind %q", text)
	}
	return nil
}

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError marks a statement or piece that was dropped.
	SeverityError Severity = iota
	// SeverityWarning marks a statement that was skipped during extraction.
	SeverityWarning
	// SeverityInfo is progress information.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", text)
	}
	*s = sev
	return nil
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityInfo and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// =============================================================================
// Records
// =============================================================================

// Statement is one statement found by Extract.
type Statement struct {
	SQL        string `json:"sql" yaml:"sql"`
	TableName  string `json:"table_name" yaml:"table_name"`
	LineNumber int    `json:"line_number" yaml:"line_number"`
	Kind       Kind   `json:"kind" yaml:"kind"`
}

// Diagnostic is a non-fatal finding. Line is 0 when no statement is attached.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", d.Severity, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Piece is one emitted statement. SQL ends with exactly one ';' and carries no
// surrounding whitespace.
type Piece struct {
	SQL        string `json:"sql" yaml:"sql"`
	TableName  string `json:"table_name" yaml:"table_name"`
	LineNumber int    `json:"line_number" yaml:"line_number"`
	Kind       Kind   `json:"kind" yaml:"kind"`
	// Part is the 1-based position of the piece among those of its statement.
	Part int `json:"part" yaml:"part"`
	// Parts is the number of pieces its statement produced.
	Parts int `json:"parts" yaml:"parts"`
}

// Text returns the newline-terminated form written to chunk files.
func (p Piece) Text() string {
	return p.SQL + "\n"
}

// Result is the outcome of segmenting a list of statements.
type Result struct {
	Pieces      []Piece      `json:"pieces" yaml:"pieces"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	// Statements is the number of statements processed.
	Statements int `json:"statements" yaml:"statements"`
	// Split is the number of statements that exceeded the budget.
	Split int `json:"split" yaml:"split"`
	// Dropped is the number of pieces removed because they could not fit.
	Dropped int `json:"dropped" yaml:"dropped"`
}

// Errors returns the error diagnostics.
func (r *Result) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
