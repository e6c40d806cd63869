// Package report renders scan results.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/scan"
)

// Reporter defines the interface for rendering scan results.
type Reporter interface {
	// Generate renders the result as a string.
	Generate(result *scan.Result) (string, error)

	// Write renders the result to w.
	Write(result *scan.Result, w io.Writer) error

	// Format returns the format name.
	Format() string
}

// Options controls how findings are rendered.
type Options struct {
	// Before and After are the context lines shown around each capture.
	Before, After int
	// LineNumbers prefixes excerpt lines with their line number.
	LineNumbers bool
	// Color enables ANSI colors in the text format.
	Color bool
	// Version is the tool version written into SARIF output.
	Version string
}

// NewReporter creates a reporter for the given format.
func NewReporter(format string, opts Options) (Reporter, error) {
	switch format {
	case "text", "":
		return &TextReporter{Options: opts}, nil
	case "markdown", "md":
		return &MarkdownReporter{Options: opts}, nil
	case "json":
		return &JSONReporter{Indent: true, Options: opts}, nil
	case "sarif":
		return &SARIFReporter{Version: opts.Version}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// AvailableFormats returns the list of supported formats.
func AvailableFormats() []string {
	return []string{"text", "json", "sarif", "markdown"}
}

// DetectFormat infers the output format from a file extension. It
// returns "" when the extension is not recognized.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".sarif":
		return "sarif"
	case ".md", ".markdown":
		return "markdown"
	case ".txt", ".log":
		return "text"
	default:
		return ""
	}
}

// Location is the source position of a finding. Lines and columns are
// one-based.
type Location struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	EndLine   int `json:"end_line"`
	EndColumn int `json:"end_column"`
}

// Locate returns the span of the captures of m, or its enclosing
// function when nothing was captured.
func Locate(m matcher.RuleMatchReport) Location {
	span := m.Match.Function
	if len(m.Match.Captures) > 0 {
		span = m.Match.Captures[0].Span
		for _, c := range m.Match.Captures[1:] {
			span.Start = min(span.Start, c.Start)
			span.End = max(span.End, c.End)
		}
	}
	var loc Location
	loc.Line, loc.Column = query.LineColumn(m.Source, span.Start)
	loc.EndLine, loc.EndColumn = query.LineColumn(m.Source, span.End)
	return loc
}

// functionName returns the readable name of the function enclosing m.
// Mangled names are demangled.
func functionName(m matcher.RuleMatchReport) string {
	name := m.Match.FunctionName
	if d, err := demangle.ToString(name); err == nil {
		return d
	}
	return name
}

// bindings renders the bound variables of m as "$a=x, $b=y".
func bindings(m matcher.RuleMatchReport) string {
	names := m.Match.Variables()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v, _ := m.Match.Value(name, m.Source)
		parts = append(parts, name+"="+v)
	}
	return strings.Join(parts, ", ")
}

// message is the one-line summary of a finding.
func message(m matcher.RuleMatchReport) string {
	msg := m.Description
	if msg == "" {
		msg = m.Rule
	}
	if fn := functionName(m); fn != "" {
		msg += " in " + fn
	}
	if b := bindings(m); b != "" {
		msg += " (" + b + ")"
	}
	return msg
}
