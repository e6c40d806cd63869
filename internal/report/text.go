package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

// TextReporter renders findings for a terminal, one header line per
// finding followed by an excerpt of the source.
type TextReporter struct {
	Options Options
}

func (r *TextReporter) Format() string { return "text" }

func (r *TextReporter) Generate(result *scan.Result) (string, error) {
	var sb strings.Builder
	if err := r.Write(result, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *TextReporter) Write(result *scan.Result, w io.Writer) error {
	ew := &errWriter{w: w}
	bold := r.style(color.Bold)
	faint := r.style(color.Faint)

	for _, file := range result.Files {
		if file.Error != "" {
			ew.printf("%s: %s %s\n", bold.Sprint(file.Path), r.style(color.FgRed).Sprint("error:"), file.Error)
			continue
		}
		for _, m := range file.Matches {
			loc := Locate(m)
			sev := r.severityStyle(m.Severity).Sprintf("[%s]", m.Severity)
			ew.printf("%s %s %s\n",
				bold.Sprintf("%s:%d:%d:", file.Path, loc.Line, loc.Column),
				sev,
				message(m))
			if m.Checker != "" {
				ew.printf("%s\n", faint.Sprintf("  rule %s, check %s", m.Rule, m.Checker))
			}
			for _, line := range strings.SplitAfter(m.Display(r.Options.Before, r.Options.After, r.Options.LineNumbers), "\n") {
				if line != "" {
					ew.printf("    %s", line)
				}
			}
			ew.printf("\n")
		}
	}

	ew.printf("%d findings in %d files (%d skipped, %d errors) in %s\n",
		result.Totals.Matches, result.Totals.Files, result.Totals.Skipped, result.Totals.Errors,
		result.Duration.Round(time.Millisecond))
	return ew.err
}

func (r *TextReporter) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if r.Options.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (r *TextReporter) severityStyle(s rules.Severity) *color.Color {
	switch s {
	case rules.SeverityCritical:
		return r.style(color.FgHiRed, color.Bold)
	case rules.SeverityHigh:
		return r.style(color.FgRed)
	case rules.SeverityMedium:
		return r.style(color.FgYellow)
	case rules.SeverityLow:
		return r.style(color.FgCyan)
	default:
		return r.style(color.FgWhite)
	}
}

// Summary returns a one-line summary of result.
func Summary(result *scan.Result) string {
	return fmt.Sprintf("%d findings in %d files", result.Totals.Matches, result.Totals.Files)
}
