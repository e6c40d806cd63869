package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

// MarkdownReporter generates Markdown reports.
type MarkdownReporter struct {
	Options Options
}

func (r *MarkdownReporter) Format() string { return "markdown" }

func (r *MarkdownReporter) Generate(result *scan.Result) (string, error) {
	var sb strings.Builder
	if err := r.Write(result, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *MarkdownReporter) Write(result *scan.Result, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Scan Report\n\n")

	ew.printf("## Summary\n\n")
	ew.printf("- **Files Scanned:** %d\n", result.Totals.Files)
	ew.printf("- **Files Skipped:** %d\n", result.Totals.Skipped)
	ew.printf("- **Rules:** %d\n", result.Rules)
	ew.printf("- **Findings:** %d\n", result.Totals.Matches)
	ew.printf("- **Duration:** %s\n", result.Duration)
	ew.printf("\n")

	if result.Totals.Matches > 0 {
		ew.printf("| Severity | Findings |\n|---|---|\n")
		sevs := rules.Severities()
		for i := len(sevs) - 1; i >= 0; i-- {
			if n := result.Totals.BySeverity[sevs[i].String()]; n > 0 {
				ew.printf("| %s | %d |\n", sevs[i], n)
			}
		}
		ew.printf("\n")
	}

	if result.Totals.Matches == 0 && result.Totals.Errors == 0 {
		ew.printf("No findings.\n\n")
		return ew.err
	}

	ew.printf("## Findings\n\n")

	for _, file := range result.Files {
		if file.Error != "" {
			ew.printf("### %s\n\n", file.Path)
			ew.printf("Error: %s\n\n", file.Error)
			continue
		}

		if len(file.Matches) == 0 {
			continue
		}

		ew.printf("### %s\n\n", file.Path)

		if file.Cached {
			ew.printf("_Cached result_\n\n")
		}

		for _, m := range file.Matches {
			r.writeFinding(ew, file, m)
		}
	}

	return ew.err
}

func (r *MarkdownReporter) writeFinding(ew *errWriter, file scan.FileResult, m matcher.RuleMatchReport) {
	loc := Locate(m)

	ew.printf("#### %s `%s` %s\n\n", r.severityIcon(m.Severity), m.Rule, m.Description)
	ew.printf("**Location:** Line %d", loc.Line)
	if loc.EndLine > loc.Line {
		ew.printf("-%d", loc.EndLine)
	}
	if fn := functionName(m); fn != "" {
		ew.printf(" in `%s`", fn)
	}
	ew.printf("\n\n")

	if b := bindings(m); b != "" {
		ew.printf("**Bindings:** `%s`\n\n", b)
	}
	if len(m.Tags) > 0 {
		ew.printf("**Tags:** %s\n\n", strings.Join(m.Tags, ", "))
	}

	lang := "c"
	if file.Language == scan.LanguageCXX {
		lang = "cpp"
	}
	ew.printf("```%s\n%s```\n\n", lang, m.Display(r.Options.Before, r.Options.After, r.Options.LineNumbers))
	ew.printf("---\n\n")
}

func (r *MarkdownReporter) severityIcon(severity rules.Severity) string {
	switch severity {
	case rules.SeverityCritical:
		return "[CRITICAL]"
	case rules.SeverityHigh:
		return "[HIGH]"
	case rules.SeverityMedium:
		return "[MEDIUM]"
	case rules.SeverityLow:
		return "[LOW]"
	default:
		return "[INFO]"
	}
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
