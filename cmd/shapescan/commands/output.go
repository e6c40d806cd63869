package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

// WriteOutput writes the report to a file, creating parent directories.
func WriteOutput(content, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	if !isQuiet() {
		fmt.Fprintf(os.Stderr, "Report written to: %s\n", outputPath)
	}
	return nil
}

// printSummary prints a summary of the scan.
func printSummary(w io.Writer, result *scan.Result) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "  Scan Complete\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "  Files scanned:  %d\n", result.Totals.Files)
	fmt.Fprintf(w, "  Files skipped:  %d\n", result.Totals.Skipped)
	fmt.Fprintf(w, "  Findings:       %d\n", result.Totals.Matches)
	sevs := rules.Severities()
	for i := len(sevs) - 1; i >= 0; i-- {
		if n := result.Totals.BySeverity[sevs[i].String()]; n > 0 {
			fmt.Fprintf(w, "    %-12s  %d\n", sevs[i].String()+":", n)
		}
	}
	fmt.Fprintf(w, "  Duration:       %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
}
