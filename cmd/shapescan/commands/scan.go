package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JNZader/shapescan/internal/cache"
	"github.com/JNZader/shapescan/internal/config"
	"github.com/JNZader/shapescan/internal/git"
	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/metrics"
	"github.com/JNZader/shapescan/internal/profiler"
	"github.com/JNZader/shapescan/internal/report"
	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan C and C++ sources for rule matches",
	Long: `Scan files and directories with the loaded rules.

Directories are walked recursively and files with a known C or C++
extension are scanned. Files named on the command line are always
scanned. Without paths the current directory is scanned.

Examples:
  # Scan the current directory
  shapescan scan

  # Only high and critical rules, as JSON
  shapescan scan --min-severity high -f json src/

  # Project rules only, forced C++ grammar
  shapescan scan --no-builtin --rules rules/ --language c++ lib/

  # Fail the build on any medium or worse finding
  shapescan scan --fail-on medium .

  # Only report findings on lines staged for commit
  shapescan scan --staged

  # Only report findings on lines changed since main
  shapescan scan --diff-base main`,
	RunE: runScan,
}

var scanBindings = []flagBinding{
	{"rules.paths", "rules"},
	{"rules.ignore_errors", "ignore-rule-errors"},
	{"rules.min_severity", "min-severity"},
	{"rules.tags", "tags"},
	{"rules.exclude_tags", "exclude-tags"},
	{"scan.language", "language"},
	{"scan.extensions", "ext"},
	{"scan.include", "include"},
	{"scan.exclude", "exclude"},
	{"scan.max_file_size_mb", "max-file-size"},
	{"scan.workers", "workers"},
	{"scan.parse_timeout", "parse-timeout"},
	{"output.format", "format"},
	{"output.file", "output"},
	{"output.before", "before"},
	{"output.after", "after"},
	{"cache.dir", "cache-dir"},
	{"metrics.file", "metrics-file"},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Rule flags
	scanCmd.Flags().StringSliceP("rules", "r", nil, "Rule files or directories to load")
	scanCmd.Flags().Bool("no-builtin", false, "Do not load the built-in rules")
	scanCmd.Flags().Bool("ignore-rule-errors", false, "Skip rule files that fail to load")
	scanCmd.Flags().StringSlice("rule", nil, "Run only the rules with these ids")
	scanCmd.Flags().String("min-severity", "none", "Drop rules below this severity")
	scanCmd.Flags().StringSlice("tags", nil, "Run only rules with one of these tags")
	scanCmd.Flags().StringSlice("exclude-tags", nil, "Skip rules with any of these tags")

	// File selection flags
	scanCmd.Flags().StringP("language", "l", "auto", "Grammar: auto, c or c++")
	scanCmd.Flags().StringSlice("ext", nil, "File extensions scanned in directories")
	scanCmd.Flags().StringSlice("include", nil, "Scan only paths matching these globs")
	scanCmd.Flags().StringSlice("exclude", nil, "Skip paths matching these globs")
	scanCmd.Flags().Int("max-file-size", 16, "Skip files larger than this many MB")

	// Behavior flags
	scanCmd.Flags().IntP("workers", "j", 0, "Parallel matchers (0=auto)")
	scanCmd.Flags().Duration("parse-timeout", 0, "Parse timeout per file")
	scanCmd.Flags().Bool("cache", false, "Reuse findings of unchanged files")
	scanCmd.Flags().Bool("no-cache", false, "Disable caching")
	scanCmd.Flags().String("cache-dir", "", "Cache directory")
	scanCmd.Flags().String("fail-on", "", "Exit with status 1 on findings at or above this severity")
	scanCmd.Flags().Bool("no-progress", false, "Do not show a progress bar")

	// Change selection flags
	scanCmd.Flags().Bool("staged", false, "Scan staged files and report findings on staged lines only")
	scanCmd.Flags().String("diff-base", "", "Scan files changed since this git ref and report findings on changed lines only")
	scanCmd.MarkFlagsMutuallyExclusive("staged", "diff-base")

	// Output flags
	scanCmd.Flags().StringP("format", "f", "text", "Output format (text, json, sarif, markdown)")
	scanCmd.Flags().StringP("output", "o", "", "Write report to file")
	scanCmd.Flags().IntP("before", "B", 1, "Context lines before each capture")
	scanCmd.Flags().IntP("after", "A", 1, "Context lines after each capture")
	scanCmd.Flags().Bool("no-line-numbers", false, "Omit line numbers in excerpts")
	scanCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to file")

	// Profiling flags
	scanCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	scanCmd.Flags().String("memprofile", "", "Write memory profile to file")
}

func runScan(cmd *cobra.Command, args []string) error {
	cpuProfile, _ := cmd.Flags().GetString("cpuprofile")
	memProfile, _ := cmd.Flags().GetString("memprofile")
	if profCfg := (profiler.Config{CPUProfile: cpuProfile, MemProfile: memProfile}); profCfg.Enabled() {
		prof, err := profiler.New(profCfg)
		if err != nil {
			return fmt.Errorf("failed to start profiler: %w", err)
		}
		defer func() {
			if err := prof.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to stop profiler: %v\n", err)
			}
			if isVerbose() {
				fmt.Fprintf(os.Stderr, "Profiled %s: %s\n", prof.Duration(), profiler.Stats())
			}
		}()
	}

	cfg, _, err := loadConfig(cmd, scanBindings)
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)

	failOn, err := parseFailOn(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	engine := newEngine(cfg)
	ids, _ := cmd.Flags().GetStringSlice("rule")
	rs, err := loadRuleSet(cfg, engine, log, rules.Filter{IDs: ids})
	if err != nil {
		return err
	}
	if rs.Len() == 0 {
		return fmt.Errorf("no rules to run")
	}
	log.Debug("Running %d rules", rs.Len())

	filter, err := scan.NewPathFilter(cfg.Scan.Include, cfg.Scan.Exclude, cfg.Scan.Extensions,
		int64(cfg.Scan.MaxFileSizeMB)<<20)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	opts := []scan.Option{
		scan.WithLogger(log),
		scan.WithMetrics(collector),
		scan.WithMatcherOptions(matcher.WithEngine(engine)),
	}
	if cfg.Cache.Enabled {
		c, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer c.Close()
		opts = append(opts, scan.WithCache(c))
	}

	scanOpts := scan.Options{
		Language: cfg.Scan.Language,
		Workers:  cfg.Scan.Workers,
		Filter:   filter,
	}
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var progress *progressReporter
	if !isQuiet() && !noProgress {
		progress = newProgressReporter(os.Stderr)
		scanOpts.Progress = progress.Update
	}

	scanner, err := scan.NewEngine(rs, scanOpts, opts...)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	changes, err := loadChanges(ctx, cmd, paths[0])
	if err != nil {
		return err
	}
	if changes != nil {
		paths = changes.Paths(func(path string) bool {
			_, err := os.Stat(path)
			return err == nil && filter.Accepts(path)
		})
		log.Debug("%d changed files to scan", len(paths))
	}

	result, err := scanner.Run(ctx, paths)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if changes != nil {
		result.Retain(func(path string, m matcher.RuleMatchReport) bool {
			loc := report.Locate(m)
			return changes.Touches(path, loc.Line, loc.EndLine)
		})
	}

	if err := writeReport(cmd.OutOrStdout(), cfg, result); err != nil {
		return err
	}

	if cfg.Metrics.File != "" {
		if err := collector.WriteTextfile(cfg.Metrics.File); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if !isQuiet() && cfg.Output.File != "" {
		printSummary(os.Stderr, result)
	}

	if failOn != rules.SeverityNone && result.CountAtLeast(failOn) > 0 {
		return errFindings
	}
	return nil
}

// applyScanFlags applies flags that have no direct configuration key.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if noBuiltin, _ := cmd.Flags().GetBool("no-builtin"); noBuiltin {
		cfg.Rules.Builtin = false
	}
	if enable, _ := cmd.Flags().GetBool("cache"); enable {
		cfg.Cache.Enabled = true
	}
	if disable, _ := cmd.Flags().GetBool("no-cache"); disable {
		cfg.Cache.Enabled = false
	}
	if noLines, _ := cmd.Flags().GetBool("no-line-numbers"); noLines {
		cfg.Output.LineNumbers = false
	}
	if !cmd.Flags().Changed("format") && cfg.Output.File != "" {
		if format := report.DetectFormat(cfg.Output.File); format != "" {
			cfg.Output.Format = format
		}
	}
}

// loadChanges returns the git changes selected by --staged or
// --diff-base for the repository containing dir, or nil when neither is set.
func loadChanges(ctx context.Context, cmd *cobra.Command, dir string) (*git.Changes, error) {
	staged, _ := cmd.Flags().GetBool("staged")
	base, _ := cmd.Flags().GetString("diff-base")
	if !staged && base == "" {
		return nil, nil
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	repo, err := git.NewRepo(ctx, dir)
	if err != nil {
		return nil, err
	}
	changes, err := git.Load(ctx, repo, base)
	if err != nil {
		return nil, fmt.Errorf("reading git changes: %w", err)
	}
	return changes, nil
}

// parseFailOn returns the --fail-on threshold, SeverityNone when unset.
func parseFailOn(cmd *cobra.Command) (rules.Severity, error) {
	name, _ := cmd.Flags().GetString("fail-on")
	if name == "" {
		return rules.SeverityNone, nil
	}
	sev, err := rules.ParseSeverity(name)
	if err != nil {
		return rules.SeverityNone, fmt.Errorf("invalid --fail-on: %w", err)
	}
	return sev, nil
}

func openCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Dir == "" {
		return cache.NewLRUCache(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
	}
	c, err := cache.NewFileCache(cfg.Cache.Dir, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

// writeReport renders result to the configured file, or to stdout.
func writeReport(stdout io.Writer, cfg *config.Config, result *scan.Result) error {
	reporter, err := report.NewReporter(cfg.Output.Format, report.Options{
		Before:      cfg.Output.Before,
		After:       cfg.Output.After,
		LineNumbers: cfg.Output.LineNumbers,
		Color:       cfg.Output.Color && cfg.Output.File == "" && !color.NoColor,
		Version:     Version,
	})
	if err != nil {
		return err
	}

	if cfg.Output.File == "" {
		return reporter.Write(result, stdout)
	}
	content, err := reporter.Generate(result)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	return WriteOutput(content, cfg.Output.File)
}
