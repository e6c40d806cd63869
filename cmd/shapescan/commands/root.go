// Package commands contains all CLI commands for shapescan.
//
// This package uses the Cobra library for CLI management.
// Each command is defined in its own file and registered in init().
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JNZader/shapescan/internal/config"
	"github.com/JNZader/shapescan/internal/logger"
)

// Exit codes returned by Execute.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

// errFindings is returned when --fail-on is triggered. It carries no
// message of its own; the report has already been written.
var errFindings = errors.New("findings at or above the failure threshold")

var (
	// cfgFile holds the path to the config file (from --config flag)
	cfgFile string

	// verbose enables debug logging
	verbose bool

	// quiet suppresses all output except errors
	quiet bool

	// noColor disables colored output
	noColor bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shapescan",
	Short: "Structural rule scanner for C and C++",
	Long: `shapescan matches structural rules against C and C++ sources.

Rules are YAML documents holding one or more code patterns. A pattern
is a block of C statements in which $name binds any expression and _
matches anything, optionally constrained by regular expressions.

Examples:
  # Scan a tree with the built-in rules
  shapescan scan src/

  # Add project rules and fail on high severity findings
  shapescan scan --rules rules/ --fail-on high .

  # Write a SARIF report
  shapescan scan -o results.sarif .

  # Check rule files
  shapescan rules validate rules/`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errFindings):
		return ExitFindings
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .shapescan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// flagBinding maps a configuration key to a command flag.
type flagBinding struct {
	key  string
	flag string
}

// loadConfig loads the configuration with the given flags taking
// precedence over file and environment values.
func loadConfig(cmd *cobra.Command, bindings []flagBinding) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	for _, b := range bindings {
		if f := cmd.Flags().Lookup(b.flag); f != nil {
			if err := loader.Viper().BindPFlag(b.key, f); err != nil {
				return nil, nil, fmt.Errorf("binding --%s: %w", b.flag, err)
			}
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, loader, nil
}

// newLogger returns the process logger at the level selected by the
// config and the -v and -q flags.
func newLogger(cfg *config.Config) *logger.Logger {
	log := logger.Default()
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	switch {
	case quiet:
		level = logger.LevelError
	case verbose:
		level = logger.LevelDebug
	}
	log.SetLevel(level)
	return log
}

// isVerbose returns true if verbose mode is enabled
func isVerbose() bool {
	return verbose && !quiet
}

// isQuiet returns true if quiet mode is enabled
func isQuiet() bool {
	return quiet
}
