// Package config handles configuration for shapescan.
//
// Configuration is loaded from multiple sources in order of precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (SHAPESCAN_*)
// 3. Configuration file (.shapescan.yaml)
// 4. Default values (lowest priority)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/rules"
)

// OutputFormats lists the report formats understood by the CLI.
var OutputFormats = []string{"text", "json", "sarif", "markdown"}

// Languages lists the accepted values of scan.language.
var Languages = []string{"auto", "c", "c++"}

// Config is the main configuration structure for shapescan.
type Config struct {
	// Rules selects which rules are loaded
	Rules RulesConfig `mapstructure:"rules" yaml:"rules"`

	// Scan configures file discovery and matching
	Scan ScanConfig `mapstructure:"scan" yaml:"scan"`

	// Output configures output formatting
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Cache configures caching of per-file findings
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics configures metric export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Log configures logging
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// RulesConfig configures the rule system.
type RulesConfig struct {
	// Paths are rule files or directories to load
	Paths []string `mapstructure:"paths" yaml:"paths"`

	// Builtin loads the rules embedded in the binary
	Builtin bool `mapstructure:"builtin" yaml:"builtin"`

	// IgnoreErrors skips rule files that fail to load
	IgnoreErrors bool `mapstructure:"ignore_errors" yaml:"ignore_errors"`

	// MinSeverity drops rules below this severity
	MinSeverity string `mapstructure:"min_severity" yaml:"min_severity"`

	// Tags keeps only rules carrying one of these tags (empty = all)
	Tags []string `mapstructure:"tags" yaml:"tags"`

	// ExcludeTags drops rules carrying any of these tags
	ExcludeTags []string `mapstructure:"exclude_tags" yaml:"exclude_tags"`
}

// ScanConfig configures file discovery and matching.
type ScanConfig struct {
	// Language is the grammar: "auto", "c" or "c++"
	Language string `mapstructure:"language" yaml:"language"`

	// Extensions are the file extensions scanned when walking directories
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`

	// Include keeps only paths matching one of these globs (empty = all)
	Include []string `mapstructure:"include" yaml:"include"`

	// Exclude drops paths matching any of these globs
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	// MaxFileSizeMB skips larger files
	MaxFileSizeMB int `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`

	// Workers is the number of parallel matchers (0 = auto)
	Workers int `mapstructure:"workers" yaml:"workers"`

	// ParseTimeout bounds parsing of a single file
	ParseTimeout time.Duration `mapstructure:"parse_timeout" yaml:"parse_timeout"`
}

// OutputConfig configures output formatting.
type OutputConfig struct {
	// Format is the output format: "text", "json", "sarif", "markdown"
	Format string `mapstructure:"format" yaml:"format"`

	// File is the output file path (empty = stdout)
	File string `mapstructure:"file" yaml:"file"`

	// Color enables colored output (for terminal)
	Color bool `mapstructure:"color" yaml:"color"`

	// Before and After are context lines shown around each capture
	Before int `mapstructure:"before" yaml:"before"`
	After  int `mapstructure:"after" yaml:"after"`

	// LineNumbers prefixes excerpt lines with their number
	LineNumbers bool `mapstructure:"line_numbers" yaml:"line_numbers"`
}

// CacheConfig configures caching behavior.
type CacheConfig struct {
	// Enabled enables caching
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Dir is the cache directory; empty keeps the cache in memory
	Dir string `mapstructure:"dir" yaml:"dir"`

	// TTL is the cache entry time-to-live (0 = never expires)
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// MaxEntries is the maximum number of in-memory entries
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// File receives Prometheus text format metrics after a scan
	File string `mapstructure:"file" yaml:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if _, err := rules.ParseSeverity(c.Rules.MinSeverity); err != nil {
		return &ValidationError{Field: "rules.min_severity", Message: err.Error()}
	}

	if !contains(Languages, c.Scan.Language) {
		return &ValidationError{Field: "scan.language", Message: "invalid language, must be one of: " + strings.Join(Languages, ", ")}
	}
	for _, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return &ValidationError{Field: "scan.extensions", Message: fmt.Sprintf("extension %q must start with a dot", ext)}
		}
	}
	for _, field := range []struct {
		name     string
		patterns []string
	}{{"scan.include", c.Scan.Include}, {"scan.exclude", c.Scan.Exclude}} {
		for _, p := range field.patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				return &ValidationError{Field: field.name, Message: fmt.Sprintf("invalid glob %q: %v", p, err)}
			}
		}
	}
	if c.Scan.MaxFileSizeMB <= 0 {
		return &ValidationError{Field: "scan.max_file_size_mb", Message: "must be positive"}
	}
	if c.Scan.Workers < 0 {
		return &ValidationError{Field: "scan.workers", Message: "must not be negative"}
	}
	if c.Scan.ParseTimeout <= 0 {
		return &ValidationError{Field: "scan.parse_timeout", Message: "must be positive"}
	}

	if !contains(OutputFormats, c.Output.Format) {
		return &ValidationError{Field: "output.format", Message: "invalid format, must be one of: " + strings.Join(OutputFormats, ", ")}
	}
	if c.Output.Before < 0 || c.Output.After < 0 {
		return &ValidationError{Field: "output.before", Message: "context lines must not be negative"}
	}

	if c.Cache.Enabled && c.Cache.Dir == "" && c.Cache.MaxEntries <= 0 {
		return &ValidationError{Field: "cache.max_entries", Message: "must be positive for an in-memory cache"}
	}
	if c.Cache.TTL < 0 {
		return &ValidationError{Field: "cache.ttl", Message: "must not be negative"}
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// Filter returns the rule filter described by the rules section. It
// assumes the configuration is valid.
func (c *Config) Filter() rules.Filter {
	sev, _ := rules.ParseSeverity(c.Rules.MinSeverity)
	return rules.Filter{
		MinSeverity: sev,
		Tags:        c.Rules.Tags,
		ExcludeTags: c.Rules.ExcludeTags,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
