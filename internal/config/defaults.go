package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/JNZader/shapescan/internal/ast"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			Builtin:     true,
			MinSeverity: "none",
		},
		Scan:    defaultScanConfig(),
		Output:  defaultOutputConfig(),
		Cache:   defaultCacheConfig(),
		Metrics: MetricsConfig{},
		Log:     LogConfig{Level: "info"},
	}
}

// defaultCacheDir returns the default on-disk cache directory.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "shapescan")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".cache", "shapescan")
}

func defaultScanConfig() ScanConfig {
	return ScanConfig{
		Language:      "auto",
		Extensions:    DefaultExtensions(),
		Exclude:       DefaultExcludePatterns(),
		MaxFileSizeMB: 16,
		Workers:       0,
		ParseTimeout:  ast.DefaultParseTimeout,
	}
}

func defaultOutputConfig() OutputConfig {
	return OutputConfig{
		Format:      "text",
		Color:       true,
		Before:      1,
		After:       1,
		LineNumbers: true,
	}
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    false,
		Dir:        defaultCacheDir(),
		TTL:        7 * 24 * time.Hour,
		MaxEntries: 10000,
	}
}

// DefaultExtensions returns the C and C++ source extensions scanned by
// default.
func DefaultExtensions() []string {
	return []string{".c", ".h", ".i", ".cc", ".cpp", ".cxx", ".c++", ".hh", ".hpp", ".hxx", ".h++"}
}

// DefaultExcludePatterns returns paths skipped by default.
func DefaultExcludePatterns() []string {
	return []string{
		// Version control
		"**/.git/**",
		"**/.svn/**",

		// Build output
		"**/build/**",
		"**/cmake-build-*/**",
		"**/CMakeFiles/**",

		// Third-party code
		"**/third_party/**",
		"**/vendor/**",
		"**/node_modules/**",
	}
}
