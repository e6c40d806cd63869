package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JNZader/shapescan/internal/rules"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Rules.Builtin {
		t.Error("Rules.Builtin = false, want true")
	}
	if cfg.Scan.Language != "auto" {
		t.Errorf("Scan.Language = %v, want auto", cfg.Scan.Language)
	}
	if cfg.Scan.ParseTimeout != 10*time.Second {
		t.Errorf("Scan.ParseTimeout = %v, want 10s", cfg.Scan.ParseTimeout)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %v, want text", cfg.Output.Format)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown severity",
			modify:  func(c *Config) { c.Rules.MinSeverity = "urgent" },
			wantErr: true,
			errMsg:  "rules.min_severity",
		},
		{
			name:    "severity is case insensitive",
			modify:  func(c *Config) { c.Rules.MinSeverity = "HIGH" },
			wantErr: false,
		},
		{
			name:    "invalid language",
			modify:  func(c *Config) { c.Scan.Language = "rust" },
			wantErr: true,
			errMsg:  "scan.language",
		},
		{
			name:    "extension without dot",
			modify:  func(c *Config) { c.Scan.Extensions = []string{"c"} },
			wantErr: true,
			errMsg:  "scan.extensions",
		},
		{
			name:    "invalid exclude glob",
			modify:  func(c *Config) { c.Scan.Exclude = []string{"src/[a-"} },
			wantErr: true,
			errMsg:  "scan.exclude",
		},
		{
			name:    "zero file size",
			modify:  func(c *Config) { c.Scan.MaxFileSizeMB = 0 },
			wantErr: true,
			errMsg:  "scan.max_file_size_mb",
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.Scan.Workers = -1 },
			wantErr: true,
			errMsg:  "scan.workers",
		},
		{
			name:    "invalid output format",
			modify:  func(c *Config) { c.Output.Format = "invalid" },
			wantErr: true,
			errMsg:  "output.format",
		},
		{
			name:    "negative context",
			modify:  func(c *Config) { c.Output.After = -2 },
			wantErr: true,
			errMsg:  "output.before",
		},
		{
			name: "memory cache without capacity",
			modify: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Dir = ""
				c.Cache.MaxEntries = 0
			},
			wantErr: true,
			errMsg:  "cache.max_entries",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
			errMsg:  "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("Validate() error = %T, want *ValidationError", err)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
				}
			}
		})
	}
}

func TestConfigFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.MinSeverity = "medium"
	cfg.Rules.Tags = []string{"memory"}
	cfg.Rules.ExcludeTags = []string{"noisy"}

	f := cfg.Filter()
	if f.MinSeverity != rules.SeverityMedium {
		t.Errorf("MinSeverity = %v, want medium", f.MinSeverity)
	}
	if len(f.Tags) != 1 || f.Tags[0] != "memory" {
		t.Errorf("Tags = %v", f.Tags)
	}
	if len(f.ExcludeTags) != 1 || f.ExcludeTags[0] != "noisy" {
		t.Errorf("ExcludeTags = %v", f.ExcludeTags)
	}
}

func TestLoaderDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %v, want text", cfg.Output.Format)
	}
	if loader.ConfigFileUsed() != "" {
		t.Errorf("ConfigFileUsed() = %q, want none", loader.ConfigFileUsed())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shapescan.yaml")
	content := `rules:
  paths: [rules/]
  builtin: false
  min_severity: high
scan:
  language: c
  workers: 3
  parse_timeout: 2s
  exclude: ["**/test/**"]
output:
  format: sarif
  before: 0
cache:
  enabled: true
  ttl: 1h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Rules.Builtin {
		t.Error("Rules.Builtin = true, want false")
	}
	if len(cfg.Rules.Paths) != 1 || cfg.Rules.Paths[0] != "rules/" {
		t.Errorf("Rules.Paths = %v", cfg.Rules.Paths)
	}
	if cfg.Rules.MinSeverity != "high" {
		t.Errorf("Rules.MinSeverity = %v, want high", cfg.Rules.MinSeverity)
	}
	if cfg.Scan.Language != "c" || cfg.Scan.Workers != 3 || cfg.Scan.ParseTimeout != 2*time.Second {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if len(cfg.Scan.Exclude) != 1 {
		t.Errorf("Scan.Exclude = %v, want the file value", cfg.Scan.Exclude)
	}
	if cfg.Output.Format != "sarif" || cfg.Output.Before != 0 || cfg.Output.After != 1 {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
}

func TestLoadFromFileRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shapescan.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: html\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFile(path)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "output.format" {
		t.Errorf("LoadFromFile() error = %v, want output.format validation error", err)
	}
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHAPESCAN_OUTPUT_FORMAT", "json")
	t.Setenv("SHAPESCAN_SCAN_LANGUAGE", "c++")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %v, want json", cfg.Output.Format)
	}
	if cfg.Scan.Language != "c++" {
		t.Errorf("Scan.Language = %v, want c++", cfg.Scan.Language)
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "test.field", Message: "test message"}

	want := "config validation error: test.field: test message"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestDefaultExtensions(t *testing.T) {
	exts := DefaultExtensions()
	for _, want := range []string{".c", ".h", ".cpp", ".hpp"} {
		found := false
		for _, e := range exts {
			if e == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("DefaultExtensions() missing %q", want)
		}
	}
}
