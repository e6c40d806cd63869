package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const configFileName = ".shapescan.yaml"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName(".shapescan")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")                       // Current directory (highest priority)
	v.AddConfigPath("$HOME")                   // Home directory
	v.AddConfigPath("$HOME/.config/shapescan") // User config (lowest priority)

	v.SetEnvPrefix("SHAPESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// SetConfigFile sets a specific config file to use.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// Load loads the configuration from all sources.
// Priority (highest to lowest):
// 1. Values set through Viper() (flags bound by the CLI)
// 2. Environment variables (SHAPESCAN_*)
// 3. Config file
// 4. Default values
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setDefaults(cfg)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables can
// override values absent from the config file.
func (l *Loader) setDefaults(cfg *Config) {
	l.v.SetDefault("rules.paths", cfg.Rules.Paths)
	l.v.SetDefault("rules.builtin", cfg.Rules.Builtin)
	l.v.SetDefault("rules.ignore_errors", cfg.Rules.IgnoreErrors)
	l.v.SetDefault("rules.min_severity", cfg.Rules.MinSeverity)
	l.v.SetDefault("rules.tags", cfg.Rules.Tags)
	l.v.SetDefault("rules.exclude_tags", cfg.Rules.ExcludeTags)

	l.v.SetDefault("scan.language", cfg.Scan.Language)
	l.v.SetDefault("scan.extensions", cfg.Scan.Extensions)
	l.v.SetDefault("scan.include", cfg.Scan.Include)
	l.v.SetDefault("scan.exclude", cfg.Scan.Exclude)
	l.v.SetDefault("scan.max_file_size_mb", cfg.Scan.MaxFileSizeMB)
	l.v.SetDefault("scan.workers", cfg.Scan.Workers)
	l.v.SetDefault("scan.parse_timeout", cfg.Scan.ParseTimeout)

	l.v.SetDefault("output.format", cfg.Output.Format)
	l.v.SetDefault("output.file", cfg.Output.File)
	l.v.SetDefault("output.color", cfg.Output.Color)
	l.v.SetDefault("output.before", cfg.Output.Before)
	l.v.SetDefault("output.after", cfg.Output.After)
	l.v.SetDefault("output.line_numbers", cfg.Output.LineNumbers)

	l.v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	l.v.SetDefault("cache.dir", cfg.Cache.Dir)
	l.v.SetDefault("cache.ttl", cfg.Cache.TTL)
	l.v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)

	l.v.SetDefault("metrics.file", cfg.Metrics.File)

	l.v.SetDefault("log.level", cfg.Log.Level)
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance, used to bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}

// FindConfigFile searches for a config file and returns its path.
// Returns empty string if no config file is found.
func FindConfigFile() string {
	if _, err := os.Stat(configFileName); err == nil {
		if abs, err := filepath.Abs(configFileName); err == nil {
			return abs
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		for _, path := range []string{
			filepath.Join(home, configFileName),
			filepath.Join(home, ".config", "shapescan", configFileName),
		} {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
