// Package config loads the optional YAML defaults file. Command-line flags
// always take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds per-user defaults for the converter.
type Config struct {
	// Days is the default half-width of the time window, in days.
	Days int `yaml:"days"`

	// Timezone is the default IANA display timezone (e.g. "Europe/Prague").
	// Empty selects the host's local timezone.
	Timezone string `yaml:"timezone"`

	// ContinueOnError keeps converting past occurrences that fail to
	// format.
	ContinueOnError bool `yaml:"continue_on_error"`

	// CacheDir is where HTTP-fetched calendars are cached. Empty selects
	// the user cache directory.
	CacheDir string `yaml:"cache_dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Days:     90,
		Timezone: "",
	}
}

// DefaultPath is the config file location used when --config is not given.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "ical2org", "config.yaml")
}

// Load reads the YAML config at path. A missing file is not an error: the
// built-in defaults apply. Unset keys in an existing file keep their
// defaults because unmarshalling starts from DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that can never be right, before any conversion
// is attempted.
func (c *Config) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("days must be non-negative, got %d", c.Days)
	}
	return nil
}
