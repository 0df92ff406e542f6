// Package config provides configuration loading and defaults for the
// wintrapd daemon.
//
// Configuration is loaded from a TOML file in the daemon's data directory.
// The package covers logging, the local control endpoint, shutdown
// notification, and scratch-file cleanup, with sensible defaults for every
// field.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/wintrap/internal/atomicfile"
	"tools.zach/dev/wintrap/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level daemon configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Control holds local control endpoint settings.
	Control ControlConfig `toml:"control"`
	// Notify holds shutdown notification settings.
	Notify NotifyConfig `toml:"notify"`
	// Cleanup holds scratch-file cleanup settings.
	Cleanup CleanupConfig `toml:"cleanup"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ControlConfig holds settings for the daemon's local control endpoint.
type ControlConfig struct {
	// Enabled toggles the control endpoint.
	Enabled bool `toml:"enabled"`
	// ShutdownGraceSeconds is how long shutdown waits for in-flight work
	// before giving up.
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
}

// NotifyConfig holds settings for the shutdown notification webhook.
type NotifyConfig struct {
	// URL is the webhook endpoint POSTed to on shutdown. Empty disables
	// notification.
	URL string `toml:"url"`
	// TimeoutSeconds is the per-request timeout for webhook delivery.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// CleanupConfig holds settings for scratch-file cleanup on shutdown.
type CleanupConfig struct {
	// OnShutdown toggles whether cleanup runs during graceful shutdown.
	OnShutdown bool `toml:"on_shutdown"`
	// Root is the directory cleanup patterns are resolved against.
	// Empty means the daemon data directory.
	Root string `toml:"root"`
	// Patterns is the list of glob patterns (doublestar syntax, ** allowed)
	// selecting files to remove.
	Patterns []string `toml:"patterns"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Control: ControlConfig{
			Enabled:              true,
			ShutdownGraceSeconds: 10,
		},
		Notify: NotifyConfig{
			URL:            "",
			TimeoutSeconds: 5,
		},
		Cleanup: CleanupConfig{
			OnShutdown: true,
			Root:       "",
			Patterns:   []string{"tmp/**", "*.tmp"},
		},
	}
}

// ///////////////////////////////////////////////
// Load / Save
// ///////////////////////////////////////////////

// Load reads the configuration from dataDir. A missing file returns defaults.
// Values present in the file override defaults; absent values keep them.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn, or error", c.Log.Level)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Control.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("control.shutdown_grace_seconds must be >= 0, got %d", c.Control.ShutdownGraceSeconds)
	}

	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify.timeout_seconds must be > 0, got %d", c.Notify.TimeoutSeconds)
	}

	for _, p := range c.Cleanup.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid cleanup pattern %q", p)
		}
	}

	return nil
}
