// Package config handles Versus configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for the sync engine.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Backend endpoint settings
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Chat settings
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`

	// Error aggregation thresholds
	Errors ErrorConfig `yaml:"errors" mapstructure:"errors"`

	// Health data sync settings
	Health HealthConfig `yaml:"health" mapstructure:"health"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where local state is stored (default: ~/.local/share/versus).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/versus).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains local state database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path (default: DataDir/state.db).
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// BackendConfig contains backend endpoint settings.
type BackendConfig struct {
	// URL is the backend project URL.
	URL string `yaml:"url" mapstructure:"url"`

	// AnonKey is the public API key used before sign-in.
	AnonKey string `yaml:"anon_key" mapstructure:"anon_key"`

	// RealtimeURL is the websocket endpoint for the change feed. Derived
	// from URL when empty.
	RealtimeURL string `yaml:"realtime_url" mapstructure:"realtime_url"`
}

// ChatConfig contains chat behavior settings.
type ChatConfig struct {
	// HistoryLimit bounds the bulk history fetch on conversation open.
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`

	// ReconcileWindow bounds optimistic/realtime message reconciliation.
	ReconcileWindow time.Duration `yaml:"reconcile_window" mapstructure:"reconcile_window"`
}

// ErrorConfig contains error aggregation thresholds.
type ErrorConfig struct {
	// ShowThreshold is the occurrence count before a failure surfaces.
	ShowThreshold int `yaml:"show_threshold" mapstructure:"show_threshold"`

	// MinInterval is the minimum time between surfaced failures per key.
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`

	// IdleExpiry removes idle tracking entries.
	IdleExpiry time.Duration `yaml:"idle_expiry" mapstructure:"idle_expiry"`
}

// HealthConfig contains health data sync settings.
type HealthConfig struct {
	// Enabled turns periodic distance syncing on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// SyncInterval is how often logged distance is pushed to the backend.
	SyncInterval time.Duration `yaml:"sync_interval" mapstructure:"sync_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "versus"),
			ConfigDir: filepath.Join(homeDir, ".config", "versus"),
		},
		Database: DatabaseConfig{
			Path: "", // Will be set to DataDir/state.db
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Backend: BackendConfig{},
		Chat: ChatConfig{
			HistoryLimit:    200,
			ReconcileWindow: 10 * time.Second,
		},
		Errors: ErrorConfig{
			ShowThreshold: 3,
			MinInterval:   30 * time.Second,
			IdleExpiry:    60 * time.Second,
		},
		Health: HealthConfig{
			Enabled:      false,
			SyncInterval: 15 * time.Minute,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.AnonKey == "" {
		return fmt.Errorf("backend.anon_key is required")
	}
	if c.Chat.HistoryLimit < 1 {
		return fmt.Errorf("chat.history_limit must be at least 1")
	}
	if c.Errors.ShowThreshold < 1 {
		return fmt.Errorf("errors.show_threshold must be at least 1")
	}
	if c.Health.Enabled && c.Health.SyncInterval < time.Minute {
		return fmt.Errorf("health.sync_interval must be at least 1m")
	}
	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full local state database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "state.db")
}

// RealtimeEndpoint returns the websocket endpoint for the change feed.
func (c *Config) RealtimeEndpoint() string {
	if c.Backend.RealtimeURL != "" {
		return c.Backend.RealtimeURL
	}
	url := c.Backend.URL
	if len(url) >= 5 && url[:5] == "https" {
		url = "wss" + url[5:]
	} else if len(url) >= 4 && url[:4] == "http" {
		url = "ws" + url[4:]
	}
	return url + "/realtime/v1/websocket"
}
