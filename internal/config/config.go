// Package config handles Talon configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for Talon.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// GlobalConfig contains global Talon settings.
type GlobalConfig struct {
	// DataDir is where Talon stores its data (default: ~/.local/share/talon).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/talon).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// ServerConfig contains event-queue connection settings.
type ServerConfig struct {
	// URL is the default server to connect to.
	URL string `yaml:"url" mapstructure:"url"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`

	// PingInterval is the keep-alive ping cadence.
	PingInterval time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`

	// MaxReconnectBackoff caps the reconnect backoff.
	MaxReconnectBackoff time.Duration `yaml:"max_reconnect_backoff" mapstructure:"max_reconnect_backoff"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "talon"),
			ConfigDir: filepath.Join(homeDir, ".config", "talon"),
		},
		Server: ServerConfig{
			HandshakeTimeout:    15 * time.Second,
			PingInterval:        25 * time.Second,
			MaxReconnectBackoff: 2 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir, ".local", "share", "talon", "talon.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
		filepath.Dir(c.Database.Path),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	return nil
}
