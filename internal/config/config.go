// Package config loads and validates the nodeflow TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultDir is the per-workspace directory holding the database, snapshot and config.
const DefaultDir = ".nodeflow"

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General General `toml:"general"`
	API     API     `toml:"api"`
	MCP     MCP     `toml:"mcp"`
}

type General struct {
	DBPath       string `toml:"db_path"`
	SnapshotPath string `toml:"snapshot_path"`
	AutoSnapshot *bool  `toml:"auto_snapshot"` // default true
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"` // "text" or "json"
}

type API struct {
	Bind            string   `toml:"bind"`
	ReadTimeout     Duration `toml:"read_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type MCP struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// AutoSnapshotEnabled reports whether writes should refresh the JSONL snapshot.
func (g General) AutoSnapshotEnabled() bool {
	return g.AutoSnapshot == nil || *g.AutoSnapshot
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads and validates a nodeflow TOML configuration file. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.DBPath == "" {
		cfg.General.DBPath = filepath.Join(DefaultDir, "nodeflow.db")
	}
	if cfg.General.SnapshotPath == "" {
		cfg.General.SnapshotPath = filepath.Join(DefaultDir, "nodeflow.jsonl")
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "text"
	}
	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8900"
	}
	if cfg.API.ReadTimeout.Duration == 0 {
		cfg.API.ReadTimeout.Duration = 10 * time.Second
	}
	if cfg.API.ShutdownTimeout.Duration == 0 {
		cfg.API.ShutdownTimeout.Duration = 5 * time.Second
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = "nodeflow"
	}
	if cfg.MCP.Version == "" {
		cfg.MCP.Version = "0.1.0"
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.General.LogLevel)
	}

	switch strings.ToLower(cfg.General.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want text or json)", cfg.General.LogFormat)
	}

	if cfg.API.ReadTimeout.Duration < 0 {
		return fmt.Errorf("api.read_timeout must not be negative")
	}
	if cfg.API.ShutdownTimeout.Duration < 0 {
		return fmt.Errorf("api.shutdown_timeout must not be negative")
	}

	if filepath.Clean(cfg.General.DBPath) == filepath.Clean(cfg.General.SnapshotPath) {
		return fmt.Errorf("db_path and snapshot_path must differ")
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
