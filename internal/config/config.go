// Package config loads gqlswitch configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/gqlswitch/internal/logging"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	// DefaultURL is the endpoint used when nothing has been persisted yet.
	DefaultURL string `yaml:"default_url"`
	// Headers are sent with every request to the current endpoint.
	Headers map[string]string `yaml:"headers"`

	Store   StoreConfig    `yaml:"store"`
	History HistoryConfig  `yaml:"history"`
	Request RequestConfig  `yaml:"request"`
	Schema  SchemaConfig   `yaml:"schema"`
	Log     logging.Config `yaml:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// HistoryConfig controls the endpoint history.
type HistoryConfig struct {
	// MaxEntries bounds the history; 0 keeps every entry.
	MaxEntries int `yaml:"max_entries"`
}

// RequestConfig controls the dispatcher.
type RequestConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SchemaConfig controls schema probing.
type SchemaConfig struct {
	AutoFetch bool `yaml:"auto_fetch"`
	CacheSize int  `yaml:"cache_size"`
}

// DataDir is the default directory for state and logs.
const DataDir = "~/.gqlswitch"

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir, "config.yaml")
}

// Default returns the default configuration.
func Default() Config {
	log := logging.DefaultConfig()
	log.File = filepath.Join(DataDir, "gqlswitch.log")

	return Config{
		Headers: map[string]string{},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(DataDir, "state.db"),
		},
		Request: RequestConfig{Timeout: 30 * time.Second},
		Schema: SchemaConfig{
			AutoFetch: true,
			CacheSize: 32,
		},
		Log: log,
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error. Paths starting with ~ are expanded.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(ExpandHome(path))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.Store.Path = ExpandHome(cfg.Store.Path)
	cfg.Log.File = ExpandHome(cfg.Log.File)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative")
	}
	if c.Request.Timeout < 0 {
		return fmt.Errorf("request.timeout must not be negative")
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
