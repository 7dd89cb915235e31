// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/mailbridge/lib/compress"
)

// EnvPrefix prefixes every environment variable the package reads.
const EnvPrefix = "MAILBRIDGE_"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs and tests.
	Development Environment = "development"
	// Production is for long-running deployments.
	Production Environment = "production"
)

// Config is the master configuration for mailbridge.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment" env:"ENVIRONMENT"`

	// Store configures the SQLite mail engine.
	Store StoreConfig `yaml:"store" envPrefix:"STORE_"`

	// Watch configures live queries and list paging.
	Watch WatchConfig `yaml:"watch" envPrefix:"WATCH_"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log" envPrefix:"LOG_"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds per-environment replacements. Unset fields keep the
// base value.
type Overrides struct {
	Store *StoreConfig `yaml:"store,omitempty"`
	Watch *WatchConfig `yaml:"watch,omitempty"`
	Log   *LogConfig   `yaml:"log,omitempty"`
}

// StoreConfig configures the database.
type StoreConfig struct {
	// Path is the database file. ${HOME} and ${VAR:-default} expand.
	Path string `yaml:"path" env:"PATH"`

	// PoolSize is the connection pool size.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`

	// BusyTimeout bounds waits for the write lock.
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`

	// Compression is none, lz4, zstd, or auto (choose per content type).
	Compression compress.Algorithm `yaml:"compression" env:"COMPRESSION"`
}

// WatchConfig configures the live-query layer.
type WatchConfig struct {
	// PageSize is the number of items per list page.
	PageSize int `yaml:"page_size" env:"PAGE_SIZE"`

	// External enables cross-process change detection on the database
	// file.
	External bool `yaml:"external" env:"EXTERNAL"`

	// Debounce is how long external change detection waits for file
	// events to settle.
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level slog.Level `yaml:"level" env:"LEVEL"`

	// Format is text, json, or auto (text on a terminal, json
	// otherwise).
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the development configuration used as the base
// before the file is applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Path:        filepath.Join("${HOME}", ".local", "share", "mailbridge", "mail.db"),
			PoolSize:    4,
			BusyTimeout: 5 * time.Second,
			Compression: compress.Auto,
		},
		Watch: WatchConfig{
			PageSize: 25,
			External: false,
			Debounce: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: "auto",
		},
	}
}

// Load loads the file named by MAILBRIDGE_CONFIG. There is no fallback:
// if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "CONFIG")
	if path == "" {
		return nil, fmt.Errorf("MAILBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your mailbridge.yaml, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies the environment
// section, then MAILBRIDGE_* overrides, then variable expansion. The
// result is validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so one decoder handles both once
		// comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			// Production defaults: quieter logs, machine-readable.
			overrides = &Overrides{Log: &LogConfig{Level: slog.LevelWarn, Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if store := overrides.Store; store != nil {
		if store.Path != "" {
			c.Store.Path = store.Path
		}
		if store.PoolSize != 0 {
			c.Store.PoolSize = store.PoolSize
		}
		if store.BusyTimeout != 0 {
			c.Store.BusyTimeout = store.BusyTimeout
		}
		if store.Compression != compress.None {
			c.Store.Compression = store.Compression
		}
	}
	if watch := overrides.Watch; watch != nil {
		if watch.PageSize != 0 {
			c.Watch.PageSize = watch.PageSize
		}
		// External is a bool, so an override section always sets it.
		c.Watch.External = watch.External
		if watch.Debounce != 0 {
			c.Watch.Debounce = watch.Debounce
		}
	}
	if log := overrides.Log; log != nil {
		c.Log.Level = log.Level
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

func (c *Config) expandVariables() {
	c.Store.Path = expandVars(c.Store.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("store.pool_size must be at least 1, got %d", c.Store.PoolSize))
	}
	if c.Watch.External && c.Store.PoolSize < 2 {
		errs = append(errs, errors.New("watch.external holds a connection; store.pool_size must be at least 2"))
	}
	if c.Store.BusyTimeout < 0 {
		errs = append(errs, errors.New("store.busy_timeout must not be negative"))
	}
	if c.Watch.PageSize < 1 {
		errs = append(errs, fmt.Errorf("watch.page_size must be at least 1, got %d", c.Watch.PageSize))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the database directory.
func (c *Config) EnsurePaths() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
