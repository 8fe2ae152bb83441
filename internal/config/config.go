// Package config provides configuration loading and validation for the CLI
// and the rate worker.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, environment
// variables or CLI flags.
type Config struct {
	// Storage
	Store       string `json:"store,omitempty" validate:"omitempty,oneof=memory bolt redis postgres"` // Settings store backend
	BoltPath    string `json:"bolt_path,omitempty"`                                                  // BoltDB file for the bolt backend
	RedisAddr   string `json:"redis_addr,omitempty" validate:"omitempty,hostname_port"`              // Redis address for the redis backend
	DatabaseURL string `json:"database_url,omitempty"`                                               // PostgreSQL connection URL

	// Rates
	RatesURL  string `json:"rates_url,omitempty" validate:"omitempty,url"`  // Upstream rate provider
	WorkerURL string `json:"worker_url,omitempty" validate:"omitempty,url"` // Remote rate worker; empty serves rates in process

	// Annotation
	Locale      string   `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"` // Locale for formatted amounts
	Concurrency int      `json:"concurrency,omitempty" validate:"gte=0,lte=256"`          // Candidates waiting for rates at once
	Selectors   []string `json:"selectors,omitempty"`                                     // Price container selectors

	// Server
	Port int `json:"port,omitempty" validate:"gte=0,lte=65535"` // Rate worker port

	// Behavior
	UseBrowser bool `json:"use_browser,omitempty"` // Render pages in a headless browser
	Verbose    bool `json:"verbose,omitempty"`     // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Store:    StoreBolt,
		BoltPath: "ccx.db",
		Locale:   "en",
		Port:     8080,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %s", validationMessage(err))
	}

	switch c.Store {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("config error: 'bolt_path' is required for the bolt store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	}
	return nil
}

func validationMessage(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("'%s' failed '%s'", ve.Field(), ve.Tag())
	}
	return err.Error()
}

// ApplyEnv overrides fields from CCX_STORE, CCX_BOLT_PATH, REDIS_ADDR,
// DATABASE_URL, CCX_RATES_URL, CCX_WORKER_URL, CCX_LOCALE, CCX_CONCURRENCY,
// CCX_PORT and CCX_VERBOSE when they are set.
func (c *Config) ApplyEnv() {
	c.Store = EnvString("CCX_STORE", c.Store)
	c.BoltPath = EnvString("CCX_BOLT_PATH", c.BoltPath)
	c.RedisAddr = EnvString("REDIS_ADDR", c.RedisAddr)
	c.DatabaseURL = EnvString("DATABASE_URL", c.DatabaseURL)
	c.RatesURL = EnvString("CCX_RATES_URL", c.RatesURL)
	c.WorkerURL = EnvString("CCX_WORKER_URL", c.WorkerURL)
	c.Locale = EnvString("CCX_LOCALE", c.Locale)
	c.Concurrency = EnvInt("CCX_CONCURRENCY", c.Concurrency)
	c.Port = EnvInt("CCX_PORT", c.Port)
	c.Verbose = EnvBool("CCX_VERBOSE", c.Verbose)
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.BoltPath == "" {
		result.BoltPath = defaults.BoltPath
	}
	if result.RedisAddr == "" {
		result.RedisAddr = defaults.RedisAddr
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RatesURL == "" {
		result.RatesURL = defaults.RatesURL
	}
	if result.WorkerURL == "" {
		result.WorkerURL = defaults.WorkerURL
	}
	if result.Locale == "" {
		result.Locale = defaults.Locale
	}
	if len(result.Selectors) == 0 {
		result.Selectors = defaults.Selectors
	}

	// Int fields: use default if zero
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Load reads the optional config file at path, applies environment
// overrides, fills defaults and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = *loaded
	}
	cfg.ApplyEnv()
	cfg = cfg.MergeWithDefaults(Defaults())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
