// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
)

// Config is the root configuration structure.
type Config struct {
	Log       LogConfig             `toml:"log"`
	Transport TransportConfig       `toml:"transport"`
	Store     StoreConfig           `toml:"store"`
	Server    ServerConfig          `toml:"server"`
	Sites     map[string]SiteConfig `toml:"sites"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
	// File, when set, receives the log through a rotating writer.
	File       string `toml:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb,omitempty"`
	MaxBackups int    `toml:"max_backups,omitempty"`
	MaxAgeDays int    `toml:"max_age_days,omitempty"`
}

type TransportConfig struct {
	Timeout     time.Duration `toml:"timeout"`
	Attempts    uint          `toml:"attempts"`
	RetryDelay  time.Duration `toml:"retry_delay"`
	RatePerHost float64       `toml:"rate_per_host"`
	Burst       int           `toml:"burst,omitempty"`
	UserAgent   string        `toml:"user_agent,omitempty"`
}

type StoreConfig struct {
	Path     string        `toml:"path"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

type ServerConfig struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key,omitempty"`
}

type SiteConfig struct {
	Enabled      *bool  `toml:"enabled,omitempty"`
	URL          string `toml:"url,omitempty"`
	Username     string `toml:"username,omitempty"`
	Password     string `toml:"password,omitempty"`
	StripRussian bool   `toml:"strip_russian,omitempty"`
	MaxItems     int    `toml:"max_items,omitempty"`
	Concurrency  int    `toml:"concurrency,omitempty"`
	// Selectors is a YAML file overriding the adapter's shipped selectors.
	Selectors string `toml:"selectors,omitempty"`
}

// IsEnabled reports whether the site should be used. Listed sites are
// enabled unless they say otherwise.
func (s SiteConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Settings converts the site section into session settings.
func (s SiteConfig) Settings() session.Settings {
	return session.Settings{
		URL:          s.URL,
		Username:     s.Username,
		Password:     s.Password,
		StripRussian: s.StripRussian,
	}
}

// Options converts the transport section into client options.
func (t TransportConfig) Options() transport.Options {
	return transport.Options{
		Timeout:     t.Timeout,
		Attempts:    t.Attempts,
		RetryDelay:  t.RetryDelay,
		RatePerHost: t.RatePerHost,
		Burst:       t.Burst,
		UserAgent:   t.UserAgent,
	}
}

// Load reads, substitutes, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and applies
// defaults. Unresolved environment variables are still an error.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// A .env beside the config fills variables the environment does not set.
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB == 0 {
			c.Log.MaxSizeMB = 20
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = 3
		}
		if c.Log.MaxAgeDays == 0 {
			c.Log.MaxAgeDays = 14
		}
	}

	def := transport.DefaultOptions()
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = def.Timeout
	}
	if c.Transport.Attempts == 0 {
		c.Transport.Attempts = def.Attempts
	}
	if c.Transport.RetryDelay == 0 {
		c.Transport.RetryDelay = def.RetryDelay
	}
	if c.Transport.RatePerHost == 0 {
		c.Transport.RatePerHost = def.RatePerHost
	}

	if c.Store.Path == "" {
		c.Store.Path = "./data/scrapearr.db"
	}
	if c.Store.CacheTTL == 0 {
		c.Store.CacheTTL = 30 * time.Minute
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9117
	}
}
