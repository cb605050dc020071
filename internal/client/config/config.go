// Package config loads the client settings from ~/.komun.yml, a .env file
// and KOMUN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"komun/internal/client/api"
)

// Data sources.
const (
	SourceRemote  = "remote"
	SourceFixture = "fixture"
)

const (
	DefaultPollInterval = 5 * time.Second
	configFileName      = ".komun.yml"
)

// Config is the persisted client configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url,omitempty"`
	DataSource     string        `yaml:"data_source,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	VaultPath      string        `yaml:"vault_path,omitempty"`
	SentryDSN      string        `yaml:"sentry_dsn,omitempty"`
	Verbose        bool          `yaml:"verbose,omitempty"`
}

// Keys lists the settable keys in display order.
var Keys = []string{"base_url", "data_source", "poll_interval", "request_timeout", "vault_path", "sentry_dsn", "verbose"}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:        api.DefaultBaseURL,
		DataSource:     SourceRemote,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: api.DefaultTimeout,
	}
}

// GetConfigPath returns the path of the YAML config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// DefaultVaultPath returns where the credential database lives unless
// vault_path is set.
func DefaultVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".komun", "vault.db"), nil
}

// LoadConfig reads the config file, then applies .env and KOMUN_*
// overrides. A missing file yields the defaults.
func LoadConfig() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	// A missing .env is normal.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile() (*Config, error) {
	cfg := Default()
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to the config file.
func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SetAndSave sets key in the file config, without env overrides, and writes
// it back.
func SetAndSave(key, value string) (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	if err := cfg.Set(key, value); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, SaveConfig(cfg)
}

func (c *Config) applyEnv() error {
	for _, key := range Keys {
		value, ok := os.LookupEnv("KOMUN_" + strings.ToUpper(key))
		if !ok || value == "" {
			continue
		}
		if err := c.Set(key, value); err != nil {
			return fmt.Errorf("KOMUN_%s: %w", strings.ToUpper(key), err)
		}
	}
	return nil
}

// Set assigns one key from its string form.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(value, "/")
	case "data_source":
		c.DataSource = strings.ToLower(value)
	case "poll_interval", "request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		if key == "poll_interval" {
			c.PollInterval = d
		} else {
			c.RequestTimeout = d
		}
	case "vault_path":
		c.VaultPath = value
	case "sentry_dsn":
		c.SentryDSN = value
	case "verbose":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		c.Verbose = b
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "base_url":
		return c.BaseURL, nil
	case "data_source":
		return c.DataSource, nil
	case "poll_interval":
		return c.PollInterval.String(), nil
	case "request_timeout":
		return c.RequestTimeout.String(), nil
	case "vault_path":
		return c.VaultPath, nil
	case "sentry_dsn":
		return c.SentryDSN, nil
	case "verbose":
		return strconv.FormatBool(c.Verbose), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.DataSource != SourceRemote && c.DataSource != SourceFixture {
		return fmt.Errorf("data_source must be %q or %q, got %q", SourceRemote, SourceFixture, c.DataSource)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}
