// Package config loads the daemon configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/intentlabs/transformd/shared/keyring"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Socket is an optional unix socket path; it takes precedence over
	// Addr when set.
	Socket string `yaml:"socket"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type ProviderConfig struct {
	// Kind is "anthropic", "openai" or "deepseek".
	Kind    string        `yaml:"kind"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"-"` // environment only, never from file
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// History is how many recent exchanges accompany question phrasing.
	History int `yaml:"history"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8420"},
		Store:  StoreConfig{Driver: "sqlite", Path: defaultStorePath()},
		Provider: ProviderConfig{
			Kind:    "anthropic",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
			History:       6,
		},
	}
}

func defaultStorePath() string {
	path, err := xdg.DataFile("transformd/sessions.db")
	if err != nil {
		return "transformd.db"
	}
	return path
}

// Load reads configuration from path, falling back to the XDG config
// location and then to defaults when no file exists. Environment
// variables override file values; the API key falls back to the OS
// keyring when the environment does not carry it.
func Load(fs afero.Fs, path string, secrets keyring.Provider) (*Config, error) {
	cfg := Default()

	if path == "" {
		if found, err := xdg.SearchConfigFile("transformd/config.yaml"); err == nil {
			path = found
		}
	}

	if path != "" {
		content, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Provider.APIKey == "" && secrets != nil {
		if key, err := secrets.Get(cfg.Provider.Kind + "_api_key"); err == nil {
			cfg.Provider.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TRANSFORMD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TRANSFORMD_SOCKET"); v != "" {
		cfg.Server.Socket = v
	}
	if v := os.Getenv("TRANSFORMD_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TRANSFORMD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TRANSFORMD_PROVIDER"); v != "" {
		cfg.Provider.Kind = v
	}
	if v := os.Getenv("TRANSFORMD_MODEL"); v != "" {
		cfg.Provider.Model = v
	}

	switch cfg.Provider.Kind {
	case "openai":
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	case "deepseek":
		cfg.Provider.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	default:
		cfg.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Provider.Kind {
	case "anthropic", "openai", "deepseek":
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Session.History <= 0 {
		c.Session.History = 6
	}
	return nil
}
