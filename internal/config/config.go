// Package config loads farmsim server settings from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreSlot   = "slot"
)

// Config holds the server settings.
type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	ContentPath string `yaml:"content_path"` // empty uses the built-in content
	Store       string `yaml:"store"`
	Slot        string `yaml:"slot"`
	AppName     string `yaml:"app_name"`
	Seed        int64  `yaml:"seed"`
	Speed       int    `yaml:"speed"`

	RateLimit      int `yaml:"rate_limit"` // admin requests per minute
	MaxStreamConns int `yaml:"max_stream_conns"`

	// Secrets come from the environment only.
	AdminKey string `yaml:"-"`
	RelayKey string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:           8080,
		DBPath:         "data/homestead.db",
		Store:          StoreSQLite,
		Slot:           "main",
		AppName:        "homestead",
		Seed:           42,
		Speed:          1,
		RateLimit:      30,
		MaxStreamConns: 2,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FARMSIM_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FARMSIM_PORT: %w", err)
		}
		c.Port = n
	}
	if v := getenv("FARMSIM_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("FARMSIM_CONTENT"); v != "" {
		c.ContentPath = v
	}
	if v := getenv("FARMSIM_STORE"); v != "" {
		c.Store = v
	}
	if v := getenv("FARMSIM_SLOT"); v != "" {
		c.Slot = v
	}
	if v := getenv("FARMSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FARMSIM_SEED: %w", err)
		}
		c.Seed = n
	}
	if v := getenv("FARMSIM_SPEED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FARMSIM_SPEED: %w", err)
		}
		c.Speed = n
	}
	c.AdminKey = getenv("FARMSIM_ADMIN_KEY")
	c.RelayKey = getenv("FARMSIM_RELAY_KEY")
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite store"))
		}
	case StoreSlot:
		if c.Slot == "" || c.AppName == "" {
			errs = append(errs, errors.New("slot and app_name are required for the slot store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Speed < 0 || c.Speed > 1000 {
		errs = append(errs, fmt.Errorf("speed %d out of range 0-1000", c.Speed))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("rate_limit must be positive"))
	}
	if c.MaxStreamConns <= 0 {
		errs = append(errs, errors.New("max_stream_conns must be positive"))
	}
	return errors.Join(errs...)
}
