package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Backend     BackendConfig     `yaml:"backend"`
	Storage     StorageConfig     `yaml:"storage"`
	Overview    OverviewConfig    `yaml:"overview"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local dashboard server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig represents the gym backend connection configuration
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StorageConfig selects where the session is persisted
type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite", "redis" or "memory"
	Path     string `yaml:"path,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

// OverviewConfig bounds the gym floor snapshot resolution
type OverviewConfig struct {
	MaxWidth       int `yaml:"max_width"`
	MaxHeight      int `yaml:"max_height"`
	MinPercent     int `yaml:"min_percent"`
	DefaultPercent int `yaml:"default_percent"`
}

// SuggestionsConfig holds AI suggestion defaults
type SuggestionsConfig struct {
	DefaultPrompt string `yaml:"default_prompt"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Backend: BackendConfig{
			BaseURL:      "http://localhost:5000",
			Timeout:      15 * time.Second,
			PollInterval: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "gymdash.db",
		},
		Overview: OverviewConfig{
			MaxWidth:       1920,
			MaxHeight:      1080,
			MinPercent:     10,
			DefaultPercent: 50,
		},
		Suggestions: SuggestionsConfig{
			DefaultPrompt: "What equipment is currently available?",
		},
	}
}

// SearchPaths lists the locations Load tries, in order
var SearchPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/gymdash/config.yaml",
}

// Load loads configuration from the first readable file in paths.
// With no paths, SearchPaths is used.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = SearchPaths
	}

	var data []byte
	var err error
	var loadedPath string

	for _, path := range paths {
		data, err = os.ReadFile(path)
		if err == nil {
			loadedPath = path
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("GYM_API_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("GYMDASH_ADDR"); v != "" {
		if err := c.SetAddr(v); err != nil {
			return fmt.Errorf("GYMDASH_ADDR: %w", err)
		}
	}
	if v := os.Getenv("GYMDASH_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("GYMDASH_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	return nil
}

// SetAddr parses host:port into the server section
func (c *Config) SetAddr(addr string) error {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return fmt.Errorf("invalid address %q", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return fmt.Errorf("invalid port in %q", addr)
	}
	c.Server.Host = addr[:i]
	c.Server.Port = port
	return nil
}

// Validate checks the configuration for values the dashboard cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Backend.PollInterval <= 0 {
		errs = append(errs, errors.New("backend.poll_interval must be positive"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for redis"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	o := c.Overview
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		errs = append(errs, errors.New("overview max resolution must be positive"))
	}
	if o.MinPercent < 1 || o.MinPercent > 100 {
		errs = append(errs, errors.New("overview.min_percent must be within 1..100"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
