// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

const (
	appName = "singletask"

	// EnvUnsplashAPIKey overrides unsplash.api_key when set
	EnvUnsplashAPIKey = "SINGLETASK_UNSPLASH_API_KEY"

	EnvDev  = "dev"
	EnvProd = "prod"

	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"

	defaultFreshWindow = 15 * time.Minute
	defaultHTTPTimeout = 30 * time.Second
)

// Config represents the application configuration
type Config struct {
	Env      string         `yaml:"env"`
	Todoist  TodoistConfig  `yaml:"todoist"`
	Unsplash UnsplashConfig `yaml:"unsplash"`
	Cache    CacheConfig    `yaml:"cache"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TodoistConfig holds task API settings
type TodoistConfig struct {
	BaseURL string `yaml:"base_url"`
}

// UnsplashConfig holds image API settings
type UnsplashConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// CacheConfig holds task cache settings
type CacheConfig struct {
	Backend     string `yaml:"backend"`      // sqlite or memory
	Path        string `yaml:"path"`         // sqlite database file
	FreshWindow string `yaml:"fresh_window"` // e.g. "15m"
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	Timeout string `yaml:"timeout"` // e.g. "30s"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvDev
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendSQLite
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(GetDataDir(), "cache.db")
	}
	if c.Cache.FreshWindow == "" {
		c.Cache.FreshWindow = defaultFreshWindow.String()
	}
	if c.HTTP.Timeout == "" {
		c.HTTP.Timeout = defaultHTTPTimeout.String()
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it is created from the sample config.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)
	if key := os.Getenv(EnvUnsplashAPIKey); key != "" {
		cfg.Unsplash.APIKey = key
	}
	return cfg, nil
}

func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Env != EnvDev && c.Env != EnvProd {
		return fmt.Errorf("invalid env: %q (must be 'dev' or 'prod')", c.Env)
	}

	if c.Cache.Backend != CacheBackendSQLite && c.Cache.Backend != CacheBackendMemory {
		return fmt.Errorf("invalid cache.backend: %q (must be 'sqlite' or 'memory')", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheBackendSQLite && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required for the sqlite cache backend")
	}

	window, err := time.ParseDuration(c.Cache.FreshWindow)
	if err != nil {
		return fmt.Errorf("invalid duration for cache.fresh_window: %q", c.Cache.FreshWindow)
	}
	if window <= 0 {
		return fmt.Errorf("cache.fresh_window must be positive, got %q", c.Cache.FreshWindow)
	}

	timeout, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return fmt.Errorf("invalid duration for http.timeout: %q", c.HTTP.Timeout)
	}
	if timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %q", c.HTTP.Timeout)
	}

	return nil
}

// IsProduction reports whether live image requests are enabled
func (c *Config) IsProduction() bool {
	return c.Env == EnvProd
}

// GetFreshWindow returns the cache freshness window.
// Returns 15 minutes if not configured or if parsing fails.
func (c *Config) GetFreshWindow() time.Duration {
	d, err := time.ParseDuration(c.Cache.FreshWindow)
	if err != nil || d <= 0 {
		return defaultFreshWindow
	}
	return d
}

// GetHTTPTimeout returns the outbound HTTP timeout.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		return defaultHTTPTimeout
	}
	return d
}

// getXDGDir returns a directory path following the XDG base directory layout.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, appName)
	}
	return filepath.Join(home, fallbackPath, appName)
}

// GetConfigDir returns the configuration directory following the XDG base directory layout
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following the XDG base directory layout
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
