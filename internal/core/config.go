package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "coverchat"
	configFileName = "config.yaml"

	DefaultAPIURL         = "http://localhost:5000"
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultHistoryLimit   = 100
)

// Config holds client settings. Zero values are filled from defaults.
type Config struct {
	APIURL         string        `yaml:"api_url"`
	HistoryEnabled bool          `yaml:"history"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	HistoryLimit   int           `yaml:"history_limit"`
	LogLevel       string        `yaml:"log_level"`
	Notify         bool          `yaml:"notify"`

	// DataDir is where session, cache and logs live. Not persisted.
	DataDir string `yaml:"-"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		HistoryEnabled: true,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		HistoryLimit:   DefaultHistoryLimit,
		LogLevel:       "info",
	}
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// LoadConfig layers defaults, the YAML file in dataDir, a .env file in the
// working directory and COVERCHAT_* environment variables.
func LoadConfig(dataDir string) (*Config, error) {
	cfg, err := LoadConfigFile(dataDir)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadConfigFile reads only defaults and the YAML file, for editing it
// without baking environment overrides into the saved copy.
func LoadConfigFile(dataDir string) (*Config, error) {
	if dataDir == "" {
		if env := os.Getenv("COVERCHAT_DATA_DIR"); env != "" {
			dataDir = env
		} else {
			def, err := DefaultDataDir()
			if err != nil {
				return nil, err
			}
			dataDir = def
		}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(ConfigPath(dataDir))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configFileName, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", configFileName, err)
	}
	cfg.DataDir = dataDir
	cfg.fillDefaults()
	return &cfg, nil
}

// Set assigns a persisted setting by its YAML key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_url":
		c.APIURL = strings.TrimSpace(value)
	case "log_level":
		c.LogLevel = value
	case "history", "notify":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "history" {
			c.HistoryEnabled = enabled
		} else {
			c.Notify = enabled
		}
	case "poll_interval", "request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "poll_interval" {
			c.PollInterval = d
		} else {
			c.RequestTimeout = d
		}
	case "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.HistoryLimit = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// SaveConfig writes the persisted fields of cfg to its data dir.
func SaveConfig(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("config has no data dir")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(cfg.DataDir), data, 0o600)
}

// Validate checks settings that would make the client misbehave.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api url cannot be empty")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("COVERCHAT_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("COVERCHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("COVERCHAT_HISTORY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COVERCHAT_HISTORY: %w", err)
		}
		c.HistoryEnabled = enabled
	}
	if v := os.Getenv("COVERCHAT_NOTIFY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COVERCHAT_NOTIFY: %w", err)
		}
		c.Notify = enabled
	}
	if v := os.Getenv("COVERCHAT_POLL_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COVERCHAT_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = interval
	}
	return nil
}
