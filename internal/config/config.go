package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the main configuration structure. Every field can come from a
// YAML file, the environment, or both; the Mailchimp credentials are
// normally environment-only.
type Config struct {
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	HTTP      HTTPConfig      `yaml:"http"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MailchimpConfig contains upstream API settings
type MailchimpConfig struct {
	APIKey       string        `yaml:"api_key" env:"MAILCHIMP_API_KEY"`
	ServerPrefix string        `yaml:"server_prefix" env:"MAILCHIMP_SERVER_PREFIX"`
	ListID       string        `yaml:"list_id" env:"MAILCHIMP_LIST_ID"`
	BaseURL      string        `yaml:"base_url" env:"MAILCHIMP_BASE_URL"` // override, mainly for tests
	Timeout      time.Duration `yaml:"timeout"`
}

// HTTPConfig contains dashboard API server settings
type HTTPConfig struct {
	ListenAddr   string        `yaml:"listen_addr" env:"MAILBOARD_LISTEN_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// FetchConfig contains aggregation fetch limits
type FetchConfig struct {
	Concurrency   int `yaml:"concurrency"`    // parallel report fetches for the overview
	CampaignCount int `yaml:"campaign_count"` // 0 = all
	ActivityCount int `yaml:"activity_count"` // 0 = all
	MemberCount   int `yaml:"member_count"`   // 0 = all
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" env:"MAILBOARD_METRICS_ENABLED"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MAILBOARD_LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"MAILBOARD_LOG_FORMAT"` // json, text
}

// Load reads configuration from an optional YAML file plus the process
// environment. A local .env file is merged into the environment first, the
// way the dashboard has always been configured. Missing credentials fail
// here, at startup, not as silent 401s later.
func Load(path string) (*Config, error) {
	// Ignore a missing .env; it is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in defaults without touching the environment
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Mailchimp.ServerPrefix == "" {
		c.Mailchimp.ServerPrefix = "us6"
	}
	if c.Mailchimp.Timeout == 0 {
		c.Mailchimp.Timeout = 30 * time.Second
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 30 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}

	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = 5
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mailchimp.APIKey == "" {
		return fmt.Errorf("MAILCHIMP_API_KEY is required (set it in the environment or a .env file)")
	}
	if c.Mailchimp.ServerPrefix == "" && c.Mailchimp.BaseURL == "" {
		return fmt.Errorf("MAILCHIMP_SERVER_PREFIX is required")
	}

	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// UpstreamBaseURL resolves the effective Marketing API base URL
func (c *Config) UpstreamBaseURL() string {
	if c.Mailchimp.BaseURL != "" {
		return c.Mailchimp.BaseURL
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.Mailchimp.ServerPrefix)
}
