// Package main provides the LogWarden server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	BruteForce BruteForceConfig `yaml:"bruteforce"`
	Storage    StorageConfig    `yaml:"storage"`
	Evidence   EvidenceConfig   `yaml:"evidence"`
	Notify     NotifyConfig     `yaml:"notify"`
	Rules      RulesConfig      `yaml:"rules"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address    string    `yaml:"address"`      // HTTP listen address (default: :8080)
	APIKey     string    `yaml:"api_key"`      // plaintext x-api-key value
	APIKeyHash string    `yaml:"api_key_hash"` // bcrypt hash, takes precedence over api_key
	TLS        TLSConfig `yaml:"tls"`          // TLS configuration
}

// TLSConfig contains TLS settings for the server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`   // Enable TLS
	CertFile string `yaml:"cert_file"` // Server certificate file
	KeyFile  string `yaml:"key_file"`  // Server private key file
}

// IngestConfig contains webhook pipeline settings.
type IngestConfig struct {
	MaxBody            int64   `yaml:"max_body"`              // request body cap in bytes (default: 1 MiB)
	ExcerptMax         int     `yaml:"excerpt_max"`           // stored excerpt length in characters (default: 800)
	StrictPersistence  bool    `yaml:"strict_persistence"`    // escalate incident store failures to 500
	RateLimitPerSource float64 `yaml:"rate_limit_per_source"` // requests/sec per source, 0 disables
	RateLimitBurst     int     `yaml:"rate_limit_burst"`      // limiter burst (default: 10)
}

// BruteForceConfig contains attempt counter settings.
type BruteForceConfig struct {
	Threshold int64         `yaml:"threshold"` // attempts per window (default: 3)
	Window    time.Duration `yaml:"window"`    // counting window (default: 5m)
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	SQLitePath string           `yaml:"sqlite_path"` // incident database path (default: logwarden.db)
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`  // optional event archive
}

// ClickHouseConfig contains event archive settings.
type ClickHouseConfig struct {
	Enabled       bool     `yaml:"enabled"`        // Enable the event archive
	Addresses     []string `yaml:"addresses"`      // host:port list
	Database      string   `yaml:"database"`       // database name
	Username      string   `yaml:"username"`       // auth username
	Password      string   `yaml:"password"`       // auth password
	Compression   bool     `yaml:"compression"`    // LZ4 transport compression
	RetentionDays int      `yaml:"retention_days"` // event TTL in days (default: 30)
}

// EvidenceConfig contains raw payload archiving settings.
type EvidenceConfig struct {
	Enabled   *bool         `yaml:"enabled"`    // default: true
	Dir       string        `yaml:"dir"`        // blob root directory (default: evidence)
	Bucket    string        `yaml:"bucket"`     // bucket name (default: evidence)
	URLMode   string        `yaml:"url_mode"`   // "signed" or "public" (default: signed)
	BaseURL   string        `yaml:"base_url"`   // external base URL used in locators
	SignedTTL time.Duration `yaml:"signed_ttl"` // signed token lifetime (default: 15m)
	Secret    string        `yaml:"secret"`     // token signing secret (signed mode)
}

// IsEnabled reports whether evidence archiving is on. Unset means on.
func (c *EvidenceConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// NotifyConfig contains notification settings.
type NotifyConfig struct {
	Enabled bool              `yaml:"enabled"` // Enable notifications
	Rate    NotifyRateConfig  `yaml:"rate"`    // dispatch rate limit
	Email   NotifyEmailConfig `yaml:"email"`   // SMTP sink
	Webhook WebhookConfig     `yaml:"webhook"` // webhook sink
}

// NotifyRateConfig caps notification volume.
type NotifyRateConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"` // sends per window (default: 10)
	Window       time.Duration `yaml:"window"`         // window width (default: 1m)
}

// NotifyEmailConfig contains SMTP sink settings.
type NotifyEmailConfig struct {
	Host       string   `yaml:"host"`       // SMTP server host
	Port       int      `yaml:"port"`       // SMTP server port
	Username   string   `yaml:"username"`   // SMTP username (optional)
	Password   string   `yaml:"password"`   // SMTP password (optional)
	From       string   `yaml:"from"`       // From address
	Recipients []string `yaml:"recipients"` // recipient addresses
}

// WebhookConfig contains webhook sink settings.
type WebhookConfig struct {
	URL string `yaml:"url"` // webhook endpoint URL (HTTPS)
}

// RulesConfig contains detection rule settings.
type RulesConfig struct {
	File  string `yaml:"file"`  // custom rules YAML merged over built-ins (optional)
	Watch bool   `yaml:"watch"` // hot-reload the file on change
}

// MetricsConfig contains the Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable the metrics listener
	Address string `yaml:"address"` // metrics listen address (default: :9090)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values and
// environment overrides applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Ingest.MaxBody <= 0 {
		c.Ingest.MaxBody = 1 << 20
	}
	if c.Ingest.ExcerptMax <= 0 {
		c.Ingest.ExcerptMax = 800
	}
	if c.Ingest.RateLimitBurst <= 0 {
		c.Ingest.RateLimitBurst = 10
	}
	if c.BruteForce.Threshold <= 0 {
		c.BruteForce.Threshold = 3
	}
	if c.BruteForce.Window <= 0 {
		c.BruteForce.Window = 5 * time.Minute
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "logwarden.db"
	}
	if c.Storage.ClickHouse.RetentionDays <= 0 {
		c.Storage.ClickHouse.RetentionDays = 30
	}
	if c.Evidence.Dir == "" {
		c.Evidence.Dir = "evidence"
	}
	if c.Evidence.Bucket == "" {
		c.Evidence.Bucket = "evidence"
	}
	if c.Evidence.URLMode == "" {
		c.Evidence.URLMode = "signed"
	}
	if c.Evidence.SignedTTL <= 0 {
		c.Evidence.SignedTTL = 15 * time.Minute
	}
	if c.Notify.Rate.MaxPerWindow <= 0 {
		c.Notify.Rate.MaxPerWindow = 10
	}
	if c.Notify.Rate.Window <= 0 {
		c.Notify.Rate.Window = time.Minute
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

// applyEnvOverrides pulls secrets from the environment. Environment
// values win over the file so secrets can stay out of it.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOGWARDEN_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("LOGWARDEN_EVIDENCE_SECRET"); v != "" {
		c.Evidence.Secret = v
	}
	if v := os.Getenv("LOGWARDEN_SMTP_PASSWORD"); v != "" {
		c.Notify.Email.Password = v
	}
	if v := os.Getenv("LOGWARDEN_CLICKHOUSE_PASSWORD"); v != "" {
		c.Storage.ClickHouse.Password = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Ingest.RateLimitPerSource < 0 {
		return fmt.Errorf("ingest.rate_limit_per_source must not be negative")
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required")
	}
	if c.Storage.ClickHouse.Enabled {
		if len(c.Storage.ClickHouse.Addresses) == 0 {
			return fmt.Errorf("storage.clickhouse.addresses is required when the archive is enabled")
		}
		if c.Storage.ClickHouse.Database == "" {
			return fmt.Errorf("storage.clickhouse.database is required when the archive is enabled")
		}
	}
	if c.Evidence.IsEnabled() {
		switch c.Evidence.URLMode {
		case "signed", "public":
		default:
			return fmt.Errorf("evidence.url_mode must be %q or %q", "signed", "public")
		}
	}
	if c.Notify.Enabled {
		if c.Notify.Email.Host == "" && c.Notify.Webhook.URL == "" {
			return fmt.Errorf("notify requires an email host or a webhook url when enabled")
		}
	}
	if c.Rules.Watch && c.Rules.File == "" {
		return fmt.Errorf("rules.watch requires rules.file")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	return nil
}
