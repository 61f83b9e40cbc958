// Package config defines the top-level configuration for the market data
// gateway and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETGATE_* environment variables.
type Config struct {
	Upstream UpstreamConfig `toml:"upstream"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Poll     PollConfig     `toml:"poll"`
	Feed     FeedConfig     `toml:"feed"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// UpstreamConfig holds the builder-program API endpoints and credentials.
// Credentials may be given inline, or as a path to an encrypted file produced
// by the encrypt-creds helper. Leaving all credential fields empty is valid;
// the gateway then serves deterministic fallback data.
type UpstreamConfig struct {
	BaseURL string `toml:"base_url"`
	WsURL   string `toml:"ws_url"`

	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`

	EncryptedCredsPath string `toml:"encrypted_creds_path"`
	CredsPassword      string `toml:"creds_password"`
}

// CacheConfig selects the response cache backend and its default TTL.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string   `toml:"backend"`
	TTL     duration `toml:"ttl"`
}

// RedisConfig holds Redis connection parameters. Redis is required when the
// cache backend is "redis" or when server rate limiting is enabled.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the snapshot
// store. Disabled by default; the gateway itself never touches the database.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PollConfig holds poll-pipeline parameters.
type PollConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	PageSize int      `toml:"page_size"`
}

// FeedConfig holds realtime price feed parameters. Markets lists the market
// IDs to subscribe to on the upstream WebSocket.
type FeedConfig struct {
	Enabled bool     `toml:"enabled"`
	Markets []string `toml:"markets"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// ApiKey protects the API when set; empty disables authentication.
	ApiKey string `toml:"api_key"`

	// RateLimitPerMin bounds per-client requests per minute. Zero disables
	// rate limiting. Requires Redis.
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL: "https://builder-api.polymarket.com",
			WsURL:   "wss://builder-api.polymarket.com/ws",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "marketgate",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketgate-data",
			Prefix:         "marketgate",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Poll: PollConfig{
			Enabled:  false,
			Interval: duration{5 * time.Minute},
			PageSize: 100,
		},
		Feed: FeedConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"fallback_enter", "fallback_exit", "poll_error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"poll":  true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCacheBackends enumerates the accepted values for CacheConfig.Backend.
var validCacheBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, poll, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Upstream
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream: base_url must not be empty")
	}
	uk := c.Upstream.ApiKey != ""
	us := c.Upstream.ApiSecret != ""
	up := c.Upstream.ApiPassphrase != ""
	if (uk || us || up) && !(uk && us && up) {
		errs = append(errs, "upstream: api_key, api_secret, and api_passphrase must all be set together")
	}
	if (uk || us || up) && c.Upstream.EncryptedCredsPath != "" {
		errs = append(errs, "upstream: inline credentials and encrypted_creds_path are mutually exclusive")
	}
	if c.Upstream.EncryptedCredsPath != "" && c.Upstream.CredsPassword == "" {
		errs = append(errs, "upstream: creds_password is required when encrypted_creds_path is set")
	}

	// Cache
	if !validCacheBackends[strings.ToLower(c.Cache.Backend)] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}
	if c.Cache.TTL.Duration < 0 {
		errs = append(errs, "cache: ttl must not be negative")
	}

	// Redis is only reached when something uses it.
	needsRedis := strings.EqualFold(c.Cache.Backend, "redis") ||
		(c.Server.Enabled && c.Server.RateLimitPerMin > 0)
	if needsRedis {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			errs = append(errs, "s3: region must not be empty for AWS S3")
		}
	}

	// Poll
	if c.Poll.Enabled || c.Mode == "poll" || c.Mode == "full" {
		if c.Poll.Interval.Duration < time.Second {
			errs = append(errs, "poll: interval must be at least 1s")
		}
		if c.Poll.PageSize < 1 || c.Poll.PageSize > 100 {
			errs = append(errs, fmt.Sprintf("poll: page_size must be 1-100, got %d", c.Poll.PageSize))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
