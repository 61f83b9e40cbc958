package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETGATE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadFromEnv returns the defaults with environment overrides applied, for
// running without a config file at all.
func LoadFromEnv() *Config {
	cfg := Defaults()
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg
}

// applyEnvOverrides reads well-known MARKETGATE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Upstream ──
	setStr(&cfg.Upstream.BaseURL, "MARKETGATE_UPSTREAM_BASE_URL")
	setStr(&cfg.Upstream.WsURL, "MARKETGATE_UPSTREAM_WS_URL")
	setStr(&cfg.Upstream.ApiKey, "MARKETGATE_UPSTREAM_API_KEY")
	setStr(&cfg.Upstream.ApiSecret, "MARKETGATE_UPSTREAM_API_SECRET")
	setStr(&cfg.Upstream.ApiPassphrase, "MARKETGATE_UPSTREAM_API_PASSPHRASE")
	setStr(&cfg.Upstream.EncryptedCredsPath, "MARKETGATE_UPSTREAM_ENCRYPTED_CREDS_PATH")
	setStr(&cfg.Upstream.CredsPassword, "MARKETGATE_UPSTREAM_CREDS_PASSWORD")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "MARKETGATE_CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "MARKETGATE_CACHE_TTL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETGATE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETGATE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETGATE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETGATE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETGATE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETGATE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MARKETGATE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MARKETGATE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETGATE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETGATE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETGATE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETGATE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETGATE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETGATE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARKETGATE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARKETGATE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARKETGATE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MARKETGATE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETGATE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETGATE_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETGATE_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "MARKETGATE_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "MARKETGATE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETGATE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MARKETGATE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MARKETGATE_S3_FORCE_PATH_STYLE")

	// ── Poll ──
	setBool(&cfg.Poll.Enabled, "MARKETGATE_POLL_ENABLED")
	setDuration(&cfg.Poll.Interval, "MARKETGATE_POLL_INTERVAL")
	setInt(&cfg.Poll.PageSize, "MARKETGATE_POLL_PAGE_SIZE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "MARKETGATE_FEED_ENABLED")
	setStringSlice(&cfg.Feed.Markets, "MARKETGATE_FEED_MARKETS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETGATE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETGATE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETGATE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "MARKETGATE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "MARKETGATE_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETGATE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETGATE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETGATE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETGATE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETGATE_MODE")
	setStr(&cfg.LogLevel, "MARKETGATE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
