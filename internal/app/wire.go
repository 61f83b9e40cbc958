package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/polysight/marketgate/internal/blob/s3"
	"github.com/polysight/marketgate/internal/cache/memory"
	"github.com/polysight/marketgate/internal/cache/redis"
	"github.com/polysight/marketgate/internal/config"
	"github.com/polysight/marketgate/internal/crypto"
	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/fallback"
	"github.com/polysight/marketgate/internal/gateway"
	"github.com/polysight/marketgate/internal/history"
	"github.com/polysight/marketgate/internal/mapper"
	"github.com/polysight/marketgate/internal/notify"
	"github.com/polysight/marketgate/internal/platform/builder"
	"github.com/polysight/marketgate/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Auth is the resolved upstream credential triple. An incomplete triple
	// puts the gateway in fallback mode.
	Auth crypto.HMACAuth

	// Caches
	ResponseCache domain.ResponseCache
	RateLimiter   domain.RateLimiter

	// Data path
	Tracker *history.Tracker
	Client  *builder.Client
	Gateway *gateway.Gateway

	// Persistence (nil when disabled)
	SnapshotStore domain.SnapshotStore
	Archiver      *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Upstream credentials ---
	auth, err := crypto.LoadCredentials(crypto.CredentialConfig{
		Key:           cfg.Upstream.ApiKey,
		Secret:        cfg.Upstream.ApiSecret,
		Passphrase:    cfg.Upstream.ApiPassphrase,
		EncryptedPath: cfg.Upstream.EncryptedCredsPath,
		Password:      cfg.Upstream.CredsPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: credentials: %w", err)
	}
	deps.Auth = auth

	// --- Redis (only when something uses it) ---
	needsRedis := strings.EqualFold(cfg.Cache.Backend, "redis") ||
		(cfg.Server.Enabled && cfg.Server.RateLimitPerMin > 0)

	var redisClient *redis.Client
	if needsRedis {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	// --- Response cache ---
	if strings.EqualFold(cfg.Cache.Backend, "redis") {
		deps.ResponseCache = redis.NewResponseCache(redisClient, cfg.Cache.TTL.Duration)
	} else {
		deps.ResponseCache = memory.NewResponseCache(cfg.Cache.TTL.Duration)
	}

	// --- Rate limiter ---
	if cfg.Server.Enabled && cfg.Server.RateLimitPerMin > 0 {
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- PostgreSQL snapshot store ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.SnapshotStore = postgres.NewSnapshotStore(pgClient.Pool())
	}

	// --- S3 snapshot archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Data path: tracker, upstream client, gateway ---
	deps.Tracker = history.NewTracker()
	m := mapper.New(deps.Tracker)
	deps.Client = builder.NewClient(cfg.Upstream.BaseURL, auth, deps.ResponseCache)

	deps.Gateway = gateway.New(gateway.Config{
		Live:         deps.Client,
		Fallback:     fallback.NewSource(),
		Credentialed: auth.Complete(),
		Mapper:       m,
		Logger:       logger,
	})

	return deps, cleanup, nil
}
