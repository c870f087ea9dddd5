package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polywatch/engine/internal/blob/s3"
	"github.com/polywatch/engine/internal/cache/redis"
	"github.com/polywatch/engine/internal/config"
	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/notify"
	"github.com/polywatch/engine/internal/platform/polymarket"
	"github.com/polywatch/engine/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the service loops need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Ledger   domain.Ledger
	Profiles domain.ProfileStore

	// ProfileCache is nil when Redis is not configured; profile lookups then
	// run ungated.
	ProfileCache *redis.ProfileCache

	// ArchiveWriter is nil when S3 archival is disabled.
	ArchiveWriter *s3blob.Writer

	Notifier *notify.Notifier

	DataClient   *polymarket.DataClient
	GammaClient  *polymarket.GammaClient
	StreamClient *polymarket.StreamClient
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.Ledger = postgres.NewTradeStore(pgClient)
	deps.Profiles = postgres.NewTraderStore(pgClient)

	// --- Redis (optional, gates profile lookups) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
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

		deps.ProfileCache = redis.NewProfileCache(redisClient, cfg.Ingest.ProfileRetryTTL.Duration)
		deps.Profiles = redis.NewCachedProfileStore(deps.Profiles, deps.ProfileCache, logger)
	}

	// --- S3 blob storage (optional, ledger archival) ---
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

		deps.ArchiveWriter = s3blob.NewWriter(s3Client)
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

	// --- Polymarket clients ---
	deps.DataClient = polymarket.NewDataClient(cfg.Polymarket.DataHost)
	deps.GammaClient = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.StreamClient = polymarket.NewStreamClient(cfg.Polymarket.WsHost)

	return deps, cleanup, nil
}
