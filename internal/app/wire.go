package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/battleoracle/internal/blob/s3"
	"github.com/alanyoungcy/battleoracle/internal/cache/redis"
	"github.com/alanyoungcy/battleoracle/internal/config"
	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/metrics"
	"github.com/alanyoungcy/battleoracle/internal/notify"
	"github.com/alanyoungcy/battleoracle/internal/platform/twitch"
	"github.com/alanyoungcy/battleoracle/internal/server/handler"
	"github.com/alanyoungcy/battleoracle/internal/store/memory"
	"github.com/alanyoungcy/battleoracle/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the application modes
// need. It is constructed by Wire (or WireMemory) and torn down by the
// returned cleanup function. Caches, locks, the bus and the archiver are nil
// when not wired; every consumer treats them as optional.
type Dependencies struct {
	// Stores
	SessionStore    domain.SessionStore
	MarketStore     domain.MarketStore
	DetectionStore  domain.DetectionStore
	SettlementStore domain.SettlementStore
	GameStore       domain.GameStore
	AuditStore      domain.AuditStore

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	Twitch   *twitch.Client
	Notifier *notify.Notifier
	Metrics  *metrics.OracleMetrics

	// HealthChecks feeds GET /api/health.
	HealthChecks map[string]handler.HealthCheck
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

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.HealthChecks["postgres"] = pgClient.Health

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	stores := pgClient.Stores()
	deps.SessionStore = stores.Sessions
	deps.MarketStore = stores.Markets
	deps.DetectionStore = stores.Detections
	deps.SettlementStore = stores.Settlements
	deps.GameStore = stores.Games
	deps.AuditStore = stores.Audit

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.HealthChecks["redis"] = redisClient.Ping

	deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.CacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Server.RateLimit, cfg.Server.RateWindow.Duration)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, int64(cfg.Redis.StreamMaxLen))

	// --- S3 archive (only when enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			KeyPrefix:      cfg.S3.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.HealthChecks["s3"] = s3Client.Health

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			stores.Detections,
			stores.Settlements,
			stores.Audit,
			cfg.Archive.Purge,
		)
	}

	wireShared(deps, cfg, logger)
	return deps, cleanup, nil
}

// WireMemory builds Dependencies over in-process stores, without Postgres,
// Redis or S3. Twitch is still called. Used for dry runs.
func WireMemory(cfg *config.Config, logger *slog.Logger) *Dependencies {
	stores := memory.New()
	deps := &Dependencies{
		SessionStore:    stores.Sessions,
		MarketStore:     stores.Markets,
		DetectionStore:  stores.Detections,
		SettlementStore: stores.Settlements,
		GameStore:       stores.Games,
		AuditStore:      stores.Audit,
		HealthChecks:    make(map[string]handler.HealthCheck),
	}
	wireShared(deps, cfg, logger)
	return deps
}

// wireShared attaches the dependencies that do not depend on storage.
func wireShared(deps *Dependencies, cfg *config.Config, logger *slog.Logger) {
	deps.Twitch = twitch.NewClient(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret,
		twitch.WithHelixURL(cfg.Twitch.HelixURL),
		twitch.WithTokenURL(cfg.Twitch.TokenURL),
		twitch.WithTimeout(cfg.Twitch.Timeout.Duration),
		twitch.WithRateLimit(cfg.Twitch.RequestsPerSecond, cfg.Twitch.Burst),
	)

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(cfg.Metrics.Namespace)
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.DedupTTL.Duration, logger)
}
