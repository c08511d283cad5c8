package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alanyoungcy/valuebot/internal/cache/redis"
	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
	"github.com/alanyoungcy/valuebot/internal/forecast"
	"github.com/alanyoungcy/valuebot/internal/notify"
	"github.com/alanyoungcy/valuebot/internal/platform/kalshi"
	"github.com/alanyoungcy/valuebot/internal/platform/shipp"
	"github.com/alanyoungcy/valuebot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	GameStore       domain.GameStore
	OrderStore      domain.OrderStore
	ConnectionStore domain.ConnectionStore

	// Redis
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// External collaborators
	Exchange   domain.Exchange
	Feed       domain.Feed
	Forecaster domain.Forecaster

	// Notifications
	Notifier *notify.Notifier
}

// needsExchange returns true for modes that talk to the exchange. The games
// mode only reads schedules from the feed.
func needsExchange(mode string) bool {
	return mode == "trade"
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

	pool := pgClient.Pool()
	deps.GameStore = postgres.NewGameStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.ConnectionStore = postgres.NewConnectionStore(pool)

	// --- Redis ---
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

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Shipp feed ---
	deps.Feed = shipp.NewClient(cfg.Feed.BaseURL, cfg.Feed.ApiKey, deps.GameStore, deps.ConnectionStore, logger)

	// --- Kalshi exchange (trade mode only) ---
	if needsExchange(cfg.Mode) {
		baseURL := cfg.Kalshi.BaseURL
		if cfg.Kalshi.Demo {
			baseURL = cfg.Kalshi.DemoBaseURL
		}

		kc := kalshi.NewClient(baseURL, cfg.Kalshi.ApiKeyID)
		keyBytes, err := os.ReadFile(cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: read Kalshi RSA key %s: %w", cfg.Kalshi.PrivateKeyPath, err)
		}
		if err := kc.SetRSAPrivateKey(keyBytes); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: parse Kalshi RSA key: %w", err)
		}
		kc.SetRateLimiter(deps.RateLimiter, cfg.Kalshi.RateLimitPerSecond)
		deps.Exchange = kc

		// --- Forecaster ---
		fc, err := forecast.New(cfg.AI, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: forecaster: %w", err)
		}
		deps.Forecaster = fc
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

	return deps, cleanup, nil
}
