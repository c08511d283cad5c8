// Package config defines the top-level configuration for the value-betting
// agent and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by VALUEBOT_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Feed     FeedConfig     `toml:"feed"`
	AI       AIConfig       `toml:"ai"`
	Trading  TradingConfig  `toml:"trading"`
	Notify   NotifyConfig   `toml:"notify"`
	Games    []string       `toml:"games"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters. Redis backs the per-game run
// lock and the exchange rate limiter.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// KalshiConfig holds Kalshi exchange API credentials and endpoints.
type KalshiConfig struct {
	ApiKeyID       string `toml:"api_key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
	BaseURL        string `toml:"base_url"`
	DemoBaseURL    string `toml:"demo_base_url"`
	Demo           bool   `toml:"demo"`
	// RateLimitPerSecond caps signed API requests; 0 disables client-side
	// limiting.
	RateLimitPerSecond int `toml:"rate_limit_per_second"`
}

// FeedConfig holds sports-feed API parameters.
type FeedConfig struct {
	ApiKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// AIConfig selects and configures the probability forecaster.
type AIConfig struct {
	Provider    string  `toml:"provider"` // "anthropic"
	ApiKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// TradingConfig holds the risk-gate and sizing parameters. Dollar amounts are
// configured in USD and converted to cents by the risk manager.
type TradingConfig struct {
	MinEdgePct             float64  `toml:"min_edge_pct"`
	MinConfidence          string   `toml:"min_confidence"` // low | medium | high
	KellyFraction          float64  `toml:"kelly_fraction"`
	MaxTotalExposureUSD    float64  `toml:"max_total_exposure_usd"`
	MaxPositionSizeUSD     float64  `toml:"max_position_size_usd"`
	MaxSingleMarketPercent float64  `toml:"max_single_market_percent"`
	MaxDailyLossUSD        float64  `toml:"max_daily_loss_usd"`
	MaxDailyTrades         int      `toml:"max_daily_trades"`
	MinAccountBalanceUSD   float64  `toml:"min_account_balance_usd"`
	PollInterval           duration `toml:"poll_interval"`
	Paper                  bool     `toml:"paper"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s".
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
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "valuebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Kalshi: KalshiConfig{
			BaseURL:            "https://api.elections.kalshi.com/trade-api/v2",
			DemoBaseURL:        "https://demo-api.kalshi.co/trade-api/v2",
			RateLimitPerSecond: 10,
		},
		Feed: FeedConfig{
			BaseURL: "https://api.shipp.ai/api/v1",
		},
		AI: AIConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.2,
		},
		Trading: TradingConfig{
			MinEdgePct:             5.0,
			MinConfidence:          "medium",
			KellyFraction:          0.25,
			MaxTotalExposureUSD:    10_000,
			MaxPositionSizeUSD:     1_000,
			MaxSingleMarketPercent: 50,
			MaxDailyLossUSD:        500,
			MaxDailyTrades:         50,
			MinAccountBalanceUSD:   100,
			PollInterval:           duration{30 * time.Second},
			Paper:                  true,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "loop_error", "game_completed"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade": true,
	"games": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validConfidence enumerates the accepted confidence tiers.
var validConfidence = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, games)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Feed
	if c.Feed.ApiKey == "" {
		errs = append(errs, "feed: api_key is required")
	}
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}

	// Kalshi — live trading needs signing credentials; paper mode still reads
	// balances, so credentials are required in trade mode either way.
	if c.Mode == "trade" {
		if c.Kalshi.ApiKeyID == "" {
			errs = append(errs, "kalshi: api_key_id is required for trade mode")
		}
		if c.Kalshi.PrivateKeyPath == "" {
			errs = append(errs, "kalshi: private_key_path is required for trade mode")
		}
		if len(c.Games) == 0 {
			errs = append(errs, "games: at least one game id is required for trade mode")
		}
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	// AI
	if c.AI.Provider == "" {
		errs = append(errs, "ai: provider must not be empty")
	}
	if c.Mode == "trade" && c.AI.ApiKey == "" {
		errs = append(errs, "ai: api_key is required for trade mode")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		errs = append(errs, fmt.Sprintf("ai: temperature must be 0-1, got %g", c.AI.Temperature))
	}

	// Trading
	if c.Trading.MinEdgePct < 0 {
		errs = append(errs, "trading: min_edge_pct must be >= 0")
	}
	if !validConfidence[strings.ToLower(c.Trading.MinConfidence)] {
		errs = append(errs, fmt.Sprintf("trading: unknown min_confidence %q (valid: low, medium, high)", c.Trading.MinConfidence))
	}
	if c.Trading.KellyFraction <= 0 || c.Trading.KellyFraction > 1 {
		errs = append(errs, fmt.Sprintf("trading: kelly_fraction must be in (0,1], got %g", c.Trading.KellyFraction))
	}
	if c.Trading.MaxTotalExposureUSD <= 0 {
		errs = append(errs, "trading: max_total_exposure_usd must be > 0")
	}
	if c.Trading.MaxPositionSizeUSD <= 0 {
		errs = append(errs, "trading: max_position_size_usd must be > 0")
	}
	if c.Trading.MaxSingleMarketPercent <= 0 || c.Trading.MaxSingleMarketPercent > 100 {
		errs = append(errs, "trading: max_single_market_percent must be in (0,100]")
	}
	if c.Trading.MaxDailyTrades < 1 {
		errs = append(errs, "trading: max_daily_trades must be >= 1")
	}
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
