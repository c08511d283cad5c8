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
// built-in defaults, applies VALUEBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known VALUEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "VALUEBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "VALUEBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VALUEBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VALUEBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "VALUEBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "VALUEBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VALUEBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "VALUEBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "VALUEBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "VALUEBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VALUEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VALUEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VALUEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VALUEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VALUEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VALUEBOT_REDIS_TLS_ENABLED")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKeyID, "VALUEBOT_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.PrivateKeyPath, "VALUEBOT_KALSHI_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "VALUEBOT_KALSHI_BASE_URL")
	setBool(&cfg.Kalshi.Demo, "VALUEBOT_KALSHI_DEMO")
	setInt(&cfg.Kalshi.RateLimitPerSecond, "VALUEBOT_KALSHI_RATE_LIMIT_PER_SECOND")

	// ── Feed ──
	setStr(&cfg.Feed.ApiKey, "VALUEBOT_FEED_API_KEY")
	setStr(&cfg.Feed.BaseURL, "VALUEBOT_FEED_BASE_URL")

	// ── AI ──
	setStr(&cfg.AI.Provider, "VALUEBOT_AI_PROVIDER")
	setStr(&cfg.AI.ApiKey, "VALUEBOT_AI_API_KEY")
	setStr(&cfg.AI.Model, "VALUEBOT_AI_MODEL")
	setFloat64(&cfg.AI.Temperature, "VALUEBOT_AI_TEMPERATURE")

	// ── Trading ──
	setFloat64(&cfg.Trading.MinEdgePct, "VALUEBOT_TRADING_MIN_EDGE_PCT")
	setStr(&cfg.Trading.MinConfidence, "VALUEBOT_TRADING_MIN_CONFIDENCE")
	setFloat64(&cfg.Trading.KellyFraction, "VALUEBOT_TRADING_KELLY_FRACTION")
	setFloat64(&cfg.Trading.MaxTotalExposureUSD, "VALUEBOT_TRADING_MAX_TOTAL_EXPOSURE_USD")
	setFloat64(&cfg.Trading.MaxPositionSizeUSD, "VALUEBOT_TRADING_MAX_POSITION_SIZE_USD")
	setFloat64(&cfg.Trading.MaxSingleMarketPercent, "VALUEBOT_TRADING_MAX_SINGLE_MARKET_PERCENT")
	setFloat64(&cfg.Trading.MaxDailyLossUSD, "VALUEBOT_TRADING_MAX_DAILY_LOSS_USD")
	setInt(&cfg.Trading.MaxDailyTrades, "VALUEBOT_TRADING_MAX_DAILY_TRADES")
	setFloat64(&cfg.Trading.MinAccountBalanceUSD, "VALUEBOT_TRADING_MIN_ACCOUNT_BALANCE_USD")
	setDuration(&cfg.Trading.PollInterval, "VALUEBOT_TRADING_POLL_INTERVAL")
	setBool(&cfg.Trading.Paper, "VALUEBOT_TRADING_PAPER")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VALUEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VALUEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VALUEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VALUEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStringSlice(&cfg.Games, "VALUEBOT_GAMES")
	setStr(&cfg.Mode, "VALUEBOT_MODE")
	setStr(&cfg.LogLevel, "VALUEBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
