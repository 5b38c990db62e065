package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BATTLEORACLE_* environment variable overrides,
// and returns the final Config. A missing file is not an error so the oracle
// can run from the environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BATTLEORACLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Twitch ──
	setStr(&cfg.Twitch.ClientID, "BATTLEORACLE_TWITCH_CLIENT_ID")
	setStr(&cfg.Twitch.ClientID, "TWITCH_CLIENT_ID") // compatibility alias
	setStr(&cfg.Twitch.ClientSecret, "BATTLEORACLE_TWITCH_CLIENT_SECRET")
	setStr(&cfg.Twitch.ClientSecret, "TWITCH_CLIENT_SECRET") // compatibility alias
	setStr(&cfg.Twitch.HelixURL, "BATTLEORACLE_TWITCH_HELIX_URL")
	setStr(&cfg.Twitch.TokenURL, "BATTLEORACLE_TWITCH_TOKEN_URL")
	setFloat64(&cfg.Twitch.RequestsPerSecond, "BATTLEORACLE_TWITCH_REQUESTS_PER_SECOND")
	setInt(&cfg.Twitch.Burst, "BATTLEORACLE_TWITCH_BURST")
	setDuration(&cfg.Twitch.Timeout, "BATTLEORACLE_TWITCH_TIMEOUT")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "BATTLEORACLE_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "BATTLEORACLE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "BATTLEORACLE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "BATTLEORACLE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "BATTLEORACLE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "BATTLEORACLE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "BATTLEORACLE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "BATTLEORACLE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "BATTLEORACLE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "BATTLEORACLE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BATTLEORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BATTLEORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BATTLEORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BATTLEORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BATTLEORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BATTLEORACLE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "BATTLEORACLE_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.CacheTTL, "BATTLEORACLE_REDIS_CACHE_TTL")
	setInt(&cfg.Redis.StreamMaxLen, "BATTLEORACLE_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BATTLEORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BATTLEORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "BATTLEORACLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BATTLEORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BATTLEORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BATTLEORACLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BATTLEORACLE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "BATTLEORACLE_S3_KEY_PREFIX")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "BATTLEORACLE_MONITOR_INTERVAL")
	setDuration(&cfg.Monitor.SettleInterval, "BATTLEORACLE_MONITOR_SETTLE_INTERVAL")
	setInt(&cfg.Monitor.PageSize, "BATTLEORACLE_MONITOR_PAGE_SIZE")
	setInt(&cfg.Monitor.MaxPages, "BATTLEORACLE_MONITOR_MAX_PAGES")
	setInt(&cfg.Monitor.Concurrency, "BATTLEORACLE_MONITOR_CONCURRENCY")
	setDuration(&cfg.Monitor.CallTimeout, "BATTLEORACLE_MONITOR_CALL_TIMEOUT")
	setDuration(&cfg.Monitor.LockTTL, "BATTLEORACLE_MONITOR_LOCK_TTL")
	setBool(&cfg.Monitor.DetectOnTitleChange, "BATTLEORACLE_MONITOR_DETECT_ON_TITLE_CHANGE")

	// ── Market ──
	setStr(&cfg.Market.EmbedParent, "BATTLEORACLE_MARKET_EMBED_PARENT")
	setDecimal(&cfg.Market.DefaultOdds, "BATTLEORACLE_MARKET_DEFAULT_ODDS")
	setDecimal(&cfg.Market.InitialLiquidity, "BATTLEORACLE_MARKET_INITIAL_LIQUIDITY")

	// ── Discovery ──
	setStringSlice(&cfg.Discovery.Queries, "BATTLEORACLE_DISCOVERY_QUERIES")
	setDuration(&cfg.Discovery.CacheTTL, "BATTLEORACLE_DISCOVERY_CACHE_TTL")
	setBool(&cfg.Discovery.OnStartup, "BATTLEORACLE_DISCOVERY_ON_STARTUP")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BATTLEORACLE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "BATTLEORACLE_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "BATTLEORACLE_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Purge, "BATTLEORACLE_ARCHIVE_PURGE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BATTLEORACLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BATTLEORACLE_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port
	setStringSlice(&cfg.Server.CORSOrigins, "BATTLEORACLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BATTLEORACLE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BATTLEORACLE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BATTLEORACLE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BATTLEORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BATTLEORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BATTLEORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BATTLEORACLE_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.DedupTTL, "BATTLEORACLE_NOTIFY_DEDUP_TTL")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "BATTLEORACLE_METRICS_ENABLED")
	setStr(&cfg.Metrics.Namespace, "BATTLEORACLE_METRICS_NAMESPACE")

	// ── Top-level ──
	setStr(&cfg.Mode, "BATTLEORACLE_MODE")
	setStr(&cfg.LogLevel, "BATTLEORACLE_LOG_LEVEL")
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

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
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
