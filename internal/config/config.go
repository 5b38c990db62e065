// Package config defines the top-level configuration for the battle oracle
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/battleoracle/internal/pipeline"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BATTLEORACLE_* environment variables.
type Config struct {
	Twitch    TwitchConfig    `toml:"twitch"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Market    MarketConfig    `toml:"market"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// TwitchConfig holds Helix application credentials and client limits.
type TwitchConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	HelixURL          string   `toml:"helix_url"`
	TokenURL          string   `toml:"token_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	KeyPrefix    string   `toml:"key_prefix"`
	CacheTTL     duration `toml:"cache_ttl"`
	StreamMaxLen int      `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	KeyPrefix      string `toml:"key_prefix"`
}

// MonitorConfig holds the polling loop parameters.
type MonitorConfig struct {
	Interval            duration `toml:"interval"`
	SettleInterval      duration `toml:"settle_interval"`
	PageSize            int      `toml:"page_size"`
	MaxPages            int      `toml:"max_pages"`
	Concurrency         int      `toml:"concurrency"`
	CallTimeout         duration `toml:"call_timeout"`
	LockTTL             duration `toml:"lock_ttl"`
	DetectOnTitleChange bool     `toml:"detect_on_title_change"`
}

// MarketConfig holds the parameters of markets created from detections.
type MarketConfig struct {
	EmbedParent      string          `toml:"embed_parent"`
	DefaultOdds      decimal.Decimal `toml:"default_odds"`
	InitialLiquidity decimal.Decimal `toml:"initial_liquidity"`
}

// DiscoveryConfig controls category discovery.
type DiscoveryConfig struct {
	Queries   []string `toml:"queries"`
	CacheTTL  duration `toml:"cache_ttl"`
	OnStartup bool     `toml:"on_startup"`
}

// ArchiveConfig controls the monthly cold-storage export.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
	// Purge deletes archived rows from Postgres once written.
	Purge bool `toml:"purge"`
}

// duration wraps time.Duration to support TOML string decoding (e.g. "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	DedupTTL          duration `toml:"dedup_ttl"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Twitch: TwitchConfig{
			HelixURL:          "https://api.twitch.tv/helix",
			TokenURL:          "https://id.twitch.tv/oauth2/token",
			RequestsPerSecond: 10,
			Burst:             5,
			Timeout:           duration{8 * time.Second},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "require",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			KeyPrefix:    "battleoracle:",
			CacheTTL:     duration{5 * time.Minute},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
			KeyPrefix:      "battleoracle/",
		},
		Monitor: MonitorConfig{
			Interval:            duration{30 * time.Second},
			SettleInterval:      duration{time.Minute},
			PageSize:            100,
			MaxPages:            1,
			Concurrency:         4,
			CallTimeout:         duration{8 * time.Second},
			LockTTL:             duration{30 * time.Second},
			DetectOnTitleChange: true,
		},
		Market: MarketConfig{
			EmbedParent:      "localhost",
			DefaultOdds:      decimal.RequireFromString("1.5"),
			InitialLiquidity: decimal.NewFromInt(100),
		},
		Discovery: DiscoveryConfig{
			CacheTTL:  duration{5 * time.Minute},
			OnStartup: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 3 1 * *",
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events:   []string{"needs_review", "needs_manual_review", "error"},
			DedupTTL: duration{10 * time.Minute},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "battleoracle",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// PollsStreams reports whether the mode runs the monitor loop.
func (c *Config) PollsStreams() bool {
	m := strings.ToLower(c.Mode)
	return m == "monitor" || m == "full"
}

// Validate checks the Config for missing or invalid values and returns an
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.PollsStreams() {
		if c.Twitch.ClientID == "" || c.Twitch.ClientSecret == "" {
			errs = append(errs, "twitch: client_id and client_secret are required for mode "+c.Mode)
		}
		if c.Monitor.Interval.Duration <= 0 {
			errs = append(errs, "monitor: interval must be > 0")
		}
	}
	if c.Twitch.RequestsPerSecond <= 0 {
		errs = append(errs, "twitch: requests_per_second must be > 0")
	}
	if c.Monitor.Concurrency < 1 {
		errs = append(errs, "monitor: concurrency must be >= 1")
	}
	if c.Monitor.PageSize < 1 || c.Monitor.PageSize > 100 {
		errs = append(errs, fmt.Sprintf("monitor: page_size must be 1-100, got %d", c.Monitor.PageSize))
	}
	if c.Monitor.MaxPages < 1 {
		errs = append(errs, "monitor: max_pages must be >= 1")
	}

	if !c.Market.DefaultOdds.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "market: default_odds must be > 1")
	}
	if c.Market.InitialLiquidity.IsNegative() {
		errs = append(errs, "market: initial_liquidity must be >= 0")
	}

	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if err := pipeline.ValidateCron(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
