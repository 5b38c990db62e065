package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Twitch.ClientID = "id"
	cfg.Twitch.ClientSecret = "secret"
	return cfg
}

func TestDefaultsValidateWithCredentials(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	server := Defaults()
	server.Mode = "server"
	assert.NoError(t, server.Validate(), "server mode does not poll twitch")
}

func TestValidateCollectsProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "trade" }, `unknown mode "trade"`},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"twitch creds", func(c *Config) { c.Twitch.ClientSecret = "" }, "twitch: client_id and client_secret"},
		{"odds", func(c *Config) { c.Market.DefaultOdds = decimal.NewFromInt(1) }, "market: default_odds"},
		{"page size", func(c *Config) { c.Monitor.PageSize = 500 }, "monitor: page_size"},
		{"cron", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = "b"
			c.Archive.Cron = "61 * * * *"
		}, "archive: invalid cron"},
		{"bucket", func(c *Config) { c.Archive.Enabled = true }, "s3: bucket"},
		{"telegram pair", func(c *Config) { c.Notify.TelegramToken = "t" }, "notify: telegram_token"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"pool", func(c *Config) { c.Supabase.PoolMinConns = 20 }, "pool_min_conns must not exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[twitch]
client_id = "from-file"

[monitor]
interval = "45s"
concurrency = 8

[market]
default_odds = "2.25"
`), 0o600))

	t.Setenv("BATTLEORACLE_TWITCH_CLIENT_SECRET", "from-env")
	t.Setenv("BATTLEORACLE_MONITOR_CONCURRENCY", "2")
	t.Setenv("BATTLEORACLE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "from-file", cfg.Twitch.ClientID)
	assert.Equal(t, "from-env", cfg.Twitch.ClientSecret)
	assert.Equal(t, 45*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, 2, cfg.Monitor.Concurrency)
	assert.True(t, cfg.Market.DefaultOdds.Equal(decimal.RequireFromString("2.25")))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8*time.Second, cfg.Monitor.CallTimeout.Duration, "untouched defaults survive")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Supabase.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Notify.Events = []string{"error"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Twitch.ClientSecret)
	assert.Equal(t, redacted, out.Supabase.Password)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Equal(t, "id", out.Twitch.ClientID)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "error", cfg.Notify.Events[0])
	assert.Equal(t, "secret", cfg.Twitch.ClientSecret)
}
