package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sync")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 750*time.Millisecond, cfg.PrestoMinInterval)
	assert.Equal(t, 2, cfg.PrestoMaxRetries)
	assert.Equal(t, time.Second, cfg.PrestoRetryBase)
	assert.Equal(t, 5*time.Minute, cfg.TokenRefreshMargin)
	assert.Zero(t, cfg.LiveSyncInterval)
	assert.True(t, cfg.ListenForRequests)
	assert.Equal(t, "America/Chicago", cfg.Location().String())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sync")
	t.Setenv("PORT", "9090")
	t.Setenv("PRESTO_BASE_URL", "https://example.test/api/")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("LIVE_SYNC_INTERVAL_MINUTES", "5")
	t.Setenv("PRESTO_MAX_RETRIES", "not-a-number")
	t.Setenv("SYNC_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "https://example.test/api", cfg.PrestoBaseURL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 5*time.Minute, cfg.LiveSyncInterval)
	assert.Equal(t, 2, cfg.PrestoMaxRetries)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sync")
	t.Setenv("SYNC_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}
