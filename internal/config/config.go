// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/sync.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SYNC_TIMEZONE must resolve on images without zoneinfo
)

// ProviderPresto is the provider tag stored on credentials and synced rows.
const ProviderPresto = "presto"

// --------------------------------------------------------------------------
// Table names, matching the migrations
// --------------------------------------------------------------------------

const (
	TeamsTable             = "teams"
	CredentialsTable       = "provider_credentials"
	PlayersTable           = "players"
	GamesTable             = "games"
	GameStatisticsTable    = "game_statistics"
	PlayerSeasonStatsTable = "player_season_stats"
	PlayerCareerStatsTable = "player_career_stats"
	PlayerVideosTable      = "player_videos"
	NewsReleasesTable      = "news_releases"
	SyncLogsTable          = "sync_logs"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	MigrateOnStart bool

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    string
	LogFormat   string // text, json
	SyncAPIKey  string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting of inbound sync triggers
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Upstream provider
	PrestoBaseURL       string
	PrestoMinInterval   time.Duration
	PrestoMaxRetries    int
	PrestoRetryBase     time.Duration
	PrestoTimeout       time.Duration
	PrestoBreakerTrip   int
	DiagnosticsCapacity int

	// Credentials
	SecretKey          string
	TokenRefreshMargin time.Duration

	// Sync
	SyncTimezone string

	// Background jobs (zero interval disables a job)
	LiveSyncInterval  time.Duration
	FullSyncInterval  time.Duration
	CleanupInterval   time.Duration
	StaleSyncAfter    time.Duration
	SyncLogRetention  time.Duration
	ScheduledWorkers  int
	ScheduledSyncUser string
	ListenForRequests bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		MigrateOnStart: envBool("MIGRATE_ON_START", false),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "text"),
		SyncAPIKey:  envOr("SYNC_API_KEY", ""),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		PrestoBaseURL:       strings.TrimRight(envOr("PRESTO_BASE_URL", "https://gameday-api.prestosports.com/api"), "/"),
		PrestoMinInterval:   time.Duration(envInt("PRESTO_MIN_INTERVAL_MS", 750)) * time.Millisecond,
		PrestoMaxRetries:    envInt("PRESTO_MAX_RETRIES", 2),
		PrestoRetryBase:     time.Duration(envInt("PRESTO_RETRY_BASE_MS", 1000)) * time.Millisecond,
		PrestoTimeout:       time.Duration(envInt("PRESTO_TIMEOUT_SECONDS", 30)) * time.Second,
		PrestoBreakerTrip:   envInt("PRESTO_BREAKER_THRESHOLD", 5),
		DiagnosticsCapacity: envInt("DIAGNOSTICS_BUFFER_SIZE", 100),

		SecretKey:          envOr("SECRET_KEY", ""),
		TokenRefreshMargin: time.Duration(envInt("TOKEN_REFRESH_MARGIN_MINUTES", 5)) * time.Minute,

		SyncTimezone: envOr("SYNC_TIMEZONE", "America/Chicago"),

		LiveSyncInterval:  time.Duration(envInt("LIVE_SYNC_INTERVAL_MINUTES", 0)) * time.Minute,
		FullSyncInterval:  time.Duration(envInt("FULL_SYNC_INTERVAL_HOURS", 0)) * time.Hour,
		CleanupInterval:   time.Duration(envInt("CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute,
		StaleSyncAfter:    time.Duration(envInt("STALE_SYNC_MINUTES", 120)) * time.Minute,
		SyncLogRetention:  time.Duration(envInt("SYNC_LOG_RETENTION_DAYS", 90)) * 24 * time.Hour,
		ScheduledWorkers:  envInt("SCHEDULED_SYNC_WORKERS", 2),
		ScheduledSyncUser: envOr("SCHEDULED_SYNC_USER", "scheduler"),
		ListenForRequests: envBool("SYNC_LISTENER_ENABLED", true),
	}

	if _, err := time.LoadLocation(cfg.SyncTimezone); err != nil {
		return nil, fmt.Errorf("SYNC_TIMEZONE %q: %w", cfg.SyncTimezone, err)
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location returns the timezone that defines "today" for live stats.
// Load has already validated the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SyncTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
