// Package app wires the sync engine from configuration. Shared by cmd/api
// and cmd/sync.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/cache"
	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
	"github.com/lleo5301/sports2-backend-sub005/internal/db"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/secret"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// App holds the long-lived collaborators.
type App struct {
	Pool        *db.Pool
	Store       *store.Postgres
	Transport   *transport.Client
	Credentials *credential.Manager
	Syncer      *syncer.Service
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// Build connects to the database and assembles the engine. Migrations run
// first when MIGRATE_ON_START is set.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	box, err := secret.New(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	st := store.NewPostgres(pool)

	client := transport.New(transport.Config{
		Timeout:     cfg.PrestoTimeout,
		MinInterval: cfg.PrestoMinInterval,
		MaxRetries:  cfg.PrestoMaxRetries,
		RetryBase:   cfg.PrestoRetryBase,
		BreakerTrip: cfg.PrestoBreakerTrip,
		BufferSize:  cfg.DiagnosticsCapacity,
	}, logger)
	api := presto.New(client, cfg.PrestoBaseURL)

	creds := credential.NewManager(st, api, box, cache.New(true), credential.Options{
		Margin: cfg.TokenRefreshMargin,
		Logger: logger,
	})

	svc := syncer.New(st, api, creds, syncer.Options{
		Location: cfg.Location(),
		Logger:   logger,
	})

	return &App{
		Pool:        pool,
		Store:       st,
		Transport:   client,
		Credentials: creds,
		Syncer:      svc,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
