// Command api serves the sync trigger API and runs scheduled syncs.
//
// Usage:
//
//	sports2-sync-api
//	API_PORT=8080 LIVE_SYNC_INTERVAL_MINUTES=5 sports2-sync-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lleo5301/sports2-backend-sub005/internal/api"
	"github.com/lleo5301/sports2-backend-sub005/internal/api/handler"
	"github.com/lleo5301/sports2-backend-sub005/internal/app"
	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/listener"
	"github.com/lleo5301/sports2-backend-sub005/internal/maintenance"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Connecting to database...")
	engine, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start sync engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	go maintenance.Start(ctx, engine.Store, engine.Syncer, maintenance.FromConfig(cfg), logger)

	// LISTEN/NOTIFY consumer for sync requests from other services
	if cfg.ListenForRequests {
		go listener.Start(ctx, cfg.DatabaseURL, engine.Syncer, logger)
	}

	router := api.NewRouter(handler.Deps{
		Syncer:       engine.Syncer,
		Integrations: engine.Credentials,
		Logs:         engine.Store,
		Diagnostics:  engine.Transport,
		DB:           engine.Pool,
		Logger:       logger,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Full syncs run inside the request.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting sync API",
			"addr", addr,
			"environment", cfg.Environment,
			"timezone", cfg.SyncTimezone)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
