// Package maintenance runs periodic background tasks as Go tickers:
// scheduled syncs for every linked team and sync log housekeeping.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

const abandonedReason = "sync did not finish; marked failed by cleanup"

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	LiveInterval    time.Duration // live_stats for every linked team
	FullInterval    time.Duration // full sync for every linked team
	CleanupInterval time.Duration // stale and expired sync logs
	StaleAfter      time.Duration
	Retention       time.Duration
	Workers         int
	UserID          string
}

// DefaultConfig returns production defaults. Scheduled syncs are off until
// configured.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
		StaleAfter:      2 * time.Hour,
		Retention:       90 * 24 * time.Hour,
		Workers:         2,
		UserID:          "scheduler",
	}
}

// FromConfig maps the environment configuration.
func FromConfig(cfg *config.Config) Config {
	return Config{
		LiveInterval:    cfg.LiveSyncInterval,
		FullInterval:    cfg.FullSyncInterval,
		CleanupInterval: cfg.CleanupInterval,
		StaleAfter:      cfg.StaleSyncAfter,
		Retention:       cfg.SyncLogRetention,
		Workers:         cfg.ScheduledWorkers,
		UserID:          cfg.ScheduledSyncUser,
	}
}

// Runner is the sync surface the scheduler drives.
type Runner interface {
	Sync(ctx context.Context, syncType string, teamID int64, userID string) (*syncer.Result, error)
	SyncAll(ctx context.Context, teamID int64, userID string) (*syncer.AllResult, error)
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, st store.Housekeeping, runner Runner, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"live", cfg.LiveInterval,
		"full", cfg.FullInterval,
		"cleanup", cfg.CleanupInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.LiveInterval > 0 {
		t := time.NewTicker(cfg.LiveInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "live", func() {
			ScheduledSync(ctx, st, runner, syncer.TypeLive, cfg, logger)
		})
	}

	if cfg.FullInterval > 0 {
		t := time.NewTicker(cfg.FullInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "full", func() {
			ScheduledSync(ctx, st, runner, syncer.TypeFull, cfg, logger)
		})
	}

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "cleanup", func() { Cleanup(ctx, st, cfg, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// ScheduledSync runs syncType for every linked team.
func ScheduledSync(ctx context.Context, st store.Housekeeping, runner Runner, syncType string, cfg Config, logger *slog.Logger) BatchResult {
	teams, err := st.ListLinkedTeams(ctx)
	if err != nil {
		logger.Warn("Scheduled sync: failed to list teams", "type", syncType, "error", err)
		return BatchResult{Errors: []string{err.Error()}}
	}
	ids := make([]int64, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return RunBatch(ctx, runner, ids, syncType, cfg.UserID, cfg.Workers, logger)
}

// Cleanup fails logs left running by a crashed process and purges
// finalized logs past retention.
func Cleanup(ctx context.Context, st store.Housekeeping, cfg Config, logger *slog.Logger) {
	now := time.Now()

	if cfg.StaleAfter > 0 {
		n, err := st.AbandonSyncLogs(ctx, now.Add(-cfg.StaleAfter), abandonedReason)
		if err != nil {
			logger.Warn("Cleanup: failed to close stale sync logs", "error", err)
		} else if n > 0 {
			logger.Info("Cleanup: closed stale sync logs", "count", n)
		}
	}

	if cfg.Retention > 0 {
		n, err := st.PurgeSyncLogs(ctx, now.Add(-cfg.Retention))
		if err != nil {
			logger.Warn("Cleanup: failed to purge old sync logs", "error", err)
		} else if n > 0 {
			logger.Info("Cleanup: purged old sync logs", "count", n)
		}
	}
}
