// Package handler provides HTTP handlers for the sync trigger surface.
// Handlers delegate to the syncer and credential manager; every response
// is JSON.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/api/respond"
	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// Syncer runs synchronizers.
type Syncer interface {
	Sync(ctx context.Context, syncType string, teamID int64, userID string) (*syncer.Result, error)
	SyncAll(ctx context.Context, teamID int64, userID string) (*syncer.AllResult, error)
}

// Integrations manages a team's provider credentials.
type Integrations interface {
	Configure(ctx context.Context, teamID int64, s credential.Settings) error
	Disconnect(ctx context.Context, teamID int64) error
}

// Diagnostics exposes transport telemetry.
type Diagnostics interface {
	Snapshot() transport.Snapshot
}

// HealthChecker verifies database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the handler's collaborators. DB may be nil when running without
// Postgres.
type Deps struct {
	Syncer       Syncer
	Integrations Integrations
	Logs         store.SyncLogs
	Diagnostics  Diagnostics
	DB           HealthChecker
	Logger       *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
}

// New creates a Handler with shared dependencies.
func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{Deps: deps}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "Sports2 Sync API",
		"version": "1.0.0",
		"status":  "running",
		"syncs":   syncer.Types(),
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"database":  "not configured",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.DB.HealthCheck(r.Context()); err != nil {
		h.Logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetDiagnostics returns upstream transport counters and recent requests.
// @Summary Upstream diagnostics
// @Tags sync
// @Produce json
// @Success 200 {object} transport.Snapshot
// @Router /api/v1/diagnostics [get]
func (h *Handler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.Diagnostics.Snapshot())
}
