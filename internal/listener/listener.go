// Package listener consumes sync requests published with Postgres
// LISTEN/NOTIFY. It holds a dedicated pgx connection (not from the pool)
// listening on the `sync_requested` channel, so other services sharing the
// database can trigger syncs without calling the HTTP API.
//
//	SELECT pg_notify('sync_requested', '{"team_id": 12, "sync_type": "roster"}');
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lleo5301/sports2-backend-sub005/internal/maintenance"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

const (
	Channel          = "sync_requested"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	defaultUser      = "notify"
)

// SyncRequest is the JSON payload of pg_notify('sync_requested', ...).
// An empty SyncType means a full sync.
type SyncRequest struct {
	TeamID   int64  `json:"team_id"`
	SyncType string `json:"sync_type,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Publisher is the subset of a pgx pool used to publish requests.
type Publisher interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Publish queues a sync request for whichever process is listening.
func Publish(ctx context.Context, p Publisher, req SyncRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := p.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", Channel, err)
	}
	return nil
}

// Start opens a dedicated connection and listens for sync requests. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, runner maintenance.Runner, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, runner, logger)
		if ctx.Err() != nil {
			logger.Info("Sync request listener stopped (context cancelled)")
			return
		}

		logger.Error("Sync request listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, runner maintenance.Runner, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Sync request listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		req, err := ParseRequest(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse sync request",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("Sync request received",
			"team_id", req.TeamID,
			"sync_type", req.SyncType,
			"user_id", req.UserID)

		// Run asynchronously to avoid blocking the listener
		go Dispatch(ctx, runner, req, logger)
	}
}

// ParseRequest decodes and validates a notification payload.
func ParseRequest(payload string) (SyncRequest, error) {
	var req SyncRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return req, err
	}
	if req.TeamID <= 0 {
		return req, fmt.Errorf("team_id must be positive, got %d", req.TeamID)
	}
	req.SyncType = strings.TrimSpace(req.SyncType)
	if req.SyncType == "" || req.SyncType == "all" {
		req.SyncType = syncer.TypeFull
	}
	if req.UserID == "" {
		req.UserID = defaultUser
	}
	return req, nil
}

// Dispatch runs one request and logs its outcome.
func Dispatch(ctx context.Context, runner maintenance.Runner, req SyncRequest, logger *slog.Logger) error {
	var (
		created, updated, failed int
		err                      error
	)
	if req.SyncType == syncer.TypeFull {
		var all *syncer.AllResult
		if all, err = runner.SyncAll(ctx, req.TeamID, req.UserID); all != nil {
			created, updated, failed = all.Created, all.Updated, all.Failed
		}
	} else {
		var res *syncer.Result
		if res, err = runner.Sync(ctx, req.SyncType, req.TeamID, req.UserID); res != nil {
			created, updated, failed = res.Created, res.Updated, res.Failed()
		}
	}

	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		logger.Info("Requested sync skipped, team busy", "team_id", req.TeamID, "sync_type", req.SyncType)
	case err != nil:
		logger.Warn("Requested sync failed", "team_id", req.TeamID, "sync_type", req.SyncType, "error", err)
	default:
		logger.Info("Requested sync done",
			"team_id", req.TeamID,
			"sync_type", req.SyncType,
			"created", created,
			"updated", updated,
			"failed", failed)
	}
	return err
}
