// Package db provides a pgxpool-based connection pool with prepared statement
// registration, health checking and embedded schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lleo5301/sports2-backend-sub005/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, StmtHealthCheck).Scan(&n)
}

// Prepared statement names shared with the store package.
const (
	StmtHealthCheck        = "health_check"
	StmtTeamByID           = "team_by_id"
	StmtCredentialByTeam   = "credential_by_team"
	StmtPlayerByExternalID = "player_by_external_id"
	StmtGameByExternalID   = "game_by_external_id"
	StmtSyncLogByID        = "sync_log_by_id"
)

// Column lists for the prepared lookups; the store scans in this order.
const (
	TeamColumns = `id, name, COALESCE(provider_team_id, ''), COALESCE(provider_season_id, ''),
		last_synced_at, wins, losses, ties, conference_wins, conference_losses, conference_ties`

	CredentialColumns = `id, team_id, provider, kind, encrypted_credentials,
		encrypted_access_token, encrypted_refresh_token, access_expires_at,
		refresh_expires_at, last_refresh_at, config, created_at, updated_at`

	PlayerColumns = `id, team_id, external_id, COALESCE(source_system, ''),
		COALESCE(last_synced_at, updated_at), COALESCE(first_name, ''), COALESCE(last_name, ''),
		COALESCE(jersey, ''), COALESCE(position, ''), COALESCE(secondary_position, ''),
		COALESCE(class_year, ''), COALESCE(height, ''), weight, COALESCE(bats, ''),
		COALESCE(throws, ''), COALESCE(hometown, ''), COALESCE(high_school, ''),
		COALESCE(previous_school, ''), COALESCE(major, ''), COALESCE(bio, ''),
		COALESCE(photo_url, ''), status`

	GameColumns = `id, team_id, external_id, COALESCE(source_system, ''),
		COALESCE(last_synced_at, updated_at), opponent, home_away, game_date,
		COALESCE(game_time, ''), COALESCE(location, ''), COALESCE(venue, ''), status,
		team_score, opponent_score, result, is_conference, COALESCE(inning, '')`

	SyncLogColumns = `id, team_id, sync_type, provider, COALESCE(endpoint, ''),
		COALESCE(initiated_by, ''), status, config, started_at, completed_at,
		items_created, items_updated, items_failed, summary, errors, COALESCE(error_message, '')`
)

// registerPreparedStatements registers the lookups the sync engine runs on
// every item. Prepared statements eliminate parse overhead on hot paths.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		StmtHealthCheck: "SELECT 1",

		// Teams and credentials
		StmtTeamByID:         "SELECT " + TeamColumns + " FROM " + config.TeamsTable + " WHERE id = $1",
		StmtCredentialByTeam: "SELECT " + CredentialColumns + " FROM " + config.CredentialsTable + " WHERE team_id = $1 AND provider = $2",

		// Sync lookups by external id
		StmtPlayerByExternalID: "SELECT " + PlayerColumns + " FROM " + config.PlayersTable + " WHERE team_id = $1 AND external_id = $2",
		StmtGameByExternalID:   "SELECT " + GameColumns + " FROM " + config.GamesTable + " WHERE team_id = $1 AND external_id = $2",

		// Audit
		StmtSyncLogByID: "SELECT " + SyncLogColumns + " FROM " + config.SyncLogsTable + " WHERE id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
