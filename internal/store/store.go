// Package store is the record-store collaborator of the sync engine: lookup,
// create, update and upsert by external id for every synced entity, plus
// credentials and sync logs.
//
// Two implementations exist: Postgres (pgx) for production and Memory for
// tests and local runs. Upserts report whether the row was created so
// synchronizers can count created versus updated.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: not found")
	// ErrMissingExternalID rejects upserts of local-only rows.
	ErrMissingExternalID = errors.New("store: external_id is required for upsert")
	// ErrLogFinalized rejects a second finalization of a sync log.
	ErrLogFinalized = errors.New("store: sync log already finalized")
)

// Teams covers the team rows this subsystem mutates.
type Teams interface {
	GetTeam(ctx context.Context, teamID int64) (*Team, error)
	SetTeamProvider(ctx context.Context, teamID int64, providerTeamID, seasonID string) error
	TouchTeamSync(ctx context.Context, teamID int64, at time.Time) error
	UpdateTeamRecord(ctx context.Context, teamID int64, rec TeamRecord) error
}

// Credentials covers the credential bundle. At most one row exists per
// (team, provider).
type Credentials interface {
	GetCredential(ctx context.Context, teamID int64, provider string) (*Credential, error)
	SaveCredential(ctx context.Context, c *Credential) error
	SaveTokens(ctx context.Context, teamID int64, provider string, upd TokenUpdate) error
	DeleteCredential(ctx context.Context, teamID int64, provider string) error
}

// Entities covers the synced entities.
type Entities interface {
	UpsertPlayer(ctx context.Context, p *Player) (created bool, err error)
	// PatchPlayer sets the non-empty fields of p on an existing player.
	PatchPlayer(ctx context.Context, p *Player) error
	FindPlayer(ctx context.Context, teamID int64, externalID string) (*Player, error)
	ListPlayers(ctx context.Context, teamID int64) ([]Player, error)

	UpsertGame(ctx context.Context, g *Game) (created bool, err error)
	FindGame(ctx context.Context, teamID int64, externalID string) (*Game, error)
	// ListGames returns games with an external id whose date falls in
	// [from, to). Zero bounds are open.
	ListGames(ctx context.Context, teamID int64, from, to time.Time) ([]Game, error)

	UpsertGameStatistic(ctx context.Context, s *GameStatistic) (created bool, err error)
	UpsertSeasonStats(ctx context.Context, s *PlayerSeasonStats) (created bool, err error)
	UpsertCareerStats(ctx context.Context, s *PlayerCareerStats) (created bool, err error)
	UpsertVideo(ctx context.Context, v *PlayerVideo) (created bool, err error)
	UpsertNewsRelease(ctx context.Context, n *NewsRelease) (created bool, err error)
}

// SyncLogs covers the audit trail. A log is created once and finalized
// once; FinishSyncLog on a finalized log returns ErrLogFinalized.
type SyncLogs interface {
	CreateSyncLog(ctx context.Context, l *SyncLog) error
	FinishSyncLog(ctx context.Context, l *SyncLog) error
	GetSyncLog(ctx context.Context, id uuid.UUID) (*SyncLog, error)
	ListSyncLogs(ctx context.Context, teamID int64, limit int) ([]SyncLog, error)
}

// Housekeeping covers the background jobs: scheduled syncs for linked teams
// and sync log retention.
type Housekeeping interface {
	// ListLinkedTeams returns teams with a provider team id, ordered by id.
	ListLinkedTeams(ctx context.Context) ([]Team, error)
	// AbandonSyncLogs fails logs still running that started before cutoff.
	AbandonSyncLogs(ctx context.Context, cutoff time.Time, reason string) (int64, error)
	// PurgeSyncLogs deletes finalized logs that started before cutoff.
	PurgeSyncLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full record store.
type Store interface {
	Teams
	Credentials
	Entities
	SyncLogs
	Housekeeping
}
