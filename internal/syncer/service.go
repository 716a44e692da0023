// Package syncer holds the entity synchronizers and the orchestrator that
// sequences them.
//
// Every synchronizer follows one shape: resolve the team's provider ids,
// open a SyncLog, obtain a token, fetch from the upstream and fold over the
// items so a bad record never aborts the batch, then touch the team and
// finalize the log. Runs for the same team are serialized by a TeamLocker.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/metrics"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// Upstream is the provider surface the synchronizers call.
type Upstream interface {
	Seasons(ctx context.Context, token string) ([]presto.Item, error)
	Roster(ctx context.Context, token, teamID, seasonID string) ([]presto.Item, error)
	Schedule(ctx context.Context, token, teamID, seasonID string) ([]presto.Item, error)
	SeasonStats(ctx context.Context, token, teamID, seasonID, filter string) ([]presto.Item, error)
	TeamRecord(ctx context.Context, token, teamID, seasonID string) (presto.Item, error)
	Releases(ctx context.Context, token, teamID string) ([]presto.Item, error)
	Event(ctx context.Context, token, eventID string) (presto.Item, error)
	BoxScore(ctx context.Context, token, eventID string) (presto.Item, error)
	LiveStats(ctx context.Context, token, eventID, homeTeamID string) (presto.Item, error)
	Player(ctx context.Context, token, playerID string) (presto.Item, error)
	CareerStats(ctx context.Context, token, playerID string) ([]presto.Item, error)
	Photos(ctx context.Context, token, playerID string) ([]presto.Item, error)
	Videos(ctx context.Context, token, playerID string) ([]presto.Item, error)
}

// Tokens resolves bearer tokens. RenewToken skips every cached or stored
// token and is used after an upstream 401.
type Tokens interface {
	GetToken(ctx context.Context, teamID int64) (string, error)
	RenewToken(ctx context.Context, teamID int64) (string, error)
}

// Options tunes the service. Zero values select defaults.
type Options struct {
	Location *time.Location // defines "today" for live stats; default UTC
	LockTTL  time.Duration
	Logger   *slog.Logger
}

// Service runs synchronizers against one record store and one upstream.
type Service struct {
	store  store.Store
	api    Upstream
	tokens Tokens
	locks  *TeamLocker
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Service.
func New(st store.Store, api Upstream, tokens Tokens, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		store:  st,
		api:    api,
		tokens: tokens,
		locks:  NewTeamLocker(opts.LockTTL),
		loc:    opts.Location,
		now:    time.Now,
		logger: opts.Logger,
	}
}

// Locks exposes the per-team locker so callers can report held teams.
func (s *Service) Locks() *TeamLocker { return s.locks }

// ---------------------------------------------------------------------------
// Run lifecycle
// ---------------------------------------------------------------------------

// Sync types recorded on SyncLog rows.
const (
	TypeRoster      = "roster"
	TypeSchedule    = "schedule"
	TypeStats       = "stats"
	TypeRecord      = "record"
	TypeSeasonStats = "season_stats"
	TypeCareerStats = "career_stats"
	TypeDetails     = "player_details"
	TypePhotos      = "photos"
	TypeVideos      = "videos"
	TypeReleases    = "press_releases"
	TypeHistorical  = "historical_stats"
	TypeLive        = "live_stats"
	TypeFull        = "full"
)

const finalizeTimeout = 10 * time.Second

const (
	requiresSeason   = true
	seasonIsOptional = false
)

// run is the per-invocation state a synchronizer works with.
type run struct {
	svc            *Service
	team           *store.Team
	userID         string
	providerTeamID string
	seasonID       string
	token          string
	res            *Result
	summary        map[string]any
}

// call invokes fn with the run's token. An upstream 401 renews the token
// and retries once.
func (r *run) call(ctx context.Context, fn func(token string) error) error {
	err := fn(r.token)
	if err == nil || !transport.IsUnauthorized(err) {
		return err
	}

	r.svc.logger.Warn("Upstream rejected token, renewing", "team_id", r.team.ID)
	token, rerr := r.svc.tokens.RenewToken(ctx, r.team.ID)
	if rerr != nil {
		return fmt.Errorf("renew token: %w", rerr)
	}
	r.token = token
	return fn(r.token)
}

// fetch is call for endpoints returning a value.
func fetch[T any](ctx context.Context, r *run, fn func(token string) (T, error)) (T, error) {
	var out T
	err := r.call(ctx, func(token string) error {
		var err error
		out, err = fn(token)
		return err
	})
	return out, err
}

// execute runs one synchronizer body under its own SyncLog. The returned
// Result is never nil; err is set only when the synchronizer could not run
// to completion.
func (s *Service) execute(ctx context.Context, teamID int64, userID, syncType, endpoint string,
	needSeason bool, body func(context.Context, *run) error) (*Result, error) {

	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newResult(), ErrTeamNotFound
		}
		return newResult(), fmt.Errorf("load team %d: %w", teamID, err)
	}

	r := &run{
		svc:            s,
		team:           team,
		userID:         userID,
		providerTeamID: team.ProviderTeamID,
		seasonID:       team.ProviderSeasonID,
		res:            newResult(),
		summary:        map[string]any{},
	}

	log := &store.SyncLog{
		TeamID:      teamID,
		SyncType:    syncType,
		Provider:    config.ProviderPresto,
		Endpoint:    endpoint,
		InitiatedBy: userID,
		Status:      store.SyncRunning,
		Config: map[string]string{
			"provider_team_id": r.providerTeamID,
			"season_id":        r.seasonID,
		},
		StartedAt: s.now(),
	}
	if err := s.store.CreateSyncLog(ctx, log); err != nil {
		return r.res, fmt.Errorf("create sync log: %w", err)
	}

	err = s.runBody(ctx, r, needSeason, body)
	s.finish(ctx, log, r, err)

	if err != nil {
		s.logger.Warn("Sync failed", "team_id", teamID, "type", syncType, "error", err)
	} else {
		s.logger.Info("Sync done",
			"team_id", teamID,
			"type", syncType,
			"created", r.res.Created,
			"updated", r.res.Updated,
			"skipped", r.res.Skipped,
			"failed", r.res.Failed(),
		)
	}
	return r.res, err
}

func (s *Service) runBody(ctx context.Context, r *run, needSeason bool, body func(context.Context, *run) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	if r.providerTeamID == "" {
		return fmt.Errorf("%w: team %d has no provider team id", ErrNotConfigured, r.team.ID)
	}
	if needSeason && r.seasonID == "" {
		return fmt.Errorf("%w: team %d has no provider season id", ErrNotConfigured, r.team.ID)
	}

	r.token, err = s.tokens.GetToken(ctx, r.team.ID)
	if err != nil {
		return err
	}

	if err := body(ctx, r); err != nil {
		return err
	}

	if err := s.store.TouchTeamSync(ctx, r.team.ID, s.now()); err != nil {
		s.logger.Warn("Failed to touch team sync time", "team_id", r.team.ID, "error", err)
	}
	return nil
}

// finish writes the final state of a SyncLog. A finalization failure is
// logged, never returned.
func (s *Service) finish(ctx context.Context, log *store.SyncLog, r *run, runErr error) {
	now := s.now()
	log.CompletedAt = &now
	log.Created = r.res.Created
	log.Updated = r.res.Updated
	log.Failed = r.res.Failed()
	log.Errors = r.res.Errors

	summary := map[string]any{
		"created": r.res.Created,
		"updated": r.res.Updated,
		"skipped": r.res.Skipped,
		"failed":  r.res.Failed(),
	}
	for k, v := range r.summary {
		summary[k] = v
	}

	switch {
	case runErr != nil:
		log.Status = store.SyncFailed
		log.ErrorMessage = runErr.Error()
		summary["error_kind"] = string(Classify(runErr))
	case r.res.Failed() > 0:
		log.Status = store.SyncPartial
	default:
		log.Status = store.SyncCompleted
	}
	log.Summary = summary

	metrics.SyncRuns.WithLabelValues(log.SyncType, log.Status).Inc()

	// Finalize even when ctx is already cancelled.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.store.FinishSyncLog(fctx, log); err != nil {
		s.logger.Error("Failed to finalize sync log", "log_id", log.ID, "error", err)
	}
}

// locked runs fn while holding the team's lock.
func (s *Service) locked(teamID int64, fn func() (*Result, error)) (*Result, error) {
	release, err := s.locks.Acquire(teamID)
	if err != nil {
		return newResult(), err
	}
	defer release()
	return fn()
}
