package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/metrics"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

// ErrUnknownSync is returned by Sync for an unrecognised sync type.
var ErrUnknownSync = errors.New("unknown sync type")

type syncFunc func(s *Service, ctx context.Context, teamID int64, userID string) (*Result, error)

// step is one synchronizer in the full-sync sequence.
type step struct {
	name string
	fn   syncFunc
}

// fullSequence runs roster and schedule first since stats rows reference
// players and games by external id.
var fullSequence = []step{
	{TypeRoster, (*Service).syncRoster},
	{TypeSchedule, (*Service).syncSchedule},
	{TypeRecord, (*Service).syncRecord},
	{TypeDetails, (*Service).syncPlayerDetails},
	{TypePhotos, (*Service).syncPhotos},
	{TypeStats, (*Service).syncGameStats},
	{TypeSeasonStats, (*Service).syncSeasonStats},
	{TypeCareerStats, (*Service).syncCareerStats},
	{TypeVideos, (*Service).syncVideos},
	{TypeReleases, (*Service).syncPressReleases},
	{TypeLive, (*Service).syncLiveStats},
}

// single maps every sync type to its public, lock-taking entry point.
var single = map[string]syncFunc{
	TypeRoster:      (*Service).SyncRoster,
	TypeSchedule:    (*Service).SyncSchedule,
	TypeStats:       (*Service).SyncGameStats,
	TypeRecord:      (*Service).SyncRecord,
	TypeSeasonStats: (*Service).SyncSeasonStats,
	TypeCareerStats: (*Service).SyncCareerStats,
	TypeDetails:     (*Service).SyncPlayerDetails,
	TypePhotos:      (*Service).SyncPhotos,
	TypeVideos:      (*Service).SyncVideos,
	TypeReleases:    (*Service).SyncPressReleases,
	TypeHistorical:  (*Service).SyncHistoricalStats,
	TypeLive:        (*Service).SyncLiveStats,
}

// Types lists the single-entity sync types, sorted.
func Types() []string {
	out := make([]string, 0, len(single))
	for k := range single {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sync runs one synchronizer by type name. Hyphens and underscores are
// interchangeable.
func (s *Service) Sync(ctx context.Context, syncType string, teamID int64, userID string) (*Result, error) {
	fn, ok := single[strings.ReplaceAll(strings.ToLower(syncType), "-", "_")]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSync, syncType)
	}
	return fn(s, ctx, teamID, userID)
}

// ---------------------------------------------------------------------------
// Full sync
// ---------------------------------------------------------------------------

// StepError is a synchronizer that failed before finishing.
type StepError struct {
	Sync    string `json:"sync"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// AllResult aggregates a full sync.
type AllResult struct {
	LogID   uuid.UUID          `json:"logId"`
	Results map[string]*Result `json:"results"`
	Errors  []StepError        `json:"errors"`
	Created int                `json:"created"`
	Updated int                `json:"updated"`
	Skipped int                `json:"skipped"`
	Failed  int                `json:"failed"`
}

// SyncAll runs every synchronizer in sequence. A failing synchronizer is
// recorded in Errors and the next one still runs. Only a missing team, a
// held lock, or a configuration or authentication problem detected before
// any work starts is returned as an error.
func (s *Service) SyncAll(ctx context.Context, teamID int64, userID string) (*AllResult, error) {
	release, err := s.locks.Acquire(teamID)
	if err != nil {
		return nil, err
	}
	defer release()

	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("load team %d: %w", teamID, err)
	}

	log := &store.SyncLog{
		TeamID:      teamID,
		SyncType:    TypeFull,
		Provider:    config.ProviderPresto,
		Endpoint:    "all",
		InitiatedBy: userID,
		Status:      store.SyncRunning,
		Config: map[string]string{
			"provider_team_id": team.ProviderTeamID,
			"season_id":        team.ProviderSeasonID,
		},
		StartedAt: s.now(),
	}
	if err := s.store.CreateSyncLog(ctx, log); err != nil {
		return nil, fmt.Errorf("create sync log: %w", err)
	}

	all := &AllResult{
		LogID:   log.ID,
		Results: make(map[string]*Result, len(fullSequence)),
		Errors:  []StepError{},
	}

	if err := s.precheck(ctx, team); err != nil {
		s.finishAll(ctx, log, all, err)
		return all, err
	}

	for _, st := range fullSequence {
		if ctx.Err() != nil {
			all.Errors = append(all.Errors, StepError{Sync: st.name, Kind: Classify(ctx.Err()), Message: ctx.Err().Error()})
			continue
		}

		res, err := s.safeStep(ctx, st, teamID, userID)
		all.Results[st.name] = res
		all.Created += res.Created
		all.Updated += res.Updated
		all.Skipped += res.Skipped
		all.Failed += res.Failed()

		if err != nil {
			all.Errors = append(all.Errors, StepError{Sync: st.name, Kind: Classify(err), Message: err.Error()})
			s.logger.Warn("Synchronizer failed, continuing", "team_id", teamID, "sync", st.name, "error", err)
		}
	}

	s.finishAll(ctx, log, all, nil)
	s.logger.Info("Full sync done",
		"team_id", teamID,
		"created", all.Created,
		"updated", all.Updated,
		"failed", all.Failed,
		"sync_errors", len(all.Errors),
	)
	return all, nil
}

// precheck fails fast on a team that cannot sync at all.
func (s *Service) precheck(ctx context.Context, team *store.Team) error {
	if team.ProviderTeamID == "" {
		return fmt.Errorf("%w: team %d has no provider team id", ErrNotConfigured, team.ID)
	}
	if _, err := s.tokens.GetToken(ctx, team.ID); err != nil {
		return err
	}
	return nil
}

func (s *Service) safeStep(ctx context.Context, st step, teamID int64, userID string) (res *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v", st.name, rec)
		}
		if res == nil {
			res = newResult()
		}
	}()
	return st.fn(s, ctx, teamID, userID)
}

func (s *Service) finishAll(ctx context.Context, log *store.SyncLog, all *AllResult, runErr error) {
	log.Created = all.Created
	log.Updated = all.Updated
	log.Failed = all.Failed

	perSync := make(map[string]any, len(all.Results))
	for name, res := range all.Results {
		perSync[name] = map[string]int{
			"created": res.Created,
			"updated": res.Updated,
			"skipped": res.Skipped,
			"failed":  res.Failed(),
		}
		log.Errors = append(log.Errors, res.Errors...)
	}
	for _, e := range all.Errors {
		log.Errors = append(log.Errors, ItemError{ItemID: e.Sync, EntityType: "sync", Message: e.Message})
	}
	log.Summary = map[string]any{
		"syncs":       perSync,
		"sync_errors": all.Errors,
		"skipped":     all.Skipped,
	}

	switch {
	case runErr != nil:
		log.Status = store.SyncFailed
		log.ErrorMessage = runErr.Error()
		log.Summary["error_kind"] = string(Classify(runErr))
	case len(all.Errors) == len(fullSequence):
		log.Status = store.SyncFailed
		log.ErrorMessage = "every synchronizer failed"
	case len(all.Errors) > 0 || all.Failed > 0:
		log.Status = store.SyncPartial
	default:
		log.Status = store.SyncCompleted
	}

	now := s.now()
	log.CompletedAt = &now
	metrics.SyncRuns.WithLabelValues(TypeFull, log.Status).Inc()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.store.FinishSyncLog(fctx, log); err != nil {
		s.logger.Error("Failed to finalize sync log", "log_id", log.ID, "error", err)
	}
}
