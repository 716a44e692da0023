package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/boxscore"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

var (
	liveHomeScore = provider.F("homeScore", "score.home", "teams.home.score", "home.runs", "linescore.home.runs")
	liveAwayScore = provider.F("awayScore", "score.away", "teams.away.score", "away.runs", "linescore.away.runs")
	liveStatus    = provider.F("statusText", "status.text", "status", "gameStatus", "state")
	liveCode      = provider.F("statusCode", "status.code", "status_code")
	liveInning    = provider.F("inningDisplay", "inning", "currentInning", "status.inning")
)

// SyncLiveStats updates today's games in place from the live endpoint.
// "Today" is the calendar day in the service location.
func (s *Service) SyncLiveStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncLiveStats(ctx, teamID, userID)
	})
}

func (s *Service) syncLiveStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeLive, "/v2/events/{eventId}/livestats", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			from, to := s.today()
			games, err := s.store.ListGames(ctx, r.team.ID, from, to)
			if err != nil {
				return fmt.Errorf("list games: %w", err)
			}
			r.summary["games"] = len(games)
			if len(games) == 0 {
				return nil
			}

			roster, err := r.roster(ctx)
			if err != nil {
				return err
			}

			notStarted := 0
			err = fold(ctx, r.res, "live_game", games, gameIdent, func(ctx context.Context, g store.Game) (outcome, error) {
				out, err := r.liveGame(ctx, g, roster)
				if err == nil && out == outcomeSkipped {
					notStarted++
				}
				return out, err
			})
			r.summary["not_started"] = notStarted
			return err
		})
}

func (s *Service) today() (time.Time, time.Time) {
	now := s.now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}

// liveGame refreshes one game. A 404 from the live endpoint means the game
// has not started; a 404 on the event itself means the provider dropped it.
// Both are skips.
func (r *run) liveGame(ctx context.Context, g store.Game, roster map[string]store.Player) (outcome, error) {
	event, err := fetch(ctx, r, func(token string) (presto.Item, error) {
		return r.svc.api.Event(ctx, token, g.ExternalID)
	})
	if transport.IsNotFound(err) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeNone, fmt.Errorf("fetch event: %w", err)
	}
	homeID := eventHomeID.String(event)
	if homeID == "" {
		return outcomeNone, mappingErr("event " + g.ExternalID + " has no home team id")
	}

	live, err := fetch(ctx, r, func(token string) (presto.Item, error) {
		return r.svc.api.LiveStats(ctx, token, g.ExternalID, homeID)
	})
	if transport.IsNotFound(err) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeNone, fmt.Errorf("fetch live stats: %w", err)
	}

	home, away := liveHomeScore.IntPtr(live), liveAwayScore.IntPtr(live)
	teamIsHome := homeID == r.providerTeamID
	if homeID != r.providerTeamID && eventAwayID.String(event) != r.providerTeamID {
		teamIsHome = g.HomeAway != "away"
	}
	if teamIsHome {
		g.TeamScore, g.OpponentScore = home, away
	} else {
		g.TeamScore, g.OpponentScore = away, home
	}

	hasScores := g.TeamScore != nil && g.OpponentScore != nil
	g.Status = normalizeStatus(liveStatus.String(live), liveCode.IntPtr(live), hasScores)
	if g.Status == store.GameScheduled && hasScores {
		g.Status = store.GameInProgress
	}
	if inning := liveInning.String(live); inning != "" {
		g.Inning = inning
	}
	g.Result = nil
	if g.Status == store.GameCompleted {
		g.Result = determineResult(g.TeamScore, g.OpponentScore)
	}

	created, err := r.svc.store.UpsertGame(ctx, &g)
	if err != nil {
		return outcomeNone, fmt.Errorf("update game: %w", err)
	}

	lines, err := boxscore.FromPayload(live)
	switch {
	case errors.Is(err, boxscore.ErrNoBoxScore):
	case err != nil:
		r.svc.logger.Warn("Live box score unreadable", "event_id", g.ExternalID, "error", err)
	default:
		if err := r.ingestLines(ctx, &g, lines, roster); err != nil {
			return outcomeNone, err
		}
	}
	return upserted(created), nil
}
