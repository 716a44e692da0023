package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/boxscore"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// SyncGameStats ingests box scores for every completed game.
func (s *Service) SyncGameStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncGameStats(ctx, teamID, userID)
	})
}

func (s *Service) syncGameStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeStats, "/v2/events/{eventId}/stats", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			games, err := s.store.ListGames(ctx, r.team.ID, time.Time{}, time.Time{})
			if err != nil {
				return fmt.Errorf("list games: %w", err)
			}
			roster, err := r.roster(ctx)
			if err != nil {
				return err
			}

			var completed []store.Game
			for _, g := range games {
				if g.Status == store.GameCompleted && g.ExternalID != "" {
					completed = append(completed, g)
				}
			}
			r.summary["games"] = len(completed)

			return fold(ctx, r.res, "game_stats", completed, gameIdent, func(ctx context.Context, g store.Game) (outcome, error) {
				payload, err := fetch(ctx, r, func(token string) (presto.Item, error) {
					return s.api.BoxScore(ctx, token, g.ExternalID)
				})
				if transport.IsNotFound(err) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, fmt.Errorf("fetch box score: %w", err)
				}

				lines, err := boxscore.FromPayload(payload)
				if errors.Is(err, boxscore.ErrNoBoxScore) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, mappingErr("parse box score: " + err.Error())
				}
				return outcomeNone, r.ingestLines(ctx, &g, lines, roster)
			})
		})
}

func gameIdent(g store.Game) (string, string) {
	return g.ExternalID, g.Opponent
}

// roster indexes the team's synced players by external id.
func (r *run) roster(ctx context.Context) (map[string]store.Player, error) {
	players, err := r.svc.store.ListPlayers(ctx, r.team.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make(map[string]store.Player, len(players))
	for _, p := range players {
		if p.ExternalID != "" {
			out[p.ExternalID] = p
		}
	}
	return out, nil
}

// ingestLines upserts one game's stat lines. Lines for players outside the
// local roster belong to the opponent and are dropped without error.
func (r *run) ingestLines(ctx context.Context, g *store.Game, lines []boxscore.PlayerStatLine,
	roster map[string]store.Player) error {

	unmatched := 0
	err := fold(ctx, r.res, "game_statistic", lines, lineIdent, func(ctx context.Context, l boxscore.PlayerStatLine) (outcome, error) {
		p, ok := roster[l.PlayerID]
		if !ok {
			unmatched++
			return outcomeNone, nil
		}
		if l.Line.IsEmpty() {
			return outcomeSkipped, nil
		}

		pos, _ := normalizePositions(l.Position)
		created, err := r.svc.store.UpsertGameStatistic(ctx, &store.GameStatistic{
			Synced: store.Synced{
				TeamID:       r.team.ID,
				ExternalID:   g.ExternalID + "-" + l.PlayerID,
				SourceSystem: store.SourcePresto,
			},
			GameID:   g.ID,
			PlayerID: p.ID,
			Position: pos,
			Stats:    l.Line,
		})
		if err != nil {
			return outcomeNone, fmt.Errorf("upsert game statistic: %w", err)
		}
		return upserted(created), nil
	})

	if n, _ := r.summary["unmatched_lines"].(int); unmatched > 0 {
		r.summary["unmatched_lines"] = n + unmatched
	}
	return err
}

func lineIdent(l boxscore.PlayerStatLine) (string, string) {
	return l.PlayerID, l.Name
}
