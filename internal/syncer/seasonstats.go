package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/stats"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

var (
	statPlayerID = provider.F("playerId", "player.id", "player.playerId", "id", "personId")
	statName     = provider.F("player.name", "playerName", "name", "fullName")
	statSeason   = provider.F("season", "seasonName", "seasonId", "year", "label")
	seasonKey    = provider.F("seasonId", "id", "season_id")
	seasonLabel  = provider.F("name", "label", "year", "seasonName")
)

// embeddedSplits are situational splits the main stats payload carries
// inline.
var embeddedSplits = map[string]provider.Field{
	"vs_left":      provider.F("splits.vsLeft", "splits.vs_left", "splits.vsLHP", "vsLeft", "vsLHP"),
	"vs_right":     provider.F("splits.vsRight", "splits.vs_right", "splits.vsRHP", "vsRight", "vsRHP"),
	"bases_loaded": provider.F("splits.basesLoaded", "splits.bases_loaded", "basesLoaded"),
	"two_outs":     provider.F("splits.twoOuts", "splits.two_outs", "twoOuts"),
	"leadoff":      provider.F("splits.leadoff", "splits.leadOff", "leadoff"),
	"risp":         provider.F("splits.risp", "splits.runnersInScoringPosition", "risp", "runnersInScoringPosition"),
}

// seasonFilters are fetched in a second pass and merged into splits.
var seasonFilters = []string{"home", "away", "conference"}

// SyncSeasonStats upserts per-player stats for the configured season.
func (s *Service) SyncSeasonStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncSeasonStats(ctx, teamID, userID)
	})
}

func (s *Service) syncSeasonStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeSeasonStats, "/v2/teams/{teamId}/players/stats", requiresSeason,
		func(ctx context.Context, r *run) error {
			roster, err := r.roster(ctx)
			if err != nil {
				return err
			}
			return r.seasonFlow(ctx, r.seasonID, roster)
		})
}

// SyncHistoricalStats runs the season flow for every season the provider
// knows.
func (s *Service) SyncHistoricalStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.execute(ctx, teamID, userID, TypeHistorical, "/v2/seasons", seasonIsOptional,
			func(ctx context.Context, r *run) error {
				seasons, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
					return s.api.Seasons(ctx, token)
				})
				if err != nil {
					return fmt.Errorf("fetch seasons: %w", err)
				}
				roster, err := r.roster(ctx)
				if err != nil {
					return err
				}

				done := 0
				for _, season := range seasons {
					if err := ctx.Err(); err != nil {
						return err
					}
					id := seasonKey.String(season)
					if id == "" {
						continue
					}
					if err := r.seasonFlow(ctx, id, roster); err != nil {
						r.res.addError(id, "season", seasonLabel.String(season), err)
						continue
					}
					done++
				}
				r.summary["seasons"] = done
				return nil
			})
	})
}

// seasonFlow fetches one season's stats plus the filtered variants and
// upserts one row per rostered player.
func (r *run) seasonFlow(ctx context.Context, season string, roster map[string]store.Player) error {
	items, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
		return r.svc.api.SeasonStats(ctx, token, r.providerTeamID, season, "")
	})
	if transport.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch season stats %s: %w", season, err)
	}

	filtered := make(map[string]map[string]stats.Line, len(seasonFilters))
	for _, filter := range seasonFilters {
		list, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
			return r.svc.api.SeasonStats(ctx, token, r.providerTeamID, season, filter)
		})
		if err != nil {
			r.svc.logger.Warn("Season stats filter unavailable",
				"team_id", r.team.ID, "season", season, "filter", filter, "error", err)
			continue
		}
		byPlayer := make(map[string]stats.Line, len(list))
		for _, item := range list {
			if id := statPlayerID.String(item); id != "" {
				byPlayer[id] = stats.FromItem(item)
			}
		}
		filtered[filter] = byPlayer
	}

	return fold(ctx, r.res, "season_stats", items, statIdent, func(ctx context.Context, item presto.Item) (outcome, error) {
		id := statPlayerID.String(item)
		if id == "" {
			return outcomeNone, mappingErr("stat row has no player id")
		}
		p, ok := roster[id]
		if !ok {
			return outcomeSkipped, nil
		}

		line := stats.FromItem(item)
		splits := map[string]any{}
		for name, field := range embeddedSplits {
			if m := field.Map(item); m != nil {
				if l := stats.FromItem(m); !l.IsEmpty() {
					splits[name] = l
				}
			}
		}
		for filter, byPlayer := range filtered {
			if l, ok := byPlayer[id]; ok && !l.IsEmpty() {
				splits[filter] = l
			}
		}
		if line.IsEmpty() && len(splits) == 0 {
			return outcomeSkipped, nil
		}

		created, err := r.svc.store.UpsertSeasonStats(ctx, &store.PlayerSeasonStats{
			Synced: store.Synced{
				TeamID:       r.team.ID,
				ExternalID:   id + "-" + season,
				SourceSystem: store.SourcePresto,
			},
			PlayerID: p.ID,
			Season:   season,
			Stats:    line,
			Splits:   splits,
		})
		if err != nil {
			return outcomeNone, fmt.Errorf("upsert season stats: %w", err)
		}
		return upserted(created), nil
	})
}

func statIdent(item presto.Item) (string, string) {
	return statPlayerID.String(item), statName.String(item)
}

// SyncCareerStats aggregates every rostered player's per-season entries.
func (s *Service) SyncCareerStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncCareerStats(ctx, teamID, userID)
	})
}

func (s *Service) syncCareerStats(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeCareerStats, "/v2/players/{playerId}/stats/career", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			players, err := r.syncedPlayers(ctx)
			if err != nil {
				return err
			}

			return fold(ctx, r.res, "career_stats", players, playerIdent, func(ctx context.Context, p store.Player) (outcome, error) {
				entries, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
					return s.api.CareerStats(ctx, token, p.ExternalID)
				})
				if transport.IsNotFound(err) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, fmt.Errorf("fetch career stats: %w", err)
				}

				var lines []stats.Line
				for _, e := range entries {
					if isAggregateRow(statSeason.String(e)) {
						continue
					}
					if l := stats.FromItem(e); !l.IsEmpty() {
						lines = append(lines, l)
					}
				}
				if len(lines) == 0 {
					return outcomeSkipped, nil
				}

				created, err := s.store.UpsertCareerStats(ctx, &store.PlayerCareerStats{
					Synced: store.Synced{
						TeamID:       r.team.ID,
						ExternalID:   p.ExternalID,
						SourceSystem: store.SourcePresto,
					},
					PlayerID:      p.ID,
					SeasonsPlayed: len(lines),
					Stats:         stats.Career(lines),
				})
				if err != nil {
					return outcomeNone, fmt.Errorf("upsert career stats: %w", err)
				}
				return upserted(created), nil
			})
		})
}

// isAggregateRow reports provider-side total rows, which would double count.
func isAggregateRow(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "career") || strings.Contains(l, "total")
}

// syncedPlayers lists the team's players that have an external id.
func (r *run) syncedPlayers(ctx context.Context) ([]store.Player, error) {
	players, err := r.svc.store.ListPlayers(ctx, r.team.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := players[:0]
	for _, p := range players {
		if p.ExternalID != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func playerIdent(p store.Player) (string, string) {
	return p.ExternalID, p.FullName()
}
