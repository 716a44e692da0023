package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

var (
	recordWins       = provider.F("wins", "overall.wins", "record.wins", "overallWins", "w")
	recordLosses     = provider.F("losses", "overall.losses", "record.losses", "overallLosses", "l")
	recordTies       = provider.F("ties", "overall.ties", "record.ties", "overallTies", "t")
	recordConfWins   = provider.F("conferenceWins", "conference.wins", "conf.wins", "confWins")
	recordConfLosses = provider.F("conferenceLosses", "conference.losses", "conf.losses", "confLosses")
	recordConfTies   = provider.F("conferenceTies", "conference.ties", "conf.ties", "confTies")
)

// SyncRecord refreshes the team's denormalized win-loss record. When the
// provider has no counts the record is derived from local completed games.
func (s *Service) SyncRecord(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncRecord(ctx, teamID, userID)
	})
}

func (s *Service) syncRecord(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeRecord, "/v2/teams/{teamId}/record", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			item, err := fetch(ctx, r, func(token string) (presto.Item, error) {
				return s.api.TeamRecord(ctx, token, r.providerTeamID, r.seasonID)
			})
			if err != nil && !transport.IsNotFound(err) {
				return fmt.Errorf("fetch record: %w", err)
			}

			rec, ok := recordFromItem(item)
			source := "provider"
			if !ok {
				games, err := s.store.ListGames(ctx, r.team.ID, time.Time{}, time.Time{})
				if err != nil {
					return fmt.Errorf("list games: %w", err)
				}
				rec = recordFromGames(games)
				source = "local_games"
			}

			if err := s.store.UpdateTeamRecord(ctx, r.team.ID, rec); err != nil {
				return fmt.Errorf("update record: %w", err)
			}
			r.res.Updated++
			r.summary["source"] = source
			r.summary["record"] = rec
			return nil
		})
}

// recordFromItem reads provider counts; ok is false when neither wins nor
// losses are present.
func recordFromItem(item presto.Item) (store.TeamRecord, bool) {
	if item == nil {
		return store.TeamRecord{}, false
	}
	w, hasW := recordWins.Int(item)
	l, hasL := recordLosses.Int(item)
	if !hasW && !hasL {
		return store.TeamRecord{}, false
	}
	rec := store.TeamRecord{Wins: w, Losses: l}
	rec.Ties, _ = recordTies.Int(item)
	rec.ConferenceWins, _ = recordConfWins.Int(item)
	rec.ConferenceLosses, _ = recordConfLosses.Int(item)
	rec.ConferenceTies, _ = recordConfTies.Int(item)
	return rec, true
}

// recordFromGames tallies completed games with a result.
func recordFromGames(games []store.Game) store.TeamRecord {
	var rec store.TeamRecord
	for _, g := range games {
		if g.Status != store.GameCompleted || g.Result == nil {
			continue
		}
		switch *g.Result {
		case "W":
			rec.Wins++
			if g.IsConference {
				rec.ConferenceWins++
			}
		case "L":
			rec.Losses++
			if g.IsConference {
				rec.ConferenceLosses++
			}
		case "T":
			rec.Ties++
			if g.IsConference {
				rec.ConferenceTies++
			}
		}
	}
	return rec
}
