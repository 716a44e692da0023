package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

// Event field chains.
var (
	eventID         = provider.F("eventId", "id", "event_id", "gameId")
	eventDate       = provider.F("startDateTime", "dateTime", "date", "eventDate", "startDate", "gameDate")
	eventTime       = provider.F("time", "startTime", "eventTime", "gameTime")
	eventHomeID     = provider.F("homeTeamId", "teams.home.id", "homeTeam.id", "home.teamId", "home.id")
	eventAwayID     = provider.F("awayTeamId", "teams.away.id", "awayTeam.id", "away.teamId", "away.id")
	eventHomeName   = provider.F("homeTeamName", "teams.home.name", "homeTeam.name", "home.name")
	eventAwayName   = provider.F("awayTeamName", "teams.away.name", "awayTeam.name", "away.name")
	eventHomeScore  = provider.F("homeScore", "teams.home.score", "homeTeam.score", "home.score", "score.home")
	eventAwayScore  = provider.F("awayScore", "teams.away.score", "awayTeam.score", "away.score", "score.away")
	eventOpponent   = provider.F("opponent.name", "opponentName", "opponent")
	eventSide       = provider.F("homeAway", "home_away", "side")
	eventStatusText = provider.F("statusText", "status.text", "status", "gameStatus", "state")
	eventStatusCode = provider.F("statusCode", "status_code", "status.code", "eventStatusCode")
	eventLocation   = provider.F("location", "city", "venue.city")
	eventVenue      = provider.F("venue.name", "venueName", "venue", "facility")
	eventNeutral    = provider.F("neutralSite", "neutral", "isNeutral")
	eventConference = provider.F("conference", "isConference", "conferenceGame", "isConferenceGame")
	eventInning     = provider.F("inning", "currentInning", "period", "status.inning")
)

// SyncSchedule upserts the team's games for its configured season.
func (s *Service) SyncSchedule(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncSchedule(ctx, teamID, userID)
	})
}

func (s *Service) syncSchedule(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeSchedule, "/v2/teams/{teamId}/events", requiresSeason,
		func(ctx context.Context, r *run) error {
			items, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
				return s.api.Schedule(ctx, token, r.providerTeamID, r.seasonID)
			})
			if err != nil {
				return fmt.Errorf("fetch schedule: %w", err)
			}
			r.summary["fetched"] = len(items)

			return fold(ctx, r.res, "game", items, eventIdent, func(ctx context.Context, item presto.Item) (outcome, error) {
				g, err := r.mapGame(item)
				if err != nil {
					return outcomeNone, err
				}
				created, err := s.store.UpsertGame(ctx, g)
				if err != nil {
					return outcomeNone, fmt.Errorf("upsert game: %w", err)
				}
				return upserted(created), nil
			})
		})
}

func eventIdent(item presto.Item) (string, string) {
	name := eventHomeName.String(item)
	if away := eventAwayName.String(item); away != "" {
		name = away + " at " + name
	}
	return eventID.String(item), strings.TrimSpace(name)
}

// sides is the team's view of an event.
type sides struct {
	homeAway  string
	opponent  string
	teamScore *int
	oppScore  *int
}

// resolveSides decides which side of item the team is on, by provider id
// first and by name substring second.
func (r *run) resolveSides(item presto.Item) (sides, error) {
	homeID, awayID := eventHomeID.String(item), eventAwayID.String(item)
	homeName, awayName := eventHomeName.String(item), eventAwayName.String(item)
	homeScore, awayScore := eventHomeScore.IntPtr(item), eventAwayScore.IntPtr(item)

	isHome, known := false, false
	switch {
	case homeID != "" && homeID == r.providerTeamID:
		isHome, known = true, true
	case awayID != "" && awayID == r.providerTeamID:
		isHome, known = false, true
	case nameMatches(r.team.Name, homeName):
		isHome, known = true, true
	case nameMatches(r.team.Name, awayName):
		isHome, known = false, true
	}

	if !known {
		// Team-scoped schedules sometimes list only the opponent.
		opp := eventOpponent.String(item)
		side := strings.ToLower(eventSide.String(item))
		if opp == "" {
			return sides{}, mappingErr("cannot determine home/away side")
		}
		out := sides{opponent: cleanOpponent(opp), homeAway: "home"}
		if side == "away" || side == "a" || strings.HasPrefix(opp, "at ") || strings.HasPrefix(opp, "@") {
			out.homeAway = "away"
		}
		out.teamScore = provider.F("teamScore", "score.team", "score").IntPtr(item)
		out.oppScore = provider.F("opponentScore", "score.opponent", "oppScore").IntPtr(item)
		return out, nil
	}

	out := sides{homeAway: "away", opponent: homeName, teamScore: awayScore, oppScore: homeScore}
	if isHome {
		out = sides{homeAway: "home", opponent: awayName, teamScore: homeScore, oppScore: awayScore}
	}
	if out.opponent == "" {
		out.opponent = cleanOpponent(eventOpponent.String(item))
	}
	return out, nil
}

// cleanOpponent strips "at ", "vs " and "@" markers from an opponent label.
func cleanOpponent(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"at ", "vs. ", "vs ", "@"} {
		s = strings.TrimPrefix(s, p)
	}
	return strings.TrimSpace(s)
}

func nameMatches(team, candidate string) bool {
	team, candidate = strings.ToLower(strings.TrimSpace(team)), strings.ToLower(strings.TrimSpace(candidate))
	if team == "" || candidate == "" {
		return false
	}
	return strings.Contains(candidate, team) || strings.Contains(team, candidate)
}

// mapGame normalizes one schedule event.
func (r *run) mapGame(item presto.Item) (*store.Game, error) {
	id := eventID.String(item)
	if id == "" {
		return nil, mappingErr("event has no id")
	}

	sd, err := r.resolveSides(item)
	if err != nil {
		return nil, err
	}

	g := &store.Game{
		Synced: store.Synced{
			TeamID:       r.team.ID,
			ExternalID:   id,
			SourceSystem: store.SourcePresto,
		},
		Opponent:      sd.opponent,
		HomeAway:      sd.homeAway,
		Location:      eventLocation.String(item),
		Venue:         eventVenue.String(item),
		TeamScore:     sd.teamScore,
		OpponentScore: sd.oppScore,
		Inning:        eventInning.String(item),
	}
	if g.Opponent == "" {
		return nil, mappingErr("event " + id + " has no opponent")
	}
	if neutral, _ := eventNeutral.Bool(item); neutral {
		g.HomeAway = "neutral"
	}
	g.IsConference, _ = eventConference.Bool(item)

	if err := r.svc.applyDate(g, eventDate.String(item), eventTime.String(item)); err != nil {
		return nil, err
	}

	hasScores := g.TeamScore != nil && g.OpponentScore != nil
	g.Status = normalizeStatus(eventStatusText.String(item), eventStatusCode.IntPtr(item), hasScores)
	if g.Status == store.GameCompleted {
		g.Result = determineResult(g.TeamScore, g.OpponentScore)
	}
	return g, nil
}

// applyDate sets GameDate and GameTime. TBA dates leave both unset with
// GameTime "TBA".
func (s *Service) applyDate(g *store.Game, date, clock string) error {
	if date == "" || isTBA(date) {
		g.GameTime = "TBA"
		return nil
	}

	t, ok := parseDate(date, s.loc)
	if !ok {
		return mappingErr(fmt.Sprintf("unparseable event date %q", date))
	}

	switch {
	case isTBA(clock):
		g.GameTime = "TBA"
	case clock != "":
		g.GameTime = clock
		if c, ok := parseClock(clock); ok && t.Hour() == 0 && t.Minute() == 0 {
			t = time.Date(t.Year(), t.Month(), t.Day(), c.Hour(), c.Minute(), 0, 0, t.Location())
		}
	case t.Hour() != 0 || t.Minute() != 0:
		g.GameTime = t.Format("3:04 PM")
	}
	g.GameDate = &t
	return nil
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "3:04 pm", "3:04pm", "15:04", "3 PM", "3PM"}

func parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(s), "ET"), "CT"))
	s = strings.ReplaceAll(strings.ReplaceAll(s, "a.m.", "AM"), "p.m.", "PM")
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
