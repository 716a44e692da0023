package syncer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

// Roster field chains. First match wins.
var (
	playerID        = provider.F("playerId", "id", "player_id", "personId", "player.id")
	playerFirstName = provider.F("firstName", "first_name", "firstname", "name.first", "player.firstName")
	playerLastName  = provider.F("lastName", "last_name", "lastname", "name.last", "player.lastName")
	playerFullName  = provider.F("fullName", "full_name", "displayName", "name", "player.name")
	playerJersey    = provider.F("jerseyNumber", "jersey", "uniform", "uni", "number", "player.jersey")
	playerPosition  = provider.F("position", "positionAbbreviation", "pos", "primaryPosition")
	playerClass     = provider.F("classYear", "class", "year", "academicYear", "eligibility", "yr")
	playerHeight    = provider.F("height", "ht", "heightDisplay")
	playerWeight    = provider.F("weight", "wt", "weightLbs")
	playerBats      = provider.F("bats", "batHand", "battingHand")
	playerThrows    = provider.F("throws", "throwHand", "throwingHand")
	playerBatsThrow = provider.F("batsThrows", "bt", "b_t")
	playerHometown  = provider.F("hometown", "homeTown", "home_town", "city")
	playerHigh      = provider.F("highSchool", "high_school", "hs")
	playerPrevious  = provider.F("previousSchool", "previous_school", "lastSchool", "transferFrom")
	playerMajor     = provider.F("major", "academicMajor")
	playerBio       = provider.F("bio", "biography", "bioText")
	playerPhoto     = provider.F("headshotUrl", "headshot", "photoUrl", "photo", "image", "imageUrl")
)

var weightRe = regexp.MustCompile(`\d{2,3}`)

// SyncRoster upserts the team's current roster.
func (s *Service) SyncRoster(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncRoster(ctx, teamID, userID)
	})
}

func (s *Service) syncRoster(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeRoster, "/v2/teams/{teamId}/players", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			items, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
				return s.api.Roster(ctx, token, r.providerTeamID, r.seasonID)
			})
			if err != nil {
				return fmt.Errorf("fetch roster: %w", err)
			}
			r.summary["fetched"] = len(items)

			return fold(ctx, r.res, "player", items, rosterIdent, func(ctx context.Context, item presto.Item) (outcome, error) {
				p, err := mapPlayer(r.team.ID, item)
				if err != nil {
					return outcomeNone, err
				}
				created, err := s.store.UpsertPlayer(ctx, p)
				if err != nil {
					return outcomeNone, fmt.Errorf("upsert player: %w", err)
				}
				return upserted(created), nil
			})
		})
}

func rosterIdent(item presto.Item) (string, string) {
	name := strings.TrimSpace(playerFirstName.String(item) + " " + playerLastName.String(item))
	if name == "" {
		name = playerFullName.String(item)
	}
	return playerID.String(item), name
}

// mapPlayer normalizes one roster item. Missing id or name is a mapping
// error.
func mapPlayer(teamID int64, item presto.Item) (*store.Player, error) {
	id := playerID.String(item)
	if id == "" {
		return nil, mappingErr("player has no id")
	}

	first, last := playerFirstName.String(item), playerLastName.String(item)
	if first == "" && last == "" {
		first, last = splitName(playerFullName.String(item))
	}
	if first == "" && last == "" {
		return nil, mappingErr("player " + id + " has no name")
	}

	p := &store.Player{
		Synced: store.Synced{
			TeamID:       teamID,
			ExternalID:   id,
			SourceSystem: store.SourcePresto,
		},
		FirstName:      first,
		LastName:       last,
		Jersey:         strings.TrimPrefix(playerJersey.String(item), "#"),
		ClassYear:      normalizeClassYear(playerClass.String(item)),
		Height:         normalizeHeight(playerHeight.String(item)),
		Weight:         parseWeight(item),
		Bats:           normalizeHand(playerBats.String(item)),
		Throws:         normalizeHand(playerThrows.String(item)),
		Hometown:       playerHometown.String(item),
		HighSchool:     playerHigh.String(item),
		PreviousSchool: playerPrevious.String(item),
		Major:          playerMajor.String(item),
		Bio:            playerBio.String(item),
		PhotoURL:       playerPhoto.String(item),
		Status:         "active",
	}
	p.Position, p.SecondaryPosition = normalizePositions(playerPosition.String(item))

	if bt := playerBatsThrow.String(item); bt != "" && (p.Bats == "" || p.Throws == "") {
		if b, t, ok := strings.Cut(bt, "/"); ok {
			if p.Bats == "" {
				p.Bats = normalizeHand(b)
			}
			if p.Throws == "" {
				p.Throws = normalizeHand(t)
			}
		}
	}
	return p, nil
}

// splitName splits "First Last" or "Last, First".
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	if l, f, ok := strings.Cut(full, ","); ok {
		return strings.TrimSpace(f), strings.TrimSpace(l)
	}
	if i := strings.LastIndexByte(full, ' '); i > 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func parseWeight(item presto.Item) *int {
	if n, ok := playerWeight.Int(item); ok && n > 0 {
		return &n
	}
	m := weightRe.FindString(playerWeight.String(item))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
