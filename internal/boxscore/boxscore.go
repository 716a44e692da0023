// Package boxscore turns the provider's per-game stats payload into flat
// per-player stat lines.
//
// The provider serves box scores in two shapes: an XML document embedded as
// a string inside the JSON envelope, or plain JSON player lists. The XML
// reader is a narrow regex extractor for that one fixed vendor schema
// (<team> blocks holding <player> blocks with <hitting>, <fielding> and
// <pitching> attribute sets). It is not a general XML parser.
package boxscore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/stats"
)

// ErrNoBoxScore is returned when a payload carries neither XML nor players.
var ErrNoBoxScore = errors.New("boxscore: payload has no box score")

// PlayerStatLine is one player's line from a single game.
type PlayerStatLine struct {
	PlayerID string
	Name     string
	Jersey   string
	Position string
	TeamID   string
	TeamName string
	stats.Line
}

var (
	xmlField    = provider.F("xml", "boxScore", "boxscore", "stats.xml")
	playersList = provider.F("players", "stats.players", "boxScore.players")
	teamsList   = provider.F("teams", "stats.teams")
)

// FromPayload dispatches a decoded stats payload to the XML or JSON reader.
func FromPayload(payload map[string]any) ([]PlayerStatLine, error) {
	if v, ok := xmlField.Lookup(payload); ok {
		if raw, isStr := v.(string); isStr && strings.Contains(raw, "<") {
			return XML{}.Parse(raw)
		}
	}
	if playersList.List(payload) != nil || teamsList.List(payload) != nil {
		return parseJSONPayload(payload), nil
	}
	return nil, ErrNoBoxScore
}

// ParseString parses raw text, sniffing XML versus JSON.
func ParseString(raw string) ([]PlayerStatLine, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return nil, ErrNoBoxScore
	case strings.HasPrefix(trimmed, "<"):
		return XML{}.Parse(trimmed)
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return JSON{}.Parse(trimmed)
	default:
		return nil, fmt.Errorf("boxscore: unrecognised payload starting %q", firstRunes(trimmed, 16))
	}
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
