package boxscore

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/stats"
)

var (
	jsonPlayerID = provider.F("playerId", "player_id", "id", "player.id")
	jsonName     = provider.F("name", "fullName", "player.name", "player.fullName")
	jsonJersey   = provider.F("jersey", "uniform", "uni", "number")
	jsonPosition = provider.F("position", "pos")
	jsonTeamID   = provider.F("teamId", "team_id", "id")
	jsonTeamName = provider.F("name", "teamName")
)

// JSON reads the JSON box-score variant.
type JSON struct{}

// Parse decodes raw JSON and extracts player lines.
func (JSON) Parse(raw string) ([]PlayerStatLine, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("boxscore: decode json: %w", err)
	}

	switch v := decoded.(type) {
	case []any:
		return parseJSONPlayers(v, "", ""), nil
	case map[string]any:
		if inner, ok := v["data"].(map[string]any); ok {
			v = inner
		}
		return parseJSONPayload(v), nil
	default:
		return nil, ErrNoBoxScore
	}
}

func parseJSONPayload(payload map[string]any) []PlayerStatLine {
	teams := teamsList.Items(payload)
	if len(teams) == 0 {
		return parseJSONPlayers(playersList.List(payload), "", "")
	}

	var lines []PlayerStatLine
	for _, team := range teams {
		lines = append(lines, parseJSONPlayers(playersList.List(team), jsonTeamID.String(team), jsonTeamName.String(team))...)
	}
	return lines
}

func parseJSONPlayers(list []any, teamID, teamName string) []PlayerStatLine {
	var lines []PlayerStatLine
	for _, el := range list {
		item, ok := el.(map[string]any)
		if !ok {
			continue
		}
		id := jsonPlayerID.String(item)
		if id == "" {
			continue
		}
		lines = append(lines, PlayerStatLine{
			PlayerID: id,
			Name:     jsonName.String(item),
			Jersey:   jsonJersey.String(item),
			Position: jsonPosition.String(item),
			TeamID:   firstNonEmpty(provider.F("teamId", "team_id").String(item), teamID),
			TeamName: teamName,
			Line:     stats.FromItem(item),
		})
	}
	return lines
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
