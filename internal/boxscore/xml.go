package boxscore

import (
	"html"
	"regexp"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/stats"
)

var (
	teamRe   = regexp.MustCompile(`(?is)<team\b([^>]*?)(?:/>|>(.*?)</team>)`)
	playerRe = regexp.MustCompile(`(?is)<player\b([^>]*?)(?:/>|>(.*?)</player>)`)
	subRe    = regexp.MustCompile(`(?is)<(hitting|fielding|pitching)\b([^>]*?)/?>`)
	attrRe   = regexp.MustCompile(`([A-Za-z_][\w:.-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

var (
	xmlPlayerID = provider.F("playerid", "player_id", "id")
	xmlName     = provider.F("name", "checkname", "shortname")
	xmlJersey   = provider.F("uni", "jersey", "uniform")
	xmlPosition = provider.F("pos", "position")
	xmlTeamID   = provider.F("id", "teamid", "team_id")
	xmlTeamName = provider.F("name", "shortname")
)

// XML reads the vendor's box-score XML.
type XML struct{}

// Parse returns one line per <player> carrying a player id. Players without
// an id are skipped.
func (XML) Parse(raw string) ([]PlayerStatLine, error) {
	teams := teamRe.FindAllStringSubmatch(raw, -1)
	if len(teams) == 0 {
		return parsePlayers(raw, "", ""), nil
	}

	var lines []PlayerStatLine
	for _, team := range teams {
		attrs := parseAttrs(team[1])
		lines = append(lines, parsePlayers(team[2], xmlTeamID.String(attrs), xmlTeamName.String(attrs))...)
	}
	return lines, nil
}

func parsePlayers(block, teamID, teamName string) []PlayerStatLine {
	var lines []PlayerStatLine
	for _, m := range playerRe.FindAllStringSubmatch(block, -1) {
		attrs := parseAttrs(m[1])
		id := xmlPlayerID.String(attrs)
		if id == "" {
			continue
		}

		line := PlayerStatLine{
			PlayerID: id,
			Name:     xmlName.String(attrs),
			Jersey:   xmlJersey.String(attrs),
			Position: xmlPosition.String(attrs),
			TeamID:   teamID,
			TeamName: teamName,
		}
		for _, sub := range subRe.FindAllStringSubmatch(m[2], -1) {
			subAttrs := parseAttrs(sub[2])
			switch strings.ToLower(sub[1]) {
			case "hitting":
				line.Batting, _ = stats.ParseBatting(subAttrs)
			case "pitching":
				line.Pitching, _ = stats.ParsePitching(subAttrs)
			case "fielding":
				line.Fielding, _ = stats.ParseFielding(subAttrs)
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// parseAttrs reads name="value" / name='value' pairs. Keys are lowercased
// and entities decoded.
func parseAttrs(s string) map[string]any {
	attrs := make(map[string]any)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		attrs[strings.ToLower(m[1])] = html.UnescapeString(val)
	}
	return attrs
}
