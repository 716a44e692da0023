package boxscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<bsgame>
  <venue date="03/14/2025" location="Home Field"/>
  <team vh="V" id="opp-1" name="Rival U">
    <player name="Smith, Joe" uni="4" pos="ss" playerId="r-100">
      <hitting ab="4" r="1" h="2" rbi="1" double="1" bb="0" so="1"/>
      <fielding po="2" a="3" e="0"/>
    </player>
  </team>
  <team vh="H" id="home-9" name="Home &amp; Proud">
    <player name="O'Neil, Sam" uni='12' pos="p" playerId="p-200">
      <hitting ab="0" r="0" h="0"/>
      <pitching ip="6.2" h="5" r="2" er="2" bb="1" so="7" win="1"/>
      <fielding po="0" a="1" e="1"/>
    </player>
    <player name="Lee, Ana" uni="7" pos="cf" playerId="p-201">
      <hitting ab="3" r="0" h="1" hr="1" rbi="3" bb="1"/>
    </player>
    <player name="No Id" uni="99" pos="ph">
      <hitting ab="1" h="0"/>
    </player>
    <player name="Pinch, Runner" uni="30" pos="pr" playerId="p-202"/>
  </team>
</bsgame>`

func TestXMLParse_PlayerCountAndAttribution(t *testing.T) {
	lines, err := XML{}.Parse(sampleXML)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	joe := lines[0]
	assert.Equal(t, "r-100", joe.PlayerID)
	assert.Equal(t, "opp-1", joe.TeamID)
	assert.Equal(t, "Smith, Joe", joe.Name)
	require.NotNil(t, joe.Batting)
	assert.Equal(t, 4, joe.Batting.AtBats)
	assert.Equal(t, 2, joe.Batting.Hits)
	assert.Equal(t, 1, joe.Batting.Doubles)
	assert.Equal(t, 0.5, *joe.Batting.AVG)
	require.NotNil(t, joe.Fielding)
	assert.Equal(t, 3, joe.Fielding.Assists)
	assert.Nil(t, joe.Pitching)

	sam := lines[1]
	assert.Equal(t, "p-200", sam.PlayerID)
	assert.Equal(t, "home-9", sam.TeamID)
	assert.Equal(t, "Home & Proud", sam.TeamName)
	assert.Equal(t, "12", sam.Jersey)
	require.NotNil(t, sam.Pitching)
	assert.Equal(t, 20, sam.Pitching.Outs)
	assert.Equal(t, 7, sam.Pitching.Strikeouts)
	assert.Equal(t, 1, sam.Pitching.Wins)
	assert.Equal(t, 2.7, *sam.Pitching.ERA)
	require.NotNil(t, sam.Fielding)
	assert.Equal(t, 1, sam.Fielding.Errors)

	ana := lines[2]
	assert.Equal(t, 1, ana.Batting.HomeRuns)
	assert.Equal(t, 3, ana.Batting.RBI)
	assert.Nil(t, ana.Fielding)

	runner := lines[3]
	assert.Equal(t, "p-202", runner.PlayerID)
	assert.True(t, runner.IsEmpty())
}

func TestXMLParse_NoTeamBlocks(t *testing.T) {
	raw := `<players><player playerId="a"><hitting ab="2" h="1"/></player><player playerId="b"></player></players>`
	lines, err := XML{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Empty(t, lines[0].TeamID)
	assert.Equal(t, 1, lines[0].Batting.Hits)
}

func TestXMLParse_EmptySelfClosingTeam(t *testing.T) {
	raw := `<bsgame>
  <team vh="V" id="opp-1" name="Rival U"/>
  <team vh="H" id="home-9" name="Home U">
    <player name="Lee, Ana" uni="7" pos="cf" playerId="p-201">
      <hitting ab="3" h="1"/>
    </player>
  </team>
</bsgame>`

	lines, err := XML{}.Parse(raw)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p-201", lines[0].PlayerID)
	assert.Equal(t, "home-9", lines[0].TeamID)
	assert.Equal(t, "Home U", lines[0].TeamName)
}

func TestFromPayload_XMLEnvelope(t *testing.T) {
	lines, err := FromPayload(map[string]any{"xml": sampleXML})
	require.NoError(t, err)
	assert.Len(t, lines, 4)
}

func TestFromPayload_JSONTeams(t *testing.T) {
	payload := map[string]any{
		"teams": []any{
			map[string]any{
				"teamId": "home-9",
				"players": []any{
					map[string]any{
						"playerId": "p-1",
						"name":     "Ava Cruz",
						"hitting":  map[string]any{"ab": 4.0, "h": 3.0},
					},
					map[string]any{"name": "missing id"},
				},
			},
		},
	}
	lines, err := FromPayload(payload)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "home-9", lines[0].TeamID)
	assert.Equal(t, 0.75, *lines[0].Batting.AVG)
}

func TestFromPayload_Empty(t *testing.T) {
	_, err := FromPayload(map[string]any{"status": "ok"})
	assert.ErrorIs(t, err, ErrNoBoxScore)
}

func TestParseString(t *testing.T) {
	lines, err := ParseString(`{"data":{"players":[{"playerId":7,"batting":{"ab":1,"h":1}}]}}`)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "7", lines[0].PlayerID)

	_, err = ParseString("   ")
	assert.ErrorIs(t, err, ErrNoBoxScore)

	_, err = ParseString("garbage")
	assert.Error(t, err)
}
