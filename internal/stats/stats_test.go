package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInnings(t *testing.T) {
	tests := []struct {
		in   any
		outs int
		ok   bool
	}{
		{"6.2", 20, true},
		{"7.0", 21, true},
		{"0.1", 1, true},
		{5.0, 15, true},
		{6.2, 20, true},
		{"6.3", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		outs, ok := ParseInnings(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.outs, outs, "%v", tt.in)
	}
	assert.Equal(t, "6.2", FormatInnings(20))
}

func TestParseBatting_DerivesRates(t *testing.T) {
	b, ok := ParseBatting(map[string]any{
		"AB": "4", "H": "2", "Double": "1", "HR": "1", "BB": "1", "SF": "0", "HBP": "0",
	})
	require.True(t, ok)
	assert.Equal(t, 4, b.AtBats)
	assert.Equal(t, 2, b.Hits)
	require.NotNil(t, b.AVG)
	assert.Equal(t, 0.5, *b.AVG)
	require.NotNil(t, b.OBP)
	assert.Equal(t, 0.6, *b.OBP)
	require.NotNil(t, b.SLG)
	assert.Equal(t, 1.5, *b.SLG) // 2 + 1 + 3 = 6 total bases
}

func TestParseBatting_KeepsProviderRate(t *testing.T) {
	b, ok := ParseBatting(map[string]any{"ab": 10.0, "h": 3.0, "avg": ".333"})
	require.True(t, ok)
	assert.Equal(t, 0.333, *b.AVG)
}

func TestParseBatting_NoFields(t *testing.T) {
	_, ok := ParseBatting(map[string]any{"name": "x"})
	assert.False(t, ok)
}

func TestParsePitching_ERAFromOuts(t *testing.T) {
	p, ok := ParsePitching(map[string]any{"ip": "6.2", "er": "2", "h": "5", "bb": "1"})
	require.True(t, ok)
	assert.Equal(t, 20, p.Outs)
	require.NotNil(t, p.ERA)
	assert.Equal(t, 2.7, *p.ERA)
	require.NotNil(t, p.WHIP)
	assert.Equal(t, 0.9, *p.WHIP)
	assert.Equal(t, "6.2", p.InningsPitched())
}

func TestParsePitching_ZeroInningsLeavesRatesNil(t *testing.T) {
	p, ok := ParsePitching(map[string]any{"ip": "0.0", "er": "3"})
	require.True(t, ok)
	assert.Nil(t, p.ERA)
	assert.Nil(t, p.WHIP)
}

func TestFromItem_NestedBlocks(t *testing.T) {
	line := FromItem(map[string]any{
		"playerId": "p1",
		"hitting":  map[string]any{"ab": 3.0, "h": 1.0},
		"pitching": map[string]any{"ip": "1.0", "er": 0.0},
	})
	require.NotNil(t, line.Batting)
	require.NotNil(t, line.Pitching)
	assert.Nil(t, line.Fielding)
	assert.Equal(t, 3, line.Pitching.Outs)
	assert.Equal(t, 0.0, *line.Pitching.ERA)
}

func TestFromItem_Flat(t *testing.T) {
	line := FromItem(map[string]any{"ab": 3.0, "h": 1.0, "po": 4.0, "a": 1.0, "e": 0.0})
	require.NotNil(t, line.Batting)
	require.NotNil(t, line.Fielding)
	assert.Equal(t, 1.0, *line.Fielding.FieldingPct)
}

func TestCareer_RecomputesRates(t *testing.T) {
	season1, _ := ParseBatting(map[string]any{"ab": 100.0, "h": 40.0}) // .400
	season2, _ := ParseBatting(map[string]any{"ab": 300.0, "h": 60.0}) // .200
	p1, _ := ParsePitching(map[string]any{"ip": "10.0", "er": 10.0})   // 9.00
	p2, _ := ParsePitching(map[string]any{"ip": "80.0", "er": 10.0})   // 1.13

	career := Career([]Line{
		{Batting: season1, Pitching: p1},
		{Batting: season2, Pitching: p2},
	})

	require.NotNil(t, career.Batting)
	assert.Equal(t, 400, career.Batting.AtBats)
	assert.Equal(t, 100, career.Batting.Hits)
	assert.Equal(t, 0.25, *career.Batting.AVG) // not (0.4 + 0.2) / 2

	require.NotNil(t, career.Pitching)
	assert.Equal(t, 270, career.Pitching.Outs)
	assert.Equal(t, 2.0, *career.Pitching.ERA)
	assert.Nil(t, career.Fielding)
}
