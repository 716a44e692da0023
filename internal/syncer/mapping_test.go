package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

func intp(n int) *int { return &n }

func TestDetermineResult(t *testing.T) {
	tests := []struct {
		team, opp *int
		want      string
	}{
		{intp(5), intp(3), "W"},
		{intp(2), intp(7), "L"},
		{intp(4), intp(4), "T"},
		{intp(0), intp(0), "T"},
		{nil, intp(1), ""},
		{intp(1), nil, ""},
		{nil, nil, ""},
	}
	for _, tt := range tests {
		got := determineResult(tt.team, tt.opp)
		if tt.want == "" {
			assert.Nil(t, got)
			continue
		}
		require.NotNil(t, got)
		assert.Equal(t, tt.want, *got)
	}
}

func TestNormalizeHeight(t *testing.T) {
	tests := map[string]string{
		"6-2":      "6-2",
		`6'2"`:     "6-2",
		"6 2":      "6-2",
		"6' 11\"":  "6-11",
		"6-02":     "6-2",
		"5'":       "5-0",
		"74":       "6-2",
		"  5-10  ": "5-10",
		"":         "",
		"tall":     "tall",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeight(in), "input %q", in)
	}
}

func TestNormalizePositions(t *testing.T) {
	tests := []struct {
		in, primary, secondary string
	}{
		{"RHP", "P", ""},
		{"Pitcher", "P", ""},
		{"RHP/1B", "P", "1B"},
		{"C, 3B", "C", "3B"},
		{"OF-LHP", "OF", "P"},
		{"Infield", "INF", ""},
		{"UT", "UTL", ""},
		{"xx", "XX", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		p, s := normalizePositions(tt.in)
		assert.Equal(t, tt.primary, p, "primary for %q", tt.in)
		assert.Equal(t, tt.secondary, s, "secondary for %q", tt.in)
	}
}

func TestNormalizeClassYear(t *testing.T) {
	tests := map[string]string{
		"Fr.":             "Freshman",
		"So":              "Sophomore",
		"JR":              "Junior",
		"Sr.":             "Senior",
		"Gr.":             "Graduate",
		"R-Fr.":           "Redshirt Freshman",
		"RS Jr":           "Redshirt Junior",
		"rs-so":           "Redshirt Sophomore",
		"RSr":             "Redshirt Senior",
		"Redshirt Junior": "Redshirt Junior",
		"R-Gr":            "Graduate",
		"":                "",
		"Alum":            "Alum",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeClassYear(in), "input %q", in)
	}
}

func TestNormalizeStatus(t *testing.T) {
	neg, pos := intp(-1), intp(2)
	tests := []struct {
		text      string
		code      *int
		hasScores bool
		want      string
	}{
		{"Final", nil, true, store.GameCompleted},
		{"Final/10", nil, true, store.GameCompleted},
		{"Top 5th", nil, true, store.GameInProgress},
		{"PPD", nil, false, store.GamePostponed},
		{"Canceled", nil, false, store.GameCancelled},
		{"", neg, false, store.GameScheduled},
		{"", neg, true, store.GameInProgress},
		{"", pos, true, store.GameCompleted},
		{"", intp(0), false, store.GameCompleted},
		{"something odd", nil, false, store.GameScheduled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeStatus(tt.text, tt.code, tt.hasScores), "text=%q", tt.text)
	}
}

func TestNormalizeHand(t *testing.T) {
	assert.Equal(t, "R", normalizeHand("Right"))
	assert.Equal(t, "L", normalizeHand("l"))
	assert.Equal(t, "S", normalizeHand("Switch"))
	assert.Equal(t, "S", normalizeHand("B"))
	assert.Equal(t, "", normalizeHand(" "))
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	got, ok := parseDate("2025-03-14", loc)
	require.True(t, ok)
	assert.True(t, time.Date(2025, 3, 14, 0, 0, 0, 0, loc).Equal(got))

	got, ok = parseDate("03/14/2025 6:30 PM", loc)
	require.True(t, ok)
	assert.Equal(t, 18, got.Hour())

	got, ok = parseDate("2025-03-14T23:00:00Z", loc)
	require.True(t, ok)
	assert.Equal(t, 18, got.Hour())
	assert.Equal(t, loc, got.Location())

	got, ok = parseDate("1741996800000", loc)
	require.True(t, ok)
	assert.True(t, got.Equal(time.UnixMilli(1741996800000)))

	_, ok = parseDate("TBA", loc)
	assert.False(t, ok)
	assert.True(t, isTBA("TBA"))
	assert.True(t, isTBA("tbd"))
	assert.False(t, isTBA("2025-03-14"))
}

func TestSplitName(t *testing.T) {
	f, l := splitName("Smith, Joe")
	assert.Equal(t, "Joe", f)
	assert.Equal(t, "Smith", l)

	f, l = splitName("Mary Ann Jones")
	assert.Equal(t, "Mary Ann", f)
	assert.Equal(t, "Jones", l)

	f, l = splitName("Cher")
	assert.Equal(t, "", f)
	assert.Equal(t, "Cher", l)
}

func TestSelectPhoto(t *testing.T) {
	photos := []map[string]any{
		{"url": "a.jpg", "type": "action"},
		{"url": "r.jpg", "type": "Roster"},
		{"url": "h.jpg", "type": "headshot"},
		{"url": "x.jpg"},
	}
	assert.Equal(t, "h.jpg", selectPhoto(photos))
	assert.Equal(t, "x.jpg", selectPhoto(photos[3:]))
	assert.Equal(t, "", selectPhoto(nil))
}
