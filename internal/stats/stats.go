// Package stats holds the baseball stat lines shared by box scores, season
// stats and career stats: alias tables mapping provider spellings onto
// canonical fields, locally derived rate stats, and career aggregation.
//
// Innings pitched are carried as outs. "6.2" from the provider means six and
// two-thirds innings, which is 20 outs, never 6.2 decimal innings.
package stats

import (
	"math"
	"strconv"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
)

// Batting is a hitting line. Rates are nil when undefined (no at-bats).
type Batting struct {
	Games          int      `json:"g"`
	AtBats         int      `json:"ab"`
	Runs           int      `json:"r"`
	Hits           int      `json:"h"`
	Doubles        int      `json:"2b"`
	Triples        int      `json:"3b"`
	HomeRuns       int      `json:"hr"`
	RBI            int      `json:"rbi"`
	Walks          int      `json:"bb"`
	Strikeouts     int      `json:"so"`
	HitByPitch     int      `json:"hbp"`
	SacFlies       int      `json:"sf"`
	SacHits        int      `json:"sh"`
	Steals         int      `json:"sb"`
	CaughtStealing int      `json:"cs"`
	AVG            *float64 `json:"avg,omitempty"`
	OBP            *float64 `json:"obp,omitempty"`
	SLG            *float64 `json:"slg,omitempty"`
}

// Pitching is a pitching line.
type Pitching struct {
	Appearances int      `json:"app"`
	Starts      int      `json:"gs"`
	Wins        int      `json:"w"`
	Losses      int      `json:"l"`
	Saves       int      `json:"sv"`
	Outs        int      `json:"outs"`
	Hits        int      `json:"h"`
	Runs        int      `json:"r"`
	EarnedRuns  int      `json:"er"`
	Walks       int      `json:"bb"`
	Strikeouts  int      `json:"so"`
	HomeRuns    int      `json:"hr"`
	ERA         *float64 `json:"era,omitempty"`
	WHIP        *float64 `json:"whip,omitempty"`
}

// Fielding is a fielding line.
type Fielding struct {
	Putouts     int      `json:"po"`
	Assists     int      `json:"a"`
	Errors      int      `json:"e"`
	DoublePlays int      `json:"dp"`
	FieldingPct *float64 `json:"fpct,omitempty"`
}

// Line groups the three sub-lines. A nil sub-line means the player had no
// entries of that kind.
type Line struct {
	Batting  *Batting  `json:"batting,omitempty"`
	Pitching *Pitching `json:"pitching,omitempty"`
	Fielding *Fielding `json:"fielding,omitempty"`
}

// IsEmpty reports whether no sub-line is present.
func (l Line) IsEmpty() bool {
	return l.Batting == nil && l.Pitching == nil && l.Fielding == nil
}

// ---------------------------------------------------------------------------
// Alias tables. Keys are matched after lowercasing the source map.
// ---------------------------------------------------------------------------

type intField[T any] struct {
	dst   func(*T) *int
	field provider.Field
}

type rateField[T any] struct {
	dst   func(*T) **float64
	field provider.Field
}

var battingCounts = []intField[Batting]{
	{func(b *Batting) *int { return &b.Games }, provider.F("g", "gp", "games", "gamesplayed")},
	{func(b *Batting) *int { return &b.AtBats }, provider.F("ab", "atbats", "at_bats")},
	{func(b *Batting) *int { return &b.Runs }, provider.F("r", "runs")},
	{func(b *Batting) *int { return &b.Hits }, provider.F("h", "hits")},
	{func(b *Batting) *int { return &b.Doubles }, provider.F("2b", "double", "doubles")},
	{func(b *Batting) *int { return &b.Triples }, provider.F("3b", "triple", "triples")},
	{func(b *Batting) *int { return &b.HomeRuns }, provider.F("hr", "homeruns", "home_runs")},
	{func(b *Batting) *int { return &b.RBI }, provider.F("rbi", "runsbattedin")},
	{func(b *Batting) *int { return &b.Walks }, provider.F("bb", "walks", "baseonballs")},
	{func(b *Batting) *int { return &b.Strikeouts }, provider.F("so", "k", "strikeouts")},
	{func(b *Batting) *int { return &b.HitByPitch }, provider.F("hbp", "hitbypitch")},
	{func(b *Batting) *int { return &b.SacFlies }, provider.F("sf", "sacflies", "sacrificeflies")},
	{func(b *Batting) *int { return &b.SacHits }, provider.F("sh", "sacbunts", "sacrificehits")},
	{func(b *Batting) *int { return &b.Steals }, provider.F("sb", "stolenbases")},
	{func(b *Batting) *int { return &b.CaughtStealing }, provider.F("cs", "caughtstealing")},
}

var battingRates = []rateField[Batting]{
	{func(b *Batting) **float64 { return &b.AVG }, provider.F("avg", "battingaverage", "ba")},
	{func(b *Batting) **float64 { return &b.OBP }, provider.F("obp", "obpct", "onbasepercentage")},
	{func(b *Batting) **float64 { return &b.SLG }, provider.F("slg", "slgpct", "sluggingpercentage")},
}

var pitchingCounts = []intField[Pitching]{
	{func(p *Pitching) *int { return &p.Appearances }, provider.F("app", "appearances", "g", "gp")},
	{func(p *Pitching) *int { return &p.Starts }, provider.F("gs", "starts", "gamesstarted")},
	{func(p *Pitching) *int { return &p.Wins }, provider.F("w", "win", "wins")},
	{func(p *Pitching) *int { return &p.Losses }, provider.F("l", "loss", "losses")},
	{func(p *Pitching) *int { return &p.Saves }, provider.F("sv", "save", "saves")},
	{func(p *Pitching) *int { return &p.Hits }, provider.F("h", "hits")},
	{func(p *Pitching) *int { return &p.Runs }, provider.F("r", "runs")},
	{func(p *Pitching) *int { return &p.EarnedRuns }, provider.F("er", "earnedruns")},
	{func(p *Pitching) *int { return &p.Walks }, provider.F("bb", "walks")},
	{func(p *Pitching) *int { return &p.Strikeouts }, provider.F("so", "k", "strikeouts")},
	{func(p *Pitching) *int { return &p.HomeRuns }, provider.F("hr", "homeruns")},
}

var pitchingRates = []rateField[Pitching]{
	{func(p *Pitching) **float64 { return &p.ERA }, provider.F("era", "earnedrunaverage")},
	{func(p *Pitching) **float64 { return &p.WHIP }, provider.F("whip")},
}

var inningsField = provider.F("ip", "innings", "inningspitched")

var fieldingCounts = []intField[Fielding]{
	{func(f *Fielding) *int { return &f.Putouts }, provider.F("po", "putouts")},
	{func(f *Fielding) *int { return &f.Assists }, provider.F("a", "assists")},
	{func(f *Fielding) *int { return &f.Errors }, provider.F("e", "errors")},
	{func(f *Fielding) *int { return &f.DoublePlays }, provider.F("dp", "doubleplays", "indp")},
}

var fieldingRates = []rateField[Fielding]{
	{func(f *Fielding) **float64 { return &f.FieldingPct }, provider.F("fpct", "fldpct", "fieldingpercentage")},
}

// Sub-line containers inside a player item, lowercased.
var (
	battingBlock  = provider.F("hitting", "batting", "stats.hitting", "stats.batting")
	pitchingBlock = provider.F("pitching", "stats.pitching")
	fieldingBlock = provider.F("fielding", "stats.fielding")
)

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseBatting maps an attribute set onto a Batting line. ok is false when
// no batting field is present.
func ParseBatting(m map[string]any) (*Batting, bool) {
	m = lower(m)
	b := &Batting{}
	found := applyCounts(b, m, battingCounts)
	found = applyRates(b, m, battingRates) || found
	if !found {
		return nil, false
	}
	b.Derive()
	return b, true
}

// ParsePitching maps an attribute set onto a Pitching line.
func ParsePitching(m map[string]any) (*Pitching, bool) {
	m = lower(m)
	p := &Pitching{}
	found := applyCounts(p, m, pitchingCounts)
	found = applyRates(p, m, pitchingRates) || found
	if v, ok := inningsField.Lookup(m); ok {
		if outs, ok := ParseInnings(v); ok {
			p.Outs = outs
			found = true
		}
	}
	if !found {
		return nil, false
	}
	p.Derive()
	return p, true
}

// ParseFielding maps an attribute set onto a Fielding line.
func ParseFielding(m map[string]any) (*Fielding, bool) {
	m = lower(m)
	f := &Fielding{}
	found := applyCounts(f, m, fieldingCounts)
	found = applyRates(f, m, fieldingRates) || found
	if !found {
		return nil, false
	}
	f.Derive()
	return f, true
}

// FromItem extracts a Line from a player stats object. Nested hitting,
// pitching and fielding blocks are preferred; a flat object is read as
// batting plus fielding.
func FromItem(item map[string]any) Line {
	m := lower(item)

	var line Line
	bat, pitch, field := battingBlock.Map(m), pitchingBlock.Map(m), fieldingBlock.Map(m)
	if bat == nil && pitch == nil && field == nil {
		line.Batting, _ = ParseBatting(m)
		line.Fielding, _ = ParseFielding(m)
		return line
	}
	if bat != nil {
		line.Batting, _ = ParseBatting(bat)
	}
	if pitch != nil {
		line.Pitching, _ = ParsePitching(pitch)
	}
	if field != nil {
		line.Fielding, _ = ParseFielding(field)
	}
	return line
}

// ParseInnings converts a provider innings value to outs. The fractional
// digit counts outs in the partial inning, so "6.2" is 20.
func ParseInnings(v any) (int, bool) {
	s := provider.ToString(v)
	if s == "" {
		return 0, false
	}
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.Atoi(whole)
	if err != nil {
		return 0, false
	}
	outs := w * 3
	if frac != "" {
		f, err := strconv.Atoi(frac[:1])
		if err != nil || f > 2 {
			return 0, false
		}
		outs += f
	}
	return outs, true
}

// FormatInnings renders outs in provider notation.
func FormatInnings(outs int) string {
	return strconv.Itoa(outs/3) + "." + strconv.Itoa(outs%3)
}

func applyCounts[T any](dst *T, m map[string]any, table []intField[T]) bool {
	found := false
	for _, f := range table {
		if n, ok := f.field.Int(m); ok {
			*f.dst(dst) = n
			found = true
		}
	}
	return found
}

func applyRates[T any](dst *T, m map[string]any, table []rateField[T]) bool {
	found := false
	for _, f := range table {
		if n, ok := f.field.Float(m); ok {
			v := n
			*f.dst(dst) = &v
			found = true
		}
	}
	return found
}

func lower(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func round(v float64, places int) *float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	return &r
}
