package syncer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

var positionCodes = map[string]string{
	"p": "P", "pitcher": "P", "rhp": "P", "lhp": "P", "sp": "P", "rp": "P",
	"c": "C", "catcher": "C",
	"1b": "1B", "first base": "1B", "first baseman": "1B",
	"2b": "2B", "second base": "2B", "second baseman": "2B",
	"3b": "3B", "third base": "3B", "third baseman": "3B",
	"ss": "SS", "shortstop": "SS",
	"lf": "LF", "left field": "LF", "left fielder": "LF",
	"cf": "CF", "center field": "CF", "center fielder": "CF",
	"rf": "RF", "right field": "RF", "right fielder": "RF",
	"of": "OF", "outfield": "OF", "outfielder": "OF",
	"if": "INF", "inf": "INF", "infield": "INF", "infielder": "INF",
	"dh": "DH", "designated hitter": "DH",
	"ut": "UTL", "util": "UTL", "utl": "UTL", "utility": "UTL",
}

var positionSep = regexp.MustCompile(`\s*[/,|;-]\s*`)

// normalizePositions maps a possibly multi-position value ("RHP/1B") to a
// primary and secondary code. Unknown values are upper-cased as-is.
func normalizePositions(raw string) (primary, secondary string) {
	var codes []string
	for _, part := range positionSep.Split(strings.TrimSpace(raw), -1) {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		code, ok := positionCodes[part]
		if !ok {
			code = strings.ToUpper(part)
		}
		codes = append(codes, code)
	}
	switch len(codes) {
	case 0:
		return "", ""
	case 1:
		return codes[0], ""
	}
	return codes[0], codes[1]
}

// ---------------------------------------------------------------------------
// Class year
// ---------------------------------------------------------------------------

var classYears = map[string]string{
	"fr": "Freshman", "freshman": "Freshman",
	"so": "Sophomore", "soph": "Sophomore", "sophomore": "Sophomore",
	"jr": "Junior", "junior": "Junior",
	"sr": "Senior", "senior": "Senior",
	"gr": "Graduate", "grad": "Graduate", "graduate": "Graduate", "5th": "Graduate", "fifth": "Graduate",
}

var redshirtPrefixes = []string{"redshirt ", "redshirt-", "rs-", "rs ", "r-", "r "}

// normalizeClassYear maps "Fr.", "R-So", "RS Jr", "rJr", "Redshirt Senior"
// and similar onto canonical class names. Unknown values pass through.
func normalizeClassYear(raw string) string {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, ".", "")))
	if s == "" {
		return ""
	}
	if base, ok := classYears[s]; ok {
		return base
	}

	for _, prefix := range redshirtPrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if base, ok := classYears[strings.TrimSpace(rest)]; ok {
				return redshirt(base)
			}
		}
	}
	// Compact forms: "rsfr", "rfr".
	for _, prefix := range []string{"rs", "r"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if base, ok := classYears[rest]; ok {
				return redshirt(base)
			}
		}
	}
	return strings.TrimSpace(raw)
}

func redshirt(base string) string {
	if base == "Graduate" {
		return base
	}
	return "Redshirt " + base
}

// ---------------------------------------------------------------------------
// Height
// ---------------------------------------------------------------------------

var (
	heightFeetInches = regexp.MustCompile(`^(\d)\s*(?:'|’|ft\.?|feet|-|\s)\s*(\d{1,2})?\s*(?:"|”|''|in\.?|inches)?$`)
	heightInchesOnly = regexp.MustCompile(`^(\d{2})\s*(?:"|in\.?|inches)?$`)
)

// normalizeHeight converts "6-2", "6'2\"", "6 2" or "74" to
// "6-2". Unparseable values are returned trimmed.
func normalizeHeight(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := heightFeetInches.FindStringSubmatch(s); m != nil {
		inches := 0
		if m[2] != "" {
			inches, _ = strconv.Atoi(m[2])
		}
		if inches < 12 {
			return m[1] + "-" + strconv.Itoa(inches)
		}
	}
	if m := heightInchesOnly.FindStringSubmatch(s); m != nil {
		total, _ := strconv.Atoi(m[1])
		if total >= 48 && total <= 96 {
			return strconv.Itoa(total/12) + "-" + strconv.Itoa(total%12)
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// Handedness
// ---------------------------------------------------------------------------

// normalizeHand maps "Right", "R", "left", "Switch", "B" to R, L or S.
func normalizeHand(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "r"):
		return "R"
	case strings.HasPrefix(s, "l"):
		return "L"
	case strings.HasPrefix(s, "s"), strings.HasPrefix(s, "b"):
		return "S"
	}
	return strings.ToUpper(s[:1])
}

// ---------------------------------------------------------------------------
// Game status and result
// ---------------------------------------------------------------------------

var statusText = map[string]string{
	"scheduled": store.GameScheduled, "upcoming": store.GameScheduled, "pre": store.GameScheduled,
	"pregame": store.GameScheduled, "not started": store.GameScheduled, "tba": store.GameScheduled,
	"tbd":         store.GameScheduled,
	"in progress": store.GameInProgress, "in_progress": store.GameInProgress, "inprogress": store.GameInProgress,
	"in-progress": store.GameInProgress, "live": store.GameInProgress, "active": store.GameInProgress,
	"delayed": store.GameInProgress, "suspended": store.GameInProgress,
	"final": store.GameCompleted, "completed": store.GameCompleted, "complete": store.GameCompleted,
	"closed": store.GameCompleted, "post": store.GameCompleted, "official": store.GameCompleted,
	"postponed": store.GamePostponed, "ppd": store.GamePostponed,
	"cancelled": store.GameCancelled, "canceled": store.GameCancelled, "cancel": store.GameCancelled,
}

var inningPrefixes = []string{"top ", "bot ", "bottom ", "mid ", "middle ", "end "}

// normalizeStatus maps the provider's textual status and numeric status
// code onto a game status. Text wins when recognised. A negative code means
// the game has not finished: in progress when scores are present, otherwise
// scheduled. A non-negative code means final.
func normalizeStatus(text string, code *int, hasScores bool) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s != "" {
		if st, ok := statusText[s]; ok {
			return st
		}
		if strings.HasPrefix(s, "final") {
			return store.GameCompleted
		}
		for _, p := range inningPrefixes {
			if strings.HasPrefix(s, p) {
				return store.GameInProgress
			}
		}
	}
	if code != nil {
		if *code < 0 {
			if hasScores {
				return store.GameInProgress
			}
			return store.GameScheduled
		}
		return store.GameCompleted
	}
	return store.GameScheduled
}

// determineResult returns W, L or T from the team's point of view, or nil
// when either score is missing.
func determineResult(team, opp *int) *string {
	if team == nil || opp == nil {
		return nil
	}
	var r string
	switch {
	case *team > *opp:
		r = "W"
	case *team < *opp:
		r = "L"
	default:
		r = "T"
	}
	return &r
}

// ---------------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------------

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
}

// parseDate reads the provider's date formats in loc. Epoch milliseconds
// are accepted too.
func parseDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 1e11 {
		return time.UnixMilli(ms).In(loc), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			// Offsets in the string win over loc; report in loc either way.
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// isTBA reports whether a date or time string is a to-be-announced marker.
func isTBA(s string) bool {
	u := strings.ToUpper(strings.TrimSpace(s))
	return u == "TBA" || u == "TBD" || strings.Contains(u, " TBA") || strings.HasPrefix(u, "TBA ")
}
