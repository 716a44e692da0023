// Package presto provides typed access to the upstream stats provider API.
//
// All calls go through the shared resilient transport. List endpoints answer
// either with a bare array or with a {"data": [...]} envelope; both decode to
// []Item. Items stay as generic maps because field names drift between
// endpoints and API versions; mapping happens in the synchronizers through
// provider.Field chains.
package presto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://gameday-api.prestosports.com/api"

// ErrInvalidCredentials is returned when the token endpoint rejects the
// supplied username/password or refresh token.
var ErrInvalidCredentials = errors.New("presto: invalid credentials")

// Item is one upstream JSON object.
type Item = map[string]any

// Doer is the transport surface the client needs.
type Doer interface {
	Do(ctx context.Context, req transport.Request, opts ...transport.Option) (*transport.Response, error)
}

// Client is the upstream API client.
type Client struct {
	doer    Doer
	baseURL string
}

// Tokens is the token endpoint response.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

var (
	tokenAccess  = provider.F("idToken", "accessToken", "access_token", "token")
	tokenRefresh = provider.F("refreshToken", "refresh_token")
	tokenExpiry  = provider.F("expirationTimeInSeconds", "expiresIn", "expires_in")
)

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(doer Doer, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// Authenticate exchanges a username/password for a token pair.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Tokens, error) {
	body := map[string]string{"username": username, "password": password}
	return c.token(ctx, "/auth/token", "auth.token", body)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	body := map[string]string{"refreshToken": refreshToken}
	return c.token(ctx, "/auth/token/refresh", "auth.refresh", body)
}

func (c *Client) token(ctx context.Context, path, label string, body any) (*Tokens, error) {
	resp, err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Body:   body,
		Label:  label,
	})
	if err != nil {
		var se *transport.StatusError
		if errors.As(err, &se) && (se.Status == http.StatusUnauthorized ||
			se.Status == http.StatusBadRequest ||
			(se.Status == http.StatusForbidden && !se.BotChallenge)) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return nil, err
	}

	obj, err := decodeObject(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}

	tokens := &Tokens{
		AccessToken:  tokenAccess.String(obj),
		RefreshToken: tokenRefresh.String(obj),
	}
	tokens.ExpiresIn, _ = tokenExpiry.Int(obj)
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%s: response carried no access token", label)
	}
	return tokens, nil
}

// ---------------------------------------------------------------------------
// Team-scoped endpoints
// ---------------------------------------------------------------------------

// Seasons lists every season known to the provider.
func (c *Client) Seasons(ctx context.Context, token string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/seasons", nil, "seasons")
}

// Roster lists a team's players for a season.
func (c *Client) Roster(ctx context.Context, token, teamID, seasonID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/teams/"+url.PathEscape(teamID)+"/players", season(seasonID), "roster")
}

// Schedule lists a team's events for a season.
func (c *Client) Schedule(ctx context.Context, token, teamID, seasonID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/teams/"+url.PathEscape(teamID)+"/events", season(seasonID), "schedule")
}

// SeasonStats lists per-player season stats. filter is "", "home", "away"
// or "conference".
func (c *Client) SeasonStats(ctx context.Context, token, teamID, seasonID, filter string) ([]Item, error) {
	params := season(seasonID)
	label := "season_stats"
	if filter != "" {
		params.Set("filter", filter)
		label += "." + filter
	}
	return c.getList(ctx, token, "/v2/teams/"+url.PathEscape(teamID)+"/players/stats", params, label)
}

// TeamRecord returns the team's record for a season.
func (c *Client) TeamRecord(ctx context.Context, token, teamID, seasonID string) (Item, error) {
	return c.getObject(ctx, token, "/v2/teams/"+url.PathEscape(teamID)+"/record", season(seasonID), "team_record")
}

// Releases lists a team's press releases.
func (c *Client) Releases(ctx context.Context, token, teamID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/teams/"+url.PathEscape(teamID)+"/releases", nil, "releases")
}

// ---------------------------------------------------------------------------
// Event endpoints
// ---------------------------------------------------------------------------

// Event returns event detail, including home/away team ids.
func (c *Client) Event(ctx context.Context, token, eventID string) (Item, error) {
	return c.getObject(ctx, token, "/v2/events/"+url.PathEscape(eventID), nil, "event")
}

// BoxScore returns the event's stats payload. The XML variant sits under
// an "xml" key; the JSON variant carries player lists directly.
func (c *Client) BoxScore(ctx context.Context, token, eventID string) (Item, error) {
	return c.getObject(ctx, token, "/v2/events/"+url.PathEscape(eventID)+"/stats", nil, "box_score")
}

// LiveStats returns in-game stats. homeTeamID is required by the upstream.
// A 404 means the game has not started.
func (c *Client) LiveStats(ctx context.Context, token, eventID, homeTeamID string) (Item, error) {
	params := url.Values{}
	params.Set("teamId", homeTeamID)
	return c.getObject(ctx, token, "/v2/events/"+url.PathEscape(eventID)+"/livestats", params, "live_stats")
}

// ---------------------------------------------------------------------------
// Player endpoints
// ---------------------------------------------------------------------------

// Player returns a player's bio detail.
func (c *Client) Player(ctx context.Context, token, playerID string) (Item, error) {
	return c.getObject(ctx, token, "/v2/players/"+url.PathEscape(playerID), nil, "player")
}

// CareerStats lists a player's per-season stat entries.
func (c *Client) CareerStats(ctx context.Context, token, playerID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/players/"+url.PathEscape(playerID)+"/stats/career", nil, "career_stats")
}

// Photos lists a player's photos.
func (c *Client) Photos(ctx context.Context, token, playerID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/players/"+url.PathEscape(playerID)+"/photos", nil, "photos")
}

// Videos lists a player's videos.
func (c *Client) Videos(ctx context.Context, token, playerID string) ([]Item, error) {
	return c.getList(ctx, token, "/v2/players/"+url.PathEscape(playerID)+"/videos", nil, "videos")
}

// ---------------------------------------------------------------------------
// Plumbing
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, token, path string, params url.Values, label string) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	resp, err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    u,
		Header: header,
		Label:  label,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) getList(ctx context.Context, token, path string, params url.Values, label string) ([]Item, error) {
	data, err := c.get(ctx, token, path, params, label)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return items, nil
}

func (c *Client) getObject(ctx context.Context, token, path string, params url.Values, label string) (Item, error) {
	data, err := c.get(ctx, token, path, params, label)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return obj, nil
}

func season(seasonID string) url.Values {
	params := url.Values{}
	if seasonID != "" {
		params.Set("seasonId", seasonID)
	}
	return params
}

// decodeList accepts a bare array or an object wrapping one under a known
// key. An empty body is an empty list.
func decodeList(data []byte) ([]Item, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		list = provider.F("data", "items", "results", "data.items").List(v)
		if list == nil {
			return nil, fmt.Errorf("no list in object with keys %v", keys(v))
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected JSON type %T", raw)
	}

	items := make([]Item, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// decodeObject unwraps {"data": {...}} when present.
func decodeObject(data []byte) (Item, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Item{}, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
