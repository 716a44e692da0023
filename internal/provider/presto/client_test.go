package presto

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tr := transport.New(transport.Config{RetryBase: time.Millisecond}, nil)
	return New(tr, server.URL)
}

func TestAuthenticate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"idToken":"access-1","refreshToken":"refresh-1","expirationTimeInSeconds":3600}`))
	})

	tokens, err := client.Authenticate(context.Background(), "coach", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, 3600, tokens.ExpiresIn)
}

func TestAuthenticate_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad password"}`))
	})

	_, err := client.Authenticate(context.Background(), "coach", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestRefresh_AltSpelling(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token/refresh", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"access_token":"a2","refresh_token":"r2","expires_in":"1800"}}`))
	})

	tokens, err := client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, 1800, tokens.ExpiresIn)
}

func TestRoster_EnvelopeAndBare(t *testing.T) {
	for name, body := range map[string]string{
		"wrapped": `{"data":[{"playerId":"p1"},{"playerId":"p2"}]}`,
		"bare":    `[{"playerId":"p1"},{"playerId":"p2"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/teams/t1/players", r.URL.Path)
				assert.Equal(t, "s1", r.URL.Query().Get("seasonId"))
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(body))
			})

			items, err := client.Roster(context.Background(), "tok", "t1", "s1")
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "p2", items[1]["playerId"])
		})
	}
}

func TestSeasonStats_Filter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "home", r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`[]`))
	})

	items, err := client.SeasonStats(context.Background(), "tok", "t1", "s1", "home")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLiveStats_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "h9", r.URL.Query().Get("teamId"))
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.LiveStats(context.Background(), "tok", "e1", "h9")
	require.Error(t, err)
	assert.True(t, transport.IsNotFound(err))
}

func TestBoxScore_UnwrapsData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"xml":"<bsgame/>"}}`))
	})

	obj, err := client.BoxScore(context.Background(), "tok", "e1")
	require.NoError(t, err)
	assert.Equal(t, "<bsgame/>", obj["xml"])
}

func TestDecodeList_Errors(t *testing.T) {
	_, err := decodeList([]byte(`{"message":"nope"}`))
	assert.Error(t, err)

	items, err := decodeList([]byte(``))
	assert.NoError(t, err)
	assert.Nil(t, items)
}
