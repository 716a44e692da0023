package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(cfg Config) *Client {
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 10 * time.Millisecond
	}
	return New(cfg, nil)
}

func TestDo_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 3})
	resp, err := client.Do(context.Background(), Request{URL: server.URL, Label: "roster"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	snap := client.Snapshot()
	require.Len(t, snap.Recent, 1)
	assert.Equal(t, 4, snap.Recent[0].Attempts)
	assert.Equal(t, int64(1), snap.Counters.Retried)
	assert.Equal(t, int64(1), snap.Counters.Success)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 2})
	_, err := client.Do(context.Background(), Request{URL: server.URL, Label: "schedule"})

	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, 3, se.Attempts)
	assert.Equal(t, map[string]any{"message": "slow down"}, se.Parsed)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_NotFoundIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 5})
	_, err := client.Do(context.Background(), Request{URL: server.URL})

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 3})
	_, err := client.Do(context.Background(), Request{URL: server.URL})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_BotChallengeTagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html><title>Just a moment...</title><script src="/cdn-cgi/challenge-platform/x.js"></script></html>`))
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 1})
	_, err := client.Do(context.Background(), Request{URL: server.URL})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.BotChallenge)
	assert.Equal(t, 2, se.Attempts)
	assert.Contains(t, err.Error(), "bot challenge")
	assert.Equal(t, int64(2), client.Snapshot().Counters.BotChallenges)
}

func TestDo_PerCallRetryOverride(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(Config{MaxRetries: 4})
	_, err := client.Do(context.Background(), Request{URL: server.URL}, WithMaxRetries(0))

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_SendsJSONBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(Config{})
	header := http.Header{}
	header.Set("Authorization", "Bearer tok")
	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Header: header,
		Body:   map[string]string{"username": "coach"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestDo_ThrottleSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(Config{MinInterval: 40 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), Request{URL: server.URL})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{MaxRetries: 5, RetryBase: time.Second, MaxBackoff: time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsTransient(err))
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(Config{BreakerTrip: 2})
	for i := 0; i < 2; i++ {
		_, err := client.Do(context.Background(), Request{URL: server.URL})
		require.Error(t, err)
	}

	_, err := client.Do(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "open", client.Snapshot().BreakerState)
}

func TestDo_BreakerIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(Config{BreakerTrip: 1})
	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), Request{URL: server.URL})
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, "closed", client.Snapshot().BreakerState)
}

func TestBackoff_HonorsRetryAfter(t *testing.T) {
	client := New(Config{RetryBase: 100 * time.Millisecond, MaxBackoff: 5 * time.Second}, nil)

	assert.Equal(t, 100*time.Millisecond, client.backoff(0, nil))
	assert.Equal(t, 400*time.Millisecond, client.backoff(2, nil))
	assert.Equal(t, 5*time.Second, client.backoff(64, nil))
	assert.Equal(t, 5*time.Second, client.backoff(1000, nil))

	h := http.Header{}
	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, client.backoff(0, h))

	h.Set("Retry-After", "60")
	assert.Equal(t, 5*time.Second, client.backoff(0, h))
}

func TestDiagnostics_RingBufferIsBounded(t *testing.T) {
	d := NewDiagnostics(3)
	for i := 1; i <= 5; i++ {
		d.record(Entry{Attempts: 1, Status: i}, true)
	}

	snap := d.Snapshot()
	require.Len(t, snap.Recent, 3)
	assert.Equal(t, 3, snap.Recent[0].Status)
	assert.Equal(t, 5, snap.Recent[2].Status)
	assert.Equal(t, int64(5), snap.Counters.Total)
}

func TestIsBotChallenge(t *testing.T) {
	assert.True(t, IsBotChallenge([]byte(`<div id="px-captcha"></div>`)))
	assert.True(t, IsBotChallenge([]byte(`Attention Required! | Cloudflare`)))
	assert.False(t, IsBotChallenge([]byte(`{"message":"Forbidden"}`)))
	assert.False(t, IsBotChallenge(nil))
}
