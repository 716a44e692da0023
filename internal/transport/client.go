// Package transport provides the throttled, retrying HTTP client that every
// call to the upstream provider goes through.
//
// One Client is shared by all teams: its limiter spaces outbound requests by
// a fixed minimum interval so the upstream sees a single, polite caller from
// this IP. 403 and 429 responses (and network failures) are retried with
// exponential backoff; every other non-2xx status is terminal.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lleo5301/sports2-backend-sub005/internal/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMinInterval = 750 * time.Millisecond
	defaultMaxRetries  = 2
	defaultRetryBase   = time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (compatible; sports2-sync/1.0)"

	// maxBodySize caps how much of a response body is buffered.
	maxBodySize = 16 << 20

	breakerName = "presto-api"
)

// Config controls throttling, retry and breaker behaviour.
type Config struct {
	Timeout     time.Duration
	MinInterval time.Duration // minimum spacing between outbound requests
	MaxRetries  int
	RetryBase   time.Duration // first backoff; doubles per attempt
	MaxBackoff  time.Duration
	BreakerTrip int // consecutive transient failures that open the breaker; 0 disables
	BufferSize  int // diagnostics ring buffer capacity
	UserAgent   string
}

// Client is the shared resilient HTTP client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*Response]
	maxRetries int
	retryBase  time.Duration
	maxBackoff time.Duration
	userAgent  string
	diag       *Diagnostics
	logger     *slog.Logger
}

// Request describes one logical upstream call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any // JSON-encoded when non-nil
	Label  string
}

// Response is a successful (2xx) upstream response with its body buffered.
type Response struct {
	Status int
	Data   []byte
	Header http.Header
}

// Option adjusts a single call.
type Option func(*callSettings)

type callSettings struct {
	maxRetries int
}

// WithMaxRetries overrides the client's retry budget for one call.
func WithMaxRetries(n int) Option {
	return func(s *callSettings) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// New creates a Client. Zero config fields fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		maxBackoff: cfg.MaxBackoff,
		userAgent:  cfg.UserAgent,
		diag:       NewDiagnostics(cfg.BufferSize),
		logger:     logger,
	}
	if cfg.BreakerTrip > 0 {
		c.breaker = newBreaker(cfg.BreakerTrip, logger)
	}
	return c
}

// Diagnostics returns the client's rolling telemetry.
func (c *Client) Diagnostics() *Diagnostics {
	return c.diag
}

// Snapshot returns diagnostics counters, recent entries and breaker state.
func (c *Client) Snapshot() Snapshot {
	snap := c.diag.Snapshot()
	snap.BreakerState = "disabled"
	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
	}
	return snap
}

// Do executes a request with throttling, retries and breaker protection.
// On failure the returned error is a *StatusError carrying the last status,
// body and attempt count.
func (c *Client) Do(ctx context.Context, req Request, opts ...Option) (*Response, error) {
	settings := callSettings{maxRetries: c.maxRetries}
	for _, opt := range opts {
		opt(&settings)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Label == "" {
		req.Label = req.URL
	}

	start := time.Now()
	attempts := 0
	run := func() (*Response, error) {
		return c.execute(ctx, req, settings, &attempts)
	}

	var (
		resp *Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(run)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &StatusError{Label: req.Label, Method: req.Method, Err: ErrCircuitOpen}
		}
	} else {
		resp, err = run()
	}

	c.record(req, start, attempts, resp, err)
	return resp, err
}

// execute runs the attempt loop for one logical request.
func (c *Client) execute(ctx context.Context, req Request, settings callSettings, attempts *int) (*Response, error) {
	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, &StatusError{Label: req.Label, Method: req.Method, Err: err}
	}

	var lastErr *StatusError
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &StatusError{Label: req.Label, Method: req.Method, Attempts: *attempts, Err: fmt.Errorf("throttle wait: %w", err)}
		}
		*attempts++

		resp, header, err := c.send(ctx, req, payload)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, &StatusError{Label: req.Label, Method: req.Method, Attempts: *attempts, Err: ctx.Err()}
			}
			lastErr = &StatusError{Label: req.Label, Method: req.Method, Err: err}
		case resp.Status >= 200 && resp.Status < 300:
			return resp, nil
		default:
			lastErr = newStatusError(req, resp)
			if lastErr.BotChallenge {
				c.diag.botChallenge()
				metrics.UpstreamBotChallenges.Inc()
				c.logger.Warn("Upstream bot challenge detected",
					"label", req.Label, "attempt", *attempts)
			}
			if !lastErr.Retryable() {
				lastErr.Attempts = *attempts
				return nil, lastErr
			}
		}
		lastErr.Attempts = *attempts

		if attempt >= settings.maxRetries {
			return nil, lastErr
		}

		delay := c.backoff(attempt, header)
		metrics.UpstreamRetries.WithLabelValues(req.Label).Inc()
		c.logger.Warn("Retrying upstream request",
			"label", req.Label, "status", lastErr.Status,
			"attempt", *attempts, "delay", delay)

		if err := sleep(ctx, delay); err != nil {
			return nil, &StatusError{Label: req.Label, Method: req.Method, Attempts: *attempts, Err: err}
		}
	}
}

// send performs a single HTTP exchange. A non-nil error means no response.
func (c *Client) send(ctx context.Context, req Request, payload []byte) (*Response, http.Header, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("http request %s: %w", req.Label, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Data:   data,
		Header: httpResp.Header,
	}, httpResp.Header, nil
}

// backoff returns retryBase * 2^attempt, or the server's Retry-After when it
// asks for longer. Both are capped at maxBackoff.
func (c *Client) backoff(attempt int, header http.Header) time.Duration {
	delay := c.retryBase
	for i := 0; i < attempt && delay < c.maxBackoff; i++ {
		delay *= 2
	}
	if header != nil {
		if ra := header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				if hinted := time.Duration(secs) * time.Second; hinted > delay {
					delay = hinted
				}
			}
		}
	}
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

func (c *Client) record(req Request, start time.Time, attempts int, resp *Response, err error) {
	elapsed := time.Since(start)
	entry := Entry{
		Timestamp:  start.UTC(),
		Method:     req.Method,
		Label:      req.Label,
		Attempts:   attempts,
		DurationMS: elapsed.Milliseconds(),
	}

	outcome := "success"
	if resp != nil {
		entry.Status = resp.Status
	}
	if err != nil {
		outcome = "failed"
		entry.Error = err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			entry.Status = se.Status
			if errors.Is(se.Err, ErrCircuitOpen) {
				outcome = "rejected"
			}
		}
	}

	c.diag.record(entry, err == nil)
	metrics.UpstreamRequests.WithLabelValues(req.Label, outcome).Inc()
	metrics.UpstreamDuration.WithLabelValues(req.Label).Observe(elapsed.Seconds())

	c.logger.Debug("Upstream request",
		"label", req.Label, "method", req.Method, "status", entry.Status,
		"attempts", attempts, "duration", elapsed.Round(time.Millisecond))
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return payload, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newBreaker opens after trip consecutive transient failures and lets a
// trial request through after two minutes.
func newBreaker(trip int, logger *slog.Logger) *gobreaker.CircuitBreaker[*Response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(trip)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
