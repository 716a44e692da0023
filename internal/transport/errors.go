package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/goccy/go-json"
)

// ErrCircuitOpen is wrapped by StatusError when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// botChallengeRe matches markup served by common anti-bot interstitials.
var botChallengeRe = regexp.MustCompile(`(?i)(cf-chl|challenge-platform|__cf_chl|cf_clearance|just a moment\.\.\.|attention required!|px-captcha|_incapsula_resource|distil_r_captcha|g-recaptcha|h-captcha|are you a robot)`)

// StatusError describes a failed logical request. Status is 0 when no HTTP
// response was received.
type StatusError struct {
	Label        string
	Method       string
	Status       int
	Attempts     int
	Body         []byte
	Parsed       any // Body decoded as JSON, when it is JSON
	BotChallenge bool
	Err          error
}

func newStatusError(req Request, resp *Response) *StatusError {
	se := &StatusError{
		Label:  req.Label,
		Method: req.Method,
		Status: resp.Status,
		Body:   resp.Data,
	}
	var parsed any
	if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &parsed) == nil {
		se.Parsed = parsed
	}
	if resp.Status == http.StatusForbidden && IsBotChallenge(resp.Data) {
		se.BotChallenge = true
	}
	return se
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.Label, e.Attempts, e.Err)
	}
	msg := fmt.Sprintf("%s %s returned %d after %d attempt(s)", e.Method, e.Label, e.Status, e.Attempts)
	if e.BotChallenge {
		msg += " (bot challenge)"
	}
	if snippet := e.snippet(); snippet != "" {
		msg += ": " + snippet
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether the transport retries this failure.
func (e *StatusError) Retryable() bool {
	if e.Status == 0 {
		return !errors.Is(e.Err, ErrCircuitOpen)
	}
	return e.Status == http.StatusForbidden || e.Status == http.StatusTooManyRequests
}

// Transient reports whether the failure reflects upstream health rather than
// a bad request. The circuit breaker only counts transient failures.
func (e *StatusError) Transient() bool {
	return e.Retryable() || e.Status >= 500
}

func (e *StatusError) snippet() string {
	const limit = 200
	if len(e.Body) == 0 {
		return ""
	}
	if len(e.Body) > limit {
		return string(e.Body[:limit]) + "..."
	}
	return string(e.Body)
}

// IsBotChallenge reports whether body looks like an anti-bot interstitial.
func IsBotChallenge(body []byte) bool {
	return len(body) > 0 && botChallengeRe.Match(body)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func IsNotFound(err error) bool     { return StatusOf(err) == http.StatusNotFound }
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }
func IsRateLimited(err error) bool  { return StatusOf(err) == http.StatusTooManyRequests }

// IsTransient reports whether err is a StatusError for a transient failure.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return se.Transient()
}
