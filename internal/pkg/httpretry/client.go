// Package httpretry wraps an HTTP client with bounded retries, exponential
// backoff and full jitter. The HTTP-API mail transports use it so a single
// 429 or 503 from the provider does not fail a coach outright.
//
// A non-idempotent request (a POST without an Idempotency-Key header) is only
// retried when the provider cannot have acted on it: the connection failed
// before the request was written, or the response was 429 or 503.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/playbook/outreach/internal/pkg/logger"
)

// Doer executes HTTP requests. *http.Client and *Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries retryable responses and transport errors.
type Client struct {
	doer       Doer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff overrides the base and maximum backoff delays.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// New wraps doer. A nil doer gets an http.Client with a 30s timeout;
// maxRetries <= 0 means 2 retries after the first attempt.
func New(doer Doer, maxRetries int, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	c := &Client{
		doer:       doer,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends req, retrying until the attempts run out or the request context
// ends. The last retryable response is returned as-is so callers can read the
// provider's error body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	idempotent := Idempotent(req)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset body: %w", err)
				}
				req.Body = body
			}

			delay := c.backoff(attempt)
			logger.Debug("httpretry: retrying", "attempt", attempt, "host", req.URL.Host, "path", req.URL.Path, "delay", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		var wrote atomic.Bool
		trace := &httptrace.ClientTrace{
			WroteRequest: func(info httptrace.WroteRequestInfo) {
				if info.Err == nil {
					wrote.Store(true)
				}
			},
		}

		resp, err := c.doer.Do(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			if wrote.Load() && !idempotent {
				// The server may have accepted the request before the connection dropped.
				return nil, err
			}
			lastErr = err
			continue
		}

		retry := Retryable(resp.StatusCode)
		if !idempotent {
			retry = safeToResend(resp.StatusCode)
		}
		if !retry || attempt == c.maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// Idempotent reports whether req may be replayed after the server has seen it.
func Idempotent(req *http.Request) bool {
	switch req.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete, http.MethodTrace:
		return true
	}
	return req.Header.Get("Idempotency-Key") != ""
}

// safeToResend covers responses a provider sends without processing the request.
func safeToResend(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// backoff is random(0, min(maxDelay, baseDelay*2^(attempt-1))) with a small
// floor.
func (c *Client) backoff(attempt int) time.Duration {
	exp := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(c.maxDelay) {
		exp = float64(c.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if floor := c.baseDelay / 10; d < floor {
		d = floor
	}
	return d
}

// Retryable reports whether a status code is worth retrying.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
