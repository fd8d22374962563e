// Package httpclient is a thin retrying wrapper around net/http used by the
// provider gateway. Retries are bounded and rate-limit aware: 429/503 honor
// Retry-After, transient 5xx get a short fixed backoff, everything else
// fails fast.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

type retryClass int

const (
	noRetry retryClass = iota
	quickRetry
	rateLimitRetry
)

type Client struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

func New(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{Timeout: 320 * time.Second},
		maxRetries: 1,
		baseDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func classify(statusCode int) retryClass {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return rateLimitRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return quickRetry
	default:
		return noRetry
	}
}

// Do executes req, retrying retryable statuses up to the configured cap.
// A body rewind via req.GetBody is required for retries of POST requests.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpclient: rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Transport-level failure; the caller maps this to
			// ProviderUnavailable or Timeout.
			return nil, err
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		class := classify(resp.StatusCode)
		if class == noRetry || attempt >= c.maxRetries {
			return resp, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("request failed after %d attempt(s)", attempt+1),
				RetryAfter: retryAfter(resp, c.baseDelay, attempt),
				Retryable:  class != noRetry,
			}
		}

		delay := retryAfter(resp, c.baseDelay, attempt)
		slog.Debug("httpclient retrying", "status", resp.StatusCode, "delay", delay, "attempt", attempt+1)
		resp.Body.Close()
		time.Sleep(delay)
	}
}

// retryAfter picks the backoff for a failed attempt: the server-provided
// Retry-After when present, otherwise exponential from baseDelay.
func retryAfter(resp *http.Response, baseDelay time.Duration, attempt int) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * baseDelay
}
