package llms

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coworkai/coworker/pkg/httpclient"
	"github.com/coworkai/coworker/pkg/protocol"
)

// classifyTransport maps a net/http transport failure to the gateway's error
// taxonomy.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Kind: ErrTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Provider: provider, Kind: ErrTimeout}
	}
	return &ProviderError{Provider: provider, Kind: ErrProviderUnavailable, Detail: err.Error()}
}

// classifyStatus maps a non-2xx provider response to the taxonomy.
func classifyStatus(provider string, status int, backoff time.Duration, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Provider: provider, Kind: ErrAuthRejected, Detail: protocol.Truncate(body, 200)}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, Backoff: backoff}
	case status >= 500:
		return &ProviderError{Provider: provider, Kind: ErrProviderUnavailable,
			Detail: "HTTP " + strconv.Itoa(status) + ": " + protocol.Truncate(body, 200)}
	default:
		return &ProviderError{Provider: provider, Kind: ErrProtocol,
			Detail: "HTTP " + strconv.Itoa(status) + ": " + protocol.Truncate(body, 200)}
	}
}

// classifyDoError maps the outcome of httpclient.Do. Retry exhaustion comes
// back as a RetryableError carrying the final status and suggested backoff.
func classifyDoError(provider string, err error, body string) error {
	var re *httpclient.RetryableError
	if errors.As(err, &re) {
		return classifyStatus(provider, re.StatusCode, re.RetryAfter, body)
	}
	return classifyTransport(provider, err)
}
