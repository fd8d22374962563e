package llms

import (
	"errors"
	"fmt"
	"time"
)

// Failure classes surfaced by the gateway. Engines match with errors.Is and
// decide how much of the turn survives.
var (
	// ErrProviderUnavailable covers transport-level failures: DNS, refused
	// connections, resets.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrAuthRejected means the configured credential was refused.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrRateLimited means the provider throttled the request. The error
	// may carry a suggested backoff, see RateLimitError.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout means the call exceeded the provider's configured ceiling.
	ErrTimeout = errors.New("provider timeout")

	// ErrProtocol means the provider responded with something the gateway
	// could not interpret.
	ErrProtocol = errors.New("protocol error")
)

// RateLimitError wraps ErrRateLimited with the backoff suggested by the
// provider (zero when none was given).
type RateLimitError struct {
	Provider string
	Backoff  time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Backoff > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %v", e.Provider, e.Backoff)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ProviderError attaches the provider id and upstream detail to one of the
// sentinel classes above.
type ProviderError struct {
	Provider string
	Kind     error
	Detail   string
}

func (e *ProviderError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Kind }
