package httpclient

import (
	"fmt"
	"time"
)

// RetryableError reports a non-2xx response together with the backoff the
// server suggested (or the client computed).
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Retryable  bool
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
