package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrMalformedResponse = errors.New("malformed supplier response")
)

// RateLimitError is returned when the supplier answered 429 Too Many Requests.
// It is the only error the retry policy retries.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited on %s (retry after %s)", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited on %s", e.URL)
}

// StatusError is any other unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-OK status: %d", e.StatusCode)
	}
	return fmt.Sprintf("non-OK status: %d: %s", e.StatusCode, e.Body)
}

func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsTransient reports errors worth retrying for side downloads such as
// images: rate limiting, 5xx answers and transport failures. Cancellation is
// never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsRateLimited(err) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
