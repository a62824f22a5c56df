package smartthings

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for the SmartThings API client.
// Check with errors.Is(); RateLimitError additionally carries the
// cloud-provided retry delay.
var (
	// ErrAuthFailure is returned on HTTP 401. The token is invalid or
	// revoked; retrying cannot help.
	ErrAuthFailure = errors.New("smartthings: authentication failed")

	// ErrForbidden is returned on HTTP 403. The token is valid but lacks
	// the scope for the requested resource.
	ErrForbidden = errors.New("smartthings: access forbidden")

	// ErrNotFound is returned on HTTP 404.
	ErrNotFound = errors.New("smartthings: resource not found")

	// ErrRateLimited is returned on HTTP 429. Use RetryAfterFrom to
	// extract the delay the cloud asked for.
	ErrRateLimited = errors.New("smartthings: rate limited")

	// ErrRequestFailed wraps transport errors and unexpected statuses.
	ErrRequestFailed = errors.New("smartthings: request failed")
)

// RateLimitError carries the Retry-After delay from a 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("smartthings: rate limited, retry after %s", e.RetryAfter)
}

// Is makes the error match ErrRateLimited under errors.Is.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterFrom extracts the cloud-provided retry delay from an error
// chain, or returns the fallback if the error is not a rate limit or
// carries no delay.
func RetryAfterFrom(err error, fallback time.Duration) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return fallback
}
