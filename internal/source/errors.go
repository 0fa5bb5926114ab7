package source

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrAuthInvalid means the backend rejected the bearer credential.
	// Adapters wrap it as transient: the credential provider may hand out a
	// fresh token on the next attempt.
	ErrAuthInvalid = eris.New("source: credential rejected")

	// ErrNotFound means the requested file no longer exists upstream.
	ErrNotFound = eris.New("source: file not found")
)

// RateLimitedError reports provider throttling, with the server-advised wait
// when one was given.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("source: rate limited, retry after %s", e.RetryAfter)
	}
	return "source: rate limited"
}
