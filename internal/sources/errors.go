package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a source that refused the request for rate reasons
	ErrRateLimited = errors.New("rate limited")

	// ErrDisallowed marks a request blocked by the site's robots.txt
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// SourceError is the only error type a verifier returns
type SourceError struct {
	Source      string
	Op          string
	StatusCode  int
	RateLimited bool
	Err         error
}

// Error implements error
func (e *SourceError) Error() string {
	msg := e.Source + ": " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is matches ErrRateLimited for rate-limited errors
func (e *SourceError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

func newSourceError(source, op string, status int, err error) *SourceError {
	return &SourceError{
		Source:      source,
		Op:          op,
		StatusCode:  status,
		RateLimited: status == 429,
		Err:         err,
	}
}
