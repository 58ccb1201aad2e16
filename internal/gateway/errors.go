package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for non-retryable gateway outcomes.
var (
	// ErrForbidden is returned when the token is missing, invalid, or not
	// allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the remote user or issue does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyUnassigned is returned when an unassign call finds no
	// matching assignee on the issue.
	ErrAlreadyUnassigned = errors.New("already unassigned")
)

// RateLimitedError indicates the GitHub API quota is exhausted.
// RetryAfter carries the server's reset hint when known.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter.Round(time.Second))
	}
	return "rate limited"
}

// TransientError indicates a network or server-side failure that is safe
// to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is worth retrying with backoff.
func Retryable(err error) bool {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}

// AlreadySatisfied reports whether the error means the intended effect is
// already in place remotely (skip, but commit the transition).
func AlreadySatisfied(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyUnassigned)
}
