// Package errs holds the error taxonomy shared by the matching and chat services.
// Services wrap these sentinels so transports can map them without knowing
// which store produced the failure.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("conflict")
	ErrRateLimited           = errors.New("rate limited")
	ErrValidation            = errors.New("validation error")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

type RateLimitedError struct {
	Bucket        string
	Limit         int
	Remaining     int
	RetryAfterSec int64
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s: retry after %ds", e.Bucket, e.RetryAfterSec)
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func IsRateLimited(err error) (RateLimitedError, bool) {
	var rl RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return RateLimitedError{}, false
}
