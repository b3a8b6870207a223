package remote

import (
	"errors"
	"fmt"
)

// ErrPaginationLimit is returned when a paginated listing keeps producing
// next links beyond the configured page ceiling. This indicates server
// misbehavior and is never retried.
var ErrPaginationLimit = errors.New("pagination page limit exceeded")

// Error is the typed failure returned for remote call problems. It carries
// the upstream HTTP status (0 for transport-level failures) and whether the
// condition is worth retrying at a higher level.
type Error struct {
	// StatusCode is the HTTP status from the upstream, or 0 when the request
	// never produced a response.
	StatusCode int

	// Retryable reports whether the failure was transient (429/503/504 or a
	// transport error). A retryable Error surfacing to a caller means the
	// client already exhausted its attempt budget.
	Retryable bool

	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote call failed with status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote call failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("remote call failed: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a remote Error marked retryable.
func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Retryable
}

// StatusCode extracts the upstream HTTP status from err, or 0 when err is
// not a remote Error or never reached the upstream.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
