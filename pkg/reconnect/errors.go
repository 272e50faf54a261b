package reconnect

import (
	"errors"
	"fmt"
)

// Errors returned by the reconnect package.
var (
	// ErrNoConnect is returned when no Connect function is configured.
	ErrNoConnect = errors.New("reconnect: no connect function configured")

	// ErrReconnectFailed is the sentinel all ReconnectFailedError values
	// match via errors.Is.
	ErrReconnectFailed = errors.New("reconnect: all attempts failed")
)

// ReconnectFailedError reports an exhausted reconnect budget.
type ReconnectFailedError struct {
	// Attempts is the number of reconnect attempts made.
	Attempts int

	// Err is the last failure observed, from either the reconnect itself
	// or the retried operation.
	Err error
}

// Error implements the error interface.
func (e *ReconnectFailedError) Error() string {
	return fmt.Sprintf("reconnect: gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last observed failure.
func (e *ReconnectFailedError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrReconnectFailed so callers can use errors.Is.
func (e *ReconnectFailedError) Is(target error) bool {
	return target == ErrReconnectFailed
}
