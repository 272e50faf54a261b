package exchange

import (
	"errors"
	"fmt"
)

// Errors returned by the exchange package.
var (
	// ErrAllocationExhausted is returned when no IDP range is available.
	ErrAllocationExhausted = errors.New("exchange: idp address space exhausted")

	// ErrUnknownDevice is returned for operations against an unregistered device.
	ErrUnknownDevice = errors.New("exchange: device not registered")

	// ErrDuplicateRegistration is returned when registering a live device ID again.
	ErrDuplicateRegistration = errors.New("exchange: device already registered")

	// ErrSessionClosed is returned for exchanges on an unregistered session.
	ErrSessionClosed = errors.New("exchange: session closed")

	// ErrManagerClosed is returned for operations on a closed manager.
	ErrManagerClosed = errors.New("exchange: manager closed")

	// ErrTimeout is the sentinel all TimeoutError values match via errors.Is.
	ErrTimeout = errors.New("exchange: no correlated response within retry budget")

	// ErrConnection is the sentinel all ConnectionError values match via errors.Is.
	ErrConnection = errors.New("exchange: connection failure")
)

// TimeoutError reports an exchange that exhausted every resync increment and
// every outer retry without a correlated response.
type TimeoutError struct {
	// DeviceID is the session the exchange ran against.
	DeviceID string

	// LastIDP is the last identifier probed before giving up.
	LastIDP int

	// Attempts is the number of outer attempts made.
	Attempts int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exchange: device %s: no response after %d attempts (last idp %d)",
		e.DeviceID, e.Attempts, e.LastIDP)
}

// Is reports a match against ErrTimeout so callers can use errors.Is.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ConnectionError reports a socket-level failure: bind, send, or a broken
// read loop. The reconnect supervisor retries operations that fail this way.
type ConnectionError struct {
	// Op names the failing operation, e.g. "bind" or "send".
	Op string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("exchange: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrConnection so callers can use errors.Is.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
