package pico

import (
	"errors"
	"fmt"
)

// Errors returned by the pico package.
var (
	// ErrNotConnected is returned for operations before Connect.
	ErrNotConnected = errors.New("pico: not connected")

	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("pico: already connected")

	// ErrMissingHost is returned when no device host is configured.
	ErrMissingHost = errors.New("pico: no device host configured")

	// ErrInvalidTimeout is returned for a timeout outside the supported
	// 5-15 second window.
	ErrInvalidTimeout = errors.New("pico: timeout must be between 5s and 15s")

	// ErrInvalidMode is returned for an undefined ventilation mode.
	ErrInvalidMode = errors.New("pico: invalid mode")

	// ErrInvalidSpeed is returned for a fan speed step outside 1-5.
	ErrInvalidSpeed = errors.New("pico: invalid fan speed step")

	// ErrInvalidHumidity is returned for an undefined humidity setpoint.
	ErrInvalidHumidity = errors.New("pico: invalid humidity setpoint")

	// ErrNotSupported is the sentinel all NotSupportedError values match
	// via errors.Is.
	ErrNotSupported = errors.New("pico: not supported in current mode")
)

// NotSupportedError reports an operation incompatible with the controller's
// current ventilation mode.
type NotSupportedError struct {
	// Op names the rejected operation.
	Op string

	// Mode is the mode the controller was last seen in.
	Mode DeviceMode
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("pico: %s not supported in mode %s", e.Op, e.Mode)
}

// Is reports a match against ErrNotSupported so callers can use errors.Is.
func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}
