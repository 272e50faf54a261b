package discovery

import "errors"

// Errors returned by the discovery package.
var (
	// ErrDeviceNotFound is returned when a lookup finds no matching instance.
	ErrDeviceNotFound = errors.New("discovery: device not found")

	// ErrLookupTimeout is returned when a lookup exceeds its timeout.
	ErrLookupTimeout = errors.New("discovery: lookup timed out")

	// ErrInvalidInstance is returned for an empty instance name.
	ErrInvalidInstance = errors.New("discovery: invalid instance name")

	// ErrInvalidDeviceName is returned when the advertised name exceeds the
	// maximum length.
	ErrInvalidDeviceName = errors.New("discovery: device name too long")
)
