package protocol

import "errors"

// Errors returned by the protocol package.
var (
	// ErrMalformedFrame is returned when a datagram is not valid JSON.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrMissingIDP is returned when a frame carries no correlation identifier.
	ErrMissingIDP = errors.New("protocol: frame missing idp field")

	// ErrMissingCommand is returned when encoding a command without a name.
	ErrMissingCommand = errors.New("protocol: command name required")
)
