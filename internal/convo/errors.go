package convo

import "errors"

var (
	// ErrInvalidInput means a caller passed an empty or malformed id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps transient store I/O failures. The controller
	// keeps the last successfully published view when it sees one.
	ErrStoreUnavailable = errors.New("message store unavailable")

	// ErrClosed means the controller was shut down and no longer accepts
	// trigger calls.
	ErrClosed = errors.New("controller closed")
)
