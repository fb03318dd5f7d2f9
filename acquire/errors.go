package acquire

import "errors"

var (
	// ErrSessionActive indicates a Start while a session is already
	// recording.
	ErrSessionActive = errors.New("gmlink: session already active")

	// ErrNoSession indicates an operation that requires an active session.
	ErrNoSession = errors.New("gmlink: no active session")
)
