package link

import "errors"

// Framing errors. All of them are handled inside the reader loop and never
// terminate the connection.
var (
	// ErrNeedMoreData indicates that the buffer ends before a complete frame;
	// the caller should keep the remaining bytes and read more input.
	ErrNeedMoreData = errors.New("gmlink: incomplete frame, need more data")

	// ErrFrameMalformed indicates that a start byte was found but the
	// terminator check failed and no complete frame follows in the buffer.
	// The decoder has already advanced past the bad start byte.
	ErrFrameMalformed = errors.New("gmlink: malformed frame")

	// ErrFrameDesync indicates that the terminator check failed repeatedly
	// within one buffer, beyond the configured rescan bound. The stream is
	// out of frame alignment; byte-wise rescanning continues to recover.
	ErrFrameDesync = errors.New("gmlink: frame desync")
)

// Command errors.
var (
	// ErrInvalidVoltage indicates a voltage outside the supported tube range.
	ErrInvalidVoltage = errors.New("gmlink: voltage out of range")

	// ErrInvalidDuration indicates an unknown counting duration code.
	ErrInvalidDuration = errors.New("gmlink: invalid duration code")

	// ErrUnknownCommand indicates a Command with an unrecognized kind.
	// This is a programming error, not a wire condition.
	ErrUnknownCommand = errors.New("gmlink: unknown command kind")
)

// Connection errors.
var (
	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("gmlink: connection closed")

	// ErrSendTimeout indicates that a command could not be queued for
	// transmission within the send timeout.
	ErrSendTimeout = errors.New("gmlink: send command timeout")

	// ErrTransportAttached indicates that Attach was called while a reader
	// loop is still running on the previous transport.
	ErrTransportAttached = errors.New("gmlink: transport already attached")

	// ErrNoTransport indicates that an operation requires an attached
	// transport but none is present.
	ErrNoTransport = errors.New("gmlink: no transport attached")

	// ErrTransportLost indicates that the underlying byte channel failed.
	// The reader loop stops; sequence numbering resumes where it left off
	// once a new transport is attached.
	ErrTransportLost = errors.New("gmlink: transport lost")
)
