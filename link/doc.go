// Package link implements the host side of the GM counter acquisition and
// control protocol running over a byte-oriented serial transport.
//
// The device multiplexes two sub-protocols on a single duplex channel:
//
//   - Binary event frames carrying inter-pulse time deltas at up to ~10 kHz.
//     Each frame is exactly 6 bytes: a start byte (0xAA), a 32-bit unsigned
//     delta in little-endian order, and an end byte (0x55).
//   - ASCII command/response lines, newline-terminated, carrying device
//     configuration and status (start/stop, voltage, counting duration,
//     query mode, identity and version queries).
//
// The central type is [Conn], which runs a single reader loop on its own
// goroutine. The loop demultiplexes incoming bytes into decoded events and
// parsed response lines, pushes events into a fixed-capacity [EventQueue]
// without ever blocking, and forwards responses to a registered handler.
// Outgoing commands are serialized through the same loop so only one command
// is ever in flight on the wire, which the response protocol requires: the
// device carries no correlation identifiers, so request/response matching
// depends entirely on strict ordering.
//
// # Overflow policy
//
// The event queue never blocks the reader. When the consumer falls behind
// and the queue is full, the newest event is dropped and counted; already
// queued events are preserved. Drops are observable through
// [EventQueue.TakeDropped] and are reported downstream, but they are never
// fatal.
//
// # Resynchronization
//
// A corrupted frame (wrong terminator byte) causes the decoder to discard a
// single byte and rescan. Because decoding is only ever attempted at a fixed
// 6-byte window anchored on a start byte, the scan is guaranteed to regain
// frame alignment as soon as the stream is clean again.
package link
