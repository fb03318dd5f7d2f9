package control

import "errors"

var (
	// ErrInvalidTransition indicates an operation that is not legal in the
	// current device state. Nothing is sent to the device.
	ErrInvalidTransition = errors.New("gmlink: invalid state transition")

	// ErrAckTimeout indicates that the device did not confirm a command
	// within the acknowledgment timeout.
	ErrAckTimeout = errors.New("gmlink: command not acknowledged")

	// ErrSettingsMismatch indicates that the device's status report
	// disagrees with the settings it just acknowledged.
	ErrSettingsMismatch = errors.New("gmlink: device status contradicts applied settings")

	// ErrNotConnected indicates an operation that requires a connected
	// device.
	ErrNotConnected = errors.New("gmlink: device not connected")
)
