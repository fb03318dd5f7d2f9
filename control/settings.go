// Package control drives the device through its command vocabulary and
// tracks the device state machine.
//
// A Controller sits between an application and a link.Conn: it serializes
// setting changes into minimal command sequences, confirms them against the
// device's echoes and status reports, and enforces which operations are
// legal in which state. Illegal operations are rejected before anything
// touches the wire.
package control

import (
	"fmt"

	"github.com/gmlink/gmlink/link"
)

// DeviceSettings is the desired device configuration.
type DeviceSettings struct {
	// Voltage is the tube supply voltage in volts.
	Voltage uint16
	// Duration selects the counting run length.
	Duration link.DurationCode
	// Mode selects single or repeated runs.
	Mode link.Mode
	// QueryMode selects manual or streamed status reporting.
	QueryMode link.QueryMode
	// SpeakerGM clicks the speaker on every detected pulse.
	SpeakerGM bool
	// SpeakerReady beeps when a counting run finishes.
	SpeakerReady bool
}

// DefaultSettings returns the configuration applied after connecting when
// the application supplies nothing else.
func DefaultSettings() DeviceSettings {
	return DeviceSettings{
		Voltage:   400,
		Duration:  link.DurationInfinite,
		Mode:      link.ModeSingle,
		QueryMode: link.QueryManual,
	}
}

// Validate reports whether the settings can be encoded for the device.
func (s DeviceSettings) Validate() error {
	if s.Voltage < link.MinVoltage || s.Voltage > link.MaxVoltage {
		return fmt.Errorf("%w: %d", link.ErrInvalidVoltage, s.Voltage)
	}

	if s.Duration.DurationSeconds() == 0 && s.Duration != link.DurationInfinite {
		return fmt.Errorf("%w: %d", link.ErrInvalidDuration, s.Duration)
	}

	return nil
}

// DeviceStatus is the last known device-side view: identity obtained at
// connect time plus the fields of the most recent status report.
type DeviceStatus struct {
	FirmwareVersion string
	DeviceCode      string
	Copyright       string

	// Count is the running pulse count of the current run.
	Count uint32
	// LastCount is the final count of the previous run.
	LastCount uint32
	// Progress is the completed fraction of a finite run, in percent.
	Progress uint32

	// Settings mirrors the configuration the device last confirmed.
	Settings DeviceSettings
}
