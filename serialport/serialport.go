// Package serialport adapts a serial device to the link.Transport interface.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/gmlink/gmlink/link"
)

// DefaultBaudRate matches the device firmware's UART configuration.
const DefaultBaudRate = 115200

// Port is a link.Transport over a serial device.
type Port struct {
	port serial.Port
	name string
}

// Config holds the serial parameters. The zero value selects the device
// defaults (115200 8N1).
type Config struct {
	BaudRate int
}

// Open opens the named serial device as a transport.
func Open(name string, cfg Config) (*Port, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	// A zero timeout makes Read return immediately with whatever is
	// buffered, which is exactly the poll-driven contract of
	// link.Transport.
	if err := port.SetReadTimeout(time.Duration(0)); err != nil {
		_ = port.Close()

		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	return &Port{port: port, name: name}, nil
}

// List returns the serial device names present on the host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	return ports, nil
}

// Name returns the device name the port was opened with.
func (p *Port) Name() string { return p.name }

// ReadAvailable fills buf with pending bytes without blocking. A failed read
// reports the port as lost.
func (p *Port) ReadAvailable(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("%w: read %s: %w", link.ErrTransportLost, p.name, err)
	}

	return n, nil
}

// Write sends buf to the device.
func (p *Port) Write(buf []byte) (int, error) {
	n, err := p.port.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %w", link.ErrTransportLost, p.name, err)
	}

	return n, nil
}

// Close releases the device.
func (p *Port) Close() error {
	return p.port.Close()
}
