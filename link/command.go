package link

import (
	"fmt"
	"strconv"
	"strings"
)

// Voltage limits of the counting tube supply, in volts.
const (
	MinVoltage = 300
	MaxVoltage = 700
)

// CommandKind identifies one command of the closed device vocabulary.
type CommandKind uint8

const (
	CmdStartMeasurement CommandKind = iota // s1
	CmdStopMeasurement                     // s0
	CmdSetVoltage                          // j<V>
	CmdSetDuration                         // f<code>
	CmdSetMode                             // o<0|1>
	CmdSetQueryMode                        // b<1|4>
	CmdSetSpeaker                          // U<0..3>
	CmdClearCounter                        // w
	CmdQueryStatus                         // b2
	CmdQueryInfo                           // info
	CmdQueryVersion                        // sv
	CmdQueryCopyright                      // oc
)

// String returns the command mnemonic.
func (k CommandKind) String() string {
	switch k {
	case CmdStartMeasurement:
		return "start"
	case CmdStopMeasurement:
		return "stop"
	case CmdSetVoltage:
		return "set-voltage"
	case CmdSetDuration:
		return "set-duration"
	case CmdSetMode:
		return "set-mode"
	case CmdSetQueryMode:
		return "set-query-mode"
	case CmdSetSpeaker:
		return "set-speaker"
	case CmdClearCounter:
		return "clear-counter"
	case CmdQueryStatus:
		return "query-status"
	case CmdQueryInfo:
		return "query-info"
	case CmdQueryVersion:
		return "query-version"
	case CmdQueryCopyright:
		return "query-copyright"
	default:
		return "unknown"
	}
}

// IsQuery reports whether the command is answered by a reply line of its
// own. Non-query commands are confirmed by their echo alone.
func (k CommandKind) IsQuery() bool {
	switch k {
	case CmdQueryStatus, CmdQueryInfo, CmdQueryVersion, CmdQueryCopyright:
		return true
	default:
		return false
	}
}

// Mode selects between a single counting run and repeated runs.
type Mode uint8

const (
	ModeSingle Mode = iota
	ModeRepeat
)

func (m Mode) String() string {
	if m == ModeRepeat {
		return "repeat"
	}

	return "single"
}

// QueryMode selects how the device reports its status line.
type QueryMode uint8

const (
	// QueryManual: the device reports status only when asked (b1/b2).
	QueryManual QueryMode = iota
	// QueryAuto: the device streams its status line every 50 ms (b4).
	QueryAuto
)

func (q QueryMode) String() string {
	if q == QueryAuto {
		return "auto"
	}

	return "manual"
}

// DurationCode selects the counting duration. The codes are defined by the
// device firmware; DurationSeconds maps them to seconds for display.
type DurationCode uint8

const (
	DurationInfinite DurationCode = iota
	Duration1s
	Duration10s
	Duration60s
	Duration100s
	Duration300s

	maxDurationCode = uint8(Duration300s)
)

// DurationSeconds returns the counting duration in seconds, or 0 for the
// infinite setting.
func (d DurationCode) DurationSeconds() int {
	switch d {
	case Duration1s:
		return 1
	case Duration10s:
		return 10
	case Duration60s:
		return 60
	case Duration100s:
		return 100
	case Duration300s:
		return 300
	default:
		return 0
	}
}

// Command is one outbound instruction of the closed command set.
//
// Only the fields relevant to Kind are meaningful; use the constructor
// functions rather than building Command values by hand.
type Command struct {
	Kind CommandKind

	Voltage      uint16
	Duration     DurationCode
	Mode         Mode
	QueryMode    QueryMode
	SpeakerGM    bool
	SpeakerReady bool
}

// StartMeasurement starts the counting process.
func StartMeasurement() Command { return Command{Kind: CmdStartMeasurement} }

// StopMeasurement stops the counting process.
func StopMeasurement() Command { return Command{Kind: CmdStopMeasurement} }

// SetVoltage sets the tube supply voltage in volts.
func SetVoltage(v uint16) Command { return Command{Kind: CmdSetVoltage, Voltage: v} }

// SetDuration sets the counting duration code.
func SetDuration(d DurationCode) Command { return Command{Kind: CmdSetDuration, Duration: d} }

// SetMode selects single or repeated counting runs.
func SetMode(m Mode) Command { return Command{Kind: CmdSetMode, Mode: m} }

// SetQueryMode selects manual or automatic status reporting.
func SetQueryMode(q QueryMode) Command { return Command{Kind: CmdSetQueryMode, QueryMode: q} }

// SetSpeaker enables or disables the pulse and ready sounds.
func SetSpeaker(gm, ready bool) Command {
	return Command{Kind: CmdSetSpeaker, SpeakerGM: gm, SpeakerReady: ready}
}

// ClearCounter resets the device count register.
func ClearCounter() Command { return Command{Kind: CmdClearCounter} }

// QueryStatus requests a single status line.
func QueryStatus() Command { return Command{Kind: CmdQueryStatus} }

// QueryInfo requests the device identity code.
func QueryInfo() Command { return Command{Kind: CmdQueryInfo} }

// QueryVersion requests the firmware version line.
func QueryVersion() Command { return Command{Kind: CmdQueryVersion} }

// QueryCopyright requests the device copyright line.
func QueryCopyright() Command { return Command{Kind: CmdQueryCopyright} }

// Encode serializes the command to its ASCII wire line, without the trailing
// newline. The switch is exhaustive over the command set; extending the
// vocabulary requires extending it here.
func (c Command) Encode() (string, error) {
	switch c.Kind {
	case CmdStartMeasurement:
		return "s1", nil

	case CmdStopMeasurement:
		return "s0", nil

	case CmdSetVoltage:
		if c.Voltage < MinVoltage || c.Voltage > MaxVoltage {
			return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidVoltage, c.Voltage, MinVoltage, MaxVoltage)
		}

		return "j" + strconv.Itoa(int(c.Voltage)), nil

	case CmdSetDuration:
		if uint8(c.Duration) > maxDurationCode {
			return "", fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidDuration, c.Duration, maxDurationCode)
		}

		return "f" + strconv.Itoa(int(c.Duration)), nil

	case CmdSetMode:
		if c.Mode == ModeRepeat {
			return "o1", nil
		}

		return "o0", nil

	case CmdSetQueryMode:
		// b1 reports when a run finishes, b4 streams every 50 ms.
		if c.QueryMode == QueryAuto {
			return "b4", nil
		}

		return "b1", nil

	case CmdSetSpeaker:
		code := 0
		if c.SpeakerGM {
			code++
		}
		if c.SpeakerReady {
			code += 2
		}

		return "U" + strconv.Itoa(code), nil

	case CmdClearCounter:
		return "w", nil

	case CmdQueryStatus:
		return "b2", nil

	case CmdQueryInfo:
		return "info", nil

	case CmdQueryVersion:
		return "sv", nil

	case CmdQueryCopyright:
		return "oc", nil

	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownCommand, c.Kind)
	}
}

// ResponseType classifies an incoming text line.
type ResponseType uint8

const (
	// RespInvalid marks any line that does not match a known shape.
	RespInvalid ResponseType = iota
	// RespAck is a command echo from the device.
	RespAck
	// RespStatus is the 6-field comma-separated status line.
	RespStatus
	// RespInfo is the device identity line ("OpenBIS code: X").
	RespInfo
	// RespVersion is the firmware version line.
	RespVersion
	// RespCopyright is the device copyright line.
	RespCopyright
)

func (t ResponseType) String() string {
	switch t {
	case RespAck:
		return "ack"
	case RespStatus:
		return "status"
	case RespInfo:
		return "info"
	case RespVersion:
		return "version"
	case RespCopyright:
		return "copyright"
	default:
		return "invalid"
	}
}

// StatusReport is the parsed device status line:
// count, last count, duration code, repeat flag, progress, voltage.
type StatusReport struct {
	Count     uint32
	LastCount uint32
	Duration  DurationCode
	Repeat    bool
	Progress  uint32
	Voltage   uint16
}

// Response is one classified text line from the device.
type Response struct {
	Type ResponseType
	Raw  string

	// Ack holds the echoed command when Type is RespAck.
	Ack Command
	// Status holds the parsed fields when Type is RespStatus.
	Status StatusReport
	// Text holds the payload for RespInfo (identity code), RespVersion,
	// and RespCopyright.
	Text string
}

const infoPrefix = "OpenBIS code:"

// ParseResponse classifies a newline-trimmed response line.
//
// Unknown shapes yield RespInvalid; parsing never fails hard, because the
// device shares the channel with binary frames and corruption is expected.
func ParseResponse(line string) Response {
	line = strings.TrimSpace(line)
	resp := Response{Type: RespInvalid, Raw: line}

	if line == "" || strings.EqualFold(line, "invalid") {
		return resp
	}

	if cmd, ok := parseEcho(line); ok {
		resp.Type = RespAck
		resp.Ack = cmd

		return resp
	}

	if status, ok := parseStatusLine(line); ok {
		resp.Type = RespStatus
		resp.Status = status

		return resp
	}

	if rest, ok := strings.CutPrefix(line, infoPrefix); ok {
		resp.Type = RespInfo
		resp.Text = strings.TrimSpace(rest)

		return resp
	}

	lower := strings.ToLower(line)

	switch {
	case strings.HasPrefix(lower, "version"):
		resp.Type = RespVersion
		resp.Text = strings.TrimSpace(strings.TrimPrefix(line[len("version"):], ":"))

	case strings.Contains(lower, "copyright") || strings.Contains(line, "(c)"):
		resp.Type = RespCopyright
		resp.Text = line
	}

	return resp
}

// parseEcho recognizes a line that is exactly a valid command string and
// returns the matching Command. The device echoes accepted commands back on
// the shared line channel.
func parseEcho(line string) (Command, bool) {
	switch line {
	case "s1":
		return StartMeasurement(), true
	case "s0":
		return StopMeasurement(), true
	case "w":
		return ClearCounter(), true
	case "b1":
		return SetQueryMode(QueryManual), true
	case "b4":
		return SetQueryMode(QueryAuto), true
	case "b2":
		return QueryStatus(), true
	case "o0":
		return SetMode(ModeSingle), true
	case "o1":
		return SetMode(ModeRepeat), true
	case "info":
		return QueryInfo(), true
	case "sv":
		return QueryVersion(), true
	case "oc":
		return QueryCopyright(), true
	}

	if len(line) < 2 {
		return Command{}, false
	}

	rest := line[1:]

	switch line[0] {
	case 'j':
		v, err := strconv.ParseUint(rest, 10, 16)
		if err != nil || v < MinVoltage || v > MaxVoltage {
			return Command{}, false
		}

		return SetVoltage(uint16(v)), true

	case 'f':
		code, err := strconv.ParseUint(rest, 10, 8)
		if err != nil || code > uint64(maxDurationCode) {
			return Command{}, false
		}

		return SetDuration(DurationCode(code)), true

	case 'U':
		code, err := strconv.ParseUint(rest, 10, 8)
		if err != nil || code > 3 {
			return Command{}, false
		}

		return SetSpeaker(code&1 != 0, code&2 != 0), true
	}

	return Command{}, false
}

// parseStatusLine parses the comma-separated status line:
// count,lastCount,durationCode,repeat,progress,voltage.
func parseStatusLine(line string) (StatusReport, bool) {
	parts := strings.Split(line, ",")

	// Some firmware revisions emit a trailing separator.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	if len(parts) != 6 {
		return StatusReport{}, false
	}

	fields := make([]uint64, 6)
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return StatusReport{}, false
		}
		fields[i] = v
	}

	if fields[2] > uint64(maxDurationCode) || fields[5] > 0xFFFF {
		return StatusReport{}, false
	}

	return StatusReport{
		Count:     uint32(fields[0]),
		LastCount: uint32(fields[1]),
		Duration:  DurationCode(fields[2]),
		Repeat:    fields[3] != 0,
		Progress:  uint32(fields[4]),
		Voltage:   uint16(fields[5]),
	}, true
}
