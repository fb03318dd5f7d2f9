package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	tests := []struct {
		description string
		cmd         Command
		expected    string
	}{
		{description: "start", cmd: StartMeasurement(), expected: "s1"},
		{description: "stop", cmd: StopMeasurement(), expected: "s0"},
		{description: "voltage lower bound", cmd: SetVoltage(300), expected: "j300"},
		{description: "voltage upper bound", cmd: SetVoltage(700), expected: "j700"},
		{description: "duration infinite", cmd: SetDuration(DurationInfinite), expected: "f0"},
		{description: "duration 300s", cmd: SetDuration(Duration300s), expected: "f5"},
		{description: "mode single", cmd: SetMode(ModeSingle), expected: "o0"},
		{description: "mode repeat", cmd: SetMode(ModeRepeat), expected: "o1"},
		{description: "query mode manual", cmd: SetQueryMode(QueryManual), expected: "b1"},
		{description: "query mode auto", cmd: SetQueryMode(QueryAuto), expected: "b4"},
		{description: "speaker off", cmd: SetSpeaker(false, false), expected: "U0"},
		{description: "speaker gm only", cmd: SetSpeaker(true, false), expected: "U1"},
		{description: "speaker ready only", cmd: SetSpeaker(false, true), expected: "U2"},
		{description: "speaker both", cmd: SetSpeaker(true, true), expected: "U3"},
		{description: "clear counter", cmd: ClearCounter(), expected: "w"},
		{description: "query status", cmd: QueryStatus(), expected: "b2"},
		{description: "query info", cmd: QueryInfo(), expected: "info"},
		{description: "query version", cmd: QueryVersion(), expected: "sv"},
		{description: "query copyright", cmd: QueryCopyright(), expected: "oc"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			line, err := test.cmd.Encode()
			require.NoError(t, err)
			assert.Equal(t, test.expected, line)
		})
	}
}

func TestCommandEncodeInvalid(t *testing.T) {
	tests := []struct {
		description string
		cmd         Command
		expectedErr error
	}{
		{description: "voltage below range", cmd: SetVoltage(299), expectedErr: ErrInvalidVoltage},
		{description: "voltage above range", cmd: SetVoltage(701), expectedErr: ErrInvalidVoltage},
		{description: "voltage zero", cmd: SetVoltage(0), expectedErr: ErrInvalidVoltage},
		{description: "duration code out of range", cmd: SetDuration(DurationCode(6)), expectedErr: ErrInvalidDuration},
		{description: "unknown kind", cmd: Command{Kind: CommandKind(0xFF)}, expectedErr: ErrUnknownCommand},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := test.cmd.Encode()
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, 0, DurationInfinite.DurationSeconds())
	assert.Equal(t, 1, Duration1s.DurationSeconds())
	assert.Equal(t, 10, Duration10s.DurationSeconds())
	assert.Equal(t, 60, Duration60s.DurationSeconds())
	assert.Equal(t, 100, Duration100s.DurationSeconds())
	assert.Equal(t, 300, Duration300s.DurationSeconds())
}

func TestParseResponseAck(t *testing.T) {
	tests := []struct {
		line     string
		expected Command
	}{
		{line: "s1", expected: StartMeasurement()},
		{line: "s0", expected: StopMeasurement()},
		{line: "j450", expected: SetVoltage(450)},
		{line: "f3", expected: SetDuration(Duration60s)},
		{line: "o1", expected: SetMode(ModeRepeat)},
		{line: "b4", expected: SetQueryMode(QueryAuto)},
		{line: "b2", expected: QueryStatus()},
		{line: "U3", expected: SetSpeaker(true, true)},
		{line: "w", expected: ClearCounter()},
		{line: "info", expected: QueryInfo()},
		{line: "sv", expected: QueryVersion()},
		{line: "oc", expected: QueryCopyright()},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			resp := ParseResponse(test.line + "\r")
			require.Equal(t, RespAck, resp.Type)
			assert.Equal(t, test.expected, resp.Ack)
		})
	}
}

func TestCommandKindIsQuery(t *testing.T) {
	assert.True(t, CmdQueryStatus.IsQuery())
	assert.True(t, CmdQueryInfo.IsQuery())
	assert.True(t, CmdQueryVersion.IsQuery())
	assert.True(t, CmdQueryCopyright.IsQuery())
	assert.False(t, CmdStartMeasurement.IsQuery())
	assert.False(t, CmdSetVoltage.IsQuery())
	assert.False(t, CmdClearCounter.IsQuery())
}

func TestParseResponseStatus(t *testing.T) {
	resp := ParseResponse("1523,1489,3,1,45,450")
	require.Equal(t, RespStatus, resp.Type)
	assert.Equal(t, StatusReport{
		Count:     1523,
		LastCount: 1489,
		Duration:  Duration60s,
		Repeat:    true,
		Progress:  45,
		Voltage:   450,
	}, resp.Status)

	// trailing separator tolerated
	resp = ParseResponse("0,0,0,0,0,400,")
	require.Equal(t, RespStatus, resp.Type)
	assert.Equal(t, uint16(400), resp.Status.Voltage)
}

func TestParseResponseText(t *testing.T) {
	resp := ParseResponse("OpenBIS code: 7")
	require.Equal(t, RespInfo, resp.Type)
	assert.Equal(t, "7", resp.Text)

	resp = ParseResponse("version: 2.14")
	require.Equal(t, RespVersion, resp.Type)
	assert.Equal(t, "2.14", resp.Text)

	resp = ParseResponse("(c) 2014 device vendor")
	require.Equal(t, RespCopyright, resp.Type)
}

func TestParseResponseInvalid(t *testing.T) {
	tests := []struct {
		description string
		line        string
	}{
		{description: "empty", line: ""},
		{description: "whitespace only", line: "  \r"},
		{description: "unknown word", line: "hello"},
		{description: "short status line", line: "1,2,3"},
		{description: "non-numeric status field", line: "1,2,x,0,0,400"},
		{description: "status duration out of range", line: "1,2,9,0,0,400"},
		{description: "voltage echo out of range", line: "j9999"},
		{description: "speaker echo out of range", line: "U7"},
		{description: "duration echo out of range", line: "f9"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, RespInvalid, ParseResponse(test.line).Type)
		})
	}
}
