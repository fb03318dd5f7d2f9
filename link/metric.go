package link

import "sync/atomic"

// ConnMetrics accumulates wire-level counters for a Conn. All methods are
// safe for concurrent use.
type ConnMetrics struct {
	frameRecvCount atomic.Uint64
	frameErrCount  atomic.Uint64
	desyncCount    atomic.Uint64
	lineRecvCount  atomic.Uint64
	cmdSendCount   atomic.Uint64
}

// FrameRecvCount returns the number of well-formed event frames decoded.
func (m *ConnMetrics) FrameRecvCount() uint64 { return m.frameRecvCount.Load() }

// FrameErrCount returns the number of malformed frame candidates skipped.
func (m *ConnMetrics) FrameErrCount() uint64 { return m.frameErrCount.Load() }

// DesyncCount returns how many times the frame decoder hit its rescan bound.
func (m *ConnMetrics) DesyncCount() uint64 { return m.desyncCount.Load() }

// LineRecvCount returns the number of text lines received.
func (m *ConnMetrics) LineRecvCount() uint64 { return m.lineRecvCount.Load() }

// CmdSendCount returns the number of commands written to the transport.
func (m *ConnMetrics) CmdSendCount() uint64 { return m.cmdSendCount.Load() }

func (m *ConnMetrics) incFrameRecv()     { m.frameRecvCount.Add(1) }
func (m *ConnMetrics) addFrameErr(n int) { m.frameErrCount.Add(uint64(n)) }
func (m *ConnMetrics) incDesync()        { m.desyncCount.Add(1) }
func (m *ConnMetrics) incLineRecv()      { m.lineRecvCount.Add(1) }
func (m *ConnMetrics) incCmdSend()       { m.cmdSendCount.Add(1) }
