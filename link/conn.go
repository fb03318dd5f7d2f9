package link

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gmlink/gmlink/internal/pool"
	"github.com/gmlink/gmlink/internal/task"
	"github.com/gmlink/gmlink/logger"
)

// ResponseHandler receives each classified text line from the device.
// Handlers run on the reader goroutine and must not block.
type ResponseHandler func(Response)

// TransportLostHandler is invoked once when the attached transport fails.
// It runs on the reader goroutine.
type TransportLostHandler func(err error)

// Conn multiplexes the two device sub-protocols over one Transport.
//
// A single reader goroutine owns the transport: it drains pending bytes,
// demultiplexes binary event frames from text lines, and writes queued
// commands. Event frames land in the bounded event queue with host-assigned
// sequence numbers; text lines are classified and dispatched to the
// registered response handlers.
//
// The transport may be replaced after a loss with Attach; sequence numbering
// continues where it left off so consumers can detect the gap.
type Conn struct {
	cfg     *ConnConfig
	logger  logger.Logger
	taskMgr *task.Manager
	queue   *EventQueue
	metrics *ConnMetrics

	seq       atomic.Uint64
	measuring atomic.Bool
	closed    atomic.Bool
	attached  atomic.Bool

	tptMu     sync.Mutex
	transport Transport

	cmdChan chan []byte

	handlerMu    sync.Mutex
	respHandlers []ResponseHandler
	lostHandlers []TransportLostHandler

	rxBuf   []byte
	readBuf []byte
}

// NewConn creates a connection with the given configuration. Pass nil to use
// the defaults.
func NewConn(ctx context.Context, cfg *ConnConfig) *Conn {
	if cfg == nil {
		cfg, _ = NewConnConfig()
	}

	return &Conn{
		cfg:     cfg,
		logger:  cfg.Logger(),
		taskMgr: task.NewManager(ctx, cfg.Logger()),
		queue:   NewEventQueue(cfg.QueueCapacity()),
		metrics: &ConnMetrics{},
		cmdChan: make(chan []byte, cfg.CmdQueueSize()),
		readBuf: make([]byte, cfg.ReadBufSize()),
	}
}

// Queue returns the event queue the reader loop fills.
func (c *Conn) Queue() *EventQueue { return c.queue }

// Metrics returns the wire-level counters.
func (c *Conn) Metrics() *ConnMetrics { return c.metrics }

// TickUnit returns the configured wall-clock duration of one device tick.
func (c *Conn) TickUnit() time.Duration { return c.cfg.TickUnit() }

// RegisterResponseHandler adds a handler for incoming text lines.
func (c *Conn) RegisterResponseHandler(h ResponseHandler) {
	c.handlerMu.Lock()
	c.respHandlers = append(c.respHandlers, h)
	c.handlerMu.Unlock()
}

// RegisterTransportLostHandler adds a handler invoked when the transport
// fails.
func (c *Conn) RegisterTransportLostHandler(h TransportLostHandler) {
	c.handlerMu.Lock()
	c.lostHandlers = append(c.lostHandlers, h)
	c.handlerMu.Unlock()
}

// Attach binds a transport and starts the reader loop. It fails with
// ErrTransportAttached if a reader is still running, and with ErrConnClosed
// after Close.
func (c *Conn) Attach(t Transport) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	if !c.attached.CompareAndSwap(false, true) {
		return ErrTransportAttached
	}

	c.tptMu.Lock()
	c.transport = t
	c.tptMu.Unlock()

	// Stale bytes from a previous transport are meaningless.
	c.rxBuf = c.rxBuf[:0]

	if err := c.taskMgr.Start("reader-loop", c.readerLoop); err != nil {
		c.attached.Store(false)

		return err
	}

	c.logger.Debug("transport attached")

	return nil
}

// SetMeasuring switches the reader loop between the fast and the relaxed
// poll cadence.
func (c *Conn) SetMeasuring(on bool) { c.measuring.Store(on) }

// SendCommand validates cmd and queues it for transmission. It blocks at
// most the configured send timeout when the command queue is full.
//
// The reader loop writes at most one command per poll cycle, so commands
// reach the device strictly in submission order with no interleaving.
func (c *Conn) SendCommand(cmd Command) error {
	line, err := cmd.Encode()
	if err != nil {
		return err
	}

	if c.closed.Load() {
		return ErrConnClosed
	}

	if !c.attached.Load() {
		return ErrNoTransport
	}

	timer := pool.GetTimer(c.cfg.SendTimeout())
	defer pool.PutTimer(timer)

	select {
	case c.cmdChan <- append([]byte(line), '\n'):
		return nil
	case <-timer.C:
		return ErrSendTimeout
	case <-c.taskMgr.Context().Done():
		return ErrConnClosed
	}
}

// Close stops the reader loop and closes the transport. It is idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.taskMgr.Stop()
	c.taskMgr.Wait()

	c.tptMu.Lock()
	t := c.transport
	c.transport = nil
	c.tptMu.Unlock()

	c.attached.Store(false)

	if t != nil {
		return t.Close()
	}

	return nil
}

func (c *Conn) getTransport() Transport {
	c.tptMu.Lock()
	defer c.tptMu.Unlock()

	return c.transport
}

// readerLoop performs one poll cycle: write at most one queued command,
// drain pending receive bytes, then sleep for the active poll interval if
// the wire was quiet. Returning false terminates the task.
func (c *Conn) readerLoop() bool {
	t := c.getTransport()
	if t == nil {
		return false
	}

	select {
	case line := <-c.cmdChan:
		if _, err := t.Write(line); err != nil {
			c.onTransportLost(err)

			return false
		}
		c.metrics.incCmdSend()
	default:
	}

	n, err := t.ReadAvailable(c.readBuf)
	if err != nil {
		c.onTransportLost(err)

		return false
	}

	if n > 0 {
		c.rxBuf = append(c.rxBuf, c.readBuf[:n]...)
		c.processRxBuf()

		// More bytes may already be pending; poll again immediately.
		return true
	}

	interval := c.cfg.IdlePollInterval()
	if c.measuring.Load() {
		interval = c.cfg.MeasuringPollInterval()
	}

	timer := pool.GetTimer(interval)
	defer pool.PutTimer(timer)

	select {
	case <-c.taskMgr.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

// processRxBuf consumes as much of the receive buffer as possible, routing
// by leading byte: a frame start byte selects the binary decoder, anything
// else the line scanner.
func (c *Conn) processRxBuf() {
	consumed := 0

	for consumed < len(c.rxBuf) {
		rest := c.rxBuf[consumed:]

		var n int
		var done bool

		if rest[0] == FrameStartByte {
			n, done = c.consumeFrame(rest)
		} else {
			n, done = c.consumeLine(rest)
		}

		consumed += n
		if done {
			break
		}
	}

	if consumed > 0 {
		// Compact instead of re-slicing so the buffer does not pin every
		// byte ever received.
		remain := copy(c.rxBuf, c.rxBuf[consumed:])
		c.rxBuf = c.rxBuf[:remain]
	}
}

// consumeFrame decodes one event frame from the front of buf. It returns the
// number of bytes consumed and whether processing should stop until more
// input arrives.
func (c *Conn) consumeFrame(buf []byte) (int, bool) {
	res, err := DecodeFrame(buf, c.cfg.MaxRescan())

	if res.Rescans > 0 {
		c.metrics.addFrameErr(res.Rescans)
	}

	switch {
	case err == nil:
		c.metrics.incFrameRecv()
		c.queue.TryPush(Event{
			Seq:        c.seq.Add(1),
			DeltaTicks: res.Delta,
			Arrival:    time.Now(),
		})

		return res.Consumed, false

	case errors.Is(err, ErrNeedMoreData):
		return res.Consumed, true

	case errors.Is(err, ErrFrameDesync):
		c.metrics.incDesync()
		c.logger.Warn("event stream desync, rescanning", "rescans", res.Rescans)

		return res.Consumed, false

	default: // ErrFrameMalformed
		c.logger.Debug("malformed frame skipped", "rescans", res.Rescans)

		return res.Consumed, true
	}
}

// consumeLine extracts one newline-terminated text line from the front of
// buf. An unterminated fragment followed by a frame start byte is treated as
// line garbage and discarded so framing can resynchronize.
func (c *Conn) consumeLine(buf []byte) (int, bool) {
	nl := bytes.IndexByte(buf, '\n')
	if nl < 0 {
		if idx := bytes.IndexByte(buf, FrameStartByte); idx >= 0 {
			c.logger.Debug("unterminated line fragment discarded", "len", idx)

			return idx, false
		}

		return 0, true
	}

	c.metrics.incLineRecv()
	c.dispatchResponse(ParseResponse(string(buf[:nl])))

	return nl + 1, false
}

func (c *Conn) dispatchResponse(resp Response) {
	c.handlerMu.Lock()
	handlers := c.respHandlers
	c.handlerMu.Unlock()

	for _, h := range handlers {
		h(resp)
	}
}

// onTransportLost detaches the failed transport and notifies the registered
// handlers. The reader loop terminates after this returns; a new transport
// can be attached at any time.
func (c *Conn) onTransportLost(err error) {
	c.logger.Error("transport lost", "error", err)

	c.tptMu.Lock()
	t := c.transport
	c.transport = nil
	c.tptMu.Unlock()

	if t != nil {
		_ = t.Close()
	}

	c.attached.Store(false)

	c.handlerMu.Lock()
	handlers := c.lostHandlers
	c.handlerMu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}
