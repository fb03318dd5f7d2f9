package control

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gmlink/gmlink/internal/pool"
	"github.com/gmlink/gmlink/link"
	"github.com/gmlink/gmlink/logger"
)

// State is the controller's view of the device.
type State int32

const (
	// Disconnected means no confirmed device is on the other end.
	Disconnected State = iota
	// Idle means the device is connected and not counting.
	Idle
	// Configuring means a setting change is in flight.
	Configuring
	// Measuring means a counting run is active.
	Measuring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configuring:
		return "configuring"
	case Measuring:
		return "measuring"
	default:
		return "disconnected"
	}
}

// DefaultAckTimeout bounds how long the controller waits for the device to
// confirm a command.
const DefaultAckTimeout = 2 * time.Second

// CommandSender is the slice of link.Conn the controller needs.
type CommandSender interface {
	SendCommand(link.Command) error
	SetMeasuring(bool)
}

// StateChangeHandler is invoked after every state transition. Handlers run
// on the goroutine that caused the transition and must not block.
type StateChangeHandler func(prev, curr State)

// Controller tracks the device state machine and serializes device control.
//
// Every mutating operation checks the state first and rejects illegal
// transitions with ErrInvalidTransition before anything is sent. Commands
// are confirmed against the device's echo lines; queries are confirmed
// against the reply line they produce.
type Controller struct {
	sender     CommandSender
	logger     logger.Logger
	ackTimeout time.Duration

	state   atomic.Int32
	pending *xsync.MapOf[string, chan link.Response]

	statusMu sync.Mutex
	status   DeviceStatus

	handlerMu sync.Mutex
	handlers  []StateChangeHandler
}

// ControllerOption adjusts a Controller.
type ControllerOption func(*Controller)

// WithAckTimeout sets the confirmation timeout.
func WithAckTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.ackTimeout = d
		}
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l logger.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller in the Disconnected state.
//
// Wire OnResponse and OnTransportLost into the Conn the sender belongs to;
// the controller is inert without them.
func NewController(sender CommandSender, opts ...ControllerOption) *Controller {
	c := &Controller{
		sender:     sender,
		logger:     logger.GetLogger(),
		ackTimeout: DefaultAckTimeout,
		pending:    xsync.NewMapOf[string, chan link.Response](),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Status returns a snapshot of the last known device status.
func (c *Controller) Status() DeviceStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	return c.status
}

// AddStateChangeHandler registers a handler for state transitions.
func (c *Controller) AddStateChangeHandler(h StateChangeHandler) {
	c.handlerMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlerMu.Unlock()
}

// Connect probes the device identity, applies the given settings, and moves
// the controller to Idle. It is legal only in the Disconnected state.
func (c *Controller) Connect(settings DeviceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if !c.transition(Disconnected, Configuring) {
		return fmt.Errorf("%w: connect in state %s", ErrInvalidTransition, c.State())
	}

	if err := c.connect(settings); err != nil {
		c.transition(Configuring, Disconnected)

		return err
	}

	c.transition(Configuring, Idle)

	return nil
}

func (c *Controller) connect(settings DeviceSettings) error {
	// A previous session may have left the device counting.
	if _, err := c.sendAwait(link.StopMeasurement()); err != nil {
		return fmt.Errorf("stop on connect: %w", err)
	}

	info, err := c.sendAwait(link.QueryInfo())
	if err != nil {
		return fmt.Errorf("query identity: %w", err)
	}

	version, err := c.sendAwait(link.QueryVersion())
	if err != nil {
		return fmt.Errorf("query version: %w", err)
	}

	copyright, err := c.sendAwait(link.QueryCopyright())
	if err != nil {
		return fmt.Errorf("query copyright: %w", err)
	}

	c.statusMu.Lock()
	c.status.DeviceCode = info.Text
	c.status.FirmwareVersion = version.Text
	c.status.Copyright = copyright.Text
	c.statusMu.Unlock()

	c.logger.Info("device connected",
		"code", info.Text,
		"version", version.Text,
	)

	return c.applySettings(settings, true)
}

// ApplySettings changes the device configuration. Only the fields that
// differ from the last confirmed settings are sent. It is legal only in the
// Idle state.
func (c *Controller) ApplySettings(settings DeviceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if !c.transition(Idle, Configuring) {
		return fmt.Errorf("%w: apply settings in state %s", ErrInvalidTransition, c.State())
	}

	err := c.applySettings(settings, false)

	// Either way the change attempt is over; a partial failure leaves the
	// mirror holding whatever the device confirmed.
	c.transition(Configuring, Idle)

	return err
}

func (c *Controller) applySettings(settings DeviceSettings, force bool) error {
	c.statusMu.Lock()
	prev := c.status.Settings
	c.statusMu.Unlock()

	steps := []struct {
		changed bool
		cmd     link.Command
	}{
		{prev.Voltage != settings.Voltage, link.SetVoltage(settings.Voltage)},
		{prev.Duration != settings.Duration, link.SetDuration(settings.Duration)},
		{prev.Mode != settings.Mode, link.SetMode(settings.Mode)},
		{prev.QueryMode != settings.QueryMode, link.SetQueryMode(settings.QueryMode)},
		{
			prev.SpeakerGM != settings.SpeakerGM || prev.SpeakerReady != settings.SpeakerReady,
			link.SetSpeaker(settings.SpeakerGM, settings.SpeakerReady),
		},
	}

	sent := 0

	for _, step := range steps {
		if !force && !step.changed {
			continue
		}

		if _, err := c.sendAwait(step.cmd); err != nil {
			return fmt.Errorf("apply %s: %w", step.cmd.Kind, err)
		}

		c.confirmSetting(step.cmd)
		sent++
	}

	if sent == 0 {
		return nil
	}

	// Cross-check the mirror against a fresh status report.
	status, err := c.sendAwait(link.QueryStatus())
	if err != nil {
		return fmt.Errorf("confirm settings: %w", err)
	}

	report := status.Status
	if report.Voltage != settings.Voltage || report.Duration != settings.Duration {
		return fmt.Errorf("%w: device reports voltage=%d duration=%d",
			ErrSettingsMismatch, report.Voltage, report.Duration)
	}

	return nil
}

// confirmSetting folds an acknowledged setting command into the mirror.
func (c *Controller) confirmSetting(cmd link.Command) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	switch cmd.Kind {
	case link.CmdSetVoltage:
		c.status.Settings.Voltage = cmd.Voltage
	case link.CmdSetDuration:
		c.status.Settings.Duration = cmd.Duration
	case link.CmdSetMode:
		c.status.Settings.Mode = cmd.Mode
	case link.CmdSetQueryMode:
		c.status.Settings.QueryMode = cmd.QueryMode
	case link.CmdSetSpeaker:
		c.status.Settings.SpeakerGM = cmd.SpeakerGM
		c.status.Settings.SpeakerReady = cmd.SpeakerReady
	}
}

// StartMeasurement begins a counting run. It is legal only in the Idle
// state; a rejected start sends nothing to the device.
func (c *Controller) StartMeasurement() error {
	if !c.transition(Idle, Measuring) {
		return fmt.Errorf("%w: start in state %s", ErrInvalidTransition, c.State())
	}

	if _, err := c.sendAwait(link.StartMeasurement()); err != nil {
		c.transition(Measuring, Idle)

		return err
	}

	c.sender.SetMeasuring(true)

	return nil
}

// StopMeasurement ends the active counting run. It is legal only in the
// Measuring state.
func (c *Controller) StopMeasurement() error {
	if !c.transition(Measuring, Idle) {
		return fmt.Errorf("%w: stop in state %s", ErrInvalidTransition, c.State())
	}

	c.sender.SetMeasuring(false)

	if _, err := c.sendAwait(link.StopMeasurement()); err != nil {
		return err
	}

	return nil
}

// ClearCounter resets the device count register. It is legal only in the
// Idle state.
func (c *Controller) ClearCounter() error {
	if c.State() != Idle {
		return fmt.Errorf("%w: clear counter in state %s", ErrInvalidTransition, c.State())
	}

	_, err := c.sendAwait(link.ClearCounter())

	return err
}

// RefreshStatus requests a status report and returns the updated snapshot.
// It is legal in any connected state.
func (c *Controller) RefreshStatus() (DeviceStatus, error) {
	if c.State() == Disconnected {
		return DeviceStatus{}, ErrNotConnected
	}

	if _, err := c.sendAwait(link.QueryStatus()); err != nil {
		return DeviceStatus{}, err
	}

	return c.Status(), nil
}

// OnResponse feeds a classified device line into the controller. Register it
// with link.Conn.RegisterResponseHandler.
func (c *Controller) OnResponse(resp link.Response) {
	switch resp.Type {
	case link.RespAck:
		// The firmware echoes every accepted line before answering it. A
		// query echo is not the reply its waiter is parked on; only the
		// typed reply line resolves it.
		if resp.Ack.Kind.IsQuery() {
			return
		}

		line, err := resp.Ack.Encode()
		if err != nil {
			return
		}
		c.resolve(line, resp)

	case link.RespStatus:
		c.applyStatusReport(resp.Status)
		c.resolve("b2", resp)

	case link.RespInfo:
		c.resolve("info", resp)

	case link.RespVersion:
		c.resolve("sv", resp)

	case link.RespCopyright:
		c.resolve("oc", resp)

	case link.RespInvalid:
		if resp.Raw == "" {
			return
		}

		if c.attributePendingQuery(resp) {
			return
		}

		c.logger.Debug("unrecognized device line", "line", resp.Raw)
	}
}

// attributePendingQuery hands an unclassified line to the identity query it
// answers. The firmware replies to info and sv with bare strings carrying no
// recognizable shape, so correlation is by ordering: with only one command
// outstanding at a time, the next unclassified line after such a query is
// its reply.
func (c *Controller) attributePendingQuery(resp link.Response) bool {
	replies := []struct {
		key string
		typ link.ResponseType
	}{
		{"info", link.RespInfo},
		{"sv", link.RespVersion},
		{"oc", link.RespCopyright},
	}

	for _, reply := range replies {
		ch, ok := c.pending.LoadAndDelete(reply.key)
		if !ok {
			continue
		}

		resp.Type = reply.typ
		resp.Text = resp.Raw
		ch <- resp

		return true
	}

	return false
}

func (c *Controller) applyStatusReport(report link.StatusReport) {
	c.statusMu.Lock()
	c.status.Count = report.Count
	c.status.LastCount = report.LastCount
	c.status.Progress = report.Progress
	c.status.Settings.Voltage = report.Voltage
	c.status.Settings.Duration = report.Duration
	if report.Repeat {
		c.status.Settings.Mode = link.ModeRepeat
	} else {
		c.status.Settings.Mode = link.ModeSingle
	}
	c.statusMu.Unlock()
}

// OnTransportLost drops the controller to Disconnected. Register it with
// link.Conn.RegisterTransportLostHandler.
func (c *Controller) OnTransportLost(err error) {
	prev := State(c.state.Swap(int32(Disconnected)))
	if prev == Disconnected {
		return
	}

	c.logger.Warn("device disconnected", "prev_state", prev.String(), "error", err)
	c.sender.SetMeasuring(false)

	// Wake up every in-flight waiter.
	c.pending.Range(func(key string, ch chan link.Response) bool {
		c.pending.Delete(key)
		close(ch)

		return true
	})

	c.notify(prev, Disconnected)
}

// OnTransportResumed moves the controller back to Idle after a replacement
// transport was attached. The device identity survives in the status mirror;
// call Connect instead when the device itself may have changed.
func (c *Controller) OnTransportResumed() error {
	if !c.transition(Disconnected, Idle) {
		return fmt.Errorf("%w: resume in state %s", ErrInvalidTransition, c.State())
	}

	// The device keeps counting through a host-side drop; stop it so the
	// resumed state matches Idle.
	if _, err := c.sendAwait(link.StopMeasurement()); err != nil {
		return err
	}

	return nil
}

// sendAwait sends cmd and blocks until the device confirms it or the ack
// timeout elapses. Echo commands are confirmed by their echo; queries by the
// reply line they produce.
func (c *Controller) sendAwait(cmd link.Command) (link.Response, error) {
	line, err := cmd.Encode()
	if err != nil {
		return link.Response{}, err
	}

	ch := make(chan link.Response, 1)
	if _, loaded := c.pending.LoadOrStore(line, ch); loaded {
		return link.Response{}, fmt.Errorf("%w: %q already in flight", ErrInvalidTransition, line)
	}

	if err := c.sender.SendCommand(cmd); err != nil {
		c.pending.Delete(line)

		return link.Response{}, err
	}

	timer := pool.GetTimer(c.ackTimeout)
	defer pool.PutTimer(timer)

	select {
	case resp, ok := <-ch:
		if !ok {
			return link.Response{}, ErrNotConnected
		}

		return resp, nil

	case <-timer.C:
		c.pending.Delete(line)

		return link.Response{}, fmt.Errorf("%w: %q", ErrAckTimeout, line)
	}
}

func (c *Controller) resolve(key string, resp link.Response) {
	if ch, ok := c.pending.LoadAndDelete(key); ok {
		ch <- resp
	}
}

// transition atomically moves from one state to another and notifies the
// handlers. It reports whether the swap happened.
func (c *Controller) transition(from, to State) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	c.logger.Debug("state transition", "from", from.String(), "to", to.String())
	c.notify(from, to)

	return true
}

func (c *Controller) notify(prev, curr State) {
	c.handlerMu.Lock()
	handlers := c.handlers
	c.handlerMu.Unlock()

	for _, h := range handlers {
		h(prev, curr)
	}
}
