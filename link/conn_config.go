package link

import (
	"fmt"
	"time"

	"github.com/gmlink/gmlink/logger"
)

// Default configuration values for a Conn.
const (
	DefaultMeasuringPollInterval = 1 * time.Millisecond
	DefaultIdlePollInterval      = 20 * time.Millisecond
	DefaultReadBufSize           = 4096
	DefaultCmdQueueSize          = 8
	DefaultSendTimeout           = 3 * time.Second
	DefaultTickUnit              = time.Microsecond
)

// ConnConfig carries the configuration of a Conn. Create it with
// NewConnConfig and adjust it through ConnOption values.
type ConnConfig struct {
	measuringPollInterval time.Duration
	idlePollInterval      time.Duration
	queueCapacity         int
	readBufSize           int
	maxRescan             int
	cmdQueueSize          int
	sendTimeout           time.Duration
	tickUnit              time.Duration
	logger                logger.Logger
}

// ConnOption mutates a ConnConfig and reports invalid values.
type ConnOption func(*ConnConfig) error

// NewConnConfig creates a ConnConfig with defaults applied, then applies the
// given options in order.
func NewConnConfig(opts ...ConnOption) (*ConnConfig, error) {
	cfg := &ConnConfig{
		measuringPollInterval: DefaultMeasuringPollInterval,
		idlePollInterval:      DefaultIdlePollInterval,
		queueCapacity:         DefaultQueueCapacity,
		readBufSize:           DefaultReadBufSize,
		maxRescan:             DefaultMaxRescan,
		cmdQueueSize:          DefaultCmdQueueSize,
		sendTimeout:           DefaultSendTimeout,
		tickUnit:              DefaultTickUnit,
		logger:                logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// WithMeasuringPollInterval sets the transport poll interval used while a
// measurement is running. It must be positive and no longer than the idle
// interval set so far.
func WithMeasuringPollInterval(d time.Duration) ConnOption {
	return func(cfg *ConnConfig) error {
		if d <= 0 {
			return fmt.Errorf("measuring poll interval %v must be positive", d)
		}
		cfg.measuringPollInterval = d

		return nil
	}
}

// WithIdlePollInterval sets the transport poll interval used while idle.
func WithIdlePollInterval(d time.Duration) ConnOption {
	return func(cfg *ConnConfig) error {
		if d <= 0 {
			return fmt.Errorf("idle poll interval %v must be positive", d)
		}
		cfg.idlePollInterval = d

		return nil
	}
}

// WithQueueCapacity sets the event queue capacity.
func WithQueueCapacity(n int) ConnOption {
	return func(cfg *ConnConfig) error {
		if n <= 0 {
			return fmt.Errorf("queue capacity %d must be positive", n)
		}
		cfg.queueCapacity = n

		return nil
	}
}

// WithReadBufSize sets the size of the transport read buffer.
func WithReadBufSize(n int) ConnOption {
	return func(cfg *ConnConfig) error {
		if n < FrameSize {
			return fmt.Errorf("read buffer size %d must be at least %d", n, FrameSize)
		}
		cfg.readBufSize = n

		return nil
	}
}

// WithMaxRescan sets how many byte-positions the frame decoder scans past a
// corrupt start byte before declaring the stream desynchronized.
func WithMaxRescan(n int) ConnOption {
	return func(cfg *ConnConfig) error {
		if n <= 0 {
			return fmt.Errorf("max rescan %d must be positive", n)
		}
		cfg.maxRescan = n

		return nil
	}
}

// WithCmdQueueSize sets the capacity of the outbound command queue.
func WithCmdQueueSize(n int) ConnOption {
	return func(cfg *ConnConfig) error {
		if n <= 0 {
			return fmt.Errorf("command queue size %d must be positive", n)
		}
		cfg.cmdQueueSize = n

		return nil
	}
}

// WithSendTimeout sets how long SendCommand waits for queue space before
// failing with ErrSendTimeout.
func WithSendTimeout(d time.Duration) ConnOption {
	return func(cfg *ConnConfig) error {
		if d <= 0 {
			return fmt.Errorf("send timeout %v must be positive", d)
		}
		cfg.sendTimeout = d

		return nil
	}
}

// WithTickUnit sets the wall-clock duration of one device tick, used by
// consumers to interpret event deltas.
func WithTickUnit(d time.Duration) ConnOption {
	return func(cfg *ConnConfig) error {
		if d <= 0 {
			return fmt.Errorf("tick unit %v must be positive", d)
		}
		cfg.tickUnit = d

		return nil
	}
}

// WithConnLogger sets the logger used by the Conn.
func WithConnLogger(l logger.Logger) ConnOption {
	return func(cfg *ConnConfig) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		cfg.logger = l

		return nil
	}
}

// MeasuringPollInterval returns the poll interval used while measuring.
func (cfg *ConnConfig) MeasuringPollInterval() time.Duration {
	return cfg.measuringPollInterval
}

// IdlePollInterval returns the poll interval used while idle.
func (cfg *ConnConfig) IdlePollInterval() time.Duration { return cfg.idlePollInterval }

// QueueCapacity returns the event queue capacity.
func (cfg *ConnConfig) QueueCapacity() int { return cfg.queueCapacity }

// ReadBufSize returns the transport read buffer size.
func (cfg *ConnConfig) ReadBufSize() int { return cfg.readBufSize }

// MaxRescan returns the frame decoder rescan bound.
func (cfg *ConnConfig) MaxRescan() int { return cfg.maxRescan }

// CmdQueueSize returns the outbound command queue capacity.
func (cfg *ConnConfig) CmdQueueSize() int { return cfg.cmdQueueSize }

// SendTimeout returns the SendCommand queue timeout.
func (cfg *ConnConfig) SendTimeout() time.Duration { return cfg.sendTimeout }

// TickUnit returns the wall-clock duration of one device tick.
func (cfg *ConnConfig) TickUnit() time.Duration { return cfg.tickUnit }

// Logger returns the configured logger.
func (cfg *ConnConfig) Logger() logger.Logger { return cfg.logger }
