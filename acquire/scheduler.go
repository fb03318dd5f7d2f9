package acquire

import (
	"context"
	"time"

	"github.com/gmlink/gmlink/internal/task"
	"github.com/gmlink/gmlink/link"
	"github.com/gmlink/gmlink/logger"
)

// DefaultDeliveryInterval is the default batching tick.
const DefaultDeliveryInterval = 100 * time.Millisecond

// Scheduler drains the event queue on a fixed tick and delivers the drained
// batch to the recorder and the consumer.
//
// Batching decouples the consumer from the per-event arrival rate: whatever
// accumulated between ticks goes out as one call, an empty tick delivers
// nothing, and drops are reported once per tick through OnOverflow before
// the batch they preceded.
type Scheduler struct {
	queue    *link.EventQueue
	recorder *Recorder
	consumer Consumer
	logger   logger.Logger
	taskMgr  *task.Manager
	interval time.Duration
	ticker   *time.Ticker
}

// SchedulerOption adjusts a Scheduler.
type SchedulerOption func(*Scheduler)

// WithDeliveryInterval sets the batching tick.
func WithDeliveryInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler creates a scheduler over the given queue. The recorder may be
// nil when no session recording is wanted.
func NewScheduler(ctx context.Context, queue *link.EventQueue, recorder *Recorder, consumer Consumer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:    queue,
		recorder: recorder,
		consumer: consumer,
		logger:   logger.GetLogger(),
		interval: DefaultDeliveryInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.taskMgr = task.NewManager(ctx, s.logger)

	return s
}

// Start launches the delivery loop on the configured interval.
func (s *Scheduler) Start() error {
	s.ticker = time.NewTicker(s.interval)

	return s.startWith(s.ticker.C)
}

// StartWithTick launches the delivery loop driven by an external tick
// channel. Tests use it for deterministic delivery.
func (s *Scheduler) StartWithTick(tick <-chan time.Time) error {
	return s.startWith(tick)
}

func (s *Scheduler) startWith(tick <-chan time.Time) error {
	return s.taskMgr.StartTick("delivery-scheduler", s.deliver, tick)
}

// Stop halts the delivery loop. Events still queued stay queued.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}

	s.taskMgr.Stop()
	s.taskMgr.Wait()
}

// Flush performs one delivery pass immediately, outside the tick. Call it
// after stopping a measurement to hand over the tail of the stream.
func (s *Scheduler) Flush() {
	s.deliver()
}

// deliver performs one tick: report drops, then hand over everything queued
// as a single batch.
func (s *Scheduler) deliver() bool {
	if dropped := s.queue.TakeDropped(); dropped > 0 {
		s.logger.Warn("event queue overflowed", "dropped", dropped)
		s.consumer.OnOverflow(dropped)
	}

	events := s.queue.DrainUpTo(s.queue.Cap())
	if len(events) == 0 {
		return true
	}

	if s.recorder != nil {
		s.recorder.RecordBatch(events)
	}

	s.consumer.OnBatch(events)

	return true
}
