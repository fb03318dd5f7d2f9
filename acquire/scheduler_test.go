package acquire

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmlink/gmlink/control"
	"github.com/gmlink/gmlink/link"
)

type captureConsumer struct {
	mu        sync.Mutex
	batches   [][]link.Event
	overflows []uint64
}

func (c *captureConsumer) OnBatch(evs []link.Event) {
	c.mu.Lock()
	batch := make([]link.Event, len(evs))
	copy(batch, evs)
	c.batches = append(c.batches, batch)
	c.mu.Unlock()
}

func (c *captureConsumer) OnOverflow(dropped uint64) {
	c.mu.Lock()
	c.overflows = append(c.overflows, dropped)
	c.mu.Unlock()
}

func (c *captureConsumer) OnStatusChange(control.State, control.DeviceStatus) {}

func (c *captureConsumer) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.batches)
}

func (c *captureConsumer) overflowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.overflows)
}

func newTestScheduler(t *testing.T, queueCap int) (*Scheduler, *link.EventQueue, *Recorder, *captureConsumer, chan time.Time) {
	t.Helper()

	queue := link.NewEventQueue(queueCap)
	rec := NewRecorder()
	consumer := &captureConsumer{}
	sched := NewScheduler(context.Background(), queue, rec, consumer)

	tick := make(chan time.Time)
	require.NoError(t, sched.StartWithTick(tick))
	t.Cleanup(sched.Stop)

	return sched, queue, rec, consumer, tick
}

func TestSchedulerBatchesPerTick(t *testing.T) {
	require := require.New(t)
	_, queue, rec, consumer, tick := newTestScheduler(t, 64)

	require.NoError(rec.Start("s", "g"))

	for seq := uint64(1); seq <= 5; seq++ {
		queue.TryPush(link.Event{Seq: seq, DeltaTicks: uint32(seq * 10)})
	}

	tick <- time.Now()
	require.Eventually(func() bool { return consumer.batchCount() == 1 }, time.Second, time.Millisecond)

	consumer.mu.Lock()
	batch := consumer.batches[0]
	consumer.mu.Unlock()

	require.Len(batch, 5)
	for i, ev := range batch {
		require.Equal(uint64(i+1), ev.Seq)
	}

	// everything delivered also reached the recorder
	require.Equal(5, rec.EventCount())
	require.Equal(uint64(5), rec.Stats().Count)
	require.Equal(0, queue.Len())

	// two more events, one more tick, one more batch
	queue.TryPush(link.Event{Seq: 6, DeltaTicks: 60})
	queue.TryPush(link.Event{Seq: 7, DeltaTicks: 70})
	tick <- time.Now()
	require.Eventually(func() bool { return consumer.batchCount() == 2 }, time.Second, time.Millisecond)

	consumer.mu.Lock()
	batch = consumer.batches[1]
	consumer.mu.Unlock()
	require.Len(batch, 2)
	require.Equal(7, rec.EventCount())
}

func TestSchedulerEmptyTick(t *testing.T) {
	_, _, _, consumer, tick := newTestScheduler(t, 64)

	tick <- time.Now()
	tick <- time.Now()

	// the second send is only accepted once the first tick completed, so
	// the absence of a batch is already settled here
	assert.Equal(t, 0, consumer.batchCount())
	assert.Equal(t, 0, consumer.overflowCount())
}

func TestSchedulerOverflowReportedOnce(t *testing.T) {
	require := require.New(t)
	_, queue, _, consumer, tick := newTestScheduler(t, 4)

	// 7 pushes into a queue of 4: three drops coalesce into one report
	for seq := uint64(1); seq <= 7; seq++ {
		queue.TryPush(link.Event{Seq: seq})
	}

	tick <- time.Now()
	require.Eventually(func() bool { return consumer.overflowCount() == 1 }, time.Second, time.Millisecond)

	consumer.mu.Lock()
	dropped := consumer.overflows[0]
	batch := consumer.batches[0]
	consumer.mu.Unlock()

	require.Equal(uint64(3), dropped)
	require.Len(batch, 4)

	// a clean tick afterwards reports nothing
	queue.TryPush(link.Event{Seq: 8})
	tick <- time.Now()
	require.Eventually(func() bool { return consumer.batchCount() == 2 }, time.Second, time.Millisecond)
	require.Equal(1, consumer.overflowCount())
}

func TestSchedulerFlush(t *testing.T) {
	require := require.New(t)

	queue := link.NewEventQueue(16)
	consumer := &captureConsumer{}
	sched := NewScheduler(context.Background(), queue, nil, consumer)

	queue.TryPush(link.Event{Seq: 1, DeltaTicks: 5})
	sched.Flush()

	require.Equal(1, consumer.batchCount())
	require.Equal(0, queue.Len())
}

func TestSchedulerStop(t *testing.T) {
	require := require.New(t)

	queue := link.NewEventQueue(16)
	consumer := &captureConsumer{}
	sched := NewScheduler(context.Background(), queue, nil, consumer,
		WithDeliveryInterval(5*time.Millisecond))

	require.NoError(sched.Start())

	queue.TryPush(link.Event{Seq: 1})
	require.Eventually(func() bool { return consumer.batchCount() == 1 }, time.Second, time.Millisecond)

	sched.Stop()

	// after Stop, queued events stay queued
	queue.TryPush(link.Event{Seq: 2})
	time.Sleep(20 * time.Millisecond)
	require.Equal(1, consumer.batchCount())
	require.Equal(1, queue.Len())
}
