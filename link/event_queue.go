package link

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the default bound of the event queue. At the
// highest sustained pulse rates the device produces, this covers well over a
// second of events between drains.
const DefaultQueueCapacity = 16384

// Event is one counter pulse interval as received from the device.
type Event struct {
	// Seq is the host-assigned sequence number. It increases monotonically
	// for the lifetime of a Conn, across transport loss and reattachment.
	Seq uint64
	// DeltaTicks is the interval since the previous pulse, in device ticks.
	DeltaTicks uint32
	// Arrival is the host receive timestamp.
	Arrival time.Time
}

// EventQueue is a bounded FIFO of pulse events.
//
// When full it drops the incoming event rather than evicting old ones, so
// the retained window is always the oldest contiguous run. Drops are counted
// and can be collected with TakeDropped.
type EventQueue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	size    int
	dropped atomic.Uint64
}

// NewEventQueue creates a queue with the given capacity. A non-positive
// capacity falls back to DefaultQueueCapacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &EventQueue{buf: make([]Event, capacity)}
}

// TryPush appends ev and reports whether it was retained. A push against a
// full queue drops ev and increments the drop counter.
func (q *EventQueue) TryPush(ev Event) bool {
	q.mu.Lock()

	if q.size == len(q.buf) {
		q.mu.Unlock()
		q.dropped.Add(1)

		return false
	}

	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
	q.mu.Unlock()

	return true
}

// DrainUpTo removes and returns at most n events in FIFO order. It returns
// nil when the queue is empty or n is not positive.
func (q *EventQueue) DrainUpTo(n int) []Event {
	if n <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}

	if n > q.size {
		n = q.size
	}

	out := make([]Event, n)
	for i := range out {
		out[i] = q.buf[q.head]
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
	}
	q.size -= n

	return out
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Cap returns the queue capacity.
func (q *EventQueue) Cap() int { return len(q.buf) }

// Clear discards all queued events. The drop counter is untouched.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	q.head = 0
	q.size = 0
	clear(q.buf)
	q.mu.Unlock()
}

// Dropped returns the total number of events dropped since creation.
func (q *EventQueue) Dropped() uint64 { return q.dropped.Load() }

// TakeDropped returns the drop count accumulated since the previous call and
// resets it, so periodic consumers can report each overflow burst once.
func (q *EventQueue) TakeDropped() uint64 { return q.dropped.Swap(0) }
