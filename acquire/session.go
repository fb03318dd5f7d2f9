package acquire

import (
	"sync"
	"time"

	"github.com/gmlink/gmlink/link"
	"github.com/gmlink/gmlink/logger"
)

// SessionInfo describes one acquisition session.
type SessionInfo struct {
	// ID numbers sessions per recorder, starting at 1.
	ID uint64
	// Sample labels what was measured.
	Sample string
	// Group labels who measured it.
	Group     string
	StartedAt time.Time
	StoppedAt time.Time
}

// SessionResult is a frozen, completed session.
type SessionResult struct {
	Info   SessionInfo
	Events []link.Event
	Stats  StatsSnapshot
}

// Recorder accumulates the events of one acquisition session at a time.
//
// Events recorded outside an active session are discarded, so the delivery
// pipeline can keep running between sessions without polluting results.
// All methods are safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	logger  logger.Logger
	active  bool
	unsaved bool
	nextID  uint64
	info    SessionInfo
	events  []link.Event
	stats   RunningStats
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{logger: logger.GetLogger()}
}

// Start begins a new session, discarding the data of any previous one. It
// fails with ErrSessionActive while a session is recording; stop it first.
func (r *Recorder) Start(sample, group string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrSessionActive
	}

	r.nextID++
	r.info = SessionInfo{ID: r.nextID, Sample: sample, Group: group, StartedAt: time.Now()}
	r.events = r.events[:0]
	r.stats.Reset()
	r.active = true
	r.unsaved = false

	r.logger.Info("session started", "sample", sample, "group", group)

	return nil
}

// Record folds one event into the active session. Outside a session it is a
// no-op.
func (r *Recorder) Record(ev link.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		r.logger.Debug("event discarded, no active session", "seq", ev.Seq)

		return
	}

	r.record(ev)
}

// RecordBatch folds a batch of events into the active session. Outside a
// session it is a no-op.
func (r *Recorder) RecordBatch(events []link.Event) {
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		r.logger.Debug("events discarded, no active session", "count", len(events))

		return
	}

	for _, ev := range events {
		r.record(ev)
	}
}

func (r *Recorder) record(ev link.Event) {
	r.events = append(r.events, ev)
	r.stats.Add(ev.DeltaTicks)
}

// Stop freezes the active session and returns its result. The result holds
// the recorder's own event slice; the next Start invalidates it.
func (r *Recorder) Stop() (SessionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return SessionResult{}, ErrNoSession
	}

	r.active = false
	r.info.StoppedAt = time.Now()
	r.unsaved = len(r.events) > 0

	result := SessionResult{
		Info:   r.info,
		Events: r.events,
		Stats:  r.stats.Snapshot(),
	}

	r.logger.Info("session stopped",
		"sample", r.info.Sample,
		"events", len(r.events),
		"duration", r.info.StoppedAt.Sub(r.info.StartedAt),
	)

	return result, nil
}

// Active reports whether a session is recording.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

// Info returns the current or last session's description.
func (r *Recorder) Info() SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.info
}

// Stats returns a snapshot of the session statistics so far. The snapshot
// over the events recorded so far always equals ComputeStats over the same
// deltas.
func (r *Recorder) Stats() StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats.Snapshot()
}

// EventCount returns the number of events recorded in the current or last
// session.
func (r *Recorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// HasUnsavedData reports whether a stopped session holds data the
// application has not yet persisted.
func (r *Recorder) HasUnsavedData() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.unsaved
}

// MarkSaved clears the unsaved flag after the application persisted the
// session.
func (r *Recorder) MarkSaved() {
	r.mu.Lock()
	r.unsaved = false
	r.mu.Unlock()
}
