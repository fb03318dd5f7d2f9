package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gmlink/gmlink/link"
	"github.com/gmlink/gmlink/logger"
)

func events(deltas ...uint32) []link.Event {
	out := make([]link.Event, len(deltas))
	for i, d := range deltas {
		out[i] = link.Event{Seq: uint64(i + 1), DeltaTicks: d}
	}

	return out
}

func TestRecorderLifecycle(t *testing.T) {
	require := require.New(t)

	rec := NewRecorder()
	require.False(rec.Active())

	require.NoError(rec.Start("sample-a", "group-1"))
	require.True(rec.Active())
	require.ErrorIs(rec.Start("sample-b", "group-1"), ErrSessionActive)

	rec.RecordBatch(events(10, 20, 30))
	rec.Record(link.Event{Seq: 4, DeltaTicks: 40})
	require.Equal(4, rec.EventCount())

	result, err := rec.Stop()
	require.NoError(err)
	require.False(rec.Active())

	require.Equal("sample-a", result.Info.Sample)
	require.Equal("group-1", result.Info.Group)
	require.False(result.Info.StartedAt.IsZero())
	require.False(result.Info.StoppedAt.IsZero())
	require.Len(result.Events, 4)
	require.Equal(uint64(4), result.Stats.Count)
	require.Equal(uint32(10), result.Stats.Min)
	require.Equal(uint32(40), result.Stats.Max)
	require.InDelta(25.0, result.Stats.Mean, 1e-12)

	_, err = rec.Stop()
	require.ErrorIs(err, ErrNoSession)
}

func TestRecorderIgnoresEventsOutsideSession(t *testing.T) {
	rec := NewRecorder()

	rec.Record(link.Event{DeltaTicks: 1})
	rec.RecordBatch(events(2, 3))
	assert.Equal(t, 0, rec.EventCount())

	require.NoError(t, rec.Start("s", "g"))
	rec.RecordBatch(events(5))
	result, err := rec.Stop()
	require.NoError(t, err)
	require.Len(t, result.Events, 1)

	// recording resumes only with the next Start
	rec.Record(link.Event{DeltaTicks: 7})
	assert.Equal(t, 1, rec.EventCount())
}

func TestRecorderLogsDiscardedEvents(t *testing.T) {
	mockLog := logger.NewMockLogger()
	mockLog.On("Debug", "event discarded, no active session", mock.Anything).Once()
	mockLog.On("Debug", "events discarded, no active session", mock.Anything).Once()

	rec := NewRecorder()
	rec.logger = mockLog

	rec.Record(link.Event{Seq: 1})
	rec.RecordBatch(events(2, 3))

	assert.Equal(t, 0, rec.EventCount())
	mockLog.AssertExpectations(t)
}

func TestRecorderStartDiscardsPreviousSession(t *testing.T) {
	require := require.New(t)

	rec := NewRecorder()
	require.NoError(rec.Start("first", "g"))
	rec.RecordBatch(events(1, 2, 3))
	_, err := rec.Stop()
	require.NoError(err)

	require.NoError(rec.Start("second", "g"))
	require.Equal(0, rec.EventCount())
	require.Equal(uint64(0), rec.Stats().Count)
	require.Equal("second", rec.Info().Sample)
	require.Equal(uint64(2), rec.Info().ID)
}

func TestRecorderUnsavedData(t *testing.T) {
	require := require.New(t)

	rec := NewRecorder()
	require.False(rec.HasUnsavedData())

	// an empty session has nothing to save
	require.NoError(rec.Start("empty", "g"))
	_, err := rec.Stop()
	require.NoError(err)
	require.False(rec.HasUnsavedData())

	require.NoError(rec.Start("full", "g"))
	rec.RecordBatch(events(1))
	require.False(rec.HasUnsavedData(), "active session is not yet unsaved")

	_, err = rec.Stop()
	require.NoError(err)
	require.True(rec.HasUnsavedData())

	rec.MarkSaved()
	require.False(rec.HasUnsavedData())
}

func TestRecorderStatsMatchBatch(t *testing.T) {
	rec := NewRecorder()
	require.NoError(t, rec.Start("s", "g"))

	deltas := []uint32{5, 1, 9, 3, 7, 7, 2}
	rec.RecordBatch(events(deltas...))

	assert.Equal(t, ComputeStats(deltas), rec.Stats())
}
