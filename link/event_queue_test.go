package link

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueFIFO(t *testing.T) {
	require := require.New(t)

	q := NewEventQueue(4)
	require.Equal(4, q.Cap())
	require.Equal(0, q.Len())

	for seq := uint64(1); seq <= 3; seq++ {
		require.True(q.TryPush(Event{Seq: seq}))
	}
	require.Equal(3, q.Len())

	out := q.DrainUpTo(2)
	require.Len(out, 2)
	require.Equal(uint64(1), out[0].Seq)
	require.Equal(uint64(2), out[1].Seq)

	out = q.DrainUpTo(10)
	require.Len(out, 1)
	require.Equal(uint64(3), out[0].Seq)

	require.Nil(q.DrainUpTo(10))
	require.Nil(q.DrainUpTo(0))
}

func TestEventQueueDropNewest(t *testing.T) {
	require := require.New(t)

	q := NewEventQueue(10)
	for seq := uint64(1); seq <= 15; seq++ {
		ok := q.TryPush(Event{Seq: seq})
		require.Equal(seq <= 10, ok, "seq %d", seq)
	}

	require.Equal(10, q.Len())
	require.Equal(uint64(5), q.Dropped())

	// the oldest contiguous run survives
	out := q.DrainUpTo(10)
	require.Len(out, 10)
	for i, ev := range out {
		require.Equal(uint64(i+1), ev.Seq)
	}

	// after a drain the 11th arrival is retained again
	require.True(q.TryPush(Event{Seq: 16}))
	require.Equal(uint64(5), q.Dropped())
}

func TestEventQueueTakeDropped(t *testing.T) {
	q := NewEventQueue(1)
	require.True(t, q.TryPush(Event{Seq: 1}))
	require.False(t, q.TryPush(Event{Seq: 2}))
	require.False(t, q.TryPush(Event{Seq: 3}))

	assert.Equal(t, uint64(2), q.TakeDropped())
	assert.Equal(t, uint64(0), q.TakeDropped())
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestEventQueueClear(t *testing.T) {
	q := NewEventQueue(4)
	for seq := uint64(1); seq <= 6; seq++ {
		q.TryPush(Event{Seq: seq})
	}

	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.DrainUpTo(4))
	// drop accounting is independent of Clear
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestEventQueueDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultQueueCapacity, NewEventQueue(0).Cap())
	assert.Equal(t, DefaultQueueCapacity, NewEventQueue(-5).Cap())
}

func TestEventQueueConcurrentPushDrain(t *testing.T) {
	q := NewEventQueue(128)

	var wg sync.WaitGroup
	const producers = 4
	const perProducer = 1000

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.TryPush(Event{Seq: base + uint64(i)})
			}
		}(uint64(p * perProducer))
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		drained += len(q.DrainUpTo(64))

		select {
		case <-done:
			drained += len(q.DrainUpTo(q.Cap()))
			total := drained + int(q.Dropped())
			require.Equal(t, producers*perProducer, total)

			return
		default:
		}
	}
}
