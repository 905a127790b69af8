package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(capacity int) *Manager {
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

func TestPublishSubscribe(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("run-1", 4)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Type: "PHASE_STARTED", Phase: "structuring"})

	select {
	case evt := <-ch:
		assert.Equal(t, "run-1", evt.RunID)
		assert.Equal(t, "PHASE_STARTED", evt.Type)
		assert.Equal(t, uint64(1), evt.Seq, "first event carries sequence 1")
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishIsolatedPerRun(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("run-a", 4)
	defer m.Unsubscribe("run-a", ch)

	m.Publish("run-b", Event{Type: "PROGRESS"})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event for other run: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("run-1", 1)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Type: "PROGRESS", Message: "one"})
	m.Publish("run-1", Event{Type: "PROGRESS", Message: "two"}) // dropped, buffer full

	evt := <-ch
	assert.Equal(t, "one", evt.Message)

	// The dropped event is still recoverable via replay.
	replayed := m.ReplaySince("run-1", evt.Seq)
	require.Len(t, replayed, 1)
	assert.Equal(t, "two", replayed[0].Message)
}

func TestReplaySince(t *testing.T) {
	m := newTestManager(16)
	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Type: "PROGRESS"})
	}

	all := m.ReplaySince("run-1", 0)
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].Seq)
	assert.Equal(t, uint64(5), all[4].Seq)

	tail := m.ReplaySince("run-1", 3)
	require.Len(t, tail, 2)
	assert.Equal(t, uint64(4), tail[0].Seq)

	assert.Nil(t, m.ReplaySince("unknown", 0))
}

func TestRingOverwritesOldest(t *testing.T) {
	m := newTestManager(3)
	for i := 0; i < 6; i++ {
		m.Publish("run-1", Event{Type: "PROGRESS"})
	}
	events := m.ReplaySince("run-1", 0)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(4), events[0].Seq)
	assert.Equal(t, uint64(6), events[2].Seq)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("run-1", 4)
	m.Unsubscribe("run-1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice must not panic.
	m.Unsubscribe("run-1", ch)
}

func TestForget(t *testing.T) {
	m := newTestManager(16)
	m.Publish("run-1", Event{Type: "RUN_COMPLETED"})
	m.Forget("run-1")
	assert.Nil(t, m.ReplaySince("run-1", 0))
}
