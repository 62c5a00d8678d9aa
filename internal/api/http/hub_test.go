package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conncheck/agent/internal/domain"
)

func TestHubBroadcastReachesSubscribersOfKey(t *testing.T) {
	hub := NewHub(nil)

	chA, cancelA := hub.Subscribe("a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("b")
	defer cancelB()

	hub.Broadcast(domain.TaskEvent{Key: "a", Phase: domain.PhaseStarted, Index: 3})

	select {
	case ev := <-chA:
		assert.Equal(t, 3, ev.Index)
	case <-time.After(time.Second):
		t.Fatal("subscriber for key a received nothing")
	}

	select {
	case <-chB:
		t.Fatal("subscriber for key b received an event for key a")
	default:
	}
}

func TestHubDropsEventsForSlowSubscribers(t *testing.T) {
	hub := NewHub(nil)

	_, cancel := hub.Subscribe("a")
	defer cancel()

	// Never read: once the buffer is full, broadcasts must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+10; i++ {
			hub.Broadcast(domain.TaskEvent{Key: "a", Index: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}

func TestHubCancelRemovesSubscription(t *testing.T) {
	hub := NewHub(nil)

	ch, cancel := hub.Subscribe("a")
	cancel()

	// The channel is closed and no longer registered.
	_, open := <-ch
	assert.False(t, open)

	hub.mu.Lock()
	_, exists := hub.subs["a"]
	hub.mu.Unlock()
	require.False(t, exists)

	// Broadcasting after cancel is a no-op, not a panic.
	hub.Broadcast(domain.TaskEvent{Key: "a"})
}
