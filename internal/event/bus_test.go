package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	bus.Publish(Event{Type: TypeDeletionCountdown, Resource: "agents", Payload: 20})

	got := <-first
	require.Equal(t, TypeDeletionCountdown, got.Type)
	require.NotEmpty(t, got.ID)
	require.NotEmpty(t, got.Timestamp)
	require.Equal(t, got.ID, (<-second).ID)

	unsubFirst()
	unsubFirst()
	_, open := <-first
	require.False(t, open)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(Event{Type: TypeListUpdated})
	}

	require.Equal(t, uint64(5), bus.Dropped())
}

func TestBusWaitsForFullSubscriberOnTerminalEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer; i++ {
		bus.Publish(Event{Type: TypeDeletionCountdown})
	}

	published := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeDeletionError, Resource: "agents"})
		close(published)
	}()

	var last Event
	for i := 0; i <= subscriberBuffer; i++ {
		last = <-events
	}
	<-published
	require.Equal(t, TypeDeletionError, last.Type)
	require.Zero(t, bus.Dropped())
}

func TestBusDropsTerminalEventForStalledSubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bus.terminalWait = 10 * time.Millisecond
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer; i++ {
		bus.Publish(Event{Type: TypeDeletionCountdown})
	}
	bus.Publish(Event{Type: TypeDeletionDeleted})

	require.Equal(t, uint64(1), bus.Dropped())
}
