package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	subscriberBuffer = 100
	terminalWait     = 2 * time.Second
)

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	dropped     atomic.Uint64
	// terminalWait bounds how long Publish blocks on a full subscriber for
	// an event that ends a deletion.
	terminalWait time.Duration
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers:  make(map[string]chan Event),
		terminalWait: terminalWait,
	}
}

// terminal events end a deletion and are not repeated by a later tick.
func terminal(t Type) bool {
	switch t {
	case TypeDeletionDeleted, TypeDeletionError, TypeDeletionRestored:
		return true
	}
	return false
}

// Publish fills in ID and Timestamp when empty. Countdown and list events
// are dropped for a full subscriber; terminal events wait up to
// terminalWait per subscriber before being dropped.
func (b *InMemoryBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
			continue
		default:
		}

		if !terminal(e.Type) {
			total := b.dropped.Add(1)
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", e.Type, "dropped_total", total)
			continue
		}

		timer := time.NewTimer(b.terminalWait)
		select {
		case ch <- e:
			timer.Stop()
		case <-timer.C:
			total := b.dropped.Add(1)
			slog.Error("terminal event dropped for stalled subscriber", "subscriber", id, "type", e.Type, "resource", e.Resource, "dropped_total", total)
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, exists := b.subscribers[id]; exists {
			close(ch)
			delete(b.subscribers, id)
		}
	}

	return ch, unsubscribe
}

// Dropped is the number of events discarded because a subscriber was full.
func (b *InMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}
