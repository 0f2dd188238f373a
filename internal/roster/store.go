package roster

import (
	"sync"

	"agentdesk/internal/model"
)

// Listener observes every applied action. It runs after the store lock is released.
type Listener func(action ActionType, state State)

type Store struct {
	mu        sync.RWMutex
	reducer   Reducer
	state     State
	listeners map[int]Listener
	nextID    int
}

func NewStore(order Order) *Store {
	return &Store{
		reducer:   Reducer{Order: order},
		state:     State{Hidden: map[string]struct{}{}},
		listeners: map[int]Listener{},
	}
}

func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	s.state = s.reducer.Reduce(s.state, action)
	state := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(action.Type(), state)
	}
	return state
}

// Records returns a copy of the visible list in natural order.
func (s *Store) Records() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.state.Records))
	copy(out, s.state.Records)
	return out
}

func (s *Store) Find(id string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.state.Records {
		if record.ID == id {
			return record, true
		}
	}
	return model.Record{}, false
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
