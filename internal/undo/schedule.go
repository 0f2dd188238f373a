package undo

import (
	"sync"
	"time"
)

// Cancel stops a periodic task. It is idempotent and may be called from
// inside the task itself. A tick already being delivered when Cancel runs
// may still reach the task, so tasks re-check their own state.
type Cancel func()

// Scheduler starts periodic tasks.
type Scheduler interface {
	Every(period time.Duration, fn func()) Cancel
}

// TickerScheduler runs each task on its own goroutine driven by a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(period time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// ManualScheduler fires tasks only when Tick is called. Used by tests and demos.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func (m *ManualScheduler) Every(_ time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &manualTask{fn: fn}
	m.tasks = append(m.tasks, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Tick delivers one tick to every live task and returns how many ran.
func (m *ManualScheduler) Tick() int {
	m.mu.Lock()
	live := make([]*manualTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !task.cancelled {
			live = append(live, task)
		}
	}
	m.tasks = live
	m.mu.Unlock()

	fired := 0
	for _, task := range live {
		m.mu.Lock()
		cancelled := task.cancelled
		m.mu.Unlock()
		if cancelled {
			continue
		}
		task.fn()
		fired++
	}
	return fired
}

// TickN calls Tick n times.
func (m *ManualScheduler) TickN(n int) {
	for i := 0; i < n; i++ {
		m.Tick()
	}
}

// Active is the number of tasks not yet cancelled.
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, task := range m.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}
