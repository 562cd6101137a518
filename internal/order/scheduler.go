package order

import (
	"sync"
	"time"
)

// scheduler holds one pending fill timer per order id.
type scheduler struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[int64]*time.Timer)}
}

// schedule runs fn(id) after delay. Scheduling an id twice replaces the
// earlier timer.
func (s *scheduler) schedule(id int64, delay time.Duration, fn func(int64)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if prev, ok := s.timers[id]; ok {
		prev.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { fn(id) })
	return true
}

// cancel stops the timer for id. It reports whether a timer was stopped
// before firing.
func (s *scheduler) cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	return t.Stop()
}

// forget drops the entry for a timer that has fired.
func (s *scheduler) forget(id int64) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}

func (s *scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// stopAll stops every pending timer and refuses new ones.
func (s *scheduler) stopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, t := range s.timers {
		if t.Stop() {
			n++
		}
		delete(s.timers, id)
	}
	s.closed = true
	return n
}
