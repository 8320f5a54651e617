package session

import (
	"sync"
	"time"
)

// TimerHandle cancels one scheduled task. Cancel is idempotent.
type TimerHandle struct {
	once sync.Once
	stop func()
}

// Cancel stops the task if it has not fired yet.
func (h *TimerHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.stop != nil {
			h.stop()
		}
	})
}

// Scheduler owns every timer-driven side effect of a session (frame
// sampling aside, which the media pipeline owns). All outstanding timers are
// cancelable together from the teardown path.
type Scheduler struct {
	mu      sync.Mutex
	stopped bool
	nextID  int64
	active  map[int64]*TimerHandle
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{active: make(map[int64]*TimerHandle)}
}

// After runs fn once after d. After CancelAll, the returned handle is inert
// and fn never runs.
func (s *Scheduler) After(d time.Duration, fn func()) *TimerHandle {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return &TimerHandle{}
	}
	s.nextID++
	id := s.nextID

	timer := time.AfterFunc(d, func() {
		s.remove(id)
		fn()
	})
	h := &TimerHandle{stop: func() {
		timer.Stop()
		s.remove(id)
	}}
	s.active[id] = h
	s.mu.Unlock()
	return h
}

// Every runs fn on a fixed period until the handle is canceled.
func (s *Scheduler) Every(d time.Duration, fn func()) *TimerHandle {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return &TimerHandle{}
	}
	s.nextID++
	id := s.nextID

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()
	h := &TimerHandle{stop: func() {
		close(stop)
		s.remove(id)
	}}
	s.active[id] = h
	s.mu.Unlock()
	return h
}

func (s *Scheduler) remove(id int64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Pending returns the number of outstanding timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CancelAll cancels every outstanding timer and rejects new ones. Safe to
// call more than once.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	s.stopped = true
	handles := make([]*TimerHandle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
