package session

import (
	"sync"
	"time"
)

// Scheduler runs a callback on a fixed interval with explicit start, pause,
// resume and stop. It exists so countdown and heartbeat logic can be driven
// and unit-tested without any UI lifecycle attached. Pause skips ticks
// without tearing down the goroutine; Stop is terminal.
type Scheduler struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	paused  bool
	running bool
	done    chan struct{}
}

func NewScheduler(interval time.Duration, fn func()) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{interval: interval, fn: fn}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.paused = false
	s.done = make(chan struct{})
	go s.loop(s.done)
}

func (s *Scheduler) loop(done chan struct{}) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.mu.Lock()
			skip := s.paused
			s.mu.Unlock()
			if !skip {
				s.fn()
			}
		}
	}
}

func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
