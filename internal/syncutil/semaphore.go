// Package syncutil provides small concurrency primitives shared across the service.
package syncutil

import "sync"

// Semaphore is a counting semaphore with FIFO handoff. A Release while
// goroutines are blocked in Acquire hands the permit directly to the
// longest-waiting one rather than incrementing the free count, so waiters
// are admitted in arrival order.
//
// There is no timeout and no context cancellation: every Acquire must be
// balanced by a Release. Its only callers (prefetch workers) always do so
// via defer.
type Semaphore struct {
	mu      sync.Mutex
	free    int
	waiters []chan struct{}
}

// NewSemaphore creates a semaphore with n initial permits. Panics if n < 1.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		panic("syncutil: semaphore requires at least one permit")
	}
	return &Semaphore{free: n}
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() {
	s.mu.Lock()
	if s.free > 0 {
		s.free--
		s.mu.Unlock()
		return
	}
	// Buffered so Release never blocks handing off the permit.
	ready := make(chan struct{}, 1)
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	<-ready
}

// Release returns a permit. If goroutines are blocked in Acquire, the
// oldest one is resumed and the free count is left untouched.
func (s *Semaphore) Release() {
	s.mu.Lock()
	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		ready <- struct{}{}
		return
	}
	s.free++
	s.mu.Unlock()
}
