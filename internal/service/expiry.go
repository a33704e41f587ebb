package service

import (
	"sync"
	"time"
)

// expiryTimers holds one response-window timer per Pending transaction.
// Cancel is idempotent; a timer that already fired is only removed from the
// table, the expire path itself re-checks the stored status.
type expiryTimers struct {
	mu     sync.Mutex
	clock  Clock
	timers map[string]Timer
}

func newExpiryTimers(clock Clock) *expiryTimers {
	return &expiryTimers{
		clock:  clock,
		timers: make(map[string]Timer),
	}
}

// Arm starts (or restarts) the timer of id
func (e *expiryTimers) Arm(id string, after time.Duration, fire func(id string)) {
	if after < 0 {
		after = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[id]; ok {
		t.Stop()
	}

	var self Timer
	self = e.clock.AfterFunc(after, func() {
		e.mu.Lock()
		// A re-armed timer replaces the entry; only the current one may remove it.
		if cur, ok := e.timers[id]; ok && cur == self {
			delete(e.timers, id)
		}
		e.mu.Unlock()
		fire(id)
	})
	e.timers[id] = self
}

// Cancel stops the timer of id. Returns false if nothing was armed.
func (e *expiryTimers) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.timers[id]
	if !ok {
		return false
	}
	delete(e.timers, id)
	t.Stop()
	return true
}

// Len returns the number of armed timers
func (e *expiryTimers) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// StopAll cancels every timer, used at shutdown
func (e *expiryTimers) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// remaining returns window - (now - createdAt)
func remaining(window time.Duration, createdAt, now time.Time) time.Duration {
	return window - now.Sub(createdAt)
}

// SecondsRemaining is the countdown shown to admins, never negative
func SecondsRemaining(window time.Duration, createdAt, now time.Time) int {
	left := remaining(window, createdAt, now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}
