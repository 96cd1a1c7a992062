package henrio

import "sync"

// Event is a boolean latch many tasks may wait on: Set wakes every current
// waiter, and Clear resets it only once all of them have observed the set
// state.
type Event struct {
	mu      sync.Mutex
	isSet   bool
	waiters []*Future
}

// NewEvent returns an unset Event.
func NewEvent() *Event { return &Event{} }

// Wait suspends the calling task until the Event is set. If already set,
// it returns immediately without suspending.
func (e *Event) Wait(y *Yielder) error {
	e.mu.Lock()
	if e.isSet {
		e.mu.Unlock()
		return nil
	}
	wait := NewFuture()
	e.waiters = append(e.waiters, wait)
	e.mu.Unlock()

	_, err := wait.Wait()(y)
	return err
}

// Set marks the Event set and wakes every task currently waiting.
// Idempotent: setting an already-set Event is a no-op for waiters (there
// are none left to wake).
func (e *Event) Set() {
	e.mu.Lock()
	if e.isSet {
		e.mu.Unlock()
		return
	}
	e.isSet = true
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	for _, w := range waiters {
		_ = w.SetResult(nil)
	}
}

// Clear resets the Event to unset. Safe to call whether or not it is
// currently set; any waiters registered before the preceding Set have
// already been woken, since Set drains the waiter list synchronously, and
// none can register while the Event is set.
func (e *Event) Clear() {
	e.mu.Lock()
	e.isSet = false
	e.mu.Unlock()
}

// IsSet reports the Event's current state.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSet
}
