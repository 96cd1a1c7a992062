package henrio

import "sync"

// Lock is a mutual-exclusion primitive for sequencing logical critical
// sections across suspension points within a single loop thread. It is not
// for serializing CPU access, since exactly one task ever runs at a time.
// It holds a FIFO waiter queue and an explicit holder task pointer: a
// Lock's holder is a single, short-lived reference bound to mutual
// exclusion, not loop-lifetime bookkeeping, so a plain *Task suffices (see
// registry.go for where weak references actually earn their keep).
type Lock struct {
	mu      sync.Mutex
	held    bool
	holder  *Task
	waiters []*Future
}

// NewLock returns an unheld Lock.
func NewLock() *Lock { return &Lock{} }

// Acquire suspends the calling task until the Lock is free, then takes it
// and records the caller as holder.
func (l *Lock) Acquire(y *Yielder) (*Task, error) {
	reply, err := y.Yield(CurrentTask())
	if err != nil {
		return nil, err
	}
	task, _ := reply.(*Task)

	l.mu.Lock()
	if !l.held {
		l.held = true
		l.holder = task
		l.mu.Unlock()
		return task, nil
	}
	wait := NewFuture()
	l.waiters = append(l.waiters, wait)
	l.mu.Unlock()

	if _, err := wait.Wait()(y); err != nil {
		wait.Cancel() // abandoned: Release must not hand the Lock to it
		return nil, err
	}

	l.mu.Lock()
	l.holder = task
	l.mu.Unlock()
	return task, nil
}

// Release hands the Lock to the next live FIFO waiter, if any, skipping any
// that were cancelled while parked (mirroring Queue's discipline), or
// clears it if none remain. Fails with NotHolderError if task does not
// currently hold the Lock.
func (l *Lock) Release(task *Task) error {
	l.mu.Lock()
	if !l.held || l.holder != task {
		l.mu.Unlock()
		return &NotHolderError{}
	}
	for len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		if next.Cancelled() {
			continue
		}
		l.mu.Unlock()
		// Lock stays held; next's Acquire call installs itself as holder
		// once its Wait resumes.
		_ = next.SetResult(nil)
		return nil
	}
	l.held = false
	l.holder = nil
	l.mu.Unlock()
	return nil
}

// Locked reports whether the Lock is currently held.
func (l *Lock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Holder returns the Task currently holding the Lock, or nil.
func (l *Lock) Holder() *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// ResourceLock is a Lock that additionally hands out a resource value on
// acquire, for the common case of guarding a specific object rather than
// just a critical section.
type ResourceLock[T any] struct {
	lock     *Lock
	resource T
}

// NewResourceLock returns a ResourceLock guarding resource.
func NewResourceLock[T any](resource T) *ResourceLock[T] {
	return &ResourceLock[T]{lock: NewLock(), resource: resource}
}

// Acquire behaves as Lock.Acquire but also returns the guarded resource.
func (r *ResourceLock[T]) Acquire(y *Yielder) (T, error) {
	if _, err := r.lock.Acquire(y); err != nil {
		var zero T
		return zero, err
	}
	return r.resource, nil
}

// Release releases the underlying Lock.
func (r *ResourceLock[T]) Release(task *Task) error {
	return r.lock.Release(task)
}
