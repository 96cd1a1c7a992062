package henrio

import "sync"

// Awaitable is anything a Task can be constructed from: a function taking
// a Yielder and returning a result or error. Futures and Tasks are
// themselves convertible to an Awaitable via their Await method.
type Awaitable func(y *Yielder) (any, error)

// Future is a single-assignment cell holding either a value or an error,
// awaitable from a task body, with a FIFO-ish set of join waiters. Exactly
// one terminal state — complete, failed, or cancelled — is ever reached.
//
// Joiners share a weak dependency on the Future: they are signaled when it
// resolves, but their own lifetime is not extended by being registered
// here (see registry.go for the loop-wide task bookkeeping that actually
// needs weak references to avoid pinning completed work in memory).
type Future struct {
	mu              sync.Mutex
	result          any
	err             error
	complete        bool
	cancelled       bool
	running         bool
	doneCallback    func(*Future)
	joinWaiters     []*Future
	cancelRequested bool
}

// NewFuture returns a pending Future.
func NewFuture() *Future {
	return &Future{}
}

// SetResult transitions the Future to complete, recording v and waking all
// join waiters. Fails with AlreadyCompletedError if already terminal.
func (f *Future) SetResult(v any) error {
	f.mu.Lock()
	if f.complete || f.err != nil {
		f.mu.Unlock()
		return &AlreadyCompletedError{}
	}
	f.complete = true
	f.result = v
	cb := f.doneCallback
	waiters := f.joinWaiters
	f.joinWaiters = nil
	f.mu.Unlock()

	if cb != nil {
		cb(f)
	}
	for _, w := range waiters {
		_ = w.SetResult(nil)
	}
	return nil
}

// SetException is the error-path counterpart of SetResult.
func (f *Future) SetException(err error) error {
	f.mu.Lock()
	if f.complete || f.err != nil {
		f.mu.Unlock()
		return &AlreadyCompletedError{}
	}
	f.err = err
	cb := f.doneCallback
	waiters := f.joinWaiters
	f.joinWaiters = nil
	f.mu.Unlock()

	if cb != nil {
		cb(f)
	}
	for _, w := range waiters {
		_ = w.SetException(err)
	}
	return nil
}

// Cancel is idempotent: a no-op (returns true) if already cancelled,
// returns false if already complete or currently running, otherwise marks
// the Future cancelled with a CancelledError and returns true. A running
// Future blocks cancellation outright; callers that need to interrupt a
// running task go through Task.Cancel, which injects the error at the
// task's next suspension point instead.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return true
	}
	if f.complete || f.running {
		return false
	}
	f.cancelled = true
	f.err = &CancelledError{}
	return true
}

// requestCancel marks cancellation as requested without finalizing the
// Future's terminal state, under the same running/complete preconditions as
// Cancel. Task.Cancel uses this instead of Cancel itself: a suspended task's
// body may still catch the resulting CancelledError at its throw point and
// return normally, and the Future must remain non-terminal (so a later
// SetResult can still succeed) until the body actually does so — see
// loop.go's cancelTask and step.
func (f *Future) requestCancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled || f.cancelRequested {
		return true
	}
	if f.complete || f.err != nil || f.running {
		return false
	}
	f.cancelRequested = true
	return true
}

// Result returns the value, or the recorded error. Fails with
// NotReadyError if the Future has not yet reached a terminal state.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if !f.complete {
		return nil, &NotReadyError{}
	}
	return f.result, nil
}

// Done reports whether the Future has reached any terminal state.
func (f *Future) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete || f.err != nil
}

// Cancelled reports whether the Future was cancelled, or is a task-driven
// Future with cancellation requested and still pending the body's reaction
// to it (see requestCancel) — an eager signal for opportunistic bookkeeping
// (timer tombstoning, registry scavenging), not a guarantee of the eventual
// terminal state.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled || f.cancelRequested
}

// Running reports whether the Future is currently marked as running (set
// by a Task while its body is between suspension points; see task.go).
func (f *Future) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Future) setRunning(v bool) {
	f.mu.Lock()
	f.running = v
	f.mu.Unlock()
}

// completeCancel finalizes a task-driven Future as cancelled: the scheduler
// calls this once the task's coroutine has actually unwound with a
// CancelledError it did not catch, so joiners are only woken after the body
// has truly stopped running. Until this runs, requestCancel has left the
// Future non-terminal — Done/Result correctly report the task as still
// pending, and a body that instead catches the error and returns normally
// resolves the Future through the ordinary SetResult path.
func (f *Future) completeCancel() {
	f.mu.Lock()
	if !f.cancelled && f.err == nil && !f.complete {
		f.cancelled = true
		f.err = &CancelledError{}
	}
	cb := f.doneCallback
	f.doneCallback = nil
	waiters := f.joinWaiters
	f.joinWaiters = nil
	f.mu.Unlock()

	if cb != nil {
		cb(f)
	}
	for _, w := range waiters {
		_ = w.SetResult(nil)
	}
}

// OnDone installs the Future's single done callback, replacing any earlier
// one. It is invoked when the Future resolves through SetResult,
// SetException or a task's completed cancellation (or immediately, inline,
// if it already has); Future.Cancel does not invoke it.
func (f *Future) OnDone(cb func(*Future)) {
	f.mu.Lock()
	if f.complete || f.err != nil {
		f.mu.Unlock()
		cb(f)
		return
	}
	f.doneCallback = cb
	f.mu.Unlock()
}

// Wait returns an Awaitable that resolves when f does: if f is already
// terminal it resolves immediately; otherwise it registers a fresh join
// Future and awaits that.
func (f *Future) Wait() Awaitable {
	return func(y *Yielder) (any, error) {
		f.mu.Lock()
		if f.complete || f.err != nil {
			err := f.err
			val := f.result
			f.mu.Unlock()
			return val, err
		}
		join := NewFuture()
		f.joinWaiters = append(f.joinWaiters, join)
		f.mu.Unlock()

		if _, err := y.Yield(YieldWaitFuture{Future: join}); err != nil {
			return nil, err
		}
		return f.Result()
	}
}

// Await makes the Future itself a step-able awaitable, so it may be
// wrapped directly in a Task. It delegates to Wait: an unresolved Future
// yields YieldWaitFuture for a fresh join Future registered on f, an
// explicit token, rather than an implicit "yield self" the scheduler would
// have to type-detect.
func (f *Future) Await(y *Yielder) (any, error) {
	return f.Wait()(y)
}
