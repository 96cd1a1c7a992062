package henrio

import "time"

// Yield is the closed set of tokens a suspended task may hand back to the
// scheduler. It is a sum type: each constructor below is the only way to
// produce a value of this interface, so a type switch over Yield is
// exhaustive by construction — there is no string-keyed command dispatch.
type Yield interface {
	yieldToken()
}

// YieldNone means "reschedule immediately": put the task back at the tail
// of the ready queue (via the pending-tasks buffer) without any side
// effect. It is also the token a not-yet-terminal Conditional re-yields
// while polling its predicate.
type YieldNone struct{}

// YieldSleep parks the task on the timer heap for the given duration.
// Sleep(0) is translated to YieldNone before reaching the scheduler; an
// infinite sleep never reaches the timer heap at all (see Sleep).
type YieldSleep struct{ Duration time.Duration }

// YieldLoop asks for the loop handle; the scheduler replies with the *Loop.
type YieldLoop struct{}

// YieldTime asks for the current monotonic time; the scheduler replies
// with a time.Time from the loop's clock source.
type YieldTime struct{}

// YieldCurrentTask asks for the currently-stepping Task; the scheduler
// replies with that *Task.
type YieldCurrentTask struct{}

// YieldCreateTask spawns a new Task from an Awaitable, placing it on the
// pending-tasks buffer; the scheduler replies with the new *Task.
type YieldCreateTask struct{ Awaitable Awaitable }

// YieldWrapFile asks the readiness source to register a handle for both
// read and write interest; the scheduler replies with a *WrappedFile.
type YieldWrapFile struct{ Handle Handle }

// YieldUnwrapFile cancels all pending waiters on a handle and unregisters
// it from the readiness source.
type YieldUnwrapFile struct{ Handle Handle }

// YieldWaitRead appends a Future to a handle's read waiter queue. The
// parent task is not re-enqueued; it is awaiting that Future instead.
type YieldWaitRead struct {
	Handle Handle
	Future *Future
}

// YieldWaitWrite is the write-side counterpart of YieldWaitRead.
type YieldWaitWrite struct {
	Handle Handle
	Future *Future
}

// YieldWaitFuture is the explicit replacement for the implicit
// "Future yields itself" pattern: a Future's step implementation produces
// this token when it is not yet terminal, so the scheduler recognizes a
// suspended Future-wait without any runtime type check on the awaiter.
type YieldWaitFuture struct{ Future *Future }

func (YieldNone) yieldToken()        {}
func (YieldSleep) yieldToken()       {}
func (YieldLoop) yieldToken()        {}
func (YieldTime) yieldToken()        {}
func (YieldCurrentTask) yieldToken() {}
func (YieldCreateTask) yieldToken()  {}
func (YieldWrapFile) yieldToken()    {}
func (YieldUnwrapFile) yieldToken()  {}
func (YieldWaitRead) yieldToken()    {}
func (YieldWaitWrite) yieldToken()   {}
func (YieldWaitFuture) yieldToken()  {}

// Handle identifies a registered file/socket descriptor. On Unix platforms
// it is the raw file descriptor; see fd_unix.go / fd_windows.go.
type Handle = int

// Sleep produces the yield token for sleeping `d`. A zero duration yields
// YieldNone (an immediate reschedule); a negative duration is treated as
// "park indefinitely" — only cancellation or Throw can revive the task.
func Sleep(d time.Duration) Yield {
	switch {
	case d == 0:
		return YieldNone{}
	default:
		return YieldSleep{Duration: d}
	}
}

// SleepForever returns the yield token parking the task indefinitely;
// only cancellation or an injected error revives it.
func SleepForever() Yield { return YieldSleep{Duration: -1} }

// CurrentTask returns the yield token requesting the running *Task.
func CurrentTask() Yield { return YieldCurrentTask{} }

// GetLoop returns the yield token requesting the *Loop handle.
func GetLoop() Yield { return YieldLoop{} }

// GetTime returns the yield token requesting the current monotonic time.
func GetTime() Yield { return YieldTime{} }

// WaitRead returns the yield token for waiting on read-readiness of h.
func WaitRead(h Handle, f *Future) Yield { return YieldWaitRead{Handle: h, Future: f} }

// WaitWrite returns the yield token for waiting on write-readiness of h.
func WaitWrite(h Handle, f *Future) Yield { return YieldWaitWrite{Handle: h, Future: f} }

// WrapFile returns the yield token registering h with the readiness source.
func WrapFile(h Handle) Yield { return YieldWrapFile{Handle: h} }

// UnwrapFile returns the yield token unregistering h from the readiness source.
func UnwrapFile(h Handle) Yield { return YieldUnwrapFile{Handle: h} }

// SpawnToken returns the yield token asking the scheduler to spawn a.
func SpawnToken(a Awaitable) Yield { return YieldCreateTask{Awaitable: a} }
