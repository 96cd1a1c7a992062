package henrio

import "time"

// TimeoutScope is a deadline scope built entirely on scheduled
// cancellation, with no separate timer mechanism: on entry it
// records the current task and spawns an after-delay callback that cancels
// it; on exit it either suppresses that pending cancellation (clean exit)
// or, if a CancelledError propagated and the deadline is the one that
// caused it, translates it into a TimeoutError.
type TimeoutScope struct {
	task   *Task
	cancel *Future // the after-delay watchdog; resolved on exit so it no longer cancels (the watchdog task itself keeps sleeping until d)
	fired  bool
}

// Enter starts a TimeoutScope for the currently-running task, arming a
// cancellation after d elapses.
func Enter(y *Yielder, d time.Duration) (*TimeoutScope, error) {
	taskAny, err := y.Yield(CurrentTask())
	if err != nil {
		return nil, err
	}
	task, _ := taskAny.(*Task)

	loopAny, err := y.Yield(GetLoop())
	if err != nil {
		return nil, err
	}
	loop, _ := loopAny.(*Loop)

	s := &TimeoutScope{task: task}
	watchdog := NewFuture()
	s.cancel = watchdog

	loop.Spawn(func(wy *Yielder) (any, error) {
		if _, err := wy.Yield(Sleep(d)); err != nil {
			return nil, nil
		}
		if !watchdog.Done() {
			s.fired = true
			task.Cancel()
		}
		_ = watchdog.SetResult(nil)
		return nil, nil
	})

	return s, nil
}

// Exit must be called (typically deferred) with the error the scoped
// operation returned, if any. It suppresses the watchdog if the scope
// exited before the deadline, and translates the watchdog's own
// cancellation into a TimeoutError, leaving any unrelated error or
// cancellation untouched.
func (s *TimeoutScope) Exit(err error) error {
	_ = s.cancel.SetResult(nil) // no-op if the watchdog already fired

	if err == nil {
		return nil
	}
	if _, ok := err.(*CancelledError); ok && s.fired {
		return &TimeoutError{Cause: err}
	}
	return err
}
