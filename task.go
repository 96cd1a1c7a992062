package henrio

// Task is a runnable wrapper binding a step-able Coroutine to a
// Future-shaped result slot. Task carries no yield-token dispatch state of
// its own: the Coroutine's channel pair (see coroutine.go) is the
// step-token and reply-argument exchange; lastReply below is only the
// scheduler's own scratch slot for the value a dispatched yield resolves
// to, consumed on the task's next Step call.
//
// A Task is on at most one scheduler queue at any moment: the ready
// queue, the timer heap, an I/O wait slot, or a Future's join-waiter list.
type Task struct {
	*Future
	id        string
	coroutine *Coroutine
	loop      *Loop

	// lastToken is the most recent Yield produced by the task, read by
	// the scheduler immediately after a Step/Throw and never written
	// except by that same call — it is not a cross-tick scratch slot,
	// just the return value of the last transition.
	lastToken Yield

	// lastReply is the value the scheduler's dispatch of lastToken
	// resolved to (e.g. the current Loop for YieldLoop, a spawned child
	// Task for YieldCreateTask), handed back as the argument to the
	// task's next Step call and cleared by that call's panic-free path.
	lastReply any

	throwPending error

	// timer is the heap entry for an in-flight Sleep, cleared when it
	// fires; cancellation uses it to evict the entry eagerly instead of
	// leaving a tombstone for the heap to skip later.
	timer *timerEntry

	// queued is true while t sits on the loop's ready queue or
	// pending-tasks buffer (the two queues drain() and mergePending()
	// move it between) — the "on at most one scheduler queue" invariant
	// expressed as a guard, since a parked task (sleeping,
	// or awaiting a Future) can be force-woken by cancellation at the
	// same time its original wakeup source fires.
	queued bool
}

// newTask wraps an Awaitable as a Task, owned by loop, identified by id.
func newTask(loop *Loop, id string, a Awaitable) *Task {
	t := &Task{
		Future: NewFuture(),
		id:     id,
		loop:   loop,
	}
	t.coroutine = NewCoroutine(func(y *Yielder) (any, error) {
		return a(y)
	})
	return t
}

// ID returns the task's correlation identifier (see WithIDGenerator).
func (t *Task) ID() string { return t.id }

// Step resumes the task's coroutine with reply and records the yielded
// token.
func (t *Task) Step(reply any) Outcome {
	t.setRunning(true)
	out := t.coroutine.Step(reply)
	t.lastReply = nil
	t.setRunning(false)
	t.lastToken = out.Yielded
	return out
}

// Throw injects err at the task's current suspension point.
func (t *Task) Throw(err error) Outcome {
	t.setRunning(true)
	out := t.coroutine.Throw(err)
	t.setRunning(false)
	t.lastToken = out.Yielded
	return out
}

// Close delegates to Coroutine.Close on the task's coroutine, without
// recording a result on the task's Future.
func (t *Task) Close() {
	t.coroutine.Close()
}

// Cancel requests cancellation of t, shadowing the embedded Future's own
// Cancel so that every caller goes through the loop: flipping the
// Future's cancelled flag alone is not enough for a Task, since its
// coroutine may be parked mid-body (sleeping, awaiting a Future, awaiting
// I/O) with its goroutine blocked on a reply that would otherwise never
// arrive. The loop injects CancelledError at the task's current suspension
// point on its next scheduling opportunity, wherever that task happens to
// be parked.
func (t *Task) Cancel() bool {
	return t.loop.cancelTask(t)
}

// Await makes a Task itself awaitable from another task body: it returns
// the result at once if the task is done; otherwise it suspends the caller
// on the task's Future via Wait, and the scheduler steps the awaited task
// separately. Await does not step the awaited task itself.
func (t *Task) Await(y *Yielder) (any, error) {
	if t.Future.Done() {
		return t.Future.Result()
	}
	return t.Future.Wait()(y)
}
