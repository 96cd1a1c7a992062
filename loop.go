package henrio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the scheduler: a single goroutine that drains the ready queue,
// services the timer heap, polls for I/O readiness, and interprets yield
// tokens produced by suspended Tasks. Every data structure below (ready
// queue, pending-tasks buffer, timer heap, I/O registry) is touched only
// from the goroutine calling RunUntil/RunForever/tick; Submit and Close are
// the sole entry points safe to call from a foreign goroutine.
type Loop struct {
	id string

	ready   *ChunkedIngress
	pending *ChunkedIngress
	timers  *timerHeap
	io      *ioRegistry

	readiness   readinessSource
	wakeFD      int
	wakeWriteFD int
	wakeHandle  bool // true once wakeFD has been registered with readiness

	clock func() time.Time

	registry *registry
	idGen    func() string
	metrics  MetricsSink
	logger   Logger

	overloadLimiter   overloadLimiter
	overloadThreshold int

	state        *FastState
	runningDepth atomic.Int32

	mu       sync.Mutex // guards external/closed; the only cross-goroutine surface
	external []Awaitable
	closed   bool

	scavengeBatch int
}

// New constructs a Loop with a platform-default readiness source (epoll on
// Linux, kqueue on Darwin, the polling shim on Windows; see readiness.go),
// configured by opts (see options.go).
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	readiness := cfg.readiness
	if readiness == nil {
		readiness, err = newFastPollerSource()
		if err != nil {
			return nil, err
		}
	}

	l := &Loop{
		ready:             NewChunkedIngress(),
		pending:           NewChunkedIngress(),
		timers:            newTimerHeap(),
		io:                newIORegistry(),
		readiness:         readiness,
		clock:             cfg.clock,
		registry:          newRegistry(),
		idGen:             cfg.idGenerator,
		metrics:           cfg.metricsSink,
		logger:            cfg.logger,
		overloadThreshold: 1024,
		state:             NewFastState(),
		scavengeBatch:     64,
	}
	l.id = l.idGen()
	if cfg.overloadLimiter != nil {
		l.overloadLimiter = cfg.overloadLimiter
	}

	wakeFD, wakeWriteFD, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err == nil && wakeFD >= 0 {
		l.wakeFD = wakeFD
		l.wakeWriteFD = wakeWriteFD
		if err := l.readiness.Register(wakeFD, InterestRead); err == nil {
			l.wakeHandle = true
		}
	} else {
		l.wakeFD = -1
		l.wakeWriteFD = -1
	}

	return l, nil
}

// ID returns the loop's correlation identifier (see WithIDGenerator).
func (l *Loop) ID() string { return l.id }

// Spawn wraps a as a Task and places it on the pending-tasks buffer: a
// spawned task runs no earlier than the next tick, so a task spawning
// children in a loop cannot starve its siblings.
func (l *Loop) Spawn(a Awaitable) *Task {
	t := l.newTask(a)
	l.enqueuePending(t)
	return t
}

func (l *Loop) newTask(a Awaitable) *Task {
	t := newTask(l, l.idGen(), a)
	l.registry.Register(t)
	return t
}

// Submit enqueues a to run on the loop from any goroutine, waking the loop
// if it is currently blocked inside the readiness source's Select. Returns
// LoopClosedError if the loop has already been closed.
//
// The wake write is skipped while the loop is not sleeping: an awake loop
// drains the external buffer at its next merge phase anyway. The race
// where the loop goes to sleep just after the state load here is closed on
// the loop's side — pollIO rechecks the external buffer after publishing
// StateSleeping and polls with a zero budget if anything arrived.
func (l *Loop) Submit(a Awaitable) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return &LoopClosedError{}
	}
	l.external = append(l.external, a)
	l.mu.Unlock()

	if l.wakeFD >= 0 && l.state.Load() == StateSleeping {
		_ = writeWake(l.wakeWriteFD)
	}
	return nil
}

// Close releases the loop's readiness source and wake descriptor. Safe to
// call once from any goroutine; a running loop should be stopped (let
// RunForever's termination predicate go false) before Close.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.state.TransitionAny([]LoopState{StateAwake, StateRunning, StateSleeping}, StateTerminating)
	l.registry.RejectAll(&LoopClosedError{})
	if l.wakeFD >= 0 {
		_ = closeWakeFd(l.wakeFD, l.wakeWriteFD)
	}
	err := l.readiness.Close()
	l.state.Store(StateTerminated)
	return err
}

// RunUntil wraps awaitable as a Task, pushes it at the head of the ready
// queue (priority over anything already queued), and ticks the loop until
// that Task reaches a terminal state, returning its result or error
// verbatim.
func (l *Loop) RunUntil(awaitable Awaitable) (any, error) {
	if !l.runningDepth.CompareAndSwap(0, 1) {
		return nil, &LoopAlreadyRunningError{}
	}
	defer l.runningDepth.Store(0)
	l.state.TryTransition(StateAwake, StateRunning)
	defer l.state.TryTransition(StateRunning, StateAwake)

	return l.drive(l.newTask(awaitable))
}

// drive pushes root at the head of the ready queue and ticks until it
// reaches a terminal state. Callers hold the runningDepth guard.
func (l *Loop) drive(root *Task) (any, error) {
	root.queued = true
	l.ready.PushFront(root)

	for !root.Future.Done() {
		l.tick()
	}
	return root.Future.Result()
}

// RunForever spawns each awaitable and ticks the loop while the ready
// queue, pending-tasks buffer, timer heap, or any I/O waiter is non-empty.
// It returns once the loop is idle.
func (l *Loop) RunForever(awaitables ...Awaitable) error {
	if !l.runningDepth.CompareAndSwap(0, 1) {
		return &LoopAlreadyRunningError{}
	}
	defer l.runningDepth.Store(0)
	l.state.TryTransition(StateAwake, StateRunning)
	defer l.state.TryTransition(StateRunning, StateAwake)

	for _, a := range awaitables {
		l.Spawn(a)
	}
	for l.hasWork() {
		l.tick()
	}
	return nil
}

func (l *Loop) hasWork() bool {
	if l.ready.Length() > 0 || l.pending.Length() > 0 {
		return true
	}
	if _, ok := l.timers.peekDeadline(); ok {
		return true
	}
	if l.io.hasWaiters() {
		return true
	}
	l.mu.Lock()
	n := len(l.external)
	l.mu.Unlock()
	return n > 0
}

// tick runs one full pass of the scheduler: merge, timers, I/O poll, drain.
// Joined-Future resolution is handled synchronously as each Future
// resolves (via Future.OnDone) rather than as a separate scanning phase;
// it preserves the same ordering guarantee (SetResult enqueues joiners
// before it returns) with less bookkeeping.
func (l *Loop) tick() {
	l.mergeExternal()
	l.mergePending()
	l.runTimers()
	l.pollIO()
	if l.metrics != nil {
		l.metrics.ObserveQueueDepth(l.ready.Length(), l.pending.Length(), l.io.waiterCount())
	}
	l.drain()
	l.registry.Scavenge(l.scavengeBatch)
}

// mergeExternal drains Submit()'d awaitables from foreign goroutines into
// the pending-tasks buffer.
func (l *Loop) mergeExternal() {
	l.mu.Lock()
	if len(l.external) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.external
	l.external = nil
	l.mu.Unlock()

	for _, a := range batch {
		l.enqueuePending(l.newTask(a))
	}
}

// enqueueReady pushes t onto the ready queue unless it is already queued
// (ready or pending) — see Task.queued. Two independent wakeup paths can
// race to re-queue the same parked task (cancellation and the Future or
// timer it was originally parked on), and the invariant that a task sits
// on at most one scheduler queue at a time must hold regardless of which
// path wins.
func (l *Loop) enqueueReady(t *Task) {
	if t.queued {
		return
	}
	t.queued = true
	l.ready.Push(t)
}

// enqueuePending is enqueueReady's pending-tasks-buffer counterpart, used
// for a task rescheduling itself (it runs no earlier than next tick)
// rather than being woken externally.
func (l *Loop) enqueuePending(t *Task) {
	if t.queued {
		return
	}
	t.queued = true
	l.pending.Push(t)
}

// cancelTask is Task.Cancel's implementation. It records cancellation as
// requested on t's Future (a no-op if already terminal or currently
// running) without finalizing its terminal state, then,
// only if that succeeded, queues CancelledError to be thrown at t's current
// suspension point and force-wakes it — wherever it is currently parked
// (the timer heap, an I/O wait queue, or another Future's join-waiter
// list). Without the force-wake, a task cancelled while parked anywhere but
// the ready queue would never actually unwind. The Future stays non-terminal
// until step() reports the Throw's actual outcome: a body that swallows the
// error and returns normally still completes successfully.
func (l *Loop) cancelTask(t *Task) bool {
	if !t.Future.requestCancel() {
		return false
	}
	if t.timer != nil {
		l.timers.cancel(t.timer)
		t.timer = nil
	}
	t.throwPending = &CancelledError{}
	l.enqueueReady(t)
	return true
}

// mergePending moves everything from the pending-tasks buffer into the
// ready queue at the start of a tick.
func (l *Loop) mergePending() {
	if n := l.pending.Length(); n > l.overloadThreshold {
		l.warnOverload(n)
	}
	for {
		t, ok := l.pending.Pop()
		if !ok {
			break
		}
		l.ready.Push(t)
	}
}

func (l *Loop) warnOverload(depth int) {
	if l.overloadLimiter == nil {
		return
	}
	if _, ok := l.overloadLimiter.Allow("queue-overload"); !ok {
		return
	}
	LogWarn(l.logger, "scheduler", "henrio: pending-tasks buffer overloaded", map[string]interface{}{
		"depth":   depth,
		"loop_id": l.id,
	})
}

// runTimers pops every expired or tombstoned timer entry and pushes live,
// expired tasks directly onto the ready queue: they run this tick, not the
// next, since they were woken by an external event (the clock), not a
// self-reschedule.
func (l *Loop) runTimers() {
	for _, t := range l.timers.popExpired(l.now().UnixNano()) {
		t.timer = nil
		LogTimerFired(l.logger, l.id, t.id)
		l.enqueueReady(t)
	}
}

// pollIO computes the blocking budget and invokes the readiness source
// once, resolving one waiter per ready descriptor.
func (l *Loop) pollIO() {
	budget := l.pollBudget()
	if budget != 0 {
		l.state.TryTransition(StateRunning, StateSleeping)
		// A Submit racing the transition may have loaded StateRunning and
		// skipped its wake write; recheck the external buffer now that
		// StateSleeping is published so that work is never slept through.
		l.mu.Lock()
		if len(l.external) > 0 {
			budget = 0
		}
		l.mu.Unlock()
	}
	events, err := l.readiness.Select(budget)
	l.state.TryTransition(StateSleeping, StateRunning)
	if err != nil {
		LogPollIOError(l.logger, l.id, err, true)
		return
	}
	for _, ev := range events {
		if l.wakeHandle && ev.Handle == l.wakeFD {
			_ = drainWakeFD(l.wakeFD)
			continue
		}
		l.io.resolveOne(ev)
	}
}

// pollBudget is 0 if the ready queue is non-empty, else the time to the
// nearest live timer, else unbounded (-1) if any I/O waiter exists or the
// wake descriptor is registered, else 0 (the loop is idle and about to exit
// RunForever's loop).
func (l *Loop) pollBudget() time.Duration {
	if l.ready.Length() > 0 {
		return 0
	}
	if deadline, ok := l.timers.peekDeadline(); ok {
		d := time.Duration(deadline - l.now().UnixNano())
		if d < 0 {
			d = 0
		}
		return d
	}
	if l.io.hasWaiters() || l.wakeHandle {
		return -1
	}
	return 0
}

// drain pops and steps tasks until the ready queue is empty, including
// tasks pushed onto it during the drain (OnDone wakeups, cancellations,
// invalid yields), routing completion/failure into the Task's Future and
// dispatching yielded tokens.
func (l *Loop) drain() {
	for {
		t, ok := l.ready.Pop()
		if !ok {
			break
		}
		t.queued = false
		// A task can land here after it has already terminated: it was
		// force-woken by cancellation, unwound, and then its original
		// wakeup source (a Future's done callback, typically) fired anyway.
		// Stepping a finished coroutine is an invariant violation, so the
		// stale wakeup is dropped instead.
		if t.coroutine.Done() {
			continue
		}
		l.step(t)
	}
}

// step resumes t. A throwPending error (queued by cancelTask, a WrapFile
// registration failure, or an invalid yield) always takes priority over a
// plain Step, so that a cancelled task's body gets a real suspension-point
// Throw, and therefore a chance to catch it and clean up, rather than
// being discarded unresumed.
func (l *Loop) step(t *Task) {
	var out Outcome
	start := l.now()
	if t.throwPending != nil {
		err := t.throwPending
		t.throwPending = nil
		out = t.Throw(err)
	} else {
		out = t.Step(t.lastReply)
	}
	if l.metrics != nil {
		l.metrics.ObserveTick(l.now().Sub(start))
	}

	switch {
	case out.Completed:
		_ = t.Future.SetResult(out.Value)
		if l.metrics != nil {
			l.metrics.IncTasksCompleted()
		}
	case out.Failed:
		var cancelled *CancelledError
		var timedOut *TimeoutError
		if errors.As(out.Err, &cancelled) && !errors.As(out.Err, &timedOut) {
			t.Future.completeCancel()
		} else {
			var panicked *taskPanicError
			if errors.As(out.Err, &panicked) {
				LogTaskPanicked(l.logger, l.id, t.id, out.Err)
			}
			_ = t.Future.SetException(out.Err)
		}
	case out.HasYield:
		l.dispatch(t, out.Yielded)
	}
}

// dispatch interprets a yield token, parking, replying to, or re-enqueuing t.
func (l *Loop) dispatch(t *Task, token Yield) {
	switch tok := token.(type) {
	case YieldNone:
		t.lastReply = nil
		l.enqueuePending(t)

	case YieldSleep:
		t.lastReply = nil
		switch {
		case tok.Duration == 0:
			l.enqueuePending(t)
		case tok.Duration < 0:
			// park indefinitely; only cancellation or Throw revives it
		default:
			t.timer = l.timers.schedule(t, l.now().Add(tok.Duration).UnixNano())
			LogTimerScheduled(l.logger, l.id, t.id, tok.Duration)
		}

	case YieldLoop:
		t.lastReply = l
		l.enqueuePending(t)

	case YieldTime:
		t.lastReply = l.now()
		l.enqueuePending(t)

	case YieldCurrentTask:
		t.lastReply = t
		l.enqueuePending(t)

	case YieldCreateTask:
		child := l.Spawn(tok.Awaitable)
		t.lastReply = child
		l.enqueuePending(t)

	case YieldWrapFile:
		if err := l.readiness.Register(tok.Handle, InterestReadWrite); err != nil {
			t.throwPending = err
		} else {
			t.lastReply = &WrappedFile{Handle: tok.Handle, loop: l}
		}
		l.enqueuePending(t)

	case YieldUnwrapFile:
		l.io.unregister(tok.Handle)
		_ = l.readiness.Unregister(tok.Handle)
		l.enqueuePending(t)

	case YieldWaitRead:
		l.io.addReadWaiter(tok.Handle, tok.Future)
		l.awaitFuture(t, tok.Future)

	case YieldWaitWrite:
		l.io.addWriteWaiter(tok.Handle, tok.Future)
		l.awaitFuture(t, tok.Future)

	case YieldWaitFuture:
		l.awaitFuture(t, tok.Future)

	default:
		t.throwPending = &InvalidYieldError{Token: token}
		l.enqueueReady(t)
	}
}

// awaitFuture parks t until f resolves: f's done callback pushes t directly
// onto the ready queue (not the pending buffer), since the wakeup is
// attributable to an external event (another task finishing, an I/O
// readiness notification) rather than to t rescheduling itself. This is
// also what makes joiner resolution synchronous: the push happens inside
// SetResult/SetException's own call frame, before it returns to its caller.
//
// The push goes through enqueueReady rather than a raw queue push because
// t may have already been force-woken by a concurrent cancellation (see
// cancelTask): the two wakeup paths race harmlessly, and the queued guard
// ensures t lands on the ready queue exactly once either way.
func (l *Loop) awaitFuture(t *Task, f *Future) {
	t.lastReply = nil
	f.OnDone(func(*Future) {
		l.enqueueReady(t)
	})
}

func (l *Loop) now() time.Time { return l.clock() }

// overloadLimiter is the minimal surface this package needs from
// *catrate.Limiter, letting tests substitute a fake without importing the
// dependency.
type overloadLimiter interface {
	Allow(category any) (time.Time, bool)
}
