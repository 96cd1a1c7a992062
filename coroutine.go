package henrio

import "fmt"

// taskPanicError marks a Body's recovered panic as distinct from an
// ordinary returned error, so that step() in loop.go can log it (see
// LogTaskPanicked in logging.go) instead of treating it as routine task
// failure.
type taskPanicError struct {
	value any
}

func (e *taskPanicError) Error() string {
	return fmt.Sprintf("henrio: panic in task body: %v", e.value)
}

// Body is the function a Coroutine runs. It receives a Yielder used to
// suspend at arbitrary points in its control flow and returns the task's
// final result, or an error.
type Body func(y *Yielder) (any, error)

// Yielder is the handle a running Body uses to suspend itself. It is only
// ever valid for the duration of one Body invocation, on the Body's own
// goroutine.
type Yielder struct {
	c *Coroutine
}

// Yield suspends the running Body, handing token to the scheduler, and
// blocks until the scheduler steps or throws back into this suspension
// point. It returns the scheduler's reply value, or — if the scheduler
// resumed it via Throw rather than Step, as cancellation and timeouts do
// — a non-nil error, delivered as an ordinary Go return value rather than
// a panic so that a Body can observe it, clean up, and either propagate
// it or swallow it and return normally. A Body that ignores the error is free to keep
// yielding — nothing forces it to stop — but then cancellation simply
// has no effect on it, same as ignoring any other error would.
func (y *Yielder) Yield(token Yield) (any, error) {
	y.c.out <- stepResult{yielded: token}
	msg := <-y.c.in
	if msg.throw != nil {
		return nil, msg.throw
	}
	return msg.reply, nil
}

// Coroutine is the suspension primitive: a lazy sequence with an explicit
// step interface, backed by one goroutine blocked on a pair of unbuffered
// channels so that exactly one logical party (the goroutine or its
// stepper) is ever runnable at a time. This is the idiomatic Go substitute
// for a native stackless generator.
type Coroutine struct {
	in   chan stepMsg
	out  chan stepResult
	done bool
}

type stepMsg struct {
	reply any
	throw error
}

type stepResult struct {
	yielded  Yield
	value    any
	err      error
	complete bool
}

// Outcome is the result of one Step/Throw call: exactly one of Completed,
// Failed, or Yielded.
type Outcome struct {
	Completed bool
	Value     any
	Failed    bool
	Err       error
	Yielded   Yield
	HasYield  bool
}

// NewCoroutine starts body on a new goroutine, suspended at its first
// Yield call (or already complete, if body never yields).
func NewCoroutine(body Body) *Coroutine {
	c := &Coroutine{
		in:  make(chan stepMsg),
		out: make(chan stepResult),
	}
	go c.run(body)
	return c
}

func (c *Coroutine) run(body Body) {
	// Recovers a genuine bug in a Body (not cancellation — that is now an
	// ordinary error return from Yield, see Yielder.Yield) so that one
	// broken task fails its own Future instead of crashing the process:
	// every Body runs on its own goroutine, and an unrecovered panic on
	// any goroutine takes down the whole program.
	defer func() {
		if r := recover(); r != nil {
			c.out <- stepResult{err: &taskPanicError{value: r}, complete: true}
		}
	}()
	first := <-c.in // wait for the first Step/Throw before running any body code
	if first.throw != nil {
		// Cancelled/thrown before the body ever ran: never invoke it.
		c.out <- stepResult{err: first.throw, complete: true}
		return
	}
	v, err := body(&Yielder{c: c})
	c.out <- stepResult{value: v, err: err, complete: true}
}

// Step resumes the coroutine with reply, delivering it at the current
// suspension point (ignored on the very first call). It must never be
// called again once the coroutine has completed — doing so is an internal
// invariant violation and panics.
func (c *Coroutine) Step(reply any) Outcome {
	return c.advance(stepMsg{reply: reply})
}

// Throw injects err at the current suspension point, used to implement
// cancellation and timeouts.
func (c *Coroutine) Throw(err error) Outcome {
	return c.advance(stepMsg{throw: err})
}

func (c *Coroutine) advance(msg stepMsg) Outcome {
	if c.done {
		panic("henrio: Step/Throw called on a completed Coroutine")
	}
	c.in <- msg
	res := <-c.out
	if res.complete {
		c.done = true
		if res.err != nil {
			return Outcome{Failed: true, Err: res.err}
		}
		return Outcome{Completed: true, Value: res.value}
	}
	return Outcome{Yielded: res.yielded, HasYield: true}
}

// Close injects a CancelledError at the current suspension point and
// discards the outcome. A body that returns in response terminates; a body
// that ignores the error and yields again stays suspended there, and Close
// does not step it further. It is a no-op on an already-completed
// coroutine.
func (c *Coroutine) Close() {
	if c.done {
		return
	}
	c.Throw(&CancelledError{Message: "coroutine closed"})
}

// Done reports whether the coroutine has reached a terminal outcome.
func (c *Coroutine) Done() bool { return c.done }
