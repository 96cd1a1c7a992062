package henrio

// ioWaitSlot is the pair of FIFO waiter queues for one registered
// descriptor, holding Futures resolved when the readiness source signals
// readiness.
type ioWaitSlot struct {
	readWaiters  []*Future
	writeWaiters []*Future
}

// ioRegistry owns the per-descriptor wait slots for the loop's lifetime.
type ioRegistry struct {
	slots map[Handle]*ioWaitSlot
}

func newIORegistry() *ioRegistry {
	return &ioRegistry{slots: make(map[Handle]*ioWaitSlot)}
}

func (r *ioRegistry) slot(h Handle) *ioWaitSlot {
	s, ok := r.slots[h]
	if !ok {
		s = &ioWaitSlot{}
		r.slots[h] = s
	}
	return s
}

// addReadWaiter appends f to h's read waiter queue.
func (r *ioRegistry) addReadWaiter(h Handle, f *Future) {
	s := r.slot(h)
	s.readWaiters = append(s.readWaiters, f)
}

// addWriteWaiter appends f to h's write waiter queue.
func (r *ioRegistry) addWriteWaiter(h Handle, f *Future) {
	s := r.slot(h)
	s.writeWaiters = append(s.writeWaiters, f)
}

// resolveOne pops one waiter from the appropriate queue per ready event
// and resolves its Future with nil. One waiter per event per descriptor
// per tick: draining the whole queue on a single event would let one busy
// descriptor starve the others.
func (r *ioRegistry) resolveOne(ev ReadyEvent) {
	s, ok := r.slots[ev.Handle]
	if !ok {
		return
	}
	if ev.Events&EventRead != 0 && len(s.readWaiters) > 0 {
		f := s.readWaiters[0]
		s.readWaiters = s.readWaiters[1:]
		_ = f.SetResult(nil)
	}
	if ev.Events&EventWrite != 0 && len(s.writeWaiters) > 0 {
		f := s.writeWaiters[0]
		s.writeWaiters = s.writeWaiters[1:]
		_ = f.SetResult(nil)
	}
}

// unregister cancels all pending waiters on h and drops its slot. Called
// for YieldUnwrapFile.
func (r *ioRegistry) unregister(h Handle) {
	s, ok := r.slots[h]
	if !ok {
		return
	}
	for _, f := range s.readWaiters {
		_ = f.SetException(&CancelledError{Message: "file unwrapped"})
	}
	for _, f := range s.writeWaiters {
		_ = f.SetException(&CancelledError{Message: "file unwrapped"})
	}
	delete(r.slots, h)
}

// hasWaiters reports whether any descriptor still has pending waiters —
// used by the scheduler's idle/termination check.
func (r *ioRegistry) hasWaiters() bool {
	for _, s := range r.slots {
		if len(s.readWaiters) > 0 || len(s.writeWaiters) > 0 {
			return true
		}
	}
	return false
}

// waiterCount returns the total number of parked read/write waiters
// across every registered descriptor, used for metrics reporting.
func (r *ioRegistry) waiterCount() int {
	n := 0
	for _, s := range r.slots {
		n += len(s.readWaiters) + len(s.writeWaiters)
	}
	return n
}

// WrappedFile is the handle returned in reply to YieldWrapFile: an I/O
// capable handle that has been registered with the readiness source for
// both read and write interest.
type WrappedFile struct {
	Handle Handle
	loop   *Loop
}

// Read suspends the current task until the handle is readable, then
// returns without performing the read itself; the caller does the syscall.
// This type only provides the readiness rendezvous. Returns a non-nil
// error if the calling task was cancelled (or timed out) before the handle
// became readable, or if the handle was unwrapped while waiting — the
// latter arrives through the waiter Future's own rejection, not through
// the suspension point, so the Future must be consulted after resuming.
func (w *WrappedFile) Read(y *Yielder) error {
	f := NewFuture()
	if _, err := y.Yield(WaitRead(w.Handle, f)); err != nil {
		return err
	}
	_, err := f.Result()
	return err
}

// Write is the write-side counterpart of Read.
func (w *WrappedFile) Write(y *Yielder) error {
	f := NewFuture()
	if _, err := y.Yield(WaitWrite(w.Handle, f)); err != nil {
		return err
	}
	_, err := f.Result()
	return err
}
