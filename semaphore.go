package henrio

import "sync"

// Semaphore generalizes Lock to up to max simultaneous holders: the same
// FIFO waiter discipline, with a holder set instead of a single holder.
type Semaphore struct {
	mu      sync.Mutex
	max     int
	holders map[*Task]struct{}
	waiters []*Future
}

// NewSemaphore returns a Semaphore admitting up to max concurrent
// holders. Panics if max <= 0.
func NewSemaphore(max int) *Semaphore {
	if max <= 0 {
		panic("henrio: semaphore max must be positive")
	}
	return &Semaphore{max: max, holders: make(map[*Task]struct{}, max)}
}

// Acquire suspends the calling task until a slot is free, then takes one.
func (s *Semaphore) Acquire(y *Yielder) (*Task, error) {
	reply, err := y.Yield(CurrentTask())
	if err != nil {
		return nil, err
	}
	task, _ := reply.(*Task)

	s.mu.Lock()
	if len(s.holders) < s.max {
		s.holders[task] = struct{}{}
		s.mu.Unlock()
		return task, nil
	}
	wait := NewFuture()
	s.waiters = append(s.waiters, wait)
	s.mu.Unlock()

	if _, err := wait.Wait()(y); err != nil {
		wait.Cancel() // abandoned: Release must not hand a slot to it
		return nil, err
	}

	s.mu.Lock()
	s.holders[task] = struct{}{}
	s.mu.Unlock()
	return task, nil
}

// Release frees task's slot, handing it directly to the next live FIFO
// waiter, skipping any cancelled while parked. Fails with NotHolderError if
// task does not hold a slot.
func (s *Semaphore) Release(task *Task) error {
	s.mu.Lock()
	if _, ok := s.holders[task]; !ok {
		s.mu.Unlock()
		return &NotHolderError{}
	}
	delete(s.holders, task)

	for len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		if next.Cancelled() {
			continue
		}
		s.mu.Unlock()
		_ = next.SetResult(nil)
		return nil
	}
	s.mu.Unlock()
	return nil
}

// Available returns the number of free slots.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max - len(s.holders)
}
