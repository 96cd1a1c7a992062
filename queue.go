package henrio

import "sync"

// Queue is a bounded FIFO (or LIFO) buffer of values, async on both ends:
// Put suspends the caller while full, Get suspends it while empty. A
// capacity of 0 means unbounded, so Put never blocks.
type Queue struct {
	mu       sync.Mutex
	items    []any
	capacity int
	lifo     bool

	putWaiters []*Future // resolved one-at-a-time as space frees up
	getWaiters []*getWaiter
}

// getWaiter pairs a join Future with the slot its resolved value lands in,
// so Put can hand an item directly to a waiting Get without it re-reading
// the queue (and to let a cancelled waiter be skipped cleanly).
type getWaiter struct {
	future *Future
	value  *any
}

// NewQueue returns an empty FIFO Queue with the given capacity (0 means
// unbounded).
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// NewLIFOQueue returns an empty LIFO (stack-ordered) Queue.
func NewLIFOQueue(capacity int) *Queue {
	return &Queue{capacity: capacity, lifo: true}
}

// Put suspends the calling task while the queue is full, then appends v.
func (q *Queue) Put(y *Yielder, v any) error {
	q.mu.Lock()
	for q.capacity > 0 && len(q.items) >= q.capacity {
		wait := NewFuture()
		q.putWaiters = append(q.putWaiters, wait)
		q.mu.Unlock()

		if _, err := wait.Wait()(y); err != nil {
			wait.Cancel() // abandoned: pushLocked must not hand an item to it
			return err
		}
		q.mu.Lock()
	}
	q.pushLocked(v)
	q.mu.Unlock()
	return nil
}

// PutNowait appends v without suspending, failing with WouldBlockError if
// the queue is full.
func (q *Queue) PutNowait(v any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return &WouldBlockError{}
	}
	q.pushLocked(v)
	return nil
}

// pushLocked appends v and, if a Get is waiting, hands it over directly;
// mu must be held.
func (q *Queue) pushLocked(v any) {
	for len(q.getWaiters) > 0 {
		w := q.getWaiters[0]
		q.getWaiters = q.getWaiters[1:]
		if w.future.Cancelled() {
			continue // a cancelled waiter never consumes the item
		}
		*w.value = v
		_ = w.future.SetResult(nil)
		return
	}
	q.items = append(q.items, v)
}

// Get suspends the calling task while the queue is empty, then returns
// the next value (FIFO order unless the Queue was built with
// NewLIFOQueue).
func (q *Queue) Get(y *Yielder) (any, error) {
	q.mu.Lock()
	if v, ok := q.popLocked(); ok {
		q.wakePutLocked()
		q.mu.Unlock()
		return v, nil
	}
	var slot any
	wait := NewFuture()
	q.getWaiters = append(q.getWaiters, &getWaiter{future: wait, value: &slot})
	q.mu.Unlock()

	if _, err := wait.Wait()(y); err != nil {
		wait.Cancel() // abandoned: pushLocked must not hand an item to it
		return nil, err
	}
	q.mu.Lock()
	q.wakePutLocked()
	q.mu.Unlock()
	return slot, nil
}

// GetNowait returns the next value without suspending, failing with
// WouldBlockError if the queue is empty.
func (q *Queue) GetNowait() (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.popLocked()
	if !ok {
		return nil, &WouldBlockError{}
	}
	q.wakePutLocked()
	return v, nil
}

// popLocked removes and returns the next item per ordering mode; mu must
// be held.
func (q *Queue) popLocked() (any, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	if q.lifo {
		v := q.items[len(q.items)-1]
		q.items = q.items[:len(q.items)-1]
		return v, true
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// wakePutLocked resolves the oldest live Put waiter, if any, now that a
// slot has freed up; mu must be held.
func (q *Queue) wakePutLocked() {
	for len(q.putWaiters) > 0 {
		w := q.putWaiters[0]
		q.putWaiters = q.putWaiters[1:]
		if w.Cancelled() {
			continue
		}
		_ = w.SetResult(nil)
		return
	}
}

// Len returns the number of items currently buffered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
