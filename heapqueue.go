package henrio

import (
	"container/heap"
	"errors"
	"sync"
)

// HeapQueue is a Queue with the same async put/get contract, but items are
// always returned in ascending order of less, not insertion order.
type HeapQueue struct {
	mu       sync.Mutex
	items    heapQueueItems
	less     func(a, b any) bool
	capacity int

	putWaiters []*Future
	getWaiters []*getWaiter
}

type heapQueueItems struct {
	values []any
	less   func(a, b any) bool
}

func (h heapQueueItems) Len() int            { return len(h.values) }
func (h heapQueueItems) Less(i, j int) bool  { return h.less(h.values[i], h.values[j]) }
func (h heapQueueItems) Swap(i, j int)       { h.values[i], h.values[j] = h.values[j], h.values[i] }
func (h *heapQueueItems) Push(x any)         { h.values = append(h.values, x) }
func (h *heapQueueItems) Pop() any {
	old := h.values
	n := len(old)
	v := old[n-1]
	h.values = old[:n-1]
	return v
}

// NewHeapQueue returns an empty HeapQueue ordered by less, with the given
// capacity (0 means unbounded).
func NewHeapQueue(capacity int, less func(a, b any) bool) *HeapQueue {
	return &HeapQueue{
		items:    heapQueueItems{less: less},
		less:     less,
		capacity: capacity,
	}
}

// SetLIFO always fails: a heap-ordered queue has no meaningful insertion
// order to reverse. It exists only so HeapQueue satisfies the same shape
// of configuration surface as Queue without silently ignoring the call.
func (q *HeapQueue) SetLIFO(bool) error {
	return errors.New("henrio: HeapQueue does not support LIFO ordering")
}

// Put suspends the calling task while the queue is full, then pushes v.
func (q *HeapQueue) Put(y *Yielder, v any) error {
	q.mu.Lock()
	for q.capacity > 0 && q.items.Len() >= q.capacity {
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

// PutNowait pushes v without suspending, failing with WouldBlockError if full.
func (q *HeapQueue) PutNowait(v any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		return &WouldBlockError{}
	}
	q.pushLocked(v)
	return nil
}

func (q *HeapQueue) pushLocked(v any) {
	for len(q.getWaiters) > 0 {
		w := q.getWaiters[0]
		q.getWaiters = q.getWaiters[1:]
		if w.future.Cancelled() {
			continue
		}
		*w.value = v
		_ = w.future.SetResult(nil)
		return
	}
	heap.Push(&q.items, v)
}

// Get suspends the calling task while the queue is empty, then returns
// the least item by less.
func (q *HeapQueue) Get(y *Yielder) (any, error) {
	q.mu.Lock()
	if q.items.Len() > 0 {
		v := heap.Pop(&q.items)
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

// GetNowait pops the least item without suspending, failing with
// WouldBlockError if empty.
func (q *HeapQueue) GetNowait() (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil, &WouldBlockError{}
	}
	v := heap.Pop(&q.items)
	q.wakePutLocked()
	return v, nil
}

func (q *HeapQueue) wakePutLocked() {
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
func (q *HeapQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
