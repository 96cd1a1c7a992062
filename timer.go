package henrio

import "container/heap"

// timerEntry is a (task, deadline) pair ordered by deadline; ties break by
// insertion order (via seq) for stability. index is maintained by
// container/heap for O(log n) removal of a tombstoned entry without a
// full scan.
type timerEntry struct {
	task     *Task
	deadline int64 // UnixNano
	seq      uint64
	index    int
}

// timerHeap is a standard binary min-heap. An entry removed through cancel
// (a cancelled sleeper) is evicted eagerly; any other entry whose task has
// already completed or been cancelled is dropped lazily, the next time it
// would be inspected. The heap's top is therefore always either live or
// about to be discarded on the next Peek/Pop.
type timerHeap struct {
	entries []*timerEntry
	nextSeq uint64
}

func newTimerHeap() *timerHeap {
	return &timerHeap{}
}

func (h *timerHeap) Len() int { return len(h.entries) }

func (h *timerHeap) Less(i, j int) bool {
	if h.entries[i].deadline != h.entries[j].deadline {
		return h.entries[i].deadline < h.entries[j].deadline
	}
	return h.entries[i].seq < h.entries[j].seq
}

func (h *timerHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *timerHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// schedule pushes task onto the heap with an absolute deadline.
func (h *timerHeap) schedule(task *Task, deadlineNano int64) *timerEntry {
	e := &timerEntry{task: task, deadline: deadlineNano, seq: h.nextSeq}
	h.nextSeq++
	heap.Push(h, e)
	return e
}

// cancel removes an entry from the heap in O(log n), used when a sleeping
// task is cancelled before its deadline (the cancellation still takes
// effect lazily via the task's own cancelled flag, but removing the entry
// eagerly keeps the heap small under heavy timer churn).
func (h *timerHeap) cancel(e *timerEntry) {
	if e.index < 0 || e.index >= len(h.entries) || h.entries[e.index] != e {
		return
	}
	heap.Remove(h, e.index)
}

// popExpired evicts dead (cancelled/complete) entries lazily and pops
// every entry whose deadline has passed, returning their tasks in
// deadline order.
func (h *timerHeap) popExpired(nowNano int64) []*Task {
	var ready []*Task
	for h.Len() > 0 {
		top := h.entries[0]
		if top.task.Cancelled() || top.task.Future.Done() {
			heap.Pop(h)
			continue
		}
		if top.deadline > nowNano {
			break
		}
		heap.Pop(h)
		ready = append(ready, top.task)
	}
	return ready
}

// peekDeadline returns the nearest live deadline, skipping tombstoned
// entries, and whether any live entry exists at all.
func (h *timerHeap) peekDeadline() (int64, bool) {
	for h.Len() > 0 {
		top := h.entries[0]
		if top.task.Cancelled() || top.task.Future.Done() {
			heap.Pop(h)
			continue
		}
		return top.deadline, true
	}
	return 0, false
}
