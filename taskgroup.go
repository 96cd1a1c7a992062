package henrio

import "sync"

// TaskGroup collects tasks spawned within a scope: Join awaits all of
// them, and on a child's failure CancelRest can be used to tear down the
// remaining siblings.
type TaskGroup struct {
	loop *Loop

	mu       sync.Mutex
	children []*Task
}

// NewTaskGroup returns an empty TaskGroup bound to loop.
func NewTaskGroup(loop *Loop) *TaskGroup {
	return &TaskGroup{loop: loop}
}

// Spawn starts a as a child task tracked by the group.
func (g *TaskGroup) Spawn(a Awaitable) *Task {
	t := g.loop.Spawn(a)
	g.mu.Lock()
	g.children = append(g.children, t)
	g.mu.Unlock()
	return t
}

// Join awaits every child spawned so far, in spawn order. A single failed
// child's error is returned verbatim; when several children fail, their
// errors are collected into an *AggregateError so no sibling's failure is
// silently discarded (errors.Is/errors.As walk into every contained
// error).
func (g *TaskGroup) Join(y *Yielder) error {
	g.mu.Lock()
	children := append([]*Task(nil), g.children...)
	g.mu.Unlock()

	var errs []error
	for _, t := range children {
		if _, err := t.Await(y); err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &AggregateError{Errors: errs, Message: "henrio: multiple tasks failed"}
}

// CancelRest requests cancellation of every child task that has not yet
// completed. Typically called after Join reports an error, to tear down
// siblings still in flight.
func (g *TaskGroup) CancelRest() {
	g.mu.Lock()
	children := append([]*Task(nil), g.children...)
	g.mu.Unlock()

	for _, t := range children {
		if !t.Future.Done() {
			t.Cancel()
		}
	}
}

// Await makes TaskGroup itself an Awaitable equivalent to Join.
func (g *TaskGroup) Await(y *Yielder) (any, error) {
	return nil, g.Join(y)
}
