package henrio

import (
	"context"
	"errors"
)

// Run creates a Loop, runs awaitable to completion on it, and returns its
// result, releasing the loop's readiness source before returning. It is
// the one-shot entry point for callers that do not need to hold a Loop of
// their own.
//
// Cancelling ctx cancels the root task at its next suspension point; Run
// then reports ctx.Err() rather than the raw cancellation, matching the
// usual context contract. There is no implicit per-goroutine default loop:
// every Run call owns a fresh one.
func Run(ctx context.Context, awaitable Awaitable) (any, error) {
	loop, err := New()
	if err != nil {
		return nil, err
	}
	defer loop.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !loop.runningDepth.CompareAndSwap(0, 1) {
		return nil, &LoopAlreadyRunningError{}
	}
	defer loop.runningDepth.Store(0)
	loop.state.TryTransition(StateAwake, StateRunning)
	defer loop.state.TryTransition(StateRunning, StateAwake)

	// The root task exists before the first tick, so the watcher's
	// cancellation closure can capture it directly; the closure itself
	// runs on the loop goroutine via Submit's merge path.
	root := loop.newTask(awaitable)

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = loop.Submit(func(y *Yielder) (any, error) {
				if !root.Future.Done() {
					root.Cancel()
				}
				return nil, nil
			})
		case <-watcherDone:
		}
	}()

	result, err := loop.drive(root)
	if err != nil && ctx.Err() != nil && errors.Is(err, ErrCancelled) {
		return nil, ctx.Err()
	}
	return result, err
}

// RunForever creates a Loop, spawns each awaitable on it, and ticks until
// the loop is idle, releasing the loop before returning. The package-level
// counterpart of Loop.RunForever for callers that do not need to keep the
// loop around.
func RunForever(awaitables ...Awaitable) error {
	loop, err := New()
	if err != nil {
		return err
	}
	defer loop.Close()
	return loop.RunForever(awaitables...)
}
