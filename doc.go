// Package henrio provides a single-threaded cooperative concurrency
// runtime: an event loop that multiplexes many stackless tasks over one
// goroutine, driven by a timer heap and readiness notifications from a
// non-blocking I/O demultiplexer.
//
// # Architecture
//
// The runtime is built around a [Loop] core that drains a ready queue,
// services timers, polls for I/O readiness, and interprets the [Yield]
// tokens suspended tasks hand back. A task body is an [Awaitable] function
// receiving a [Yielder]; it suspends by yielding a token ([Sleep],
// [CurrentTask], [WaitRead], ...) and is resumed with the scheduler's
// reply. [Future] is the single-assignment result cell everything else is
// built on; [Task] binds a body to a Future.
//
// Synchronization primitives ([Lock], [Semaphore], [Queue], [HeapQueue],
// [Event], [Conditional], [TimeoutScope], [TaskGroup]) are implemented
// entirely on top of Future, Spawn, and Sleep.
//
// # Platform Support
//
// I/O readiness is implemented using platform-native mechanisms:
//   - Linux: epoll
//   - macOS: kqueue
//   - Windows: a best-effort polling shim
//
// # Execution Model
//
// Scheduling is cooperative and single-threaded: exactly one task runs at
// a time, and a task only yields control at an explicit suspension point.
// Tasks spawned during a tick land in a pending buffer and run no earlier
// than the next tick, so a task cannot starve its siblings by
// rescheduling itself. [Loop.Submit] and [Loop.Close] are the only
// methods safe to call from a foreign goroutine.
//
// # Entry Points
//
//	result, err := henrio.Run(ctx, body)   // one-shot: fresh loop, run to completion
//	loop, _ := henrio.New()                // long-lived loop
//	task := loop.Spawn(body)
//	result, err := loop.RunUntil(body)
package henrio
