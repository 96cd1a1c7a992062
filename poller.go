// poller.go - I/O event registration.
//
// # I/O Registration
//
// The event loop monitors file descriptors for readiness using
// platform-native mechanisms:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//   - Windows: a best-effort polling shim
//
// Task bodies never touch the poller directly. A descriptor enters the
// loop by yielding a WrapFile token, which registers it for read and
// write interest and replies with a *WrappedFile; the task then suspends
// on readiness via WrappedFile.Read/Write (or the WaitRead/WaitWrite
// tokens) and performs the actual syscall itself once woken:
//
//	wfAny, err := y.Yield(WrapFile(fd))
//	wf := wfAny.(*WrappedFile)
//	if err := wf.Read(y); err != nil { ... } // suspends until fd is readable
//	n, err := readFD(fd, buf)
//
// # Safety
//
// Always yield UnwrapFile before closing a file descriptor: it cancels
// every waiter still parked on the descriptor and unregisters it from the
// readiness source, preventing stale event delivery due to FD recycling.

package henrio

// Note: the FastPoller backing the readiness source (readiness.go) is
// implemented in platform-specific files:
//   - poller_linux.go (epoll)
//   - poller_darwin.go (kqueue)
//   - poller_windows.go (polling shim)
