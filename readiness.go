package henrio

import "time"

// Interest is the set of events a descriptor is registered for.
type Interest = IOEvents

const (
	InterestRead      = EventRead
	InterestWrite     = EventWrite
	InterestReadWrite = EventRead | EventWrite
)

// ReadyEvent is one (handle, events) pair returned by a readiness source's
// Select.
type ReadyEvent struct {
	Handle Handle
	Events IOEvents
}

// readinessSource abstracts the platform demultiplexer: register/modify/
// unregister a descriptor for read/write interest, and block up to a
// bounded time returning descriptors currently ready. The loop owns
// exactly one readinessSource for its lifetime.
type readinessSource interface {
	Register(h Handle, interest Interest) error
	Modify(h Handle, interest Interest) error
	Unregister(h Handle) error
	// Select blocks for up to timeout (negative means unbounded) and
	// returns every descriptor that became ready. A zero timeout polls
	// without blocking.
	Select(timeout time.Duration) ([]ReadyEvent, error)
	Close() error
}

// fastPollerSource adapts the platform FastPoller (epoll/kqueue/IOCP) to
// the readinessSource contract by collecting events into a slice instead
// of dispatching per-fd callbacks inline — the scheduler's I/O poll phase
// (loop.go) needs a batch of ready descriptors, not callback fan-out.
type fastPollerSource struct {
	poller *FastPoller
	ready  []ReadyEvent
}

func newFastPollerSource() (*fastPollerSource, error) {
	s := &fastPollerSource{poller: &FastPoller{}}
	if err := s.poller.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fastPollerSource) Register(h Handle, interest Interest) error {
	return s.poller.RegisterFD(h, interest, func(events IOEvents) {
		s.ready = append(s.ready, ReadyEvent{Handle: h, Events: events})
	})
}

func (s *fastPollerSource) Modify(h Handle, interest Interest) error {
	return s.poller.ModifyFD(h, interest)
}

func (s *fastPollerSource) Unregister(h Handle) error {
	return s.poller.UnregisterFD(h)
}

func (s *fastPollerSource) Select(timeout time.Duration) ([]ReadyEvent, error) {
	s.ready = s.ready[:0]
	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}
	if _, err := s.poller.PollIO(timeoutMs); err != nil {
		return nil, err
	}
	return s.ready, nil
}

func (s *fastPollerSource) Close() error {
	return s.poller.Close()
}
