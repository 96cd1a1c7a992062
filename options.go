// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package henrio

import (
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	readiness        readinessSource
	clock            func() time.Time
	overloadLimiter  *catrate.Limiter
	overloadDisabled bool
	idGenerator      func() string
	metricsSink      MetricsSink
	logger           Logger
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithReadinessSource overrides the platform-default readiness source
// (epoll/kqueue/the Windows polling shim). Mainly useful for tests that
// want a fake demultiplexer.
func WithReadinessSource(src readinessSource) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.readiness = src
		return nil
	}}
}

// WithClock overrides the loop's monotonic clock source. Intended for
// tests that need deterministic timer behavior.
func WithClock(now func() time.Time) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.clock = now
		return nil
	}}
}

// WithOverloadLimiter supplies a rate limiter used to throttle the
// scheduler's "pending-tasks buffer overloaded" warning log line. Pass nil
// to disable the warning entirely.
func WithOverloadLimiter(limiter *catrate.Limiter) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.overloadLimiter = limiter
		opts.overloadDisabled = limiter == nil
		return nil
	}}
}

// WithIDGenerator overrides how Task and Loop IDs are generated. Defaults
// to uuid.New().String().
func WithIDGenerator(gen func() string) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.idGenerator = gen
		return nil
	}}
}

// WithMetricsSink attaches a sink that receives loop latency and queue
// depth samples. See MetricsSink.
func WithMetricsSink(sink MetricsSink) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsSink = sink
		return nil
	}}
}

// WithLogger overrides the loop's structured logger. Defaults to the
// package-level global logger (see logging.go).
func WithLogger(l Logger) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = l
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		clock:       time.Now,
		idGenerator: func() string { return uuid.New().String() },
		logger:      getGlobalLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.overloadLimiter == nil && !cfg.overloadDisabled {
		// one warning per category per second by default
		cfg.overloadLimiter = catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
		})
	}
	return cfg, nil
}
