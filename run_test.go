package henrio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_ReturnsRootValue(t *testing.T) {
	result, err := Run(context.Background(), func(y *Yielder) (any, error) {
		if _, err := y.Yield(Sleep(time.Millisecond)); err != nil {
			return nil, err
		}
		return "hello", nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello", result)
}

func TestRun_AlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	_, err := Run(ctx, func(y *Yielder) (any, error) {
		ran = true
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ran)
}

func TestRun_ContextCancelsSleepingRoot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, func(y *Yielder) (any, error) {
		_, err := y.Yield(Sleep(time.Hour))
		return nil, err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Minute)
}

func TestRun_ContextCancelsBusyYieldingRoot(t *testing.T) {
	// A root that never sleeps keeps the ready queue hot from its very
	// first tick; the cancellation must still land, however early the
	// context fires relative to the loop starting.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, func(y *Yielder) (any, error) {
		for {
			if _, err := y.Yield(YieldNone{}); err != nil {
				return nil, err
			}
		}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunForever_PackageLevelDrainsAll(t *testing.T) {
	var count int
	err := RunForever(
		func(y *Yielder) (any, error) { count++; return nil, nil },
		func(y *Yielder) (any, error) { count++; return nil, nil },
	)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
