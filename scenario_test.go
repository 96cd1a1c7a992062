package henrio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// End-to-end scheduler behavior driven through the public surface only:
// real clock, real readiness source, generous upper bounds so slow CI
// machines don't flake.

func TestScenario_SleepOrdering(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var order []string
	record := func(name string, d time.Duration) Awaitable {
		return func(y *Yielder) (any, error) {
			if _, err := y.Yield(Sleep(d)); err != nil {
				return nil, err
			}
			order = append(order, name)
			return nil, nil
		}
	}

	err = loop.RunForever(
		record("A", 40*time.Millisecond),
		record("B", 10*time.Millisecond),
		record("C", 20*time.Millisecond),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "A"}, order)
}

func TestScenario_TimeoutFires(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	start := time.Now()
	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		scope, err := Enter(y, 30*time.Millisecond)
		if err != nil {
			return nil, err
		}
		var bodyErr error
		func() {
			defer func() { bodyErr = scope.Exit(bodyErr) }()
			_, bodyErr = y.Yield(Sleep(10 * time.Second))
		}()
		return nil, bodyErr
	})
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	require.Less(t, elapsed, 5*time.Second)
}

func TestScenario_TimeoutDoesNotFireOnFastOperation(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	start := time.Now()
	result, err := loop.RunUntil(func(y *Yielder) (any, error) {
		scope, err := Enter(y, time.Hour)
		if err != nil {
			return nil, err
		}
		var bodyErr error
		var val any
		func() {
			defer func() { bodyErr = scope.Exit(bodyErr) }()
			if _, bodyErr = y.Yield(Sleep(10 * time.Millisecond)); bodyErr != nil {
				return
			}
			val = 42
		}()
		return val, bodyErr
	})

	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestScenario_ProducerConsumerThroughBoundedQueue(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	q := NewQueue(1)
	var received []int

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		loop.Spawn(func(y *Yielder) (any, error) {
			for i := 1; i <= 3; i++ {
				if err := q.Put(y, i); err != nil {
					return nil, err
				}
				if _, err := y.Yield(Sleep(5 * time.Millisecond)); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		consumer := loop.Spawn(func(y *Yielder) (any, error) {
			for i := 0; i < 3; i++ {
				v, err := q.Get(y)
				if err != nil {
					return nil, err
				}
				received = append(received, v.(int))
			}
			return nil, nil
		})
		return consumer.Await(y)
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, received)
}

func TestScenario_LockAcquisitionFollowsSpawnOrder(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	lock := NewLock()
	var order []int

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		g := NewTaskGroup(loop)
		for i := 0; i < 3; i++ {
			i := i
			g.Spawn(func(y *Yielder) (any, error) {
				holder, err := lock.Acquire(y)
				if err != nil {
					return nil, err
				}
				order = append(order, i)
				if _, err := y.Yield(Sleep(5 * time.Millisecond)); err != nil {
					return nil, err
				}
				return nil, lock.Release(holder)
			})
		}
		return nil, g.Join(y)
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestScenario_QueueLIFOOrder(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	q := NewLIFOQueue(0)
	var received []int

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		for i := 1; i <= 3; i++ {
			if err := q.Put(y, i); err != nil {
				return nil, err
			}
		}
		for i := 0; i < 3; i++ {
			v, err := q.Get(y)
			if err != nil {
				return nil, err
			}
			received = append(received, v.(int))
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 1}, received)
}
