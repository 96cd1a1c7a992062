package henrio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLock_MutualExclusionAndFairness(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	lock := NewLock()
	var order []int

	result, err := loop.RunUntil(func(y *Yielder) (any, error) {
		for i := 0; i < 3; i++ {
			i := i
			loop.Spawn(func(y *Yielder) (any, error) {
				holder, err := lock.Acquire(y)
				if err != nil {
					return nil, err
				}
				order = append(order, i)
				return nil, lock.Release(holder)
			})
		}
		// Drain via sleep(0) a few times to let all three acquire/release in turn.
		for i := 0; i < 10; i++ {
			y.Yield(YieldNone{})
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestLock_ReleaseByNonHolderFails(t *testing.T) {
	lock := NewLock()
	other := &Task{Future: NewFuture()}
	require.ErrorIs(t, lock.Release(other), ErrNotHolder)
}

func TestSemaphore_LimitsConcurrentHolders(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	sem := NewSemaphore(2)
	var active, maxActive int

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		g := NewTaskGroup(loop)
		for i := 0; i < 5; i++ {
			g.Spawn(func(y *Yielder) (any, error) {
				holder, err := sem.Acquire(y)
				if err != nil {
					return nil, err
				}
				active++
				if active > maxActive {
					maxActive = active
				}
				y.Yield(YieldNone{})
				active--
				return nil, sem.Release(holder)
			})
		}
		return nil, g.Join(y)
	})
	require.NoError(t, err)
	require.LessOrEqual(t, maxActive, 2)
	require.Equal(t, 2, sem.Available())
}

func TestQueue_ProducerConsumerOrdering(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	q := NewQueue(1)
	var consumed []int

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		loop.Spawn(func(y *Yielder) (any, error) {
			for i := 0; i < 3; i++ {
				if err := q.Put(y, i); err != nil {
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
				consumed = append(consumed, v.(int))
			}
			return nil, nil
		})
		return consumer.Await(y)
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, consumed)
}

func TestQueue_NowaitWouldBlock(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.PutNowait("x"))
	require.ErrorIs(t, q.PutNowait("y"), ErrWouldBlock)

	v, err := q.GetNowait()
	require.NoError(t, err)
	require.Equal(t, "x", v)

	_, err = q.GetNowait()
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestHeapQueue_OrdersByLess(t *testing.T) {
	q := NewHeapQueue(0, func(a, b any) bool { return a.(int) < b.(int) })
	require.NoError(t, q.PutNowait(5))
	require.NoError(t, q.PutNowait(1))
	require.NoError(t, q.PutNowait(3))

	var got []int
	for q.Len() > 0 {
		v, err := q.GetNowait()
		require.NoError(t, err)
		got = append(got, v.(int))
	}
	require.Equal(t, []int{1, 3, 5}, got)
}

func TestHeapQueue_SetLIFOAlwaysErrors(t *testing.T) {
	q := NewHeapQueue(0, func(a, b any) bool { return true })
	require.Error(t, q.SetLIFO(true))
}

func TestEvent_SetWakesAllWaiters(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	ev := NewEvent()
	woken := 0

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		for i := 0; i < 3; i++ {
			loop.Spawn(func(y *Yielder) (any, error) {
				if err := ev.Wait(y); err != nil {
					return nil, err
				}
				woken++
				return nil, nil
			})
		}
		y.Yield(YieldNone{})
		ev.Set()
		for i := 0; i < 5; i++ {
			y.Yield(YieldNone{})
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, woken)
}

func TestConditional_WaitsForPredicate(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	counter := 0
	cond := NewConditional(func() bool { return counter >= 3 })

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		loop.Spawn(func(y *Yielder) (any, error) {
			for i := 0; i < 3; i++ {
				y.Yield(YieldNone{})
				counter++
			}
			return nil, nil
		})
		return nil, cond.Wait(y)
	})
	require.NoError(t, err)
	require.Equal(t, 3, counter)
}

func TestTimeoutScope_FiresOnSlowOperation(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		scope, err := Enter(y, 10*time.Millisecond)
		if err != nil {
			return nil, err
		}
		var bodyErr error
		func() {
			defer func() { bodyErr = scope.Exit(bodyErr) }()
			_, bodyErr = y.Yield(Sleep(time.Hour)) // never wakes on its own; must be cancelled
		}()
		return nil, bodyErr
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestTimeoutScope_SuppressedOnCleanExit(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	result, err := loop.RunUntil(func(y *Yielder) (any, error) {
		scope, err := Enter(y, time.Hour)
		if err != nil {
			return nil, err
		}
		var bodyErr error
		var val any
		func() {
			defer func() { bodyErr = scope.Exit(bodyErr) }()
			val = "done"
		}()
		return val, bodyErr
	})
	require.NoError(t, err)
	require.Equal(t, "done", result)
}

func TestTaskGroup_JoinPropagatesSingleErrorVerbatim(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	boom := WrapError("henrio: child failed", ErrCancelled)

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		g := NewTaskGroup(loop)
		g.Spawn(func(y *Yielder) (any, error) { return nil, nil })
		g.Spawn(func(y *Yielder) (any, error) { return nil, boom })
		return nil, g.Join(y)
	})
	require.ErrorIs(t, err, ErrCancelled)
}

func TestTaskGroup_JoinAggregatesMultipleErrors(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	first := WrapError("henrio: first child failed", ErrNotReady)
	second := WrapError("henrio: second child failed", ErrWouldBlock)

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		g := NewTaskGroup(loop)
		g.Spawn(func(y *Yielder) (any, error) { return nil, first })
		g.Spawn(func(y *Yielder) (any, error) { return nil, nil })
		g.Spawn(func(y *Yielder) (any, error) { return nil, second })
		return nil, g.Join(y)
	})

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 2)
	require.ErrorIs(t, err, ErrNotReady)
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestLock_ReleaseSkipsCancelledWaiter(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	lock := NewLock()
	var secondHeld bool

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		holder, err := lock.Acquire(y) // root takes the lock first
		if err != nil {
			return nil, err
		}

		abandoned := loop.Spawn(func(y *Yielder) (any, error) {
			_, err := lock.Acquire(y) // parks behind root, then gets cancelled
			return nil, err
		})
		second := loop.Spawn(func(y *Yielder) (any, error) {
			h, err := lock.Acquire(y)
			if err != nil {
				return nil, err
			}
			secondHeld = true
			return nil, lock.Release(h)
		})

		y.Yield(YieldNone{}) // let both spawned tasks reach Acquire's park point
		y.Yield(YieldNone{})
		abandoned.Cancel()
		for !abandoned.Future.Done() {
			y.Yield(YieldNone{})
		}

		if err := lock.Release(holder); err != nil {
			return nil, err
		}
		for !second.Future.Done() {
			y.Yield(YieldNone{})
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, secondHeld)
}
