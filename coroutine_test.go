package henrio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoroutine_FirstStepRunsBodyToFirstYield(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		reply, err := y.Yield(YieldNone{})
		if err != nil {
			return nil, err
		}
		return reply, nil
	})

	out := c.Step(nil) // first reply is ignored; body runs to its Yield
	require.True(t, out.HasYield)
	require.IsType(t, YieldNone{}, out.Yielded)

	out = c.Step("reply")
	require.True(t, out.Completed)
	require.Equal(t, "reply", out.Value)
	require.True(t, c.Done())
}

func TestCoroutine_BodyThatNeverYieldsCompletesOnFirstStep(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		return 7, nil
	})
	out := c.Step(nil)
	require.True(t, out.Completed)
	require.Equal(t, 7, out.Value)
}

func TestCoroutine_ThrowBeforeFirstStepSkipsBody(t *testing.T) {
	var ran bool
	c := NewCoroutine(func(y *Yielder) (any, error) {
		ran = true
		return nil, nil
	})

	boom := errors.New("boom")
	out := c.Throw(boom)
	require.True(t, out.Failed)
	require.ErrorIs(t, out.Err, boom)
	require.False(t, ran)
}

func TestCoroutine_ThrowDeliveredAsYieldError(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		_, err := y.Yield(YieldNone{})
		return nil, err
	})

	out := c.Step(nil)
	require.True(t, out.HasYield)

	boom := errors.New("injected")
	out = c.Throw(boom)
	require.True(t, out.Failed)
	require.ErrorIs(t, out.Err, boom)
}

func TestCoroutine_ThrowCanBeSwallowed(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		if _, err := y.Yield(YieldNone{}); err != nil {
			return "recovered", nil
		}
		return "no error seen", nil
	})

	c.Step(nil)
	out := c.Throw(errors.New("injected"))
	require.True(t, out.Completed)
	require.Equal(t, "recovered", out.Value)
}

func TestCoroutine_PanicInBodyBecomesFailure(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		panic("kaboom")
	})

	out := c.Step(nil)
	require.True(t, out.Failed)

	var pe *taskPanicError
	require.ErrorAs(t, out.Err, &pe)
	require.Equal(t, "kaboom", pe.value)
}

func TestCoroutine_CloseInjectsCancellation(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		_, err := y.Yield(YieldNone{})
		return nil, err
	})
	c.Step(nil)
	c.Close()
	require.True(t, c.Done())
}

func TestCoroutine_CloseOnCompletedIsNoop(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		return nil, nil
	})
	c.Step(nil)
	require.True(t, c.Done())
	c.Close() // must not panic or deadlock
}

func TestCoroutine_StepAfterCompletionPanics(t *testing.T) {
	c := NewCoroutine(func(y *Yielder) (any, error) {
		return nil, nil
	})
	c.Step(nil)
	require.Panics(t, func() { c.Step(nil) })
}
