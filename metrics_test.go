package henrio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveTickFeedsLatency(t *testing.T) {
	m := NewMetrics()

	for i := 1; i <= 10; i++ {
		m.ObserveTick(time.Duration(i) * time.Millisecond)
	}
	m.Latency.Sample()

	require.Equal(t, 10*time.Millisecond, m.Latency.Max)
	require.Greater(t, m.Latency.Mean, time.Duration(0))
	require.GreaterOrEqual(t, m.Latency.P99, m.Latency.P50)
}

func TestMetrics_SmallSampleCountUsesExactPercentiles(t *testing.T) {
	var l LatencyMetrics
	l.Record(30 * time.Millisecond)
	l.Record(10 * time.Millisecond)
	l.Record(20 * time.Millisecond)

	count := l.Sample()
	require.Equal(t, 3, count)
	require.Equal(t, 30*time.Millisecond, l.Max)
	require.Equal(t, 20*time.Millisecond, l.Mean)
}

func TestMetrics_QueueDepthTracksMaxAndEMA(t *testing.T) {
	m := NewMetrics()

	m.ObserveQueueDepth(5, 2, 1)
	m.ObserveQueueDepth(3, 8, 0)

	require.Equal(t, 3, m.Queue.ReadyCurrent)
	require.Equal(t, 5, m.Queue.ReadyMax)
	require.Equal(t, 8, m.Queue.PendingMax)
	require.Equal(t, 1, m.Queue.IOWaitMax)
	// EMA warmstarts to the first value then moves toward subsequent ones.
	require.InDelta(t, 5.0*0.9+3.0*0.1, m.Queue.ReadyAvg, 0.001)
}

func TestMetrics_IncTasksCompletedCounts(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 7; i++ {
		m.IncTasksCompleted()
	}
	require.EqualValues(t, 7, m.TasksCompleted())
}

func TestTPSCounter_CountsWithinWindow(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 50; i++ {
		c.Increment()
	}
	// 50 events over a 1s monitored window.
	require.InDelta(t, 50.0, c.TPS(), 1.0)
}

func TestTPSCounter_RejectsInvalidConfiguration(t *testing.T) {
	require.Panics(t, func() { NewTPSCounter(0, time.Millisecond) })
	require.Panics(t, func() { NewTPSCounter(time.Second, 0) })
	require.Panics(t, func() { NewTPSCounter(time.Millisecond, time.Second) })
}

func TestPSquare_ConvergesOnUniformStream(t *testing.T) {
	est := newPSquareMultiQuantile(0.5, 0.9)
	for i := 1; i <= 1000; i++ {
		est.Update(float64(i))
	}

	require.Equal(t, 1000, est.Count())
	require.InDelta(t, 500, est.Quantile(0), 100) // P50 of 1..1000
	require.InDelta(t, 900, est.Quantile(1), 100) // P90 of 1..1000
	require.InDelta(t, 1000, est.Max(), 0.001)
	require.InDelta(t, 500.5, est.Mean(), 1)
}

func TestLoop_DrivesMetricsSink(t *testing.T) {
	m := NewMetrics()
	loop, err := New(WithMetricsSink(m))
	require.NoError(t, err)
	defer loop.Close()

	_, err = loop.RunUntil(func(y *Yielder) (any, error) {
		child := loop.Spawn(func(y *Yielder) (any, error) {
			y.Yield(YieldNone{})
			return nil, nil
		})
		return child.Await(y)
	})
	require.NoError(t, err)

	// Both the root task and the child completed through the scheduler.
	require.GreaterOrEqual(t, m.TasksCompleted(), int64(2))
}
