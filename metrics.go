package henrio

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for the event loop.
// Metrics are designed to be low-overhead and thread-safe.
// Collection is optional: attach a sink via WithMetricsSink.
//
// Thread Safety:
//   - All Metrics methods are thread-safe and can be called from any goroutine.
//   - LatencyMetrics uses sync.RWMutex (single-writer, multi-reader).
//   - QueueMetrics uses sync.RWMutex (single-writer, multi-reader).
//   - TPSCounter uses atomic operations and mutex for rotation.
//
// Example:
//
//	m := NewMetrics()
//	loop, _ := New(WithMetricsSink(m))
//	_, _ = loop.RunUntil(body)
//	fmt.Printf("TPS: %.2f, P99 Latency: %v\n", m.TPS, m.Latency.P99)
type Metrics struct {
	// Latency metrics (has pointer field - put first for alignment)
	Latency LatencyMetrics

	// Queue depth metrics
	Queue QueueMetrics

	tps *TPSCounter

	mu sync.Mutex

	completed int64

	// Throughput metrics
	TPS float64
}

// NewMetrics returns a Metrics sink with a 10s/100ms rolling TPS window,
// ready to pass to WithMetricsSink.
func NewMetrics() *Metrics {
	return &Metrics{tps: NewTPSCounter(10*time.Second, 100*time.Millisecond)}
}

// MetricsSink is the observation surface the scheduler drives every tick;
// *Metrics is the built-in implementation, but callers may substitute
// their own (e.g. to forward into Prometheus) via WithMetricsSink.
type MetricsSink interface {
	ObserveTick(latency time.Duration)
	ObserveQueueDepth(ready, pending, ioWaiters int)
	IncTasksCompleted()
}

// ObserveTick records one task step's latency.
func (m *Metrics) ObserveTick(latency time.Duration) {
	m.Latency.Record(latency)
}

// ObserveQueueDepth records the scheduler's three staging-area depths.
func (m *Metrics) ObserveQueueDepth(ready, pending, ioWaiters int) {
	m.Queue.UpdateReady(ready)
	m.Queue.UpdatePending(pending)
	m.Queue.UpdateIOWait(ioWaiters)
}

// IncTasksCompleted records one task reaching a terminal state, feeding
// the rolling TPS counter and refreshing the cached TPS/latency snapshot.
func (m *Metrics) IncTasksCompleted() {
	m.mu.Lock()
	m.completed++
	m.mu.Unlock()
	if m.tps != nil {
		m.tps.Increment()
		m.mu.Lock()
		m.TPS = m.tps.TPS()
		m.mu.Unlock()
	}
	m.Latency.Sample()
}

// TasksCompleted returns the running count of tasks that have reached a
// terminal state since this sink was created.
func (m *Metrics) TasksCompleted() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// LatencyMetrics tracks latency distribution with percentiles.
// Uses the P-Square algorithm for O(1) streaming percentile estimation,
// which is more efficient than the previous O(n log n) sorting approach.
type LatencyMetrics struct {
	// Pointer fields first for optimal alignment (betteralign)
	psquare *pSquareMultiQuantile

	// Lock for thread-safe access
	mu sync.RWMutex

	// Ring buffer of raw samples; used for exact percentiles at small
	// sample counts, and for Sum/Mean over the last sampleSize samples.
	sampleIdx   int
	sampleCount int
	samples     [sampleSize]time.Duration

	// Computed percentiles (cached after Sample() call)
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration

	// Statistics
	Mean time.Duration
	Sum  time.Duration
}

// sampleSize is the maximum number of latency samples to retain.
// We keep a rolling buffer of 1000 samples to compute percentiles.
const sampleSize = 1000

// Record records a latency sample.
// This is called internally by the loop after each task step.
// Uses O(1) P-Square algorithm for streaming percentile updates.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Initialize P-Square estimator on first use (lazy initialization)
	if l.psquare == nil {
		// Track P50 (0.5), P90 (0.9), P95 (0.95), P99 (0.99)
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}

	// Update P-Square estimator with the new sample (O(1))
	l.psquare.Update(float64(duration))

	// Also update the raw ring buffer (exact percentiles at small counts,
	// Sum/Mean over the retained window)
	if l.sampleCount >= sampleSize {
		old := l.samples[l.sampleIdx]
		l.Sum -= old
	}

	l.samples[l.sampleIdx] = duration
	l.Sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from collected samples.
// This should be called periodically to update the cached percentile values.
// Returns the number of samples used for computation.
//
// Performance note: For sample counts >= 5, this uses the P-Square algorithm
// which is O(1). For smaller counts, falls back to O(n log n) sorting for
// exact percentile values.
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return 0
	}

	// For small sample counts (< 5), use the exact sorting method; the
	// estimator needs at least 5 observations before it is meaningful.
	if count < 5 || l.psquare == nil {
		// Clone and sort samples for percentile computation
		sorted := make([]time.Duration, count)
		copy(sorted, l.samples[:count])

		// Use standard library sort (O(n log n))
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		// Compute percentiles
		l.P50 = sorted[percentileIndex(count, 50)]
		l.P90 = sorted[percentileIndex(count, 90)]
		l.P95 = sorted[percentileIndex(count, 95)]
		l.P99 = sorted[percentileIndex(count, 99)]
		l.Max = sorted[count-1]
		l.Mean = l.Sum / time.Duration(count)

		return count
	}

	// Use P-Square algorithm for O(1) percentile retrieval
	// Index 0 = P50, Index 1 = P90, Index 2 = P95, Index 3 = P99
	l.P50 = time.Duration(l.psquare.Quantile(0))
	l.P90 = time.Duration(l.psquare.Quantile(1))
	l.P95 = time.Duration(l.psquare.Quantile(2))
	l.P99 = time.Duration(l.psquare.Quantile(3))
	l.Max = time.Duration(l.psquare.Max())

	// Mean comes from the ring buffer's Sum (last sampleSize samples)
	l.Mean = l.Sum / time.Duration(count)

	return count
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// QueueMetrics tracks queue depth statistics for the scheduler's three
// staging areas: the ready queue, the pending-tasks buffer, and I/O
// waiters parked on a descriptor.
type QueueMetrics struct {
	mu sync.RWMutex

	// Current queue depths
	ReadyCurrent   int
	PendingCurrent int
	IOWaitCurrent  int

	// Maximum observed depths
	ReadyMax   int
	PendingMax int
	IOWaitMax  int

	// Average depths (exponential moving average with alpha=0.1)
	// Warmstart: EMA initializes to first observed value for accuracy
	ReadyAvg   float64
	PendingAvg float64
	IOWaitAvg  float64

	readyEMAInitialized   bool
	pendingEMAInitialized bool
	ioWaitEMAInitialized  bool
}

// UpdateReady updates the ready queue depth metrics.
func (q *QueueMetrics) UpdateReady(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ReadyCurrent = depth
	if depth > q.ReadyMax {
		q.ReadyMax = depth
	}
	// Exponential moving average with alpha=0.1
	// Warmstart: initialize to first observed value for accuracy
	if !q.readyEMAInitialized {
		q.ReadyAvg = float64(depth)
		q.readyEMAInitialized = true
	} else {
		q.ReadyAvg = 0.9*q.ReadyAvg + 0.1*float64(depth)
	}
}

// UpdatePending updates the pending-tasks buffer depth metrics.
func (q *QueueMetrics) UpdatePending(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.PendingCurrent = depth
	if depth > q.PendingMax {
		q.PendingMax = depth
	}
	// Exponential moving average with alpha=0.1
	if !q.pendingEMAInitialized {
		q.PendingAvg = float64(depth)
		q.pendingEMAInitialized = true
	} else {
		q.PendingAvg = 0.9*q.PendingAvg + 0.1*float64(depth)
	}
}

// UpdateIOWait updates the I/O wait-slot depth metrics.
func (q *QueueMetrics) UpdateIOWait(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.IOWaitCurrent = depth
	if depth > q.IOWaitMax {
		q.IOWaitMax = depth
	}
	// Exponential moving average with alpha=0.1
	if !q.ioWaitEMAInitialized {
		q.IOWaitAvg = float64(depth)
		q.ioWaitEMAInitialized = true
	} else {
		q.IOWaitAvg = 0.9*q.IOWaitAvg + 0.1*float64(depth)
	}
}

// TPSCounter tracks transactions per second with a rolling window.
//
// Implementation Details:
//   - Rolling window length: configurable via windowSize parameter
//   - Bucket granularity: configurable via bucketSize parameter
//   - Rolling window algorithm: ring buffer with time-based rotation
//
// Configuration Trade-offs:
//
//	Window Size (windowSize):
//	  - Larger windows (e.g., 30 seconds): Smoother TPS, slower to detect changes
//	  - Smaller windows (e.g., 5 seconds): Faster response, more volatile
//	  - Recommended: 10-30 seconds for production monitoring
//
//	Bucket Size (bucketSize):
//	  - Smaller buckets (e.g., 50ms): Finer window rotation, more CPU overhead
//	  - Larger buckets (e.g., 500ms): Coarser window rotation, less CPU overhead
//	  - Recommended: 100ms for good balance in production
//
// Behavior:
//
//	TPS is the count held in the rolling window divided by windowSize, from
//	the first event on; until windowSize has elapsed it therefore reports
//	less than the rate of the events seen so far.
//	After warmup, TPS reflects average transaction rate over the entire window.
//	Precision granularity: (1 / windowSize in seconds), e.g., 10s = 0.1 TPS precision.
//
// Thread Safety: All methods (Increment, TPS) are thread-safe.
// Concurrent calls are safe from multiple goroutines.
type TPSCounter struct {
	lastRotation atomic.Value // Stores time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewTPSCounter creates a new TPS counter with configurable rolling window.
//
// Parameters:
//
//	windowSize - Time window for TPS calculation. Larger windows provide smoother
//	            TPS but slower change detection. Recommended: 10-30 seconds for
//	            production monitoring. Must be > 0.
//	bucketSize - Granularity of rolling window. Smaller buckets rotate the
//	            window more finely but cost more CPU. Recommended: 100ms in
//	            production. Must be > 0 and <= windowSize.
//
// Configuration Examples:
//
//	// Production: Balanced precision and smoothness
//	NewTPSCounter(10*time.Second, 100*time.Millisecond) // 100 buckets, 0.1 TPS precision
//
//	// High-frequency trading: Fast response, more volatile
//	NewTPSCounter(5*time.Second, 50*time.Millisecond) // 100 buckets, 0.2 TPS precision
//
//	// Long-term analysis: Very smooth, slow response
//	NewTPSCounter(60*time.Second, 500*time.Millisecond) // 120 buckets, ~0.017 TPS precision
//
// Returns:
//
//	Ready-to-use TPS counter. TPS counts events from the first Increment.
//
// Note: During the first 'windowSize' period, TPS divides the events seen
//
//	so far by the full windowSize.
func NewTPSCounter(windowSize, bucketSize time.Duration) *TPSCounter {
	// Input validation: Prevent zero or negative durations
	if windowSize <= 0 {
		panic("henrio: windowSize must be positive (use > 0 duration)")
	}
	if bucketSize <= 0 {
		panic("henrio: bucketSize must be positive (use > 0 duration)")
	}
	if bucketSize > windowSize {
		panic("henrio: bucketSize cannot exceed windowSize (use <= windowSize)")
	}

	// bucketCount is guaranteed to be >= 1 after the above validation
	bucketCount := int(windowSize / bucketSize)
	counter := &TPSCounter{
		buckets:    make([]int64, bucketCount),
		bucketSize: bucketSize,
		windowSize: windowSize,
	}
	counter.lastRotation.Store(time.Now())
	return counter
}

// Increment records a task execution.
// Thread-safe and O(1).
func (t *TPSCounter) Increment() {
	t.rotate()
	t.mu.Lock()
	t.buckets[len(t.buckets)-1]++
	t.mu.Unlock()
}

// rotate advances the bucket counter if time has passed.
func (t *TPSCounter) rotate() {
	t.mu.Lock() // critical fix: lock first to prevent race
	defer t.mu.Unlock()

	now := time.Now()
	lastRotation := t.lastRotation.Load().(time.Time)
	elapsed := now.Sub(lastRotation)

	// Overflow protection: calculate as int64, clamp to safe range, then cast to int
	// This prevents 32-bit overflow on extreme time jumps (system suspend, NTP changes)
	bucketsToAdvanceInt64 := int64(elapsed) / int64(t.bucketSize)

	// Clamp to window size to handle extreme negative/positive elapsed values
	if bucketsToAdvanceInt64 < 0 {
		// Clock jumped backwards - trigger full reset to recover
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	} else if bucketsToAdvanceInt64 > int64(len(t.buckets)) {
		// Elapsed time exceeded window - clamp to full window reset
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	}

	// NOW safe to cast to int (value guaranteed to be within [0, len(buckets)])
	bucketsToAdvance := int(bucketsToAdvanceInt64)

	// Full window reset: if we've exceeded window duration, reset all buckets
	// and sync lastRotation to current time to prevent permanent lag
	if bucketsToAdvance >= len(t.buckets) {
		for i := range t.buckets {
			t.buckets[i] = 0
		}
		t.lastRotation.Store(now)
		return
	}

	if bucketsToAdvance <= 0 {
		return
	}

	// Shift buckets left
	// Use copy for efficiency: bucket[0] gets bucket[advance], etc.
	copy(t.buckets, t.buckets[bucketsToAdvance:])

	// Zero out the new buckets at the end
	for i := len(t.buckets) - bucketsToAdvance; i < len(t.buckets); i++ {
		t.buckets[i] = 0
	}

	// Update last rotation aligned to bucket size
	t.lastRotation.Store(lastRotation.Add(time.Duration(bucketsToAdvance) * t.bucketSize))
}

// TPS returns the current transactions per second.
func (t *TPSCounter) TPS() float64 {
	t.rotate()

	t.mu.Lock()
	defer t.mu.Unlock()

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}

	if sum == 0 {
		return 0
	}

	// TPS = total count / monitored duration (len(buckets) * bucketSize)
	// This uses the actual monitored duration, not the configured windowSize.
	monitoredDuration := float64(len(t.buckets)) * t.bucketSize.Seconds()
	return float64(sum) / monitoredDuration
}
