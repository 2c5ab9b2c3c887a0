package mcphost

import (
	"slices"
	"sync"
)

// statsWindowSize is the number of recent calls kept per tool for latency
// percentile calculation.
const statsWindowSize = 100

// rollingWindow keeps the last N call latencies for one tool in a ring
// buffer, so [Host.Stats] can report recent percentiles and error rate
// rather than lifetime averages. Safe for concurrent use.
type rollingWindow struct {
	mu      sync.Mutex
	samples []int64 // latency measurements in ms
	pos     int     // next write position
	count   int     // total samples written (may exceed len(samples))
	errors  int     // error count, reset-free approximation over the window
	size    int
}

func newRollingWindow(size int) *rollingWindow {
	if size <= 0 {
		size = statsWindowSize
	}
	return &rollingWindow{
		samples: make([]int64, size),
		size:    size,
	}
}

// Record adds one latency measurement in ms. The oldest measurement is
// overwritten once the buffer is full. Errors are clamped to the window
// capacity since the ring does not remember which slots failed.
func (w *rollingWindow) Record(latencyMs int64, isError bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.pos] = latencyMs
	w.pos = (w.pos + 1) % w.size
	w.count++

	if isError {
		w.errors++
		if w.errors > w.size {
			w.errors = w.size
		}
	}
}

// windowLen returns the number of meaningful samples in the buffer (≤ size).
func (w *rollingWindow) windowLen() int {
	if w.count >= w.size {
		return w.size
	}
	return w.count
}

// sortedCopy returns the current window samples in ascending order.
// Caller must hold w.mu.
func (w *rollingWindow) sortedCopy() []int64 {
	n := w.windowLen()
	if n == 0 {
		return nil
	}
	cp := make([]int64, n)
	if w.count >= w.size {
		// Full ring: oldest element is at pos.
		for i := 0; i < w.size; i++ {
			cp[i] = w.samples[(w.pos+i)%w.size]
		}
	} else {
		copy(cp, w.samples[:n])
	}
	slices.Sort(cp)
	return cp
}

// P50 returns the median latency in ms, or 0 with no measurements.
func (w *rollingWindow) P50() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedCopy()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)/2]
}

// P99 returns the 99th-percentile latency in ms, or 0 with no measurements.
func (w *rollingWindow) P99() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedCopy()
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * 0.99)
	return sorted[idx]
}

// ErrorRate returns the failing fraction of calls in the current window
// (0.0–1.0), or 0 with no measurements.
func (w *rollingWindow) ErrorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.windowLen()
	if n == 0 {
		return 0
	}
	errInWindow := min(w.errors, n)
	return float64(errInWindow) / float64(n)
}

// Count returns the total number of calls recorded, which may exceed the
// window capacity.
func (w *rollingWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
