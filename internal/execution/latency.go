package execution

import (
	"sort"
	"sync"
	"time"
)

// LatencyStats summarizes the rolling latency sample set.
type LatencyStats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
}

// latencyTracker keeps a bounded rolling window of call round-trip times.
type latencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	max     int
}

func newLatencyTracker(max int) *latencyTracker {
	if max <= 0 {
		max = 100
	}
	return &latencyTracker{max: max}
}

func (t *latencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, d)
	if over := len(t.samples) - t.max; over > 0 {
		t.samples = t.samples[over:]
	}
}

func (t *latencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.samples)
	if n == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, n)
	copy(sorted, t.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	idx := (n * 95) / 100
	if idx >= n {
		idx = n - 1
	}
	return LatencyStats{
		Count: n,
		Avg:   sum / time.Duration(n),
		Min:   sorted[0],
		Max:   sorted[n-1],
		P95:   sorted[idx],
	}
}
