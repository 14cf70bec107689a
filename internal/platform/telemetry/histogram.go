package telemetry

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// histogram is a thread-safe histogram with fixed bucket boundaries. Bucket
// counts are stored non-cumulative; cumulative counts are computed at export.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
	// Above every boundary: only the +Inf bucket counts it.
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// labeledHistograms holds one histogram per label key.
type labeledHistograms struct {
	mu         sync.RWMutex
	boundaries []float64
	items      map[string]*histogram
}

func newLabeledHistograms(boundaries []float64) *labeledHistograms {
	return &labeledHistograms{boundaries: boundaries, items: make(map[string]*histogram)}
}

func (s *labeledHistograms) get(key string) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.items[key]; !ok {
		h = newHistogram(s.boundaries)
		s.items[key] = h
	}
	return h
}

// sortedKeys returns the label keys in a stable order for export.
func (s *labeledHistograms) sortedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// counters is a set of monotonically increasing values keyed by label key.
type counters struct {
	mu    sync.Mutex
	items map[string]int64
}

func newCounters() *counters {
	return &counters{items: make(map[string]int64)}
}

func (c *counters) inc(key string) {
	c.mu.Lock()
	c.items[key]++
	c.mu.Unlock()
}

func (c *counters) get(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[key]
}

func (c *counters) snapshot() ([]string, map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]int64, len(c.items))
	keys := make([]string, 0, len(c.items))
	for k, v := range c.items {
		cp[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, cp
}
