package ner

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
	words      int
	truncated  bool
	failed     bool
}

// StatsSnapshot aggregates recognition calls inside the rolling window.
type StatsSnapshot struct {
	Count     int     `json:"count"`
	Failures  int     `json:"failures"`
	Truncated int     `json:"truncated"`
	AvgWords  float64 `json:"avg_words"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// InferenceStats tracks recent recognition latencies within a rolling window.
type InferenceStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewInferenceStats(maxAge time.Duration) *InferenceStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &InferenceStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds a successful call.
func (s *InferenceStats) Record(d time.Duration, words int, truncated bool) {
	s.add(sample{durationMs: max(d.Milliseconds(), 0), words: words, truncated: truncated})
}

// RecordFailure adds a call that ended in an inference error.
func (s *InferenceStats) RecordFailure(d time.Duration) {
	s.add(sample{durationMs: max(d.Milliseconds(), 0), failed: true})
}

func (s *InferenceStats) add(sm sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm.at = s.now()
	s.pruneLocked(sm.at)
	s.samples = append(s.samples, sm)
}

// Snapshot summarizes the window. Latency figures cover successful calls.
func (s *InferenceStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	var snap StatsSnapshot
	values := make([]int64, 0, len(s.samples))
	var sum int64
	var words int
	for _, sm := range s.samples {
		snap.Count++
		if sm.failed {
			snap.Failures++
			continue
		}
		if sm.truncated {
			snap.Truncated++
		}
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		words += sm.words
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	n := float64(len(values))
	snap.AvgWords = float64(words) / n
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / n
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *InferenceStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	kept := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	s.samples = kept
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
