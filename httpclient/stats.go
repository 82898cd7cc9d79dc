package httpclient

import (
	"maps"
	"sync"
	"sync/atomic"
)

// CallStats accumulates call counters for one client. It is safe for concurrent use
// and is never reset; share one instance between clients to aggregate them.
type CallStats struct {
	calls    atomic.Int64
	attempts atomic.Int64

	mu         sync.Mutex
	rateLimits map[int]int64
}

// StatsSnapshot is a point-in-time copy of CallStats.
type StatsSnapshot struct {
	Calls    int64
	Attempts int64
	// RateLimitErrors counts 429 responses keyed by attempt ordinal.
	RateLimitErrors map[int]int64
}

// NewCallStats creates an empty accumulator.
func NewCallStats() *CallStats {
	return &CallStats{rateLimits: make(map[int]int64)}
}

func (s *CallStats) addCall() {
	s.calls.Add(1)
}

func (s *CallStats) addAttempt() {
	s.attempts.Add(1)
}

func (s *CallStats) addRateLimit(ordinal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateLimits == nil {
		s.rateLimits = make(map[int]int64)
	}
	s.rateLimits[ordinal]++
}

// Snapshot returns the current counter values. Calls is loaded before Attempts, so
// Attempts >= Calls holds in every snapshot.
func (s *CallStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	limits := maps.Clone(s.rateLimits)
	s.mu.Unlock()
	if limits == nil {
		limits = make(map[int]int64)
	}
	return StatsSnapshot{
		Calls:           s.calls.Load(),
		Attempts:        s.attempts.Load(),
		RateLimitErrors: limits,
	}
}

// TotalRateLimitErrors sums the 429 responses over every ordinal.
func (s StatsSnapshot) TotalRateLimitErrors() int64 {
	var total int64
	for _, n := range s.RateLimitErrors {
		total += n
	}
	return total
}
