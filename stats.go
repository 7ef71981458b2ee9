package semcache

import (
	"sync/atomic"
	"time"
)

// Stats tracks per-namespace cache counters. All counters are monotonically
// non-decreasing until an explicit reset via Clear.
type Stats struct {
	totalQueries    atomic.Int64
	hits            atomic.Int64
	misses          atomic.Int64
	falseCandidates atomic.Int64
	erroredMisses   atomic.Int64
	timeSavedMicros atomic.Int64
}

func (s *Stats) recordQuery() {
	s.totalQueries.Add(1)
}

func (s *Stats) recordHit(saved time.Duration) {
	s.hits.Add(1)
	if saved > 0 {
		s.timeSavedMicros.Add(saved.Microseconds())
	}
}

func (s *Stats) recordMiss() {
	s.misses.Add(1)
}

func (s *Stats) recordFalseCandidates(n int) {
	if n > 0 {
		s.falseCandidates.Add(int64(n))
	}
}

func (s *Stats) recordErroredMiss() {
	s.misses.Add(1)
	s.erroredMisses.Add(1)
}

func (s *Stats) reset() {
	s.totalQueries.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.falseCandidates.Store(0)
	s.erroredMisses.Store(0)
	s.timeSavedMicros.Store(0)
}

func (s *Stats) snapshot(namespace string) Snapshot {
	hits := s.hits.Load()
	total := s.totalQueries.Load()

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Snapshot{
		Namespace:          namespace,
		TotalQueries:       total,
		Hits:               hits,
		Misses:             s.misses.Load(),
		FalseCandidates:    s.falseCandidates.Load(),
		ErroredMisses:      s.erroredMisses.Load(),
		HitRatePercent:     hitRate,
		EstimatedTimeSaved: time.Duration(s.timeSavedMicros.Load()) * time.Microsecond,
	}
}

// Snapshot is a point-in-time view of cache statistics.
type Snapshot struct {
	Namespace          string        `json:"namespace"`
	TotalQueries       int64         `json:"total_queries"`
	Hits               int64         `json:"hits"`
	Misses             int64         `json:"misses"`
	FalseCandidates    int64         `json:"false_candidates"`
	ErroredMisses      int64         `json:"errored_misses"`
	HitRatePercent     float64       `json:"hit_rate_percent"`
	EstimatedTimeSaved time.Duration `json:"estimated_time_saved"`
}
