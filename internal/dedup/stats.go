// internal/dedup/stats.go
package dedup

import (
	"context"
	"sync/atomic"
	"time"
)

// ScanEvent is published to observers after every engine check, including
// failed ones.
type ScanEvent struct {
	RequestID      string
	EntityType     string
	Algorithm      Algorithm
	Recommendation Recommendation
	TotalMatches   int
	TopMatch       *DuplicateMatch
	CorpusSize     int
	Duration       time.Duration
	ProcessedAt    time.Time
	Err            error
}

// ScanObserver receives scan events. Returned errors are logged by the
// engine and never change the outcome of a check.
type ScanObserver interface {
	ObserveScan(ctx context.Context, event ScanEvent) error
}

// ScanObserverFunc adapts a function to ScanObserver.
type ScanObserverFunc func(ctx context.Context, event ScanEvent) error

func (f ScanObserverFunc) ObserveScan(ctx context.Context, event ScanEvent) error {
	return f(ctx, event)
}

// Statistics is a point-in-time view of the tracker counters.
type Statistics struct {
	TotalFound      int64     `json:"totalFound"`
	TotalResolved   int64     `json:"totalResolved"`
	Pending         int64     `json:"pending"`
	LastProcessedAt time.Time `json:"lastProcessedAt"`
}

// StatisticsTracker counts duplicates found and resolved. Safe for
// concurrent use.
type StatisticsTracker struct {
	found        atomic.Int64
	resolved     atomic.Int64
	lastUnixNano atomic.Int64
	now          func() time.Time
}

func NewStatisticsTracker() *StatisticsTracker {
	return &StatisticsTracker{now: time.Now}
}

// RecordScan adds matchCount found duplicates and stamps the last processed
// time.
func (s *StatisticsTracker) RecordScan(matchCount int) {
	if matchCount > 0 {
		s.found.Add(int64(matchCount))
	}
	s.lastUnixNano.Store(s.clock().UnixNano())
}

// RecordResolved adds n duplicates resolved by a reviewer.
func (s *StatisticsTracker) RecordResolved(n int) {
	if n > 0 {
		s.resolved.Add(int64(n))
	}
}

func (s *StatisticsTracker) Snapshot() Statistics {
	found := s.found.Load()
	resolved := s.resolved.Load()

	stats := Statistics{
		TotalFound:    found,
		TotalResolved: resolved,
		Pending:       max(0, found-resolved),
	}
	if ns := s.lastUnixNano.Load(); ns != 0 {
		stats.LastProcessedAt = time.Unix(0, ns).UTC()
	}
	return stats
}

// ObserveScan records successful scans; failed scans leave the counters
// untouched.
func (s *StatisticsTracker) ObserveScan(_ context.Context, event ScanEvent) error {
	if event.Err != nil {
		return nil
	}
	s.RecordScan(event.TotalMatches)
	return nil
}

func (s *StatisticsTracker) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
