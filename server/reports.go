package server

import (
	"sync"
	"time"

	"github.com/chazu/jflow/analysis"
)

// entry is a report held for later retrieval.
type entry struct {
	report   *analysis.Report
	created  time.Time
	lastUsed time.Time
}

// ReportStore keeps recent reports in memory, keyed by run id.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]*entry
	now     func() time.Time
}

// NewReportStore creates an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		reports: make(map[string]*entry),
		now:     time.Now,
	}
}

// Add registers a report under its run id.
func (s *ReportStore) Add(r *analysis.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.reports[r.RunID] = &entry{report: r, created: now, lastUsed: now}
}

// Lookup returns the report for a run id and refreshes its TTL.
func (s *ReportStore) Lookup(runID string) (*analysis.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reports[runID]
	if !ok {
		return nil, false
	}
	e.lastUsed = s.now()
	return e.report, true
}

// Release forgets a report.
func (s *ReportStore) Release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, runID)
}

// Len returns the number of held reports.
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Sweep removes reports that haven't been looked up within the TTL.
func (s *ReportStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, e := range s.reports {
		if e.lastUsed.Before(cutoff) {
			delete(s.reports, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d reports", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *ReportStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
