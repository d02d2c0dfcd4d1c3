// Package metrics keeps in-process crawl counters for the status log line and
// graceful-shutdown summary.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// Service counts crawl outcomes with atomic counters
type Service struct {
	requests  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	throttled atomic.Int64
	anomalies atomic.Int64

	mu           sync.Mutex
	failedByKind map[models.ErrorKind]int64
}

var _ interfaces.MetricsCollector = (*Service)(nil)

// NewService creates an empty metrics collector
func NewService() *Service {
	return &Service{
		failedByKind: make(map[models.ErrorKind]int64),
	}
}

func (s *Service) IncRequests()  { s.requests.Add(1) }
func (s *Service) IncCompleted() { s.completed.Add(1) }
func (s *Service) IncThrottled() { s.throttled.Add(1) }
func (s *Service) IncAnomalies() { s.anomalies.Add(1) }

func (s *Service) IncFailed(kind models.ErrorKind) {
	s.failed.Add(1)
	s.mu.Lock()
	s.failedByKind[kind]++
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of all counters
type Snapshot struct {
	Requests     int64
	Completed    int64
	Failed       int64
	Throttled    int64
	Anomalies    int64
	FailedByKind map[models.ErrorKind]int64
}

// Snapshot returns a consistent copy of the current counters
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	byKind := make(map[models.ErrorKind]int64, len(s.failedByKind))
	for kind, count := range s.failedByKind {
		byKind[kind] = count
	}
	s.mu.Unlock()

	return Snapshot{
		Requests:     s.requests.Load(),
		Completed:    s.completed.Load(),
		Failed:       s.failed.Load(),
		Throttled:    s.throttled.Load(),
		Anomalies:    s.anomalies.Load(),
		FailedByKind: byKind,
	}
}
