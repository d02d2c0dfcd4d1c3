package interfaces

import (
	"github.com/ternarybob/spinneret/internal/models"
)

// MetricsCollector counts crawl outcomes. All methods are fire-and-forget and
// must never sit on the error path of the core logic.
type MetricsCollector interface {
	IncRequests()
	IncCompleted()
	IncFailed(kind models.ErrorKind)
	IncThrottled()
	IncAnomalies()
}
