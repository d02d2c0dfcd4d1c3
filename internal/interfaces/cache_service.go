package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/spinneret/internal/models"
)

// CrawlStateCache is the shared crawl bookkeeping store. All operations are
// individually idempotent and best-effort: a backend outage degrades to
// "not throttled / not active" rather than blocking the crawl pipeline.
type CrawlStateCache interface {
	// GetLastRequestTime returns the recorded last-fetch time for a URI.
	// ok is false when no recent request is recorded (absence is not an error).
	GetLastRequestTime(ctx context.Context, uri string) (lastRequest time.Time, ok bool)

	// StoreLastRequest records "now" as the last-fetch time with a short TTL
	StoreLastRequest(ctx context.Context, uri string)

	// IsActiveDownload reports whether a download is currently in flight for a URI
	IsActiveDownload(ctx context.Context, uri string) bool

	// SetActiveDownload sets or clears the in-flight flag. The throttle manager
	// is the only writer; callers must guarantee clearing on every exit path.
	SetActiveDownload(ctx context.Context, uri string, active bool)

	// StoreCrawlEnded writes a human-readable lifecycle marker for a finished
	// crawl attempt. Best-effort; a write failure degrades observability only.
	StoreCrawlEnded(ctx context.Context, crawl *models.Crawl)

	// UpdateCrawlCompleted marks a crawl lineage as completed. Best-effort.
	UpdateCrawlCompleted(ctx context.Context, crawlID string)
}
