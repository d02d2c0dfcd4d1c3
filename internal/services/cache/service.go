// Package cache provides the crawl state cache: last-request timestamps,
// active-download flags, and crawl lifecycle markers. Every operation is
// best-effort - a cache backend outage degrades to "not throttled / not
// active" so duplicate fetches are preferred over a stalled pipeline.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// DefaultLastRequestTTL is the expiry window for last-request markers; it
// doubles as the minimum courtesy interval between fetches of the same URI.
const DefaultLastRequestTTL = 15 * time.Second

const (
	lastRequestKeyPrefix    = "lastrequest_"
	activeDownloadKeyPrefix = "activedownload_"
	crawlKeyPrefix          = "crawl_"
)

// Service implements the CrawlStateCache on a TTL-backed key/value store
type Service struct {
	storage        interfaces.CacheStorage
	logger         arbor.ILogger
	lastRequestTTL time.Duration
}

// NewService creates a new crawl state cache service
func NewService(storage interfaces.CacheStorage, logger arbor.ILogger, lastRequestTTL time.Duration) *Service {
	if lastRequestTTL <= 0 {
		lastRequestTTL = DefaultLastRequestTTL
	}
	return &Service{
		storage:        storage,
		logger:         logger,
		lastRequestTTL: lastRequestTTL,
	}
}

// GetLastRequestTime returns the recorded last-fetch time for a URI. Absence
// means "no recent request". A backend error also reports absence so crawling
// never blocks on the cache.
func (s *Service) GetLastRequestTime(ctx context.Context, uri string) (time.Time, bool) {
	value, err := s.storage.Get(ctx, lastRequestKey(uri))
	if err == interfaces.ErrKeyNotFound {
		return time.Time{}, false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("Cache read failed, treating as no recent request")
		return time.Time{}, false
	}

	lastRequest, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Str("value", value).Msg("Unparseable last-request marker, ignoring")
		return time.Time{}, false
	}
	return lastRequest, true
}

// StoreLastRequest records "now" as the last-fetch time with the courtesy TTL
func (s *Service) StoreLastRequest(ctx context.Context, uri string) {
	value := time.Now().Format(time.RFC3339Nano)
	if err := s.storage.SetWithTTL(ctx, lastRequestKey(uri), value, s.lastRequestTTL); err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("Failed to store last-request marker")
	}
}

// IsActiveDownload reports whether a download is in flight for a URI. Absence
// and backend errors both report "not active".
func (s *Service) IsActiveDownload(ctx context.Context, uri string) bool {
	value, err := s.storage.Get(ctx, activeDownloadKey(uri))
	if err == interfaces.ErrKeyNotFound {
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("Cache read failed, treating as not active")
		return false
	}
	return value == "true"
}

// SetActiveDownload sets or clears the in-flight flag. Clearing deletes the
// key outright because the flag carries no expiry.
func (s *Service) SetActiveDownload(ctx context.Context, uri string, active bool) {
	key := activeDownloadKey(uri)
	var err error
	if active {
		err = s.storage.Set(ctx, key, "true")
	} else {
		err = s.storage.Delete(ctx, key)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Bool("active", active).Msg("Failed to update active-download flag")
	}
}

// StoreCrawlEnded writes a human-readable lifecycle marker for a finished
// crawl attempt. Best-effort; never fails the surrounding operation.
func (s *Service) StoreCrawlEnded(ctx context.Context, crawl *models.Crawl) {
	if crawl == nil || crawl.Request == nil {
		return
	}

	marker := fmt.Sprintf("ended %s status=%s uri=%s correlation_id=%s",
		time.Now().Format(time.RFC3339), crawl.Status, crawl.Request.URI, crawl.Request.CorrelationID)
	if crawl.Error != "" {
		marker += " error=" + crawl.Error
	}

	if err := s.storage.Set(ctx, crawlKeyPrefix+crawl.Request.CrawlID, marker); err != nil {
		s.logger.Warn().Err(err).Str("crawl_id", crawl.Request.CrawlID).Msg("Failed to store crawl-ended marker")
	}
}

// UpdateCrawlCompleted marks a crawl lineage as completed. Best-effort.
func (s *Service) UpdateCrawlCompleted(ctx context.Context, crawlID string) {
	marker := "completed " + time.Now().Format(time.RFC3339)
	if err := s.storage.Set(ctx, crawlKeyPrefix+crawlID, marker); err != nil {
		s.logger.Warn().Err(err).Str("crawl_id", crawlID).Msg("Failed to store crawl-completed marker")
	}
}

func lastRequestKey(uri string) string {
	return lastRequestKeyPrefix + common.NormalizeURI(uri)
}

func activeDownloadKey(uri string) string {
	return activeDownloadKeyPrefix + common.NormalizeURI(uri)
}

// Ensure Service implements the CrawlStateCache interface
var _ interfaces.CrawlStateCache = (*Service)(nil)
