// Package throttle gates outbound fetches per URI: no two concurrent fetches
// for the same URI, and a minimum courtesy interval between consecutive ones.
// The crawl state cache is the source of truth; rejections fail fast with a
// recoverable signal instead of queueing.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// FetchFunc performs the actual page fetch once the throttle admits it
type FetchFunc func(ctx context.Context) (*interfaces.PageResult, error)

// DownloadFunc performs the actual file download once the throttle admits it
type DownloadFunc func(ctx context.Context) (*interfaces.FileResult, error)

// Manager wraps outbound fetch/download calls with the per-URI courtesy gate.
// It is the only writer of the active-download flag.
type Manager struct {
	cache       interfaces.CrawlStateCache
	logger      arbor.ILogger
	minInterval time.Duration

	// mu closes the check-then-set window between attempts in this process.
	// Cross-process races remain possible and are an accepted best-effort
	// guarantee: duplicate fetches are rare and idempotent writes keep them
	// harmless.
	mu sync.Mutex
}

// NewManager creates a new throttle manager with the given minimum interval
func NewManager(cache interfaces.CrawlStateCache, logger arbor.ILogger, minInterval time.Duration) *Manager {
	if minInterval <= 0 {
		minInterval = 15 * time.Second
	}
	return &Manager{
		cache:       cache,
		logger:      logger,
		minInterval: minInterval,
	}
}

// ThrottleRequest gates a page fetch for a URI. On admission the active flag
// is set, the last-request time recorded, and the flag cleared on every exit
// path - success, failure, panic, or cancellation.
func (m *Manager) ThrottleRequest(ctx context.Context, uri string, fetchFn FetchFunc) (*interfaces.PageResult, error) {
	if err := m.acquire(ctx, uri); err != nil {
		return nil, err
	}
	defer m.release(ctx, uri)

	return fetchFn(ctx)
}

// ThrottleDownload gates a file download for a URI with the same contract as
// ThrottleRequest.
func (m *Manager) ThrottleDownload(ctx context.Context, uri string, downloadFn DownloadFunc) (*interfaces.FileResult, error) {
	if err := m.acquire(ctx, uri); err != nil {
		return nil, err
	}
	defer m.release(ctx, uri)

	return downloadFn(ctx)
}

// acquire admits or rejects a fetch for a URI. Rejections carry ErrThrottled
// so callers can tell backpressure from substantive failure.
func (m *Manager) acquire(ctx context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.IsActiveDownload(ctx, uri) {
		m.logger.Debug().Str("uri", uri).Msg("Throttle rejected: download already active")
		return fmt.Errorf("%w: download already active for %s", models.ErrThrottled, uri)
	}

	if lastRequest, ok := m.cache.GetLastRequestTime(ctx, uri); ok {
		elapsed := time.Since(lastRequest)
		if elapsed < m.minInterval {
			m.logger.Debug().
				Str("uri", uri).
				Dur("elapsed", elapsed).
				Dur("min_interval", m.minInterval).
				Msg("Throttle rejected: minimum interval not elapsed")
			return fmt.Errorf("%w: %s requested %s ago, minimum interval %s",
				models.ErrThrottled, uri, elapsed.Round(time.Millisecond), m.minInterval)
		}
	}

	m.cache.SetActiveDownload(ctx, uri, true)
	m.cache.StoreLastRequest(ctx, uri)
	return nil
}

// release clears the active flag. It runs under a context detached from the
// caller's so cancellation of the crawl never abandons the flag in a set state.
func (m *Manager) release(ctx context.Context, uri string) {
	m.cache.SetActiveDownload(context.WithoutCancel(ctx), uri, false)
}
