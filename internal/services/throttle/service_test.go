package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// stateCache is an in-memory CrawlStateCache for exercising the throttle
type stateCache struct {
	mu          sync.Mutex
	lastRequest map[string]time.Time
	active      map[string]bool
}

func newStateCache() *stateCache {
	return &stateCache{
		lastRequest: make(map[string]time.Time),
		active:      make(map[string]bool),
	}
}

func (c *stateCache) GetLastRequestTime(ctx context.Context, uri string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastRequest[uri]
	return t, ok
}

func (c *stateCache) StoreLastRequest(ctx context.Context, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRequest[uri] = time.Now()
}

func (c *stateCache) IsActiveDownload(ctx context.Context, uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[uri]
}

func (c *stateCache) SetActiveDownload(ctx context.Context, uri string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.active[uri] = true
	} else {
		delete(c.active, uri)
	}
}

func (c *stateCache) StoreCrawlEnded(ctx context.Context, crawl *models.Crawl) {}
func (c *stateCache) UpdateCrawlCompleted(ctx context.Context, crawlID string) {}

const testURI = "https://example.com/page"

func TestThrottleAdmitsAndReleases(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Minute)

	result, err := manager.ThrottleRequest(context.Background(), testURI, func(ctx context.Context) (*interfaces.PageResult, error) {
		assert.True(t, cache.IsActiveDownload(ctx, testURI), "flag must be set while the fetch runs")
		return &interfaces.PageResult{URI: testURI, StatusCode: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.StatusCode)

	assert.False(t, cache.IsActiveDownload(context.Background(), testURI), "flag must clear after the fetch")
	_, ok := cache.GetLastRequestTime(context.Background(), testURI)
	assert.True(t, ok, "admission must record the last-request time")
}

func TestThrottleRejectsWithinMinInterval(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Minute)
	fetch := func(ctx context.Context) (*interfaces.PageResult, error) {
		return &interfaces.PageResult{URI: testURI}, nil
	}

	_, err := manager.ThrottleRequest(context.Background(), testURI, fetch)
	require.NoError(t, err)

	_, err = manager.ThrottleRequest(context.Background(), testURI, fetch)
	require.Error(t, err)
	assert.True(t, models.IsThrottled(err))
	assert.ErrorIs(t, err, models.ErrThrottled)
}

func TestThrottleAdmitsAfterIntervalElapsed(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), 50*time.Millisecond)

	fetched := 0
	fetch := func(ctx context.Context) (*interfaces.PageResult, error) {
		fetched++
		return &interfaces.PageResult{URI: testURI}, nil
	}

	_, err := manager.ThrottleRequest(context.Background(), testURI, fetch)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, err = manager.ThrottleRequest(context.Background(), testURI, fetch)
	require.NoError(t, err, "a repeat request past the minimum interval must be admitted")
	assert.Equal(t, 2, fetched)
}

func TestThrottleRejectsConcurrentFetch(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Millisecond)

	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := manager.ThrottleRequest(context.Background(), testURI, func(ctx context.Context) (*interfaces.PageResult, error) {
			close(started)
			<-finish
			return &interfaces.PageResult{URI: testURI}, nil
		})
		done <- err
	}()

	<-started
	_, err := manager.ThrottleRequest(context.Background(), testURI, func(ctx context.Context) (*interfaces.PageResult, error) {
		t.Fatal("second fetch must not be admitted while the first is in flight")
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, models.IsThrottled(err))

	close(finish)
	require.NoError(t, <-done)
	assert.False(t, cache.IsActiveDownload(context.Background(), testURI))
}

func TestThrottleReleasesOnFetchFailure(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Millisecond)

	fetchErr := errors.New("net::ERR_TIMED_OUT")
	_, err := manager.ThrottleRequest(context.Background(), testURI, func(ctx context.Context) (*interfaces.PageResult, error) {
		return nil, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)
	assert.False(t, cache.IsActiveDownload(context.Background(), testURI), "flag must clear on failure")
}

func TestThrottleReleasesOnCancelledContext(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := manager.ThrottleDownload(ctx, testURI, func(dlCtx context.Context) (*interfaces.FileResult, error) {
		cancel()
		return nil, dlCtx.Err()
	})
	assert.Error(t, err)
	assert.False(t, cache.IsActiveDownload(context.Background(), testURI), "flag must clear even when the caller's context is cancelled")
}

func TestThrottleDistinctURIsIndependent(t *testing.T) {
	cache := newStateCache()
	manager := NewManager(cache, arbor.NewLogger(), time.Minute)
	fetch := func(ctx context.Context) (*interfaces.PageResult, error) {
		return &interfaces.PageResult{}, nil
	}

	_, err := manager.ThrottleRequest(context.Background(), "https://example.com/a", fetch)
	require.NoError(t, err)

	_, err = manager.ThrottleRequest(context.Background(), "https://example.com/b", fetch)
	assert.NoError(t, err, "throttling is per URI")
}
