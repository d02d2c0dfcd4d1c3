package interfaces

import (
	"context"

	"github.com/ternarybob/spinneret/internal/models"
)

// Publisher delivers crawl outcomes and continuation requests to downstream
// consumers. An empty PublishRequests batch is a normal, non-error outcome so
// "zero links found" stays observable.
type Publisher interface {
	// PublishResponse delivers a completed crawl result
	PublishResponse(ctx context.Context, response *models.CrawlResponse) error

	// PublishFailure delivers a failure record carrying the classified error
	// kind and the original request's identifiers
	PublishFailure(ctx context.Context, failure *models.CrawlFailure) error

	// PublishRequests delivers a continuation batch as a single call
	PublishRequests(ctx context.Context, requests []*models.CrawlRequest) error
}
