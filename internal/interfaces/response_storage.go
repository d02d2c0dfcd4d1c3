package interfaces

import (
	"context"

	"github.com/ternarybob/spinneret/internal/models"
)

// ResponseStorage persists published crawl outcomes (the output sink)
type ResponseStorage interface {
	// SaveResponse persists a completed crawl result
	SaveResponse(ctx context.Context, response *models.CrawlResponse) error

	// SaveFailure persists a failure record
	SaveFailure(ctx context.Context, failure *models.CrawlFailure) error

	// GetResponse retrieves a response by ID, ErrKeyNotFound if absent
	GetResponse(ctx context.Context, id string) (*models.CrawlResponse, error)

	// ListResponsesByCrawl returns all responses for one crawl lineage
	ListResponsesByCrawl(ctx context.Context, crawlID string) ([]*models.CrawlResponse, error)

	// ListFailuresByCrawl returns all failure records for one crawl lineage
	ListFailuresByCrawl(ctx context.Context, crawlID string) ([]*models.CrawlFailure, error)
}
