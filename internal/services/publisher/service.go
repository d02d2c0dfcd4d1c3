// Package publisher routes crawl outcomes to response storage and
// continuation batches back onto the request queue.
package publisher

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
	badgerstore "github.com/ternarybob/spinneret/internal/storage/badger"
)

// Service fans crawl outputs out to their sinks: responses and failures go to
// durable storage, continuation requests re-enter the queue.
type Service struct {
	responses interfaces.ResponseStorage
	queue     *badgerstore.RequestQueue
	logger    arbor.ILogger
}

var _ interfaces.Publisher = (*Service)(nil)

// NewService creates the publisher
func NewService(responses interfaces.ResponseStorage, queue *badgerstore.RequestQueue, logger arbor.ILogger) *Service {
	return &Service{
		responses: responses,
		queue:     queue,
		logger:    logger,
	}
}

func (s *Service) PublishResponse(ctx context.Context, response *models.CrawlResponse) error {
	if err := s.responses.SaveResponse(ctx, response); err != nil {
		return models.NewCrawlError(models.ErrorKindPublish, "publish response "+response.CorrelationID, err)
	}

	s.logger.Debug().
		Str("correlation_id", response.CorrelationID).
		Str("crawl_id", response.CrawlID).
		Str("uri", response.URI).
		Msg("Response published")
	return nil
}

func (s *Service) PublishFailure(ctx context.Context, failure *models.CrawlFailure) error {
	if err := s.responses.SaveFailure(ctx, failure); err != nil {
		return models.NewCrawlError(models.ErrorKindPublish, "publish failure "+failure.CorrelationID, err)
	}

	s.logger.Debug().
		Str("correlation_id", failure.CorrelationID).
		Str("crawl_id", failure.CrawlID).
		Str("error_kind", string(failure.ErrorKind)).
		Msg("Failure published")
	return nil
}

func (s *Service) PublishRequests(ctx context.Context, requests []*models.CrawlRequest) error {
	// Empty batches are published as a no-op enqueue so callers never have to
	// special-case "no links survived"
	if len(requests) == 0 {
		s.logger.Debug().Msg("Empty continuation batch, nothing to enqueue")
		return nil
	}

	if err := s.queue.Enqueue(ctx, requests...); err != nil {
		return models.NewCrawlError(models.ErrorKindPublish, "enqueue continuation batch", err)
	}

	s.logger.Debug().Int("count", len(requests)).Msg("Continuation requests enqueued")
	return nil
}
