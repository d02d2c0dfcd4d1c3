// Package continuation turns the link set discovered on a fetched page into
// new crawl requests under a pluggable selection policy.
package continuation

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// Strategy selects which discovered links continue a crawl and publishes the
// resulting request batch. A batch with no surviving links is still published
// (empty) so "zero links found" stays observable downstream.
type Strategy interface {
	// Kind returns the policy discriminator
	Kind() models.ContinuationKind

	// Continue filters the discovered links, builds continuation requests, and
	// publishes them as a single batch. Returns the published requests.
	Continue(ctx context.Context, request *models.CrawlRequest, links []*models.LinkPart) ([]*models.CrawlRequest, error)
}

// ForKind resolves the strategy for a continuation kind. ok is false for
// ContinuationNone and unrecognized kinds.
func ForKind(kind models.ContinuationKind, publisher interfaces.Publisher, logger arbor.ILogger) (Strategy, bool) {
	switch kind {
	case models.ContinuationDomainOnly:
		return &DomainOnlyStrategy{publisher: publisher, logger: logger}, true
	case models.ContinuationAllLinks:
		return &AllLinksStrategy{publisher: publisher, logger: logger}, true
	default:
		return nil, false
	}
}

// DomainOnlyStrategy retains links whose host equals the originating request's
// host (case-insensitive); relative links resolve to the base host and are kept.
type DomainOnlyStrategy struct {
	publisher interfaces.Publisher
	logger    arbor.ILogger
}

func (s *DomainOnlyStrategy) Kind() models.ContinuationKind {
	return models.ContinuationDomainOnly
}

func (s *DomainOnlyStrategy) Continue(ctx context.Context, request *models.CrawlRequest, links []*models.LinkPart) ([]*models.CrawlRequest, error) {
	baseHost := common.HostOf(request.URI)

	keep := func(resolvedURI string) bool {
		return baseHost != "" && common.HostOf(resolvedURI) == baseHost
	}
	return processLinks(ctx, s.publisher, s.logger, request, links, keep)
}

// AllLinksStrategy retains every discovered link with a non-empty URI
type AllLinksStrategy struct {
	publisher interfaces.Publisher
	logger    arbor.ILogger
}

func (s *AllLinksStrategy) Kind() models.ContinuationKind {
	return models.ContinuationAllLinks
}

func (s *AllLinksStrategy) Continue(ctx context.Context, request *models.CrawlRequest, links []*models.LinkPart) ([]*models.CrawlRequest, error) {
	keep := func(resolvedURI string) bool {
		return resolvedURI != ""
	}
	return processLinks(ctx, s.publisher, s.logger, request, links, keep)
}

// processLinks applies the shared pipeline: resolve, policy filter, dedupe by
// (uri, text), skip-list filter, construct requests, publish one batch.
func processLinks(ctx context.Context, publisher interfaces.Publisher, logger arbor.ILogger,
	request *models.CrawlRequest, links []*models.LinkPart, keep func(resolvedURI string) bool) ([]*models.CrawlRequest, error) {

	seen := make(map[string]bool)
	requests := make([]*models.CrawlRequest, 0, len(links))

	for _, link := range links {
		if link == nil {
			continue
		}

		uri := strings.TrimSpace(link.URI)
		text := strings.TrimSpace(link.Text)

		// A link with both fields empty is never equal to anything and never
		// crawlable; drop it before deduplication.
		if uri == "" && text == "" {
			continue
		}

		resolved := ""
		if uri != "" {
			resolved = common.ResolveReference(request.URI, uri)
		}

		if !keep(resolved) {
			continue
		}

		// Dedupe on the (normalized uri, text) pair: equal only if both match
		dedupKey := resolved + "\x00" + text
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		if matchesSkipList(resolved, request.URLSkipList) {
			logger.Debug().
				Str("uri", resolved).
				Str("crawl_id", request.CrawlID).
				Msg("Link dropped by skip-list")
			continue
		}

		requests = append(requests, &models.CrawlRequest{
			URI:                  resolved,
			CorrelationID:        common.NewCorrelationID(),
			CrawlID:              request.CrawlID,
			ContinuationStrategy: models.ContinuationNone,
			ExpectedPart:         models.PartKindAutodetect,
			URLSkipList:          request.URLSkipList,
			CreatedAt:            time.Now(),
		})
	}

	// One publish call for the whole batch, including an empty one
	if err := publisher.PublishRequests(ctx, requests); err != nil {
		return nil, models.NewCrawlError(models.ErrorKindPublish, "publish continuation batch", err)
	}

	logger.Debug().
		Str("crawl_id", request.CrawlID).
		Str("source_uri", request.URI).
		Int("discovered", len(links)).
		Int("published", len(requests)).
		Msg("Continuation batch published")

	return requests, nil
}

// matchesSkipList reports whether a URI contains any skip-list substring,
// case-insensitive
func matchesSkipList(uri string, skipList []string) bool {
	if uri == "" || len(skipList) == 0 {
		return false
	}
	lowerURI := strings.ToLower(uri)
	for _, fragment := range skipList {
		fragment = strings.ToLower(strings.TrimSpace(fragment))
		if fragment != "" && strings.Contains(lowerURI, fragment) {
			return true
		}
	}
	return false
}
