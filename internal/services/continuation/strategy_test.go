package continuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/models"
)

// mockPublisher records every published batch
type mockPublisher struct {
	batches [][]*models.CrawlRequest
	err     error
}

func (m *mockPublisher) PublishResponse(ctx context.Context, response *models.CrawlResponse) error {
	return nil
}

func (m *mockPublisher) PublishFailure(ctx context.Context, failure *models.CrawlFailure) error {
	return nil
}

func (m *mockPublisher) PublishRequests(ctx context.Context, requests []*models.CrawlRequest) error {
	m.batches = append(m.batches, requests)
	return m.err
}

func testRequest() *models.CrawlRequest {
	return &models.CrawlRequest{
		URI:                  "https://example.com/start",
		CorrelationID:        "req_origin",
		CrawlID:              "crawl_origin",
		ContinuationStrategy: models.ContinuationDomainOnly,
		CreatedAt:            time.Now(),
	}
}

func TestForKind(t *testing.T) {
	publisher := &mockPublisher{}
	logger := arbor.NewLogger()

	strategy, ok := ForKind(models.ContinuationDomainOnly, publisher, logger)
	require.True(t, ok)
	assert.Equal(t, models.ContinuationDomainOnly, strategy.Kind())

	strategy, ok = ForKind(models.ContinuationAllLinks, publisher, logger)
	require.True(t, ok)
	assert.Equal(t, models.ContinuationAllLinks, strategy.Kind())

	_, ok = ForKind(models.ContinuationNone, publisher, logger)
	assert.False(t, ok)

	_, ok = ForKind(models.ContinuationKind("bogus"), publisher, logger)
	assert.False(t, ok)
}

func TestContinueDeduplicatesByURIAndText(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &AllLinksStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{
		{URI: "https://example.com/a", Text: "x"},
		{URI: "https://example.com/a", Text: "x"},
		{URI: "https://example.com/a", Text: "y"},
	}

	requests, err := strategy.Continue(context.Background(), testRequest(), links)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}

func TestContinueDomainOnlyFiltersForeignHosts(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &DomainOnlyStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{
		{URI: "https://example.com/p1", Text: "same host"},
		{URI: "https://other.com/p2", Text: "foreign host"},
		{URI: "/p3", Text: "relative"},
	}

	requests, err := strategy.Continue(context.Background(), testRequest(), links)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "https://example.com/p1", requests[0].URI)
	assert.Equal(t, "https://example.com/p3", requests[1].URI)
}

func TestContinueAppliesSkipList(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &AllLinksStrategy{publisher: publisher, logger: arbor.NewLogger()}

	request := testRequest()
	request.URLSkipList = []string{"logout"}

	links := []*models.LinkPart{
		{URI: "https://example.com/account", Text: "account"},
		{URI: "https://example.com/LOGOUT", Text: "sign out"},
	}

	requests, err := strategy.Continue(context.Background(), request, links)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "https://example.com/account", requests[0].URI)
}

func TestContinueRequestLineage(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &AllLinksStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{
		{URI: "https://example.com/p1", Text: "one"},
		{URI: "https://example.com/p2", Text: "two"},
	}

	requests, err := strategy.Continue(context.Background(), testRequest(), links)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	seen := make(map[string]bool)
	for _, req := range requests {
		assert.Equal(t, "crawl_origin", req.CrawlID)
		assert.NotEqual(t, "req_origin", req.CorrelationID)
		assert.False(t, seen[req.CorrelationID], "correlation IDs must be unique")
		seen[req.CorrelationID] = true
		assert.Equal(t, models.ContinuationNone, req.ContinuationStrategy)
	}
}

func TestContinuePublishesEmptyBatch(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &DomainOnlyStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{
		{URI: "https://other.com/away", Text: "foreign"},
	}

	requests, err := strategy.Continue(context.Background(), testRequest(), links)
	require.NoError(t, err)
	assert.Empty(t, requests)
	require.Len(t, publisher.batches, 1, "empty batch must still be published")
	assert.Empty(t, publisher.batches[0])
}

func TestContinueDropsFullyEmptyLinks(t *testing.T) {
	publisher := &mockPublisher{}
	strategy := &AllLinksStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{
		{URI: "", Text: ""},
		{URI: "", Text: ""},
		{URI: "https://example.com/real", Text: ""},
	}

	requests, err := strategy.Continue(context.Background(), testRequest(), links)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "https://example.com/real", requests[0].URI)
}

func TestContinuePublishErrorClassified(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("queue unavailable")}
	strategy := &AllLinksStrategy{publisher: publisher, logger: arbor.NewLogger()}

	links := []*models.LinkPart{{URI: "https://example.com/p1", Text: "one"}}

	_, err := strategy.Continue(context.Background(), testRequest(), links)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindPublish, models.ClassifyError(err))
}
