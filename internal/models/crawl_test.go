package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlRequestValidate(t *testing.T) {
	valid := &CrawlRequest{
		URI:           "https://example.com/",
		CorrelationID: "req_1",
		CrawlID:       "crawl_1",
	}
	assert.NoError(t, valid.Validate())

	missing := []*CrawlRequest{
		{CorrelationID: "req_1", CrawlID: "crawl_1"},
		{URI: "https://example.com/", CrawlID: "crawl_1"},
		{URI: "https://example.com/", CorrelationID: "req_1"},
	}
	for _, request := range missing {
		err := request.Validate()
		require.Error(t, err)
		assert.Equal(t, ErrorKindConfig, ClassifyError(err))
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorKindThrottle, ClassifyError(ErrThrottled))
	assert.Equal(t, ErrorKindThrottle, ClassifyError(fmt.Errorf("wrapped: %w", ErrThrottled)))

	crawlErr := NewCrawlError(ErrorKindFetch, "fetch page", errors.New("refused"))
	assert.Equal(t, ErrorKindFetch, ClassifyError(crawlErr))
	assert.Equal(t, ErrorKindFetch, ClassifyError(fmt.Errorf("outer: %w", crawlErr)))

	assert.Equal(t, ErrorKindUnknown, ClassifyError(errors.New("plain")))
}

func TestIsThrottled(t *testing.T) {
	assert.True(t, IsThrottled(fmt.Errorf("%w: too soon", ErrThrottled)))
	assert.False(t, IsThrottled(NewCrawlError(ErrorKindFetch, "fetch", errors.New("refused"))))
	assert.False(t, IsThrottled(nil))
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	document := &Document{
		Root: &ArticlePart{
			Title: "Doc",
			Parts: []DocumentPart{&TextPart{Text: "body"}},
		},
		HasRawContent: true,
		RawContent:    []byte("raw bytes"),
	}

	data, err := json.Marshal(document)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))

	article, ok := decoded.Root.(*ArticlePart)
	require.True(t, ok)
	assert.Equal(t, "Doc", article.Title)
	assert.True(t, decoded.HasRawContent)
	assert.Equal(t, []byte("raw bytes"), decoded.RawContent)
}

func TestDocumentDecodeRejectsUnknownRoot(t *testing.T) {
	var decoded Document
	err := json.Unmarshal([]byte(`{"root":{"kind":"mystery"},"has_raw_content":false}`), &decoded)
	require.Error(t, err)
}
