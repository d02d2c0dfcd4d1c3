package common

import (
	"github.com/google/uuid"
)

// NewCorrelationID generates a unique correlation ID with the "req_" prefix.
// A correlation ID identifies one request/response attempt; retries get a new one.
func NewCorrelationID() string {
	return "req_" + uuid.New().String()
}

// NewCrawlID generates a unique crawl lineage ID with the "crawl_" prefix.
// The crawl ID is shared by an original request and all of its continuations.
func NewCrawlID() string {
	return "crawl_" + uuid.New().String()
}

// NewResponseID generates a unique response record ID with the "resp_" prefix
func NewResponseID() string {
	return "resp_" + uuid.New().String()
}
