package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/spinneret/internal/models"
)

// ErrNoRequest is returned when the request source has nothing pending
var ErrNoRequest = errors.New("no pending crawl requests")

// ReceivedRequest pairs a pending request with its delivery controls. Ack marks
// the request handled; Retry returns it to the source for later redelivery
// (used for throttle rejections, which are not failures).
type ReceivedRequest struct {
	Request *models.CrawlRequest
	Ack     func() error
	Retry   func() error
}

// RequestSource delivers pending crawl requests. Delivery is at-least-once;
// consumers must tolerate redelivery.
type RequestSource interface {
	// Receive returns the next pending request, ErrNoRequest when the source
	// is empty, or the context error on cancellation.
	Receive(ctx context.Context) (*ReceivedRequest, error)
}
