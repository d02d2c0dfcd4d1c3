package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/spinneret/internal/models"
)

// PageResult is the raw outcome of rendering a page
type PageResult struct {
	URI        string
	StatusCode int
	HTML       string
	Title      string
	Duration   time.Duration
}

// PageLoader renders a page (executing any scripted UI actions first) and
// returns its markup. Implementations must honor context cancellation.
type PageLoader interface {
	LoadPage(ctx context.Context, uri string, actions []models.UIAction) (*PageResult, error)
}

// FileResult is the raw outcome of downloading a file
type FileResult struct {
	URI         string
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Downloader fetches raw file content for a URI
type Downloader interface {
	Download(ctx context.Context, uri string) (*FileResult, error)
}
