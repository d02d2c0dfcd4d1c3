package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
	"golang.org/x/time/rate"
)

const downloadChunkSize = 32 * 1024

// HTTPDownloader fetches raw file content over plain HTTP with an optional
// bandwidth cap, keeping browser capacity free for page rendering
type HTTPDownloader struct {
	client  *http.Client
	limiter *rate.Limiter
	dir     string
	agent   string
	logger  arbor.ILogger
}

var _ interfaces.Downloader = (*HTTPDownloader)(nil)

// NewHTTPDownloader creates a downloader from the crawler config. A zero
// download rate disables throttling.
func NewHTTPDownloader(config common.CrawlerConfig, logger arbor.ILogger) *HTTPDownloader {
	var limiter *rate.Limiter
	if config.DownloadRate > 0 {
		bytesPerSec := rate.Limit(config.DownloadRate * 1024)
		limiter = rate.NewLimiter(bytesPerSec, downloadChunkSize)
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: config.RequestTimeoutDuration(),
		},
		limiter: limiter,
		dir:     config.DownloadDir,
		agent:   config.UserAgent,
		logger:  logger,
	}
}

// Download fetches the file at uri, persists a copy under the download
// directory when one is configured, and returns the content
func (d *HTTPDownloader) Download(ctx context.Context, uri string) (*interfaces.FileResult, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrorKindDownload, "build request for "+uri, err)
	}
	req.Header.Set("User-Agent", d.agent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrorKindDownload, "fetch "+uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewCrawlError(models.ErrorKindDownload, "fetch "+uri,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := d.readThrottled(ctx, resp.Body)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrorKindDownload, "read body of "+uri, err)
	}

	result := &interfaces.FileResult{
		URI:         uri,
		Name:        fileName(uri, resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}

	if d.dir != "" {
		if err := d.persist(result); err != nil {
			// A failed disk copy does not fail the download, the bytes are
			// already in the result
			d.logger.Warn().Err(err).Str("uri", uri).Msg("Failed to persist downloaded file")
		}
	}

	d.logger.Debug().
		Str("uri", uri).
		Str("name", result.Name).
		Int64("size", result.Size).
		Dur("duration", time.Since(startTime)).
		Msg("File downloaded")

	return result, nil
}

// readThrottled drains the body, pacing reads against the bandwidth limiter
func (d *HTTPDownloader) readThrottled(ctx context.Context, body io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, downloadChunkSize)

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			if d.limiter != nil {
				if waitErr := d.limiter.WaitN(ctx, n); waitErr != nil {
					return nil, waitErr
				}
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *HTTPDownloader) persist(result *interfaces.FileResult) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return err
	}
	target := filepath.Join(d.dir, result.Name)
	return os.WriteFile(target, result.Data, 0644)
}

// fileName derives a safe local name from the Content-Disposition header or
// the URI path, falling back to a generic name
func fileName(uri, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}

	if parsed, err := url.Parse(uri); err == nil {
		if name := path.Base(parsed.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}

	return "download_" + strings.ReplaceAll(common.NewResponseID(), "resp_", "")
}
