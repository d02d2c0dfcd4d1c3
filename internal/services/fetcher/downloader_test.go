package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/models"
)

func testDownloader(t *testing.T) *HTTPDownloader {
	t.Helper()
	cfg := common.DefaultConfig().Crawler
	cfg.DownloadDir = t.TempDir()
	cfg.DownloadRate = 0
	return NewHTTPDownloader(cfg, arbor.NewLogger())
}

func TestDownload(t *testing.T) {
	payload := []byte("%PDF-1.7 fake report body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	}))
	defer server.Close()

	result, err := testDownloader(t).Download(context.Background(), server.URL+"/reports/q3.pdf")
	require.NoError(t, err)
	assert.Equal(t, "q3.pdf", result.Name)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, int64(len(payload)), result.Size)
	assert.Equal(t, payload, result.Data)
}

func TestDownloadContentDispositionName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer server.Close()

	result, err := testDownloader(t).Download(context.Background(), server.URL+"/export")
	require.NoError(t, err)
	assert.Equal(t, "export.csv", result.Name)
}

func TestDownloadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testDownloader(t).Download(context.Background(), server.URL+"/missing.zip")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindDownload, models.ClassifyError(err))
}
