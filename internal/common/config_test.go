package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spinneret.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 4, config.Crawler.Concurrency)
	assert.Equal(t, 15*time.Second, config.Crawler.MinRequestDelayDuration())
	assert.Equal(t, 60*time.Second, config.Crawler.RequestTimeoutDuration())
	assert.Equal(t, time.Second, config.Queue.PollIntervalDuration())
	assert.Equal(t, 5*time.Minute, config.Queue.VisibilityTimeoutDuration())
	assert.True(t, config.Crawler.Headless)
}

func TestLoadFromFilesLayering(t *testing.T) {
	base := writeConfig(t, `
environment = "production"

[crawler]
concurrency = 8
min_request_delay = "30s"
`)
	override := writeConfig(t, `
[crawler]
concurrency = 2
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 2, config.Crawler.Concurrency, "later files override earlier ones")
	assert.Equal(t, 30*time.Second, config.Crawler.MinRequestDelayDuration(), "earlier values survive when not overridden")
}

func TestLoadFromFilesValidation(t *testing.T) {
	bad := writeConfig(t, `
[crawler]
concurrency = 200
`)
	_, err := LoadFromFiles(bad)
	require.Error(t, err, "concurrency above the cap must fail validation")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPINNERET_LOG_LEVEL", "debug")
	t.Setenv("SPINNERET_CONCURRENCY", "6")
	t.Setenv("SPINNERET_MIN_REQUEST_DELAY", "45s")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, 6, config.Crawler.Concurrency)
	assert.Equal(t, 45*time.Second, config.Crawler.MinRequestDelayDuration())
}

func TestDurationFallbacks(t *testing.T) {
	crawler := CrawlerConfig{MinRequestDelay: "garbage", RequestTimeout: ""}
	assert.Equal(t, 15*time.Second, crawler.MinRequestDelayDuration())
	assert.Equal(t, 60*time.Second, crawler.RequestTimeoutDuration())

	queue := QueueConfig{PollInterval: "-2s", VisibilityTimeout: "nope"}
	assert.Equal(t, time.Second, queue.PollIntervalDuration())
	assert.Equal(t, 5*time.Minute, queue.VisibilityTimeoutDuration())
}
