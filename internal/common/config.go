package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Queue       QueueConfig     `toml:"queue"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Sources     SourcesConfig   `toml:"sources"`
	Logging     LoggingConfig   `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type CrawlerConfig struct {
	Concurrency     int    `toml:"concurrency" validate:"min=1,max=64"` // Number of concurrent crawl workers
	MinRequestDelay string `toml:"min_request_delay"`                   // e.g., "15s" - minimum delay between requests to the same URI
	RequestTimeout  string `toml:"request_timeout"`                     // e.g., "60s" - per-fetch timeout
	UserAgent       string `toml:"user_agent"`
	Headless        bool   `toml:"headless"`          // Run the render browser headless
	DownloadDir     string `toml:"download_dir"`      // Directory for raw file downloads
	DownloadRate    int    `toml:"download_rate_kbs"` // Download bandwidth cap in KB/s (0 = unlimited)
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for requests
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - request redelivery timeout
	MaxReceive        int    `toml:"max_receive"`        // Max times a request can be received before dead-letter
}

type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"` // Cron schedule for seed enqueueing
	Seeds    []string `toml:"seeds"`    // Seed URIs enqueued on every tick
}

type SourcesConfig struct {
	ProfilesDir string `toml:"profiles_dir"` // Directory of per-site scrape profile YAML files
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the built-in configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/spinneret",
			},
		},
		Crawler: CrawlerConfig{
			Concurrency:     4,
			MinRequestDelay: "15s",
			RequestTimeout:  "60s",
			UserAgent:       "Spinneret-Crawler/1.0",
			Headless:        true,
			DownloadDir:     "./data/downloads",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxReceive:        3,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 */6 * * *",
		},
		Sources: SourcesConfig{
			ProfilesDir: "./profiles",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with layering: defaults -> files (in order) -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies SPINNERET_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SPINNERET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SPINNERET_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("SPINNERET_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Crawler.Concurrency = n
		}
	}
	if v := os.Getenv("SPINNERET_MIN_REQUEST_DELAY"); v != "" {
		config.Crawler.MinRequestDelay = v
	}
}

// MinRequestDelayDuration parses the minimum per-URI request delay.
// Falls back to 15 seconds on a missing or malformed value.
func (c *CrawlerConfig) MinRequestDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.MinRequestDelay)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// RequestTimeoutDuration parses the per-fetch timeout with a 60 second fallback
func (c *CrawlerConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// PollIntervalDuration parses the queue poll interval with a 1 second fallback
func (c *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the queue visibility timeout with a 5 minute fallback
func (c *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
