// -----------------------------------------------------------------------
// App - dependency wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/services/cache"
	"github.com/ternarybob/spinneret/internal/services/crawler"
	"github.com/ternarybob/spinneret/internal/services/fetcher"
	"github.com/ternarybob/spinneret/internal/services/metrics"
	"github.com/ternarybob/spinneret/internal/services/publisher"
	"github.com/ternarybob/spinneret/internal/services/scheduler"
	"github.com/ternarybob/spinneret/internal/services/sources"
	"github.com/ternarybob/spinneret/internal/services/throttle"
	badgerstore "github.com/ternarybob/spinneret/internal/storage/badger"
)

// App holds the wired application: storage, services, and the orchestrator
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB    *badgerstore.BadgerDB
	Queue *badgerstore.RequestQueue

	Cache        *cache.Service
	Throttle     *throttle.Manager
	Profiles     *sources.Repository
	Publisher    *publisher.Service
	Metrics      *metrics.Service
	Orchestrator *crawler.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// New wires the application from configuration. Failure at any stage tears
// down what was already opened.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := badgerstore.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	a.DB = db

	queue, err := badgerstore.NewRequestQueue(db, logger, "crawl_requests",
		cfg.Queue.VisibilityTimeoutDuration(), cfg.Queue.MaxReceive, cfg.Crawler.MinRequestDelayDuration())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open request queue: %w", err)
	}
	a.Queue = queue

	kv := badgerstore.NewKVStorage(db, logger)
	responses := badgerstore.NewResponseStorage(db, logger)

	a.Cache = cache.NewService(kv, logger, cache.DefaultLastRequestTTL)
	a.Throttle = throttle.NewManager(a.Cache, logger, cfg.Crawler.MinRequestDelayDuration())
	a.Metrics = metrics.NewService()
	a.Publisher = publisher.NewService(responses, queue, logger)

	profiles, err := sources.NewRepository(cfg.Sources.ProfilesDir, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load scrape profiles: %w", err)
	}
	a.Profiles = profiles

	a.Orchestrator = crawler.NewOrchestrator(crawler.Options{
		Config:       cfg.Crawler,
		PollInterval: cfg.Queue.PollIntervalDuration(),
		Source:       queue,
		Loader:       fetcher.NewChromedpLoader(cfg.Crawler, logger),
		Downloader:   fetcher.NewHTTPDownloader(cfg.Crawler, logger),
		Publisher:    a.Publisher,
		Cache:        a.Cache,
		Throttle:     a.Throttle,
		Profiles:     profiles,
		Metrics:      a.Metrics,
		Logger:       logger,
	})

	a.Scheduler = scheduler.NewScheduler(cfg.Scheduler, a.Publisher, profiles, logger)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("badger_path", cfg.Storage.Badger.Path).
		Int("concurrency", cfg.Crawler.Concurrency).
		Msg("Application wired")

	return a, nil
}

// Start launches the orchestrator and, when enabled, the seed scheduler
func (a *App) Start(ctx context.Context) error {
	a.Orchestrator.Start(ctx)

	if a.Config.Scheduler.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start seed scheduler: %w", err)
		}
	}

	return nil
}

// Close stops the pipeline and releases storage. Safe to call after a partial
// start.
func (a *App) Close() error {
	if a.Config.Scheduler.Enabled && a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Orchestrator != nil {
		a.Orchestrator.Stop()
	}

	if a.Metrics != nil {
		snap := a.Metrics.Snapshot()
		a.Logger.Info().
			Int64("requests", snap.Requests).
			Int64("completed", snap.Completed).
			Int64("failed", snap.Failed).
			Int64("throttled", snap.Throttled).
			Int64("anomalies", snap.Anomalies).
			Msg("Crawl totals at shutdown")
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close badger database: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
