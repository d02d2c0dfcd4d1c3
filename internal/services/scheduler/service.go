// Package scheduler enqueues the configured seed URIs on a cron schedule,
// starting a fresh crawl lineage per seed on every tick.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// Scheduler handles periodic seed enqueueing
type Scheduler struct {
	config    common.SchedulerConfig
	publisher interfaces.Publisher
	profiles  interfaces.ProfileRepository
	cron      *cron.Cron
	logger    arbor.ILogger
}

// NewScheduler creates a new seed scheduler
func NewScheduler(config common.SchedulerConfig, publisher interfaces.Publisher, profiles interfaces.ProfileRepository, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config:    config,
		publisher: publisher,
		profiles:  profiles,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start begins the scheduled seed enqueueing
func (s *Scheduler) Start() error {
	schedule := s.config.Schedule
	if schedule == "" {
		// Default: every 6 hours
		schedule = "0 */6 * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.RunNow()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Int("seeds", len(s.config.Seeds)).
		Msg("Seed scheduler started")

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Seed scheduler stopped")
}

// RunNow enqueues all configured seeds immediately, each as a new crawl lineage
func (s *Scheduler) RunNow() {
	if len(s.config.Seeds) == 0 {
		s.logger.Debug().Msg("No seeds configured, skipping scheduled run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	requests := make([]*models.CrawlRequest, 0, len(s.config.Seeds))
	for _, seed := range s.config.Seeds {
		requests = append(requests, s.seedRequest(seed))
	}

	if err := s.publisher.PublishRequests(ctx, requests); err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue seed requests")
		return
	}

	s.logger.Info().
		Int("seeds", len(requests)).
		Msg("Seed requests enqueued")
}

// seedRequest builds the root request for one seed, taking the continuation
// policy and expected shape from the host's scrape profile when one exists
func (s *Scheduler) seedRequest(seed string) *models.CrawlRequest {
	request := &models.CrawlRequest{
		URI:                  common.NormalizeURI(seed),
		CorrelationID:        common.NewCorrelationID(),
		CrawlID:              common.NewCrawlID(),
		ContinuationStrategy: models.ContinuationDomainOnly,
		ExpectedPart:         models.PartKindAutodetect,
		CreatedAt:            time.Now(),
	}

	if s.profiles != nil {
		if profile, ok := s.profiles.ResolveProfile(request.URI); ok {
			if profile.Continuation != "" {
				request.ContinuationStrategy = profile.Continuation
			}
			if profile.ExpectedPart != "" {
				request.ExpectedPart = profile.ExpectedPart
			}
			request.UIActions = profile.UIActions
			request.URLSkipList = profile.URLSkipList
			request.DownloadRawContent = profile.DownloadRaw
		}
	}

	return request
}
