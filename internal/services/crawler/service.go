// -----------------------------------------------------------------------
// Orchestrator - receive, throttle, fetch, parse, publish, continue
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
	"github.com/ternarybob/spinneret/internal/services/continuation"
	"github.com/ternarybob/spinneret/internal/services/throttle"
)

// Options bundles the orchestrator's collaborators
type Options struct {
	Config       common.CrawlerConfig
	PollInterval time.Duration

	Source     interfaces.RequestSource
	Loader     interfaces.PageLoader
	Downloader interfaces.Downloader
	Publisher  interfaces.Publisher
	Cache      interfaces.CrawlStateCache
	Throttle   *throttle.Manager
	Profiles   interfaces.ProfileRepository
	Metrics    interfaces.MetricsCollector
	Logger     arbor.ILogger
}

// Orchestrator drives crawl requests through the pipeline: receive from the
// queue, throttle, fetch (browser render or raw download), parse into the
// part tree, publish the outcome, and enqueue continuation requests.
type Orchestrator struct {
	config       common.CrawlerConfig
	pollInterval time.Duration

	source     interfaces.RequestSource
	loader     interfaces.PageLoader
	downloader interfaces.Downloader
	publisher  interfaces.Publisher
	cache      interfaces.CrawlStateCache
	throttle   *throttle.Manager
	profiles   interfaces.ProfileRepository
	parser     *Parser
	metrics    interfaces.MetricsCollector
	logger     arbor.ILogger

	slots   chan struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool
}

// NewOrchestrator creates the crawl orchestrator. Concurrency below one is
// raised to one.
func NewOrchestrator(opts Options) *Orchestrator {
	concurrency := opts.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Orchestrator{
		config:       opts.Config,
		pollInterval: pollInterval,
		source:       opts.Source,
		loader:       opts.Loader,
		downloader:   opts.Downloader,
		publisher:    opts.Publisher,
		cache:        opts.Cache,
		throttle:     opts.Throttle,
		profiles:     opts.Profiles,
		parser:       NewParser(opts.Logger),
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		slots:        make(chan struct{}, concurrency),
	}
}

// Start launches the receive loop. Safe to call once; subsequent calls are
// no-ops until Stop.
func (o *Orchestrator) Start(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go o.receiveLoop(runCtx)

	o.logger.Info().
		Int("concurrency", cap(o.slots)).
		Dur("poll_interval", o.pollInterval).
		Msg("Crawl orchestrator started")
}

// Stop cancels the receive loop and waits for in-flight crawls to finish
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	o.cancel()
	o.wg.Wait()
	o.logger.Info().Msg("Crawl orchestrator stopped")
}

func (o *Orchestrator) receiveLoop(ctx context.Context) {
	defer o.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		received, err := o.source.Receive(ctx)
		if err != nil {
			if err == interfaces.ErrNoRequest {
				select {
				case <-ctx.Done():
					return
				case <-time.After(o.pollInterval):
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			o.logger.Warn().Err(err).Msg("Failed to receive crawl request")
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.pollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			// Hand the claimed request back so it is redelivered after restart
			if retryErr := received.Retry(); retryErr != nil {
				o.logger.Warn().Err(retryErr).Msg("Failed to release request on shutdown")
			}
			return
		case o.slots <- struct{}{}:
		}

		o.wg.Add(1)
		go func(r *interfaces.ReceivedRequest) {
			defer o.wg.Done()
			defer func() { <-o.slots }()
			o.process(ctx, r)
		}(received)
	}
}

// process runs one request through the full pipeline. Panics are contained to
// the single request.
func (o *Orchestrator) process(ctx context.Context, received *interfaces.ReceivedRequest) {
	request := received.Request
	crawl := models.NewCrawl(request)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("uri", request.URI).
				Str("correlation_id", request.CorrelationID).
				Msg(fmt.Sprintf("Panic while processing crawl request: %v", r))
			// A panic after the crawl reached a terminal state must not emit
			// a second outcome or settle the delivery twice
			if crawl.Terminal() {
				return
			}
			o.fail(ctx, received, crawl,
				models.NewCrawlError(models.ErrorKindUnknown, "process request", fmt.Errorf("panic: %v", r)))
		}
	}()

	o.metrics.IncRequests()

	if err := request.Validate(); err != nil {
		o.fail(ctx, received, crawl, err)
		return
	}

	o.applyProfile(request)

	o.logger.Info().
		Str("uri", request.URI).
		Str("correlation_id", request.CorrelationID).
		Str("crawl_id", request.CrawlID).
		Str("expected_part", string(request.ExpectedPart)).
		Msg("Processing crawl request")

	crawl.Status = models.CrawlStatusFetching

	var response *models.CrawlResponse
	var err error
	if request.DownloadRawContent || request.ExpectedPart == models.PartKindFile {
		response, err = o.fetchFile(ctx, request)
	} else {
		response, err = o.fetchPage(ctx, request)
	}

	if err != nil {
		if models.IsThrottled(err) {
			o.throttled(ctx, received, crawl, err)
			return
		}
		o.fail(ctx, received, crawl, err)
		return
	}

	crawl.Status = models.CrawlStatusParsed

	if response.Anomaly != nil {
		o.metrics.IncAnomalies()
		o.logger.Warn().
			Str("uri", request.URI).
			Str("anomaly", string(response.Anomaly.Type)).
			Str("detail", response.Anomaly.Detail).
			Msg("Anomaly detected on crawled page")
	}

	if err := o.continueCrawl(ctx, crawl, request, response); err != nil {
		o.fail(ctx, received, crawl, err)
		return
	}

	if err := o.publisher.PublishResponse(ctx, response); err != nil {
		o.fail(ctx, received, crawl, err)
		return
	}

	o.complete(ctx, received, crawl)
}

// applyProfile fills request fields the submitter left unset from the host's
// scrape profile. Explicit request values always win.
func (o *Orchestrator) applyProfile(request *models.CrawlRequest) {
	if o.profiles == nil {
		return
	}
	profile, ok := o.profiles.ResolveProfile(request.URI)
	if !ok {
		return
	}

	if request.ExpectedPart == "" || request.ExpectedPart == models.PartKindAutodetect {
		if profile.ExpectedPart != "" {
			request.ExpectedPart = profile.ExpectedPart
		}
	}
	if len(request.UIActions) == 0 {
		request.UIActions = profile.UIActions
	}
	if len(request.URLSkipList) == 0 {
		request.URLSkipList = profile.URLSkipList
	}
	if request.ContinuationStrategy == "" {
		request.ContinuationStrategy = profile.Continuation
	}
	if !request.DownloadRawContent && profile.DownloadRaw {
		request.DownloadRawContent = true
	}
}

// fetchPage renders the page under the request throttle and parses it
func (o *Orchestrator) fetchPage(ctx context.Context, request *models.CrawlRequest) (*models.CrawlResponse, error) {
	startTime := time.Now()

	page, err := o.throttle.ThrottleRequest(ctx, request.URI, func(fetchCtx context.Context) (*interfaces.PageResult, error) {
		return o.loader.LoadPage(fetchCtx, request.URI, request.UIActions)
	})
	if err != nil {
		return nil, err
	}

	root, anomaly, err := o.parser.Parse(page.HTML, request.URI, request.ExpectedPart)
	if err != nil {
		return nil, err
	}

	return &models.CrawlResponse{
		ID:            common.NewResponseID(),
		URI:           request.URI,
		CorrelationID: request.CorrelationID,
		CrawlID:       request.CrawlID,
		Document:      &models.Document{Root: root},
		Anomaly:       anomaly,
		Duration:      time.Since(startTime),
		CompletedAt:   time.Now(),
	}, nil
}

// fetchFile downloads raw content under the download throttle
func (o *Orchestrator) fetchFile(ctx context.Context, request *models.CrawlRequest) (*models.CrawlResponse, error) {
	startTime := time.Now()

	file, err := o.throttle.ThrottleDownload(ctx, request.URI, func(dlCtx context.Context) (*interfaces.FileResult, error) {
		return o.downloader.Download(dlCtx, request.URI)
	})
	if err != nil {
		return nil, err
	}

	document := &models.Document{
		Root: &models.FilePart{
			URI:         file.URI,
			Name:        file.Name,
			ContentType: file.ContentType,
			Size:        file.Size,
		},
	}
	if request.DownloadRawContent {
		document.HasRawContent = true
		document.RawContent = file.Data
	}

	return &models.CrawlResponse{
		ID:            common.NewResponseID(),
		URI:           request.URI,
		CorrelationID: request.CorrelationID,
		CrawlID:       request.CrawlID,
		Document:      document,
		Duration:      time.Since(startTime),
		CompletedAt:   time.Now(),
	}, nil
}

// continueCrawl publishes the continuation batch for the request's strategy.
// An error here fails the crawl: a lost fan-out is a failed attempt, not a
// silently completed one.
func (o *Orchestrator) continueCrawl(ctx context.Context, crawl *models.Crawl, request *models.CrawlRequest, response *models.CrawlResponse) error {
	strategy, ok := continuation.ForKind(request.ContinuationStrategy, o.publisher, o.logger)
	if !ok {
		return nil
	}

	crawl.Status = models.CrawlStatusContinuing

	links := models.CollectLinks(response.Document.Root)
	published, err := strategy.Continue(ctx, request, links)
	if err != nil {
		return err
	}

	o.logger.Info().
		Str("crawl_id", request.CrawlID).
		Str("strategy", string(request.ContinuationStrategy)).
		Int("discovered", len(links)).
		Int("published", len(published)).
		Msg("Crawl continued")
	return nil
}

// throttled hands a rejected request back for redelivery. Throttle rejections
// are not failures and never produce a failure record.
func (o *Orchestrator) throttled(ctx context.Context, received *interfaces.ReceivedRequest, crawl *models.Crawl, err error) {
	o.metrics.IncThrottled()
	crawl.Status = models.CrawlStatusThrottled
	crawl.CompletedAt = time.Now()
	crawl.Error = err.Error()

	o.logger.Debug().
		Str("uri", crawl.Request.URI).
		Str("correlation_id", crawl.Request.CorrelationID).
		Msg("Request throttled, returning to queue")

	o.cache.StoreCrawlEnded(ctx, crawl)
	if retryErr := received.Retry(); retryErr != nil {
		o.logger.Warn().Err(retryErr).Str("uri", crawl.Request.URI).Msg("Failed to return throttled request to queue")
	}
}

// fail publishes a failure record, acknowledges the delivery, and records the
// terminal state
func (o *Orchestrator) fail(ctx context.Context, received *interfaces.ReceivedRequest, crawl *models.Crawl, err error) {
	request := crawl.Request
	kind := models.ClassifyError(err)
	o.metrics.IncFailed(kind)

	crawl.Status = models.CrawlStatusFailed
	crawl.CompletedAt = time.Now()
	crawl.Error = err.Error()

	o.logger.Warn().
		Err(err).
		Str("uri", request.URI).
		Str("correlation_id", request.CorrelationID).
		Str("error_kind", string(kind)).
		Msg("Crawl request failed")

	failure := &models.CrawlFailure{
		URI:           request.URI,
		CorrelationID: request.CorrelationID,
		CrawlID:       request.CrawlID,
		ErrorKind:     kind,
		Message:       err.Error(),
		FailedAt:      time.Now(),
	}
	if pubErr := o.publisher.PublishFailure(ctx, failure); pubErr != nil {
		o.logger.Error().Err(pubErr).Str("correlation_id", request.CorrelationID).Msg("Failed to publish failure record")
	}

	o.cache.StoreCrawlEnded(ctx, crawl)
	if ackErr := received.Ack(); ackErr != nil {
		o.logger.Warn().Err(ackErr).Str("correlation_id", request.CorrelationID).Msg("Failed to acknowledge request")
	}
}

// complete records the terminal success state and acknowledges the delivery
func (o *Orchestrator) complete(ctx context.Context, received *interfaces.ReceivedRequest, crawl *models.Crawl) {
	request := crawl.Request
	o.metrics.IncCompleted()

	crawl.Status = models.CrawlStatusCompleted
	crawl.CompletedAt = time.Now()

	o.cache.UpdateCrawlCompleted(ctx, request.CrawlID)
	o.cache.StoreCrawlEnded(ctx, crawl)

	if ackErr := received.Ack(); ackErr != nil {
		o.logger.Warn().Err(ackErr).Str("correlation_id", request.CorrelationID).Msg("Failed to acknowledge request")
	}

	o.logger.Info().
		Str("uri", request.URI).
		Str("correlation_id", request.CorrelationID).
		Str("crawl_id", request.CrawlID).
		Dur("duration", crawl.CompletedAt.Sub(crawl.StartedAt)).
		Msg("Crawl request completed")
}
