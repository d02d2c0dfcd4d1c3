// -----------------------------------------------------------------------
// ChromedpLoader - headless browser page loading with scripted UI actions
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// ChromedpLoader renders pages in headless Chrome so JavaScript-driven sites
// produce their final DOM before parsing
type ChromedpLoader struct {
	config common.CrawlerConfig
	logger arbor.ILogger
}

var _ interfaces.PageLoader = (*ChromedpLoader)(nil)

// NewChromedpLoader creates a browser-backed page loader
func NewChromedpLoader(config common.CrawlerConfig, logger arbor.ILogger) *ChromedpLoader {
	return &ChromedpLoader{
		config: config,
		logger: logger,
	}
}

// LoadPage navigates to uri, runs the scripted UI actions in order, and
// returns the rendered HTML. The whole load is bounded by the configured
// request timeout.
func (l *ChromedpLoader) LoadPage(ctx context.Context, uri string, actions []models.UIAction) (*interfaces.PageResult, error) {
	startTime := time.Now()

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, runCancel := context.WithTimeout(browserCtx, l.config.RequestTimeoutDuration())
	defer runCancel()

	// Capture the status code of the main document response
	var statusCode int64
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = resp.Response.Status
			}
		}
	})

	var htmlContent, title string

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(uri),
		chromedp.Sleep(1 * time.Second), // Wait for JavaScript to render
	}
	for _, action := range actions {
		task, err := l.buildAction(action)
		if err != nil {
			return nil, models.NewCrawlError(models.ErrorKindPageLoad, "build ui action", err)
		}
		tasks = append(tasks, task)
	}
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &htmlContent),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, models.NewCrawlError(models.ErrorKindPageLoad, "load "+uri, err)
	}

	if statusCode == 0 {
		statusCode = 200
	}

	result := &interfaces.PageResult{
		URI:        uri,
		StatusCode: int(statusCode),
		HTML:       htmlContent,
		Title:      title,
		Duration:   time.Since(startTime),
	}

	l.logger.Debug().
		Str("uri", uri).
		Int("status_code", result.StatusCode).
		Int("html_size", len(htmlContent)).
		Int("ui_actions", len(actions)).
		Dur("duration", result.Duration).
		Msg("Page loaded")

	return result, nil
}

// buildAction maps one scripted interaction onto a browser task
func (l *ChromedpLoader) buildAction(action models.UIAction) (chromedp.Action, error) {
	settle := time.Duration(action.WaitMs) * time.Millisecond

	switch action.Action {
	case models.UIActionClick:
		if action.Selector == "" {
			return nil, fmt.Errorf("click action requires a selector")
		}
		return chromedp.Tasks{
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.Click(action.Selector, chromedp.ByQuery),
			chromedp.Sleep(settle),
		}, nil

	case models.UIActionInput:
		if action.Selector == "" {
			return nil, fmt.Errorf("type action requires a selector")
		}
		return chromedp.Tasks{
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.SendKeys(action.Selector, action.Value, chromedp.ByQuery),
			chromedp.Sleep(settle),
		}, nil

	case models.UIActionWait:
		if action.Selector != "" {
			return chromedp.WaitVisible(action.Selector, chromedp.ByQuery), nil
		}
		return chromedp.Sleep(settle), nil

	case models.UIActionScroll:
		return chromedp.Tasks{
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(settle),
		}, nil

	default:
		return nil, fmt.Errorf("unknown ui action %q", action.Action)
	}
}
