package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/app"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	seedURI      = flag.String("seed", "", "Enqueue a crawl request for this URI at startup")
	runNow       = flag.Bool("run-now", false, "Trigger the seed scheduler immediately at startup")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Spinneret version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("spinneret.toml"); err == nil {
			configFiles = append(configFiles, "spinneret.toml")
		} else if _, err := os.Stat("deployments/local/spinneret.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/spinneret.toml")
		}
	}

	// Startup order: config, logger, banner, wiring
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Str("log_level", config.Logging.Level).
		Msg("Starting Spinneret")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
		application.Close()
		os.Exit(1)
	}

	if *seedURI != "" {
		enqueueSeed(ctx, application, *seedURI)
	}
	if *runNow {
		application.Scheduler.RunNow()
	}

	// Block until an interrupt or termination signal arrives
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	cancel()

	if err := application.Close(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		os.Exit(1)
	}
}

// enqueueSeed starts a new crawl lineage for a URI given on the command line
func enqueueSeed(ctx context.Context, application *app.App, uri string) {
	request := &models.CrawlRequest{
		URI:                  common.NormalizeURI(uri),
		CorrelationID:        common.NewCorrelationID(),
		CrawlID:              common.NewCrawlID(),
		ContinuationStrategy: models.ContinuationDomainOnly,
		ExpectedPart:         models.PartKindAutodetect,
		CreatedAt:            time.Now(),
	}

	if err := application.Publisher.PublishRequests(ctx, []*models.CrawlRequest{request}); err != nil {
		application.Logger.Error().Err(err).Str("uri", uri).Msg("Failed to enqueue seed request")
		return
	}

	application.Logger.Info().
		Str("uri", request.URI).
		Str("crawl_id", request.CrawlID).
		Msg("Seed request enqueued")
}
