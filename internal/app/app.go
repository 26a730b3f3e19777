// Package app wires configuration, storage, services, the analysis
// orchestrator and the HTTP handlers into one runnable application.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/analyzer"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/handlers"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/publisher"
	"github.com/ternarybob/reperio/internal/services/llm"
	"github.com/ternarybob/reperio/internal/services/places"
	"github.com/ternarybob/reperio/internal/services/scraper"
	"github.com/ternarybob/reperio/internal/services/serp"
	badgerstore "github.com/ternarybob/reperio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager *badgerstore.Manager
	JobStore       interfaces.JobStore

	// Pipeline services
	ScraperService   interfaces.ScraperService
	KeywordGenerator interfaces.KeywordGenerator
	RankChecker      interfaces.RankChecker
	CompetitorFinder interfaces.CompetitorFinder

	Orchestrator *analyzer.Orchestrator
	Publisher    *publisher.Publisher
	Reaper       *Reaper

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AnalysisHandler *handlers.AnalysisHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	reaper, err := NewReaper(app.JobStore, &cfg.Analysis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stale job reaper: %w", err)
	}
	app.Reaper = reaper
	app.Reaper.Start(ctx)

	logger.Info().
		Str("llm_provider", app.KeywordGenerator.ProviderName()).
		Int("max_concurrent_jobs", cfg.Analysis.MaxConcurrentJobs).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := badgerstore.NewManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.JobStore = manager.JobStore()

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	a.ScraperService = scraper.NewService(&a.Config.Scraper, a.Logger)

	generator, err := llm.NewKeywordGenerator(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.KeywordGenerator = generator

	a.RankChecker = serp.NewService(&a.Config.Serp, a.Logger)
	a.CompetitorFinder = places.NewService(&a.Config.PlacesAPI, a.Logger)

	a.Orchestrator = analyzer.NewOrchestrator(a.JobStore, analyzer.Collaborators{
		Scraper:     a.ScraperService,
		Generator:   a.KeywordGenerator,
		RankChecker: a.RankChecker,
		Competitors: a.CompetitorFinder,
	}, a.Config.Analysis, a.Logger)

	a.Publisher = publisher.NewPublisher(a.JobStore, a.Logger, 0)
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.Orchestrator, a.JobStore, a.Publisher, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Publisher, a.Logger)
}

// Shutdown stops background work and closes storage
func (a *App) Shutdown() error {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
