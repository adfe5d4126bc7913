// Package app wires configuration, providers, the LLM backend and storage
// into a ready-to-run analysis pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"stock-analyzer/agents"
	"stock-analyzer/analysis"
	"stock-analyzer/config"
	"stock-analyzer/observability"
	"stock-analyzer/pipeline"
	"stock-analyzer/repository"
	"stock-analyzer/services"
)

// App holds application dependencies. Every optional component is nil when
// its configuration is missing.
type App struct {
	cfg       *config.Config
	repo      repository.RepositoryInterface
	llm       services.LLMService
	analyzer  *pipeline.StockAnalyzer
	runner    *pipeline.Runner
	scheduler *pipeline.Scheduler
}

// New builds the application from configuration. A database or LLM backend
// that fails to initialize is logged and left out rather than failing startup.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	if cfg.HasDatabase() {
		repo, err := repository.NewRepository(ctx, cfg.Database)
		if err != nil {
			observability.Warn("failed to initialize database, running without persistence", "error", err)
		} else {
			a.repo = repo
		}
	} else {
		observability.Warn("DATABASE_URL not set, running without persistence")
	}

	if cfg.HasLLM() {
		llm, err := services.NewLLMService(ctx, cfg)
		if err != nil {
			observability.Warn("failed to initialize LLM backend, qualitative analysis disabled", "provider", cfg.LLM.Provider, "error", err)
		} else {
			a.llm = llm
		}
	} else {
		observability.Warn("LLM credentials not set, qualitative analysis and thesis disabled", "provider", cfg.LLM.Provider)
	}

	return a, a.build()
}

// NewWithDependencies builds an App around an existing repository and LLM backend.
func NewWithDependencies(cfg *config.Config, repo repository.RepositoryInterface, llm services.LLMService) (*App, error) {
	a := &App{cfg: cfg, repo: repo, llm: llm}
	return a, a.build()
}

func (a *App) build() error {
	cfg := a.cfg

	var (
		fmp     services.FMPServiceInterface
		av      services.AlphaVantageServiceInterface
		finnhub services.FinnhubServiceInterface
	)
	if cfg.HasFMP() {
		fmp = services.NewFMPService(cfg.FMP.APIKey, cfg.FMP.RequestsPerSecond)
	} else {
		observability.Warn("FMP_API_KEY not set, statements and key metrics unavailable")
	}
	if cfg.HasAlphaVantage() {
		av = services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.RequestsPerSecond)
	}
	if cfg.HasFinnhub() {
		finnhub = services.NewFinnhubService(cfg.Finnhub.APIKey, cfg.Finnhub.RequestsPerSecond)
	}
	edgar := services.NewEDGARService(cfg.EDGAR.UserAgent, cfg.EDGAR.RequestsPerSecond)

	var (
		cache pipeline.ResponseCache
		store pipeline.StockRepository
	)
	if a.repo != nil {
		cache = a.repo
		store = a.repo
	}

	var (
		qualitative pipeline.QualitativeAnalyzer
		competitors pipeline.CompetitorAnalyzer
		thesis      pipeline.ThesisWriter
	)
	if a.llm != nil {
		if cfg.Pipeline.Qualitative {
			qualitative = agents.NewQualitativeAnalyst(a.llm, edgar)
		}
		if cfg.Pipeline.MaxCompetitors > 0 && fmp != nil && finnhub != nil {
			competitors = agents.NewCompetitorAnalyst(a.llm, finnhub, fmp, cfg.Pipeline.MaxCompetitors)
		}
		thesis = agents.NewThesisAnalyst(a.llm)
	}

	fetcher := pipeline.NewFetcher(fmp, av, finnhub, edgar, cache, pipeline.FetcherConfigFromConfig(cfg))
	engine := analysis.NewEngine(pipeline.ParamsFromConfig(cfg.Analysis))

	a.analyzer = pipeline.NewStockAnalyzer(fetcher, engine, qualitative, competitors, thesis, store)
	a.runner = pipeline.NewRunner(a.analyzer, cfg.Pipeline.MaxConcurrent, time.Duration(cfg.Pipeline.TimeoutSec)*time.Second)
	a.scheduler = pipeline.NewScheduler(a.runner, cfg.Pipeline.Symbols)

	if a.repo != nil {
		if err := a.scheduler.AddTask("@hourly", "clean_expired_cache", time.Minute, a.cleanCache); err != nil {
			return fmt.Errorf("failed to register cache cleanup: %w", err)
		}
	}
	return nil
}

func (a *App) cleanCache(ctx context.Context) error {
	n, err := a.repo.CleanExpiredCache(ctx)
	if err != nil {
		return err
	}
	observability.Debug("expired cache entries removed", "count", n)
	return nil
}

// Close releases the database pool and stops the scheduler
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Repo returns the repository, or nil when no database is configured
func (a *App) Repo() repository.RepositoryInterface {
	return a.repo
}

// Runner returns the batch runner
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Scheduler returns the cron scheduler
func (a *App) Scheduler() *pipeline.Scheduler {
	return a.scheduler
}

// HasLLM reports whether an LLM backend is available
func (a *App) HasLLM() bool {
	return a.llm != nil
}

// Migrate applies pending database migrations
func (a *App) Migrate(ctx context.Context) error {
	if a.repo == nil {
		return repository.ErrDatabaseNotConfigured
	}
	return a.repo.Migrate(ctx)
}

// Analyze runs the pipeline for the given symbols
func (a *App) Analyze(ctx context.Context, symbols []string) pipeline.RunSummary {
	return a.runner.Run(ctx, symbols)
}
