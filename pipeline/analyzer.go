package pipeline

import (
	"context"
	"errors"
	"fmt"

	"stock-analyzer/agents"
	"stock-analyzer/analysis"
	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// DataFetcher gathers the raw engine inputs for a symbol
type DataFetcher interface {
	Fetch(ctx context.Context, symbol string) (analysis.Inputs, error)
}

// QualitativeAnalyzer summarizes the company's latest 10-K
type QualitativeAnalyzer interface {
	Analyze(ctx context.Context, profile models.CompanyProfile) (models.QualitativeSummaries, error)
}

// CompetitorAnalyzer compares the company with its listed peers
type CompetitorAnalyzer interface {
	Analyze(ctx context.Context, profile models.CompanyProfile, businessSummary string) (models.CompetitorAnalysis, error)
}

// ThesisWriter produces the investment thesis
type ThesisWriter interface {
	Analyze(ctx context.Context, in agents.ThesisInput) models.Thesis
}

// StockRepository defines the repository operations needed by StockAnalyzer
type StockRepository interface {
	UpsertStock(ctx context.Context, stock *models.Stock) error
	CreateStockAnalysis(ctx context.Context, analysis *models.StockAnalysis) error
}

// StockAnalyzer runs the full analysis of one symbol: fetch, engine,
// qualitative summaries, competitors, thesis and persistence. Every stage
// after the engine is optional.
type StockAnalyzer struct {
	fetcher     DataFetcher
	engine      *analysis.Engine
	qualitative QualitativeAnalyzer
	competitors CompetitorAnalyzer
	thesis      ThesisWriter
	repo        StockRepository
}

// NewStockAnalyzer creates a new StockAnalyzer
func NewStockAnalyzer(fetcher DataFetcher, engine *analysis.Engine, qualitative QualitativeAnalyzer, competitors CompetitorAnalyzer, thesis ThesisWriter, repo StockRepository) *StockAnalyzer {
	return &StockAnalyzer{
		fetcher:     fetcher,
		engine:      engine,
		qualitative: qualitative,
		competitors: competitors,
		thesis:      thesis,
		repo:        repo,
	}
}

// Analyze runs every stage for symbol. Only a failed fetch or a failed save
// aborts the run; a missing 10-K or a failed LLM call degrades the result.
func (a *StockAnalyzer) Analyze(ctx context.Context, symbol string) (*models.StockAnalysis, error) {
	metrics := observability.GetMetrics()
	metrics.RecordAnalysisRequest(symbol)
	analysisTimer := metrics.NewTimer()
	log := observability.WithSymbol(symbol)

	stageTimer := metrics.NewTimer()
	in, err := a.fetcher.Fetch(ctx, symbol)
	stageTimer.ObserveStage("fetch")
	if err != nil {
		metrics.RecordStageError("fetch", errorType(err))
		metrics.RecordAnalysisError(symbol, "fetch")
		analysisTimer.ObserveAnalysis(symbol, "error")
		return nil, fmt.Errorf("failed to fetch data for %s: %w", symbol, err)
	}
	if in.Profile == nil {
		analysisTimer.ObserveAnalysis(symbol, "error")
		return nil, fmt.Errorf("%w for %s", ErrNoProfile, symbol)
	}
	profile := *in.Profile

	stageTimer = metrics.NewTimer()
	out := a.engine.Analyze(in)
	stageTimer.ObserveStage("engine")
	recordOutcome(metrics, out)

	var qualitative models.QualitativeSummaries
	if a.qualitative != nil {
		stageTimer = metrics.NewTimer()
		qualitative, err = a.qualitative.Analyze(ctx, profile)
		stageTimer.ObserveStage("qualitative")
		if err != nil {
			metrics.RecordStageError("qualitative", errorType(err))
			log.Warn("qualitative analysis incomplete", "error", err)
		}
	}

	var competitors models.CompetitorAnalysis
	if a.competitors != nil {
		stageTimer = metrics.NewTimer()
		competitors, err = a.competitors.Analyze(ctx, profile, qualitative.BusinessSummary)
		stageTimer.ObserveStage("competitors")
		if err != nil {
			metrics.RecordStageError("competitors", errorType(err))
			log.Warn("competitor analysis incomplete", "error", err)
		}
	}

	stock := models.NewStock(profile)
	if a.repo != nil {
		if err := a.repo.UpsertStock(ctx, stock); err != nil {
			metrics.RecordStageError("persist", errorType(err))
			metrics.RecordAnalysisError(symbol, "persist")
			analysisTimer.ObserveAnalysis(symbol, "error")
			return nil, fmt.Errorf("failed to save stock %s: %w", symbol, err)
		}
	}

	result := models.NewStockAnalysis(stock, profile, out.Metrics, out.DCF, out.Warnings)
	result.Qualitative = qualitative
	result.Competitors = competitors

	if a.thesis != nil {
		stageTimer = metrics.NewTimer()
		result.Thesis = a.thesis.Analyze(ctx, agents.ThesisInput{
			Profile:     profile,
			Metrics:     out.Metrics,
			DCF:         out.DCF,
			Qualitative: qualitative,
			Competitors: competitors,
			Warnings:    out.Warnings,
		})
		stageTimer.ObserveStage("thesis")
	}

	if a.repo != nil {
		stageTimer = metrics.NewTimer()
		err := a.repo.CreateStockAnalysis(ctx, result)
		stageTimer.ObserveStage("persist")
		if err != nil {
			metrics.RecordStageError("persist", errorType(err))
			metrics.RecordAnalysisError(symbol, "persist")
			analysisTimer.ObserveAnalysis(symbol, "error")
			return nil, fmt.Errorf("failed to save analysis for %s: %w", symbol, err)
		}
	}

	analysisTimer.ObserveAnalysis(symbol, "success")
	log.Info("analysis complete",
		"warnings", len(out.Warnings),
		"dcf_computed", out.DCF.Computed(),
		"decision", result.Thesis.Decision)
	return result, nil
}

func recordOutcome(metrics *observability.Metrics, out analysis.Output) {
	for _, w := range out.Warnings {
		metrics.RecordDataQualityWarning(string(w.Severity))
	}
	if out.DCF.Computed() {
		metrics.RecordDCFOutcome("computed")
		if out.DCF.UpsidePercentage.Valid {
			metrics.RecordDCFUpside(out.DCF.UpsidePercentage.Float64)
		}
		return
	}
	metrics.RecordDCFOutcome("skipped")
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNoProfile):
		return "no_profile"
	case errors.Is(err, agents.ErrNoFiling):
		return "no_filing"
	case errors.Is(err, agents.ErrNoCompetitors):
		return "no_competitors"
	default:
		return "unknown"
	}
}
