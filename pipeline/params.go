// Package pipeline fetches provider data, runs the analysis engine and the
// LLM analysts, and persists the results for one or many symbols.
package pipeline

import (
	"time"

	"stock-analyzer/analysis"
	"stock-analyzer/config"
)

// ParamsFromConfig overlays the configured valuation constants on the engine defaults.
func ParamsFromConfig(cfg config.AnalysisConfig) analysis.Params {
	p := analysis.DefaultParams()
	p.DiscountRate = cfg.DiscountRate
	p.PerpetualGrowthRate = cfg.PerpetualGrowthRate
	p.ProjectionYears = cfg.ProjectionYears
	p.GrowthFloor = cfg.GrowthFloor
	p.GrowthCap = cfg.GrowthCap
	p.MinStartFCF = cfg.MinStartFCF
	p.DeviationThreshold = cfg.DeviationThreshold
	if len(cfg.RevenuePriority) > 0 {
		p.RevenuePriority = append([]string(nil), cfg.RevenuePriority...)
	}
	return p
}

// FetcherConfigFromConfig derives history depth and cache lifetime from the config.
func FetcherConfigFromConfig(cfg *config.Config) FetcherConfig {
	return FetcherConfig{
		FinancialYears:   cfg.Analysis.FinancialYears,
		QuarterlyPeriods: cfg.Analysis.QuarterlyPeriods,
		CacheTTL:         time.Duration(cfg.Pipeline.CacheTTLMinutes) * time.Minute,
	}
}
