package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Stock is a tracked company. Ticker is unique.
type Stock struct {
	ID               uuid.UUID  `json:"id"`
	Ticker           string     `json:"ticker"`
	CompanyName      string     `json:"company_name"`
	Industry         string     `json:"industry,omitempty"`
	Sector           string     `json:"sector,omitempty"`
	CIK              string     `json:"cik,omitempty"`
	LastAnalysisDate *time.Time `json:"last_analysis_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewStock creates a Stock from a company profile.
func NewStock(profile CompanyProfile) *Stock {
	name := profile.CompanyName
	if name == "" {
		name = profile.Symbol
	}
	now := time.Now()
	return &Stock{
		ID:          uuid.New(),
		Ticker:      profile.Symbol,
		CompanyName: name,
		Industry:    profile.Industry,
		Sector:      profile.Sector,
		CIK:         profile.CIK,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Placeholders written into summaries when the 10-K could not supply input.
const (
	SectionNotFound           = "Section not found in 10-K document."
	MoatInsufficientInput     = "Insufficient input from 10-K summaries for economic moat analysis."
	IndustryInsufficientInput = "Insufficient input from 10-K (Business Summary missing) for industry analysis."
)

// Competitor summaries written when no landscape could be synthesized.
const (
	CompetitorsNoPeers    = "No peer data found from primary source (Finnhub)."
	CompetitorsNoDistinct = "No distinct competitor tickers identified."
	CompetitorsNoData     = "Could not fetch sufficient data for identified competitors."
	CompetitorsAIFailed   = "AI synthesis of competitor data failed. Basic peer data might be available in snapshot."
)

// QualitativeSummaries are the LLM summaries of the latest 10-K.
type QualitativeSummaries struct {
	BusinessSummary             string         `json:"business_summary"`
	RiskFactorsSummary          string         `json:"risk_factors_summary"`
	ManagementAssessmentSummary string         `json:"management_assessment_summary"`
	EconomicMoatSummary         string         `json:"economic_moat_summary"`
	IndustryTrendsSummary       string         `json:"industry_trends_summary"`
	Sources                     map[string]any `json:"qualitative_sources_summary"`
}

var placeholderPrefixes = []string{
	"AI analysis", "AI summary error", "AI error", AIError,
	"Failed to generate", "No text provided", "Section not found", "Insufficient input",
	"AI synthesis", "No peer data", "No distinct competitor", "Could not fetch",
}

// Usable reports whether a summary carries real content rather than a placeholder.
func Usable(summary string) bool {
	if summary == "" {
		return false
	}
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(summary, p) {
			return false
		}
	}
	return true
}

// AIError marks thesis fields the model failed to produce.
const AIError = "AI Error"

// Confidence levels the thesis analyst asks for.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Thesis is the parsed investment thesis.
type Thesis struct {
	InvestmentThesis string `json:"investment_thesis_full"`
	Decision         string `json:"investment_decision"`
	StrategyType     string `json:"strategy_type"`
	Confidence       string `json:"confidence_level"`
	Reasoning        string `json:"reasoning"`
}

// PeerSnapshot is the valuation data gathered for one competitor.
type PeerSnapshot struct {
	Ticker    string     `json:"ticker"`
	Name      string     `json:"name"`
	MarketCap null.Float `json:"market_cap"`
	PERatio   null.Float `json:"pe_ratio"`
	PSRatio   null.Float `json:"ps_ratio"`
}

// CompetitorAnalysis is the LLM view of the competitive landscape plus the
// peer data it was built from.
type CompetitorAnalysis struct {
	Summary string         `json:"summary"`
	Peers   []PeerSnapshot `json:"peers"`
}

// StockAnalysis is one persisted analysis run for a stock.
type StockAnalysis struct {
	ID             uuid.UUID            `json:"id"`
	StockID        uuid.UUID            `json:"stock_id"`
	Symbol         string               `json:"symbol"`
	AnalysisDate   time.Time            `json:"analysis_date"`
	CurrentPrice   decimal.NullDecimal  `json:"current_price"`
	IntrinsicValue decimal.NullDecimal  `json:"intrinsic_value"`
	Metrics        MetricSet            `json:"metrics"`
	DCF            DCFResult            `json:"dcf"`
	Qualitative    QualitativeSummaries `json:"qualitative"`
	Competitors    CompetitorAnalysis   `json:"competitor_analysis"`
	Thesis         Thesis               `json:"thesis"`
	Warnings       []string             `json:"data_quality_warnings"`
}

// NewStockAnalysis assembles a run result. Price and intrinsic value are kept
// as decimals for storage.
func NewStockAnalysis(stock *Stock, profile CompanyProfile, metrics MetricSet, dcf DCFResult, warnings DataQualityWarnings) *StockAnalysis {
	a := &StockAnalysis{
		ID:           uuid.New(),
		StockID:      stock.ID,
		Symbol:       stock.Ticker,
		AnalysisDate: time.Now(),
		Metrics:      metrics,
		DCF:          dcf,
		Warnings:     warnings.Strings(),
	}
	if profile.Price.Valid {
		a.CurrentPrice = decimal.NewNullDecimal(decimal.NewFromFloat(profile.Price.Float64))
	}
	if dcf.IntrinsicValue.Valid {
		a.IntrinsicValue = decimal.NewNullDecimal(decimal.NewFromFloat(dcf.IntrinsicValue.Float64).Round(4))
	}
	return a
}
