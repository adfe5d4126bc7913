package services

import (
	"context"

	"stock-analyzer/models"
)

// LLMService is the text synthesis backend used by the analysts
type LLMService interface {
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FMPServiceInterface defines the Financial Modeling Prep operations
type FMPServiceInterface interface {
	GetStatements(ctx context.Context, symbol, statement, period string, limit int) (models.Records, error)
	GetKeyMetrics(ctx context.Context, symbol, period string, limit int) (models.Records, error)
	GetProfile(ctx context.Context, symbol string) (models.Record, error)
}

// AlphaVantageServiceInterface defines the Alpha Vantage operations
type AlphaVantageServiceInterface interface {
	GetQuarterlyIncome(ctx context.Context, symbol string) (models.Records, error)
	GetOverview(ctx context.Context, symbol string) (models.Record, error)
}

// FinnhubServiceInterface defines the Finnhub operations
type FinnhubServiceInterface interface {
	GetFinancialsReported(ctx context.Context, symbol, freq string, count int) (models.Records, error)
	GetBasicFinancials(ctx context.Context, symbol string) (models.Record, error)
	GetProfile(ctx context.Context, symbol string) (models.Record, error)
	GetCompanyPeers(ctx context.Context, symbol string) ([]string, error)
}

// EDGARServiceInterface defines the SEC EDGAR operations
type EDGARServiceInterface interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	LatestFiling(ctx context.Context, cik string, forms ...string) (*Filing, error)
	FetchFilingText(ctx context.Context, filingURL string) (string, error)
}

// Compile-time interface verification
var _ LLMService = (*OpenAIService)(nil)
var _ LLMService = (*BedrockService)(nil)
var _ LLMService = (*GeminiService)(nil)
var _ FMPServiceInterface = (*FMPService)(nil)
var _ AlphaVantageServiceInterface = (*AlphaVantageService)(nil)
var _ FinnhubServiceInterface = (*FinnhubService)(nil)
var _ EDGARServiceInterface = (*EDGARService)(nil)
