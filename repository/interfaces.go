package repository

import (
	"context"
	"encoding/json"
	"time"

	"stock-analyzer/models"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
	Migrate(ctx context.Context) error

	// Stocks
	UpsertStock(ctx context.Context, stock *models.Stock) error
	GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error)
	ListStocks(ctx context.Context) ([]models.Stock, error)

	// Analyses
	CreateStockAnalysis(ctx context.Context, analysis *models.StockAnalysis) error
	GetLatestAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error)
	GetAnalysisHistory(ctx context.Context, ticker string, limit int) ([]models.StockAnalysis, error)

	// Cache
	GetCachedData(ctx context.Context, symbol, dataType string) (json.RawMessage, error)
	SetCachedData(ctx context.Context, symbol, dataType string, data json.RawMessage, ttl time.Duration) error
	InvalidateCache(ctx context.Context, symbol, dataType string) error
	InvalidateAllCacheForSymbol(ctx context.Context, symbol string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
