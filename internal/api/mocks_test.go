package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"stock-analyzer/models"
	"stock-analyzer/pipeline"
	"stock-analyzer/repository"
)

// mockStore implements Store
type mockStore struct {
	healthErr   error
	stocks      []models.Stock
	analyses    map[string][]models.StockAnalysis
	err         error
	invalidated []string
	lastLimit   int
}

func (m *mockStore) Health(ctx context.Context) error {
	return m.healthErr
}

func (m *mockStore) ListStocks(ctx context.Context) ([]models.Stock, error) {
	return m.stocks, m.err
}

func (m *mockStore) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.stocks {
		if m.stocks[i].Ticker == ticker {
			return &m.stocks[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) GetLatestAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	history := m.analyses[ticker]
	if len(history) == 0 {
		return nil, repository.ErrNotFound
	}
	return &history[0], nil
}

func (m *mockStore) GetAnalysisHistory(ctx context.Context, ticker string, limit int) ([]models.StockAnalysis, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	history := m.analyses[ticker]
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (m *mockStore) InvalidateAllCacheForSymbol(ctx context.Context, symbol string) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, symbol)
	return nil
}

// mockRunner implements pipeline.BatchRunner
type mockRunner struct {
	symbols []string
	fail    bool
}

func (m *mockRunner) Run(ctx context.Context, symbols []string) pipeline.RunSummary {
	m.symbols = symbols
	summary := pipeline.RunSummary{StartedAt: time.Now()}
	for _, s := range symbols {
		if m.fail || strings.HasPrefix(s, "BAD") {
			summary.Results = append(summary.Results, pipeline.Result{Symbol: s, Error: "no data"})
			continue
		}
		summary.Results = append(summary.Results, pipeline.Result{Symbol: s, Analysis: &models.StockAnalysis{Symbol: s}})
	}
	summary.FinishedAt = time.Now()
	return summary
}

var errStore = errors.New("connection reset")
