package services

import (
	"context"
	"fmt"
	"net/url"

	"stock-analyzer/models"
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey  string
	baseURL string
	client  *providerClient
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string, requestsPerSecond float64) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co/query",
		client:  newProviderClient(BreakerAlphaVantage, requestsPerSecond),
	}
}

// GetQuarterlyIncome returns INCOME_STATEMENT quarterly reports, newest first.
// Values are strings and may carry the "None" sentinel.
func (s *AlphaVantageService) GetQuarterlyIncome(ctx context.Context, symbol string) (models.Records, error) {
	resp, err := s.query(ctx, "income_quarterly", "INCOME_STATEMENT", symbol)
	if err != nil {
		return nil, err
	}

	raw, ok := resp["quarterlyReports"].([]any)
	if !ok {
		return nil, fmt.Errorf("no Alpha Vantage quarterly reports for %s: %w", symbol, ErrNotFound)
	}
	reports := make(models.Records, 0, len(raw))
	for _, item := range raw {
		if rec, ok := item.(map[string]any); ok {
			reports = append(reports, rec)
		}
	}
	return reports, nil
}

// GetOverview returns the OVERVIEW record for a symbol
func (s *AlphaVantageService) GetOverview(ctx context.Context, symbol string) (models.Record, error) {
	resp, err := s.query(ctx, "overview", "OVERVIEW", symbol)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("no Alpha Vantage overview for %s: %w", symbol, ErrNotFound)
	}
	return resp, nil
}

// query runs one Alpha Vantage function. Throttling and unknown symbols come
// back as 200 responses carrying a Note, Information or Error Message key.
func (s *AlphaVantageService) query(ctx context.Context, operation, function, symbol string) (models.Record, error) {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", s.apiKey)

	var resp models.Record
	if err := s.client.getJSON(ctx, operation, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if err := alphaVantageError(resp); err != nil {
		return nil, fmt.Errorf("alpha vantage %s for %s: %w", function, symbol, err)
	}
	return resp, nil
}

func alphaVantageError(resp models.Record) error {
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := resp[key].(string); ok {
			return fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
	}
	if msg, ok := resp["Error Message"].(string); ok {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return nil
}
