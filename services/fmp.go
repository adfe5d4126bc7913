package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"stock-analyzer/models"
)

// FMP statement endpoints
const (
	StatementIncome   = "income-statement"
	StatementBalance  = "balance-sheet-statement"
	StatementCashFlow = "cash-flow-statement"
)

// Reporting periods accepted by FMP and Finnhub
const (
	PeriodAnnual  = "annual"
	PeriodQuarter = "quarter"
)

// FMPService handles communication with Financial Modeling Prep API
type FMPService struct {
	apiKey  string
	baseURL string
	client  *providerClient
}

// NewFMPService creates a new FMPService instance
func NewFMPService(apiKey string, requestsPerSecond float64) *FMPService {
	return &FMPService{
		apiKey:  apiKey,
		baseURL: "https://financialmodelingprep.com/api/v3",
		client:  newProviderClient(BreakerFMP, requestsPerSecond),
	}
}

// fmpLimit caps the period count at what the plan serves: 15 annual, 60 quarterly
func fmpLimit(period string, limit int) int {
	switch period {
	case PeriodAnnual:
		return min(limit, 15)
	case PeriodQuarter:
		return min(limit, 60)
	default:
		return limit
	}
}

// GetStatements returns up to limit statements of the given kind, newest first
func (s *FMPService) GetStatements(ctx context.Context, symbol, statement, period string, limit int) (models.Records, error) {
	params := url.Values{}
	params.Set("period", period)
	params.Set("limit", strconv.Itoa(fmpLimit(period, limit)))
	return s.getList(ctx, strings.ReplaceAll(statement, "-", "_")+"_"+period, "/"+statement+"/"+url.PathEscape(symbol), params)
}

// GetKeyMetrics returns up to limit key-metric periods, newest first
func (s *FMPService) GetKeyMetrics(ctx context.Context, symbol, period string, limit int) (models.Records, error) {
	params := url.Values{}
	params.Set("period", period)
	params.Set("limit", strconv.Itoa(fmpLimit(period, limit)))
	return s.getList(ctx, "key_metrics_"+period, "/key-metrics/"+url.PathEscape(symbol), params)
}

// GetProfile returns the company profile for a symbol
func (s *FMPService) GetProfile(ctx context.Context, symbol string) (models.Record, error) {
	records, err := s.getList(ctx, "profile", "/profile/"+url.PathEscape(symbol), url.Values{})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no FMP profile for %s: %w", symbol, ErrNotFound)
	}
	return records[0], nil
}

// getList calls an FMP endpoint that answers with a JSON array. FMP reports
// plan and key problems as a 200 with an {"Error Message": ...} object.
func (s *FMPService) getList(ctx context.Context, operation, path string, params url.Values) (models.Records, error) {
	params.Set("apikey", s.apiKey)
	body, err := s.client.get(ctx, operation, s.baseURL+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode FMP %s response: %w", operation, err)
		}
		if msg, ok := obj["Error Message"].(string); ok {
			return nil, fmt.Errorf("FMP %s: %s: %w", operation, msg, ErrUnauthorized)
		}
		return models.Records{obj}, nil
	}

	var records models.Records
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to decode FMP %s response: %w", operation, err)
	}
	return records, nil
}
