package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"stock-analyzer/models"
)

// FinnhubService handles communication with the Finnhub API
type FinnhubService struct {
	apiKey  string
	baseURL string
	client  *providerClient
}

// NewFinnhubService creates a new FinnhubService instance
func NewFinnhubService(apiKey string, requestsPerSecond float64) *FinnhubService {
	return &FinnhubService{
		apiKey:  apiKey,
		baseURL: "https://finnhub.io/api/v1",
		client:  newProviderClient(BreakerFinnhub, requestsPerSecond),
	}
}

// GetFinancialsReported returns as-reported filings, newest first. Each
// record carries a "report" object with "ic", "bs" and "cf" line items.
func (s *FinnhubService) GetFinancialsReported(ctx context.Context, symbol, freq string, count int) (models.Records, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("freq", freq)
	params.Set("count", strconv.Itoa(count))

	var resp struct {
		Symbol string         `json:"symbol"`
		Data   models.Records `json:"data"`
	}
	if err := s.client.getJSON(ctx, "financials_reported", s.url("/stock/financials-reported", params), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetBasicFinancials returns the "metric" object of /stock/metric?metric=all
func (s *FinnhubService) GetBasicFinancials(ctx context.Context, symbol string) (models.Record, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("metric", "all")

	var resp struct {
		Metric models.Record `json:"metric"`
	}
	if err := s.client.getJSON(ctx, "basic_financials", s.url("/stock/metric", params), &resp); err != nil {
		return nil, err
	}
	if len(resp.Metric) == 0 {
		return nil, fmt.Errorf("no Finnhub basic financials for %s: %w", symbol, ErrNotFound)
	}
	return resp.Metric, nil
}

// GetProfile returns /stock/profile2 for a symbol. Share and market-cap
// figures are in millions.
func (s *FinnhubService) GetProfile(ctx context.Context, symbol string) (models.Record, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp models.Record
	if err := s.client.getJSON(ctx, "profile", s.url("/stock/profile2", params), &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("no Finnhub profile for %s: %w", symbol, ErrNotFound)
	}
	return resp, nil
}

// GetCompanyPeers returns the tickers Finnhub groups with symbol. The list
// usually includes symbol itself.
func (s *FinnhubService) GetCompanyPeers(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var peers []string
	if err := s.client.getJSON(ctx, "peers", s.url("/stock/peers", params), &peers); err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("no Finnhub peers for %s: %w", symbol, ErrNotFound)
	}
	return peers, nil
}

func (s *FinnhubService) url(path string, params url.Values) string {
	params.Set("token", s.apiKey)
	return s.baseURL + path + "?" + params.Encode()
}
