package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stock-analyzer/analysis"
)

func newTestFMPService(baseURL string) *FMPService {
	return &FMPService{apiKey: "test-key", baseURL: baseURL, client: newTestProviderClient(BreakerFMP)}
}

func TestNewFMPService(t *testing.T) {
	service := NewFMPService("test-api-key", 1)
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.baseURL != "https://financialmodelingprep.com/api/v3" {
		t.Errorf("baseURL = %v", service.baseURL)
	}
	if service.client == nil || service.client.name != BreakerFMP {
		t.Error("expected provider client bound to the fmp breaker")
	}
}

func TestFMPLimit(t *testing.T) {
	tests := []struct {
		period string
		limit  int
		want   int
	}{
		{PeriodAnnual, 7, 7},
		{PeriodAnnual, 40, 15},
		{PeriodQuarter, 8, 8},
		{PeriodQuarter, 100, 60},
		{"ttm", 100, 100},
	}
	for _, tt := range tests {
		if got := fmpLimit(tt.period, tt.limit); got != tt.want {
			t.Errorf("fmpLimit(%s, %d) = %d, want %d", tt.period, tt.limit, got, tt.want)
		}
	}
}

func TestFMPService_GetStatements(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/income-statement/AAPL" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("period") != "annual" || q.Get("limit") != "15" || q.Get("apikey") != "test-key" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[
			{"date": "2024-09-28", "revenue": 391035000000, "netIncome": 93736000000},
			{"date": "2023-09-30", "revenue": 383285000000, "netIncome": 96995000000}
		]`)
	}))
	defer server.Close()

	records, err := newTestFMPService(server.URL).GetStatements(context.Background(), "AAPL", StatementIncome, PeriodAnnual, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if rev := analysis.Float(records[0], "revenue"); !rev.Valid || rev.Float64 != 391035000000 {
		t.Errorf("latest revenue = %v", rev)
	}
}

func TestFMPService_GetKeyMetrics(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/key-metrics/MSFT" || r.URL.Query().Get("period") != "quarter" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		fmt.Fprint(w, `[{"peRatio": 35.2, "pbRatio": 12.1}]`)
	}))
	defer server.Close()

	records, err := newTestFMPService(server.URL).GetKeyMetrics(context.Background(), "MSFT", PeriodQuarter, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe := analysis.Float(records[0], "peRatio"); pe.Float64 != 35.2 {
		t.Errorf("peRatio = %v", pe)
	}
}

func TestFMPService_GetProfile(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/profile/AAPL":
			fmt.Fprint(w, `[{"symbol": "AAPL", "companyName": "Apple Inc.", "price": 227.5, "mktCap": 3400000000000, "cik": "0000320193"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	service := newTestFMPService(server.URL)

	profile, err := service.GetProfile(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile["companyName"] != "Apple Inc." {
		t.Errorf("companyName = %v", profile["companyName"])
	}

	_, err = service.GetProfile(context.Background(), "ZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty profile, got %v", err)
	}
}

func TestFMPService_ErrorMessageObject(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message": "Invalid API KEY."}`)
	}))
	defer server.Close()

	_, err := newTestFMPService(server.URL).GetStatements(context.Background(), "AAPL", StatementCashFlow, PeriodAnnual, 7)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFMPService_ServerError(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestFMPService(server.URL).GetStatements(context.Background(), "AAPL", StatementBalance, PeriodAnnual, 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected APIError 500, got %v", err)
	}
}
