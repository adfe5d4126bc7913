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

func newTestFinnhubService(baseURL string) *FinnhubService {
	return &FinnhubService{apiKey: "test-token", baseURL: baseURL, client: newTestProviderClient(BreakerFinnhub)}
}

func TestFinnhubService_GetFinancialsReported(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/stock/financials-reported" || q.Get("freq") != "quarterly" || q.Get("count") != "8" || q.Get("token") != "test-token" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		fmt.Fprint(w, `{
			"symbol": "AAPL",
			"data": [
				{"year": 2024, "quarter": 4, "report": {"ic": [
					{"concept": "us-gaap_CostOfRevenue", "label": "Cost of sales", "value": 52000000000},
					{"concept": "RevenueFromContractWithCustomerExcludingAssessedTax", "label": "Total net sales", "value": 94930000000}
				]}}
			]
		}`)
	}))
	defer server.Close()

	reports, err := newTestFinnhubService(server.URL).GetFinancialsReported(context.Background(), "AAPL", "quarterly", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rev := analysis.FinnhubConcept(reports, "ic", analysis.FinnhubRevenueConcepts, 0)
	if !rev.Valid || rev.Float64 != 94930000000 {
		t.Errorf("revenue = %v", rev)
	}
}

func TestFinnhubService_GetBasicFinancials(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("metric") != "all" {
			t.Errorf("metric = %s, want all", r.URL.Query().Get("metric"))
		}
		if r.URL.Query().Get("symbol") == "ZZZZ" {
			fmt.Fprint(w, `{"metric": {}}`)
			return
		}
		fmt.Fprint(w, `{"metric": {"peTTM": 37.1, "currentDividendYieldTTM": 0.44}, "series": {}}`)
	}))
	defer server.Close()

	service := newTestFinnhubService(server.URL)
	metric, err := service.GetBasicFinancials(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe := analysis.Float(metric, "peTTM"); pe.Float64 != 37.1 {
		t.Errorf("peTTM = %v", pe)
	}

	if _, err := service.GetBasicFinancials(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFinnhubService_GetProfile(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/profile2" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") == "ZZZZ" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"name": "Apple Inc", "ticker": "AAPL", "shareOutstanding": 15115.82, "marketCapitalization": 3440000}`)
	}))
	defer server.Close()

	service := newTestFinnhubService(server.URL)
	profile, err := service.GetProfile(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile["ticker"] != "AAPL" {
		t.Errorf("ticker = %v", profile["ticker"])
	}

	if _, err := service.GetProfile(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFinnhubService_GetCompanyPeers(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/peers" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") == "ZZZZ" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `["AAPL", "DELL", "HPQ", "SMCI"]`)
	}))
	defer server.Close()

	service := newTestFinnhubService(server.URL)
	peers, err := service.GetCompanyPeers(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peers) != 4 || peers[1] != "DELL" {
		t.Errorf("peers = %v", peers)
	}

	if _, err := service.GetCompanyPeers(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
