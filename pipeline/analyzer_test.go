package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stock-analyzer/agents"
	"stock-analyzer/analysis"
	"stock-analyzer/models"

	"github.com/guregu/null/v6"
)

func analyzerInputs() analysis.Inputs {
	return analysis.Inputs{
		Profile: &models.CompanyProfile{
			Symbol:      "AAPL",
			CompanyName: "Apple Inc.",
			Industry:    "Consumer Electronics",
			CIK:         "0000320193",
			Price:       null.FloatFrom(190),
			Source:      "FMP",
		},
	}
}

func TestStockAnalyzer_Analyze(t *testing.T) {
	qualitative := &mockQualitative{summaries: models.QualitativeSummaries{BusinessSummary: "Sells phones."}}
	thesis := &mockThesis{thesis: models.Thesis{Decision: "Watchlist", Confidence: models.ConfidenceMedium}}
	repo := &mockRepository{}
	a := NewStockAnalyzer(&mockDataFetcher{inputs: analyzerInputs()}, analysis.NewEngine(analysis.DefaultParams()), qualitative, nil, thesis, repo)

	result, err := a.Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", result.Symbol)
	}
	if result.Qualitative.BusinessSummary != "Sells phones." {
		t.Errorf("BusinessSummary = %q", result.Qualitative.BusinessSummary)
	}
	if result.Thesis.Decision != "Watchlist" {
		t.Errorf("Decision = %q, want Watchlist", result.Thesis.Decision)
	}
	if thesis.input.Qualitative.BusinessSummary != "Sells phones." {
		t.Error("thesis writer did not receive the qualitative summaries")
	}
	if len(thesis.input.Warnings) != len(result.Warnings) {
		t.Errorf("thesis saw %d warnings, analysis stored %d", len(thesis.input.Warnings), len(result.Warnings))
	}

	// no cash flow history, so the DCF is skipped with a warning
	if result.DCF.Computed() {
		t.Error("expected DCF to be skipped")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "DCF valuation skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected DCF skip warning, got %v", result.Warnings)
	}

	if len(repo.stocks) != 1 || repo.stocks[0].Ticker != "AAPL" {
		t.Errorf("stocks saved = %+v", repo.stocks)
	}
	if len(repo.analyses) != 1 || repo.analyses[0] != result {
		t.Error("expected the analysis to be saved")
	}
}

func TestStockAnalyzer_OptionalStages(t *testing.T) {
	a := NewStockAnalyzer(&mockDataFetcher{inputs: analyzerInputs()}, analysis.NewEngine(analysis.DefaultParams()), nil, nil, nil, nil)

	result, err := a.Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Thesis.Decision != "" {
		t.Errorf("Decision = %q, want empty without a thesis writer", result.Thesis.Decision)
	}
	if result.Metrics.Values == nil {
		t.Error("expected metrics even without optional stages")
	}
}

func TestStockAnalyzer_QualitativeFailureIsNotFatal(t *testing.T) {
	qualitative := &mockQualitative{err: agents.ErrNoFiling}
	thesis := &mockThesis{thesis: models.Thesis{Decision: "Pass"}}
	repo := &mockRepository{}
	a := NewStockAnalyzer(&mockDataFetcher{inputs: analyzerInputs()}, analysis.NewEngine(analysis.DefaultParams()), qualitative, nil, thesis, repo)

	result, err := a.Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if thesis.calls != 1 {
		t.Errorf("thesis writer called %d times, want 1", thesis.calls)
	}
	if result.Thesis.Decision != "Pass" {
		t.Errorf("Decision = %q", result.Thesis.Decision)
	}
	if len(repo.analyses) != 1 {
		t.Error("expected the analysis to be saved")
	}
}

func TestStockAnalyzer_Competitors(t *testing.T) {
	tests := []struct {
		name        string
		competitors *mockCompetitors
		wantSummary string
	}{
		{
			name: "landscape reaches thesis and result",
			competitors: &mockCompetitors{result: models.CompetitorAnalysis{
				Summary: "Larger than every peer.",
				Peers:   []models.PeerSnapshot{{Ticker: "DELL", Name: "Dell"}},
			}},
			wantSummary: "Larger than every peer.",
		},
		{
			name: "failure is not fatal",
			competitors: &mockCompetitors{
				result: models.CompetitorAnalysis{Summary: models.CompetitorsNoPeers},
				err:    agents.ErrNoCompetitors,
			},
			wantSummary: models.CompetitorsNoPeers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qualitative := &mockQualitative{summaries: models.QualitativeSummaries{BusinessSummary: "Sells phones."}}
			thesis := &mockThesis{}
			repo := &mockRepository{}
			a := NewStockAnalyzer(&mockDataFetcher{inputs: analyzerInputs()}, analysis.NewEngine(analysis.DefaultParams()), qualitative, tt.competitors, thesis, repo)

			result, err := a.Analyze(context.Background(), "AAPL")
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if tt.competitors.business != "Sells phones." {
				t.Errorf("competitor analyst got business summary %q", tt.competitors.business)
			}
			if result.Competitors.Summary != tt.wantSummary {
				t.Errorf("Competitors.Summary = %q, want %q", result.Competitors.Summary, tt.wantSummary)
			}
			if thesis.input.Competitors.Summary != tt.wantSummary {
				t.Errorf("thesis saw competitor summary %q", thesis.input.Competitors.Summary)
			}
			if len(repo.analyses) != 1 {
				t.Error("expected the analysis to be saved")
			}
		})
	}
}

func TestStockAnalyzer_Errors(t *testing.T) {
	fetchErr := errors.New("network down")
	saveErr := errors.New("insert failed")

	tests := []struct {
		name    string
		fetcher *mockDataFetcher
		repo    *mockRepository
		wantErr error
	}{
		{
			name:    "fetch failure",
			fetcher: &mockDataFetcher{err: fetchErr},
			repo:    &mockRepository{},
			wantErr: fetchErr,
		},
		{
			name:    "missing profile",
			fetcher: &mockDataFetcher{},
			repo:    &mockRepository{},
			wantErr: ErrNoProfile,
		},
		{
			name:    "stock upsert failure",
			fetcher: &mockDataFetcher{inputs: analyzerInputs()},
			repo:    &mockRepository{upsertErr: saveErr},
			wantErr: saveErr,
		},
		{
			name:    "analysis insert failure",
			fetcher: &mockDataFetcher{inputs: analyzerInputs()},
			repo:    &mockRepository{createErr: saveErr},
			wantErr: saveErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewStockAnalyzer(tt.fetcher, analysis.NewEngine(analysis.DefaultParams()), nil, nil, nil, tt.repo)
			result, err := a.Analyze(context.Background(), "AAPL")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Analyze() error = %v, want %v", err, tt.wantErr)
			}
			if result != nil {
				t.Error("expected nil result on error")
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{ErrNoProfile, "no_profile"},
		{agents.ErrNoFiling, "no_filing"},
		{agents.ErrNoCompetitors, "no_competitors"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
