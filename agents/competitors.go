package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stock-analyzer/analysis"
	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// DefaultMaxCompetitors caps how many peers are looked up per company
const DefaultMaxCompetitors = 5

const competitorSystemPrompt = `You are an equity research analyst comparing a company
with its listed competitors. Use only the data you are given.`

// ErrNoCompetitors is returned when no peer could be analyzed.
var ErrNoCompetitors = errors.New("no competitor data")

// PeerSource lists a company's peers and their basic financials
type PeerSource interface {
	GetCompanyPeers(ctx context.Context, symbol string) ([]string, error)
	GetBasicFinancials(ctx context.Context, symbol string) (models.Record, error)
}

// PeerProfileSource supplies peer profiles and annual key metrics
type PeerProfileSource interface {
	GetProfile(ctx context.Context, symbol string) (models.Record, error)
	GetKeyMetrics(ctx context.Context, symbol, period string, limit int) (models.Records, error)
}

// CompetitorAnalyst gathers valuation data for a company's peers and asks the
// model to describe the competitive landscape.
type CompetitorAnalyst struct {
	llm      LLMService
	peers    PeerSource
	profiles PeerProfileSource
	maxPeers int
}

// NewCompetitorAnalyst creates a new CompetitorAnalyst. maxPeers <= 0 uses
// DefaultMaxCompetitors.
func NewCompetitorAnalyst(llm LLMService, peers PeerSource, profiles PeerProfileSource, maxPeers int) *CompetitorAnalyst {
	if maxPeers <= 0 {
		maxPeers = DefaultMaxCompetitors
	}
	return &CompetitorAnalyst{llm: llm, peers: peers, profiles: profiles, maxPeers: maxPeers}
}

// Analyze returns the landscape summary and the peer snapshots behind it.
// When peers or the model are unavailable the summary carries a placeholder
// and ErrNoCompetitors (or the model error) is returned alongside it.
func (a *CompetitorAnalyst) Analyze(ctx context.Context, profile models.CompanyProfile, businessSummary string) (models.CompetitorAnalysis, error) {
	log := observability.WithSymbol(profile.Symbol).With("component", "competitors")
	result := models.CompetitorAnalysis{Peers: []models.PeerSnapshot{}}

	tickers, err := a.peers.GetCompanyPeers(ctx, profile.Symbol)
	if err != nil {
		result.Summary = models.CompetitorsNoPeers
		return result, fmt.Errorf("%w: peers for %s: %v", ErrNoCompetitors, profile.Symbol, err)
	}

	tickers = distinctPeers(tickers, profile.Symbol, a.maxPeers)
	if len(tickers) == 0 {
		result.Summary = models.CompetitorsNoDistinct
		return result, fmt.Errorf("%w: only %s itself listed", ErrNoCompetitors, profile.Symbol)
	}

	snapshots := make([]*models.PeerSnapshot, len(tickers))
	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshots[i] = a.snapshot(ctx, ticker)
		}()
	}
	wg.Wait()

	for _, s := range snapshots {
		if s != nil {
			result.Peers = append(result.Peers, *s)
		}
	}
	if len(result.Peers) == 0 {
		result.Summary = models.CompetitorsNoData
		return result, fmt.Errorf("%w: no usable data for %d peers", ErrNoCompetitors, len(tickers))
	}
	log.Info("collected peer data", "requested", len(tickers), "usable", len(result.Peers))

	summary, err := a.llm.InvokeWithPrompt(ctx, competitorSystemPrompt, BuildCompetitorPrompt(profile, businessSummary, result.Peers))
	summary = strings.TrimSpace(summary)
	if err == nil && summary == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		log.Warn("competitor analysis AI synthesis failed", "error", err)
		result.Summary = models.CompetitorsAIFailed
		return result, fmt.Errorf("competitor synthesis for %s: %w", profile.Symbol, err)
	}
	result.Summary = summary
	return result, nil
}

// snapshot returns nil when neither a name nor any metric could be found.
// FMP is preferred; Finnhub's TTM ratios fill missing P/E and P/S.
func (a *CompetitorAnalyst) snapshot(ctx context.Context, ticker string) *models.PeerSnapshot {
	log := observability.WithSymbol(ticker).With("component", "competitors")
	s := &models.PeerSnapshot{Ticker: ticker, Name: ticker}

	if rec, err := a.profiles.GetProfile(ctx, ticker); err == nil {
		if name, ok := rec["companyName"].(string); ok && name != "" {
			s.Name = name
		}
		s.MarketCap = analysis.Float(rec, "mktCap")
	} else {
		log.Debug("peer profile unavailable", "error", err)
	}

	if recs, err := a.profiles.GetKeyMetrics(ctx, ticker, "annual", 1); err == nil && len(recs) > 0 {
		s.PERatio = analysis.Float(recs[0], "peRatio")
		s.PSRatio = analysis.Float(recs[0], "priceSalesRatio")
	} else if err != nil {
		log.Debug("peer key metrics unavailable", "error", err)
	}

	if !s.PERatio.Valid || !s.PSRatio.Valid {
		if rec, err := a.peers.GetBasicFinancials(ctx, ticker); err == nil {
			if !s.PERatio.Valid {
				s.PERatio = analysis.Float(rec, "peTTM")
			}
			if !s.PSRatio.Valid {
				s.PSRatio = analysis.Float(rec, "psTTM")
			}
		}
	}

	if s.Name == ticker && !s.MarketCap.Valid && !s.PERatio.Valid && !s.PSRatio.Valid {
		return nil
	}
	return s
}

// distinctPeers drops self and duplicates and keeps at most limit tickers.
func distinctPeers(tickers []string, self string, limit int) []string {
	seen := map[string]bool{strings.ToUpper(self): true}
	var out []string
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// BuildCompetitorPrompt renders the business summary and the peer table.
func BuildCompetitorPrompt(profile models.CompanyProfile, businessSummary string, peers []models.PeerSnapshot) string {
	var b strings.Builder
	company := companyLabel(profile)

	fmt.Fprintf(&b, "Company: %s\n\n", company)
	if models.Usable(businessSummary) {
		fmt.Fprintf(&b, "Business Summary (from 10-K):\n%s\n\n", truncateSummary(businessSummary))
	} else {
		b.WriteString("Business Summary (from 10-K): Not available\n\n")
	}

	b.WriteString("Competitors:\n")
	for _, p := range peers {
		marketCap, pe, ps := "N/A", "N/A", "N/A"
		if p.MarketCap.Valid {
			marketCap = formatMetric(p.MarketCap.Float64, formatAmount)
		}
		if p.PERatio.Valid {
			pe = formatMetric(p.PERatio.Float64, formatRatio)
		}
		if p.PSRatio.Valid {
			ps = formatMetric(p.PSRatio.Float64, formatRatio)
		}
		fmt.Fprintf(&b, "- %s (%s): Market Cap: %s, P/E: %s, P/S: %s\n", p.Name, p.Ticker, marketCap, pe, ps)
	}

	fmt.Fprintf(&b, "\nBased on the business summary of %s and the list of its competitors with their financial metrics, "+
		"provide a concise analysis of the competitive landscape (2-3 paragraphs). "+
		"Highlight key differences in scale (market cap) or valuation (P/E, P/S) and what they suggest about %s's positioning. "+
		"Do not invent information that is not provided. If competitor data is sparse, acknowledge that in the analysis.\n",
		company, company)
	return b.String()
}
