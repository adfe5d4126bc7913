package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"stock-analyzer/agents"
	"stock-analyzer/analysis"
	"stock-analyzer/models"
	"stock-analyzer/services"
)

// mockFMP implements services.FMPServiceInterface
type mockFMP struct {
	statements map[string]models.Records // keyed by statement+"/"+period
	keyMetrics map[string]models.Records // keyed by period
	profile    models.Record
	err        error
	profileErr error
	calls      atomic.Int32
}

func (m *mockFMP) GetStatements(ctx context.Context, symbol, statement, period string, limit int) (models.Records, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.statements[statement+"/"+period], nil
}

func (m *mockFMP) GetKeyMetrics(ctx context.Context, symbol, period string, limit int) (models.Records, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.keyMetrics[period], nil
}

func (m *mockFMP) GetProfile(ctx context.Context, symbol string) (models.Record, error) {
	m.calls.Add(1)
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profile, nil
}

// mockAV implements services.AlphaVantageServiceInterface
type mockAV struct {
	quarterly models.Records
	overview  models.Record
	err       error
}

func (m *mockAV) GetQuarterlyIncome(ctx context.Context, symbol string) (models.Records, error) {
	return m.quarterly, m.err
}

func (m *mockAV) GetOverview(ctx context.Context, symbol string) (models.Record, error) {
	return m.overview, m.err
}

// mockFinnhub implements services.FinnhubServiceInterface
type mockFinnhub struct {
	quarterly models.Records
	basic     models.Record
	profile   models.Record
	peers     []string
	err       error
}

func (m *mockFinnhub) GetFinancialsReported(ctx context.Context, symbol, freq string, count int) (models.Records, error) {
	return m.quarterly, m.err
}

func (m *mockFinnhub) GetBasicFinancials(ctx context.Context, symbol string) (models.Record, error) {
	return m.basic, m.err
}

func (m *mockFinnhub) GetProfile(ctx context.Context, symbol string) (models.Record, error) {
	return m.profile, m.err
}

func (m *mockFinnhub) GetCompanyPeers(ctx context.Context, symbol string) ([]string, error) {
	return m.peers, m.err
}

// mockEDGAR implements services.EDGARServiceInterface
type mockEDGAR struct {
	cik     string
	err     error
	lookups int
}

func (m *mockEDGAR) LookupCIK(ctx context.Context, ticker string) (string, error) {
	m.lookups++
	return m.cik, m.err
}

func (m *mockEDGAR) LatestFiling(ctx context.Context, cik string, forms ...string) (*services.Filing, error) {
	return nil, services.ErrNotFound
}

func (m *mockEDGAR) FetchFilingText(ctx context.Context, filingURL string) (string, error) {
	return "", services.ErrNotFound
}

// memoryCache implements ResponseCache
type memoryCache struct {
	mu     sync.Mutex
	data   map[string]json.RawMessage
	sets   int
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]json.RawMessage)}
}

func (c *memoryCache) GetCachedData(ctx context.Context, symbol, dataType string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.data[symbol+"/"+dataType], nil
}

func (c *memoryCache) SetCachedData(ctx context.Context, symbol, dataType string, data json.RawMessage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[symbol+"/"+dataType] = data
	return nil
}

// mockDataFetcher implements DataFetcher
type mockDataFetcher struct {
	inputs analysis.Inputs
	err    error
}

func (m *mockDataFetcher) Fetch(ctx context.Context, symbol string) (analysis.Inputs, error) {
	if m.err != nil {
		return analysis.Inputs{}, m.err
	}
	in := m.inputs
	in.Symbol = symbol
	return in, nil
}

// mockQualitative implements QualitativeAnalyzer
type mockQualitative struct {
	summaries models.QualitativeSummaries
	err       error
	calls     int
}

func (m *mockQualitative) Analyze(ctx context.Context, profile models.CompanyProfile) (models.QualitativeSummaries, error) {
	m.calls++
	return m.summaries, m.err
}

// mockCompetitors implements CompetitorAnalyzer
type mockCompetitors struct {
	result   models.CompetitorAnalysis
	err      error
	business string
}

func (m *mockCompetitors) Analyze(ctx context.Context, profile models.CompanyProfile, businessSummary string) (models.CompetitorAnalysis, error) {
	m.business = businessSummary
	return m.result, m.err
}

// mockThesis implements ThesisWriter
type mockThesis struct {
	thesis models.Thesis
	input  agents.ThesisInput
	calls  int
}

func (m *mockThesis) Analyze(ctx context.Context, in agents.ThesisInput) models.Thesis {
	m.calls++
	m.input = in
	return m.thesis
}

// mockRepository implements StockRepository
type mockRepository struct {
	upsertErr error
	createErr error
	stocks    []*models.Stock
	analyses  []*models.StockAnalysis
}

func (m *mockRepository) UpsertStock(ctx context.Context, stock *models.Stock) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.stocks = append(m.stocks, stock)
	return nil
}

func (m *mockRepository) CreateStockAnalysis(ctx context.Context, a *models.StockAnalysis) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.analyses = append(m.analyses, a)
	return nil
}

// mockSymbolAnalyzer implements SymbolAnalyzer and tracks peak concurrency
type mockSymbolAnalyzer struct {
	delay    time.Duration
	failFor  map[string]error
	active   atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	analyzed []string
}

func (m *mockSymbolAnalyzer) Analyze(ctx context.Context, symbol string) (*models.StockAnalysis, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.analyzed = append(m.analyzed, symbol)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.failFor[symbol]; err != nil {
		return nil, err
	}
	return &models.StockAnalysis{Symbol: symbol}, nil
}

// mockBatchRunner implements BatchRunner
type mockBatchRunner struct {
	mu      sync.Mutex
	runs    int
	symbols []string
	block   chan struct{}
}

func (m *mockBatchRunner) Run(ctx context.Context, symbols []string) RunSummary {
	m.mu.Lock()
	m.runs++
	m.symbols = symbols
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	return RunSummary{Results: []Result{{Symbol: symbols[0]}}}
}

func (m *mockBatchRunner) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}
