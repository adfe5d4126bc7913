package agents

import (
	"context"
	"errors"
	"strings"
	"sync"

	"stock-analyzer/models"
)

type mockLLMService struct {
	mu       sync.Mutex
	response string
	err      error
	// respond overrides response/err when set
	respond func(systemPrompt, userPrompt string) (string, error)
	prompts []string
}

func (m *mockLLMService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, userPrompt)
	m.mu.Unlock()

	if m.respond != nil {
		return m.respond(systemPrompt, userPrompt)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockLLMService) promptsContaining(s string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prompts {
		if strings.Contains(p, s) {
			out = append(out, p)
		}
	}
	return out
}

type mockFilingSource struct {
	cik       string
	cikErr    error
	filing    *Filing
	filingErr error
	text      string
	textErr   error

	lookups    int
	filingCIK  string
	filingForm []string
}

func (m *mockFilingSource) LookupCIK(ctx context.Context, ticker string) (string, error) {
	m.lookups++
	if m.cikErr != nil {
		return "", m.cikErr
	}
	return m.cik, nil
}

func (m *mockFilingSource) LatestFiling(ctx context.Context, cik string, forms ...string) (*Filing, error) {
	m.filingCIK = cik
	m.filingForm = forms
	if m.filingErr != nil {
		return nil, m.filingErr
	}
	return m.filing, nil
}

func (m *mockFilingSource) FetchFilingText(ctx context.Context, filingURL string) (string, error) {
	if m.textErr != nil {
		return "", m.textErr
	}
	return m.text, nil
}

type mockPeerSource struct {
	peers    []string
	peersErr error
	basic    map[string]models.Record
}

func (m *mockPeerSource) GetCompanyPeers(ctx context.Context, symbol string) ([]string, error) {
	return m.peers, m.peersErr
}

func (m *mockPeerSource) GetBasicFinancials(ctx context.Context, symbol string) (models.Record, error) {
	if rec, ok := m.basic[symbol]; ok {
		return rec, nil
	}
	return nil, errors.New("not found")
}

type mockPeerProfiles struct {
	profiles map[string]models.Record
	metrics  map[string]models.Records

	mu      sync.Mutex
	lookups []string
}

func (m *mockPeerProfiles) GetProfile(ctx context.Context, symbol string) (models.Record, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, symbol)
	m.mu.Unlock()
	if rec, ok := m.profiles[symbol]; ok {
		return rec, nil
	}
	return nil, errors.New("not found")
}

func (m *mockPeerProfiles) GetKeyMetrics(ctx context.Context, symbol, period string, limit int) (models.Records, error) {
	if recs, ok := m.metrics[symbol]; ok {
		return recs, nil
	}
	return nil, errors.New("not found")
}
