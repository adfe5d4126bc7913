package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"stock-analyzer/observability"
)

// Filing identifies one document in EDGAR's archive
type Filing struct {
	Form       string    `json:"form"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"url"`
}

// EDGARService reads the SEC's public EDGAR endpoints. The SEC requires a
// descriptive User-Agent on every request.
type EDGARService struct {
	tickersURL     string
	submissionsURL string
	archivesURL    string
	client         *providerClient

	mu     sync.Mutex
	cikMap map[string]string
}

// NewEDGARService creates a new EDGARService instance
func NewEDGARService(userAgent string, requestsPerSecond float64) *EDGARService {
	client := newProviderClient(BreakerEDGAR, requestsPerSecond)
	client.userAgent = userAgent
	return &EDGARService{
		tickersURL:     "https://www.sec.gov/files/company_tickers.json",
		submissionsURL: "https://data.sec.gov/submissions",
		archivesURL:    "https://www.sec.gov/Archives/edgar/data",
		client:         client,
	}
}

// LookupCIK resolves a ticker to its 10-digit CIK. The ticker map is loaded
// once and kept for the life of the service.
func (s *EDGARService) LookupCIK(ctx context.Context, ticker string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cikMap == nil {
		if err := s.loadCIKMap(ctx); err != nil {
			return "", err
		}
	}

	cik, ok := s.cikMap[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return "", fmt.Errorf("ticker %s not in SEC ticker map: %w", ticker, ErrNotFound)
	}
	return cik, nil
}

// loadCIKMap fetches company_tickers.json: {"0": {"cik_str": 320193, "ticker": "AAPL", ...}, ...}
func (s *EDGARService) loadCIKMap(ctx context.Context) error {
	var resp map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
	}
	if err := s.client.getJSON(ctx, "company_tickers", s.tickersURL, &resp); err != nil {
		return fmt.Errorf("failed to load SEC ticker map: %w", err)
	}

	m := make(map[string]string, len(resp))
	for _, entry := range resp {
		if entry.Ticker == "" {
			continue
		}
		m[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}
	s.cikMap = m
	observability.Info("loaded SEC ticker map", "entries", len(m))
	return nil
}

type submissionsResponse struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// LatestFiling returns the most recent filing of the first form type that
// has any filing, so LatestFiling(ctx, cik, "10-K", "10-K/A") falls back to
// the amendment only when no original 10-K exists.
func (s *EDGARService) LatestFiling(ctx context.Context, cik string, forms ...string) (*Filing, error) {
	cikNum, err := strconv.ParseInt(strings.TrimSpace(cik), 10, 64)
	if err != nil || cikNum <= 0 {
		return nil, fmt.Errorf("invalid CIK %q", cik)
	}
	padded := fmt.Sprintf("%010d", cikNum)

	var resp submissionsResponse
	reqURL := fmt.Sprintf("%s/CIK%s.json", s.submissionsURL, padded)
	if err := s.client.getJSON(ctx, "submissions", reqURL, &resp); err != nil {
		return nil, err
	}

	recent := resp.Filings.Recent
	n := min(len(recent.Form), len(recent.AccessionNumber), len(recent.PrimaryDocument), len(recent.FilingDate))

	for _, form := range forms {
		var matches []Filing
		for i := 0; i < n; i++ {
			if !strings.EqualFold(recent.Form[i], form) {
				continue
			}
			filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
			if err != nil {
				observability.Debug("skipping filing with bad date", "cik", padded, "filing_date", recent.FilingDate[i])
				continue
			}
			matches = append(matches, Filing{
				Form:       recent.Form[i],
				FilingDate: filed,
				URL: fmt.Sprintf("%s/%d/%s/%s", s.archivesURL, cikNum,
					strings.ReplaceAll(recent.AccessionNumber[i], "-", ""), recent.PrimaryDocument[i]),
			})
		}
		if len(matches) > 0 {
			sort.SliceStable(matches, func(a, b int) bool {
				return matches[a].FilingDate.After(matches[b].FilingDate)
			})
			return &matches[0], nil
		}
	}

	return nil, fmt.Errorf("no %s filing for CIK %s: %w", strings.Join(forms, "/"), padded, ErrNotFound)
}

// FetchFilingText downloads a filing document. Documents that are not valid
// UTF-8 are decoded as Latin-1.
func (s *EDGARService) FetchFilingText(ctx context.Context, filingURL string) (string, error) {
	body, err := s.client.get(ctx, "filing_text", filingURL)
	if err != nil {
		return "", err
	}
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode filing text: %w", err)
	}
	return string(decoded), nil
}
