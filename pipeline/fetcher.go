package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stock-analyzer/analysis"
	"stock-analyzer/models"
	"stock-analyzer/observability"
	"stock-analyzer/services"
)

// Cache data types, one per provider response
const (
	DataFMPIncomeAnnual       = "fmp_income_annual"
	DataFMPBalanceAnnual      = "fmp_balance_annual"
	DataFMPCashFlowAnnual     = "fmp_cash_flow_annual"
	DataFMPIncomeQuarterly    = "fmp_income_quarterly"
	DataFMPKeyMetricsAnnual   = "fmp_key_metrics_annual"
	DataFMPKeyMetricsQuarter  = "fmp_key_metrics_quarterly"
	DataFMPProfile            = "fmp_profile"
	DataAVIncomeQuarterly     = "alphavantage_income_quarterly"
	DataAVOverview            = "alphavantage_overview"
	DataFinnhubQuarterly      = "finnhub_financials_quarterly"
	DataFinnhubBasicFinancial = "finnhub_basic_financials"
	DataFinnhubProfile        = "finnhub_profile"
)

// ErrNoProfile is returned when no provider could describe the company.
var ErrNoProfile = errors.New("no company profile available")

// errNotConfigured marks a provider that has no API key
var errNotConfigured = errors.New("provider not configured")

// ResponseCache stores raw provider responses between runs
type ResponseCache interface {
	GetCachedData(ctx context.Context, symbol, dataType string) (json.RawMessage, error)
	SetCachedData(ctx context.Context, symbol, dataType string, data json.RawMessage, ttl time.Duration) error
}

// FetcherConfig controls how much history is requested
type FetcherConfig struct {
	FinancialYears   int
	QuarterlyPeriods int
	CacheTTL         time.Duration
}

// Fetcher gathers every raw input the analysis engine needs for a symbol.
// Any provider may be nil, in which case its data is treated as unavailable.
type Fetcher struct {
	fmp     services.FMPServiceInterface
	av      services.AlphaVantageServiceInterface
	finnhub services.FinnhubServiceInterface
	edgar   services.EDGARServiceInterface
	cache   ResponseCache
	cfg     FetcherConfig
}

// NewFetcher creates a new Fetcher
func NewFetcher(
	fmp services.FMPServiceInterface,
	av services.AlphaVantageServiceInterface,
	finnhub services.FinnhubServiceInterface,
	edgar services.EDGARServiceInterface,
	cache ResponseCache,
	cfg FetcherConfig,
) *Fetcher {
	return &Fetcher{fmp: fmp, av: av, finnhub: finnhub, edgar: edgar, cache: cache, cfg: cfg}
}

// Fetch collects statements, key metrics, quarterly feeds and the company
// profile. Provider failures are logged and leave the corresponding input
// empty; only a missing profile is fatal.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (analysis.Inputs, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	log := observability.WithSymbol(symbol)
	in := analysis.Inputs{Symbol: symbol}

	years, quarters := f.cfg.FinancialYears, f.cfg.QuarterlyPeriods

	var fmpQuarterly, avQuarterly, finnhubQuarterly models.Records
	var fmpQErr, avQErr, finnhubQErr error

	if f.fmp != nil {
		in.IncomeAnnual = f.records(ctx, symbol, DataFMPIncomeAnnual, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetStatements(ctx, symbol, services.StatementIncome, services.PeriodAnnual, years)
		})
		in.BalanceAnnual = f.records(ctx, symbol, DataFMPBalanceAnnual, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetStatements(ctx, symbol, services.StatementBalance, services.PeriodAnnual, years)
		})
		in.CashFlowAnnual = f.records(ctx, symbol, DataFMPCashFlowAnnual, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetStatements(ctx, symbol, services.StatementCashFlow, services.PeriodAnnual, years)
		})
		in.KeyMetricsAnnual = f.records(ctx, symbol, DataFMPKeyMetricsAnnual, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetKeyMetrics(ctx, symbol, services.PeriodAnnual, years)
		})
		in.KeyMetricsQuarterly = f.records(ctx, symbol, DataFMPKeyMetricsQuarter, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetKeyMetrics(ctx, symbol, services.PeriodQuarter, quarters)
		})
		fmpQuarterly, fmpQErr = fetchCached(ctx, f, symbol, DataFMPIncomeQuarterly, func(ctx context.Context) (models.Records, error) {
			return f.fmp.GetStatements(ctx, symbol, services.StatementIncome, services.PeriodQuarter, quarters)
		})
	} else {
		fmpQErr = errNotConfigured
	}

	if f.av != nil {
		avQuarterly, avQErr = fetchCached(ctx, f, symbol, DataAVIncomeQuarterly, func(ctx context.Context) (models.Records, error) {
			return f.av.GetQuarterlyIncome(ctx, symbol)
		})
		if len(avQuarterly) > quarters && quarters > 0 {
			avQuarterly = avQuarterly[:quarters]
		}
	} else {
		avQErr = errNotConfigured
	}

	if f.finnhub != nil {
		finnhubQuarterly, finnhubQErr = fetchCached(ctx, f, symbol, DataFinnhubQuarterly, func(ctx context.Context) (models.Records, error) {
			return f.finnhub.GetFinancialsReported(ctx, symbol, "quarterly", quarters)
		})
		basic, err := fetchCached(ctx, f, symbol, DataFinnhubBasicFinancial, func(ctx context.Context) (models.Record, error) {
			return f.finnhub.GetBasicFinancials(ctx, symbol)
		})
		if err != nil {
			log.Warn("finnhub basic financials unavailable", "error", err)
		}
		in.BasicFinancials = basic
	} else {
		finnhubQErr = errNotConfigured
	}

	in.Quarterly = []analysis.QuarterlyFeed{
		analysis.FMPQuarterlyFeed(fmpQuarterly, fmpQErr),
		analysis.AlphaVantageQuarterlyFeed(avQuarterly, avQErr),
		analysis.FinnhubQuarterlyFeed(finnhubQuarterly, finnhubQErr),
	}

	profile, err := f.profile(ctx, symbol)
	if err != nil {
		return in, err
	}
	in.Profile = profile

	log.Info("fetched provider data",
		"income_years", len(in.IncomeAnnual),
		"cash_flow_years", len(in.CashFlowAnnual),
		"fmp_quarters", len(fmpQuarterly),
		"alphavantage_quarters", len(avQuarterly),
		"finnhub_quarters", len(finnhubQuarterly),
		"profile_source", profile.Source)
	return in, nil
}

// profile tries FMP, then Finnhub, then Alpha Vantage, and resolves the CIK
// through EDGAR when the chosen profile lacks one.
func (f *Fetcher) profile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	log := observability.WithSymbol(symbol)
	var profile *models.CompanyProfile

	if f.fmp != nil {
		rec, err := fetchCached(ctx, f, symbol, DataFMPProfile, func(ctx context.Context) (models.Record, error) {
			return f.fmp.GetProfile(ctx, symbol)
		})
		if err != nil {
			log.Warn("FMP profile unavailable", "error", err)
		}
		profile = analysis.ProfileFromFMP(rec)
	}

	if profile == nil && f.finnhub != nil {
		rec, err := fetchCached(ctx, f, symbol, DataFinnhubProfile, func(ctx context.Context) (models.Record, error) {
			return f.finnhub.GetProfile(ctx, symbol)
		})
		if err != nil {
			log.Warn("Finnhub profile unavailable", "error", err)
		}
		profile = analysis.ProfileFromFinnhub(rec)
	}

	if profile == nil && f.av != nil {
		rec, err := fetchCached(ctx, f, symbol, DataAVOverview, func(ctx context.Context) (models.Record, error) {
			return f.av.GetOverview(ctx, symbol)
		})
		if err != nil {
			log.Warn("Alpha Vantage overview unavailable", "error", err)
		}
		profile = analysis.ProfileFromAlphaVantage(symbol, rec)
	}

	if profile == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoProfile, symbol)
	}
	if profile.Symbol == "" {
		profile.Symbol = symbol
	}

	if profile.CIK == "" && f.edgar != nil {
		cik, err := f.edgar.LookupCIK(ctx, symbol)
		if err != nil {
			log.Warn("CIK lookup failed", "error", err)
		} else {
			profile.CIK = cik
		}
	}
	return profile, nil
}

// records fetches a list response, logging and swallowing failures
func (f *Fetcher) records(ctx context.Context, symbol, dataType string, fetch func(context.Context) (models.Records, error)) models.Records {
	recs, err := fetchCached(ctx, f, symbol, dataType, fetch)
	if err != nil {
		observability.Warn("provider data unavailable", "symbol", symbol, "data_type", dataType, "error", err)
		return nil
	}
	return recs
}

// fetchCached serves a provider response from the cache when fresh, otherwise
// fetches it and stores it. Cache failures never fail the fetch. Errors are
// not cached.
func fetchCached[T any](ctx context.Context, f *Fetcher, symbol, dataType string, fetch func(context.Context) (T, error)) (T, error) {
	metrics := observability.GetMetrics()

	if f.cache != nil {
		raw, err := f.cache.GetCachedData(ctx, symbol, dataType)
		if err != nil {
			observability.Debug("cache read failed", "symbol", symbol, "data_type", dataType, "error", err)
		}
		if raw != nil {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				metrics.RecordCacheLookup(dataType, true)
				return v, nil
			}
		}
		metrics.RecordCacheLookup(dataType, false)
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	if f.cache != nil {
		data, err := json.Marshal(v)
		if err == nil {
			err = f.cache.SetCachedData(ctx, symbol, dataType, data, f.cfg.CacheTTL)
		}
		if err != nil {
			observability.Debug("cache write failed", "symbol", symbol, "data_type", dataType, "error", err)
		}
	}
	return v, nil
}
