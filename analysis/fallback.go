package analysis

import (
	"github.com/guregu/null/v6"

	"stock-analyzer/models"
)

// Named raw sources a fallback chain can read from.
const (
	KeyMetricsQuarterly = "fmp_key_metrics_quarterly"
	KeyMetricsAnnual    = "fmp_key_metrics_annual"
	BasicFinancials     = "finnhub_basic_financials"
)

// FieldRef names one field in one source. A non-zero Scale multiplies the value.
type FieldRef struct {
	Source string
	Field  string
	Scale  float64
}

// FallbackChain is an ordered list of candidate fields; the first present value wins.
type FallbackChain []FieldRef

// Resolve evaluates the chain against sources and reports which ref supplied the value.
// Zero is a present value.
func (c FallbackChain) Resolve(sources map[string]models.Record) (null.Float, *FieldRef) {
	for i := range c {
		ref := c[i]
		v := Float(sources[ref.Source], ref.Field)
		if !v.Valid {
			continue
		}
		if ref.Scale != 0 {
			v = null.FloatFrom(v.Float64 * ref.Scale)
		}
		return v, &c[i]
	}
	return null.Float{}, nil
}

// ValuationChains is the priority order for each valuation ratio.
var ValuationChains = map[string]FallbackChain{
	models.MetricPERatio: {
		{Source: KeyMetricsQuarterly, Field: "peRatioTTM"},
		{Source: KeyMetricsAnnual, Field: "peRatio"},
		{Source: BasicFinancials, Field: "peTTM"},
	},
	models.MetricPBRatio: {
		{Source: KeyMetricsQuarterly, Field: "priceToBookRatioTTM"},
		{Source: KeyMetricsAnnual, Field: "pbRatio"},
		{Source: BasicFinancials, Field: "pbAnnual"},
	},
	models.MetricPSRatio: {
		{Source: KeyMetricsQuarterly, Field: "priceToSalesRatioTTM"},
		{Source: KeyMetricsAnnual, Field: "priceSalesRatio"},
		{Source: BasicFinancials, Field: "psTTM"},
	},
	models.MetricEVToSales: {
		{Source: KeyMetricsQuarterly, Field: "enterpriseValueOverRevenueTTM"},
		{Source: KeyMetricsAnnual, Field: "enterpriseValueOverRevenue"},
	},
	models.MetricEVToEBITDA: {
		{Source: KeyMetricsQuarterly, Field: "evToEbitdaTTM"},
		{Source: KeyMetricsAnnual, Field: "evToEbitda"},
	},
	// Finnhub reports dividend yield as a percentage.
	models.MetricDividendYield: {
		{Source: KeyMetricsQuarterly, Field: "dividendYieldTTM"},
		{Source: KeyMetricsAnnual, Field: "dividendYield"},
		{Source: BasicFinancials, Field: "dividendYieldAnnual", Scale: 0.01},
	},
}
