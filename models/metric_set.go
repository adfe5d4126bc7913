package models

import (
	"encoding/json"

	"github.com/guregu/null/v6"
)

// Metric names used as keys in MetricSet and as stock_analyses columns.
const (
	MetricPERatio               = "pe_ratio"
	MetricPBRatio               = "pb_ratio"
	MetricPSRatio               = "ps_ratio"
	MetricEVToSales             = "ev_to_sales"
	MetricEVToEBITDA            = "ev_to_ebitda"
	MetricDividendYield         = "dividend_yield"
	MetricEPS                   = "eps"
	MetricNetProfitMargin       = "net_profit_margin"
	MetricGrossProfitMargin     = "gross_profit_margin"
	MetricOperatingProfitMargin = "operating_profit_margin"
	MetricInterestCoverageRatio = "interest_coverage_ratio"
	MetricROE                   = "roe"
	MetricROA                   = "roa"
	MetricROIC                  = "roic"
	MetricDebtToEquity          = "debt_to_equity"
	MetricCurrentRatio          = "current_ratio"
	MetricQuickRatio            = "quick_ratio"
	MetricDebtToEBITDA          = "debt_to_ebitda"
	MetricRevenueGrowthYoY      = "revenue_growth_yoy"
	MetricRevenueGrowthQoQ      = "revenue_growth_qoq"
	MetricRevenueGrowthCAGR3Yr  = "revenue_growth_cagr_3yr"
	MetricRevenueGrowthCAGR5Yr  = "revenue_growth_cagr_5yr"
	MetricEPSGrowthYoY          = "eps_growth_yoy"
	MetricEPSGrowthCAGR3Yr      = "eps_growth_cagr_3yr"
	MetricEPSGrowthCAGR5Yr      = "eps_growth_cagr_5yr"
	MetricFCFPerShare           = "free_cash_flow_per_share"
	MetricFCFYield              = "free_cash_flow_yield"
)

// MetricNames lists every numeric metric in storage order.
var MetricNames = []string{
	MetricPERatio, MetricPBRatio, MetricPSRatio, MetricEVToSales, MetricEVToEBITDA,
	MetricEPS, MetricROE, MetricROA, MetricROIC, MetricDividendYield,
	MetricDebtToEquity, MetricDebtToEBITDA, MetricInterestCoverageRatio,
	MetricCurrentRatio, MetricQuickRatio,
	MetricGrossProfitMargin, MetricOperatingProfitMargin, MetricNetProfitMargin,
	MetricRevenueGrowthYoY, MetricRevenueGrowthQoQ, MetricRevenueGrowthCAGR3Yr, MetricRevenueGrowthCAGR5Yr,
	MetricEPSGrowthYoY, MetricEPSGrowthCAGR3Yr, MetricEPSGrowthCAGR5Yr,
	MetricFCFPerShare, MetricFCFYield,
}

// Trend classifies the direction of a three-year annual series.
type Trend string

const (
	TrendGrowing        Trend = "Growing"
	TrendDeclining      Trend = "Declining"
	TrendDipThenRise    Trend = "Volatile (Dip then Rise)"
	TrendRiseThenDip    Trend = "Volatile (Rise then Dip)"
	TrendMixed          Trend = "Mixed/Stable"
	TrendIncomplete     Trend = "Data Incomplete/Non-Numeric"
	TrendNotEnoughYears Trend = "Data N/A (<3 yrs)"
)

// RevenueSourceUnavailable is the snapshot source when no provider yielded revenue.
const RevenueSourceUnavailable = "N/A"

// RevenueSnapshot records which provider supplied the reconciled quarterly revenue.
type RevenueSnapshot struct {
	QRevenueSource        string     `json:"q_revenue_source"`
	LatestQRevenue        null.Float `json:"latest_q_revenue"`
	AvgHistoricalQRevenue null.Float `json:"avg_historical_q_revenue_for_check"`
}

// MetricSet is the reconciled per-run output of the metrics calculator.
// Every value is either finite or absent once sanitized.
type MetricSet struct {
	Values                map[string]null.Float
	FreeCashFlowTrend     Trend
	RetainedEarningsTrend Trend
	Snapshot              RevenueSnapshot
}

// NewMetricSet returns a MetricSet with every metric absent.
func NewMetricSet() MetricSet {
	values := make(map[string]null.Float, len(MetricNames))
	for _, name := range MetricNames {
		values[name] = null.Float{}
	}
	return MetricSet{
		Values:                values,
		FreeCashFlowTrend:     TrendNotEnoughYears,
		RetainedEarningsTrend: TrendNotEnoughYears,
		Snapshot:              RevenueSnapshot{QRevenueSource: RevenueSourceUnavailable},
	}
}

// Get returns the named metric, absent if unknown.
func (m MetricSet) Get(name string) null.Float {
	return m.Values[name]
}

// Set stores a metric value.
func (m *MetricSet) Set(name string, v null.Float) {
	if m.Values == nil {
		m.Values = make(map[string]null.Float)
	}
	m.Values[name] = v
}

// Clone returns a deep copy.
func (m MetricSet) Clone() MetricSet {
	out := m
	out.Values = make(map[string]null.Float, len(m.Values))
	for k, v := range m.Values {
		out.Values[k] = v
	}
	return out
}

// MarshalJSON flattens the metric set into a single object.
func (m MetricSet) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Values)+3)
	for k, v := range m.Values {
		flat[k] = v
	}
	flat["free_cash_flow_trend"] = m.FreeCashFlowTrend
	flat["retained_earnings_trend"] = m.RetainedEarningsTrend
	flat["key_metrics_snapshot"] = m.Snapshot
	return json.Marshal(flat)
}
