package analysis

import (
	"math"

	"github.com/guregu/null/v6"

	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// Inputs is every raw record one analysis run consumes. Statement lists are
// newest first.
type Inputs struct {
	Symbol              string
	IncomeAnnual        models.Records
	BalanceAnnual       models.Records
	CashFlowAnnual      models.Records
	KeyMetricsQuarterly models.Records
	KeyMetricsAnnual    models.Records
	BasicFinancials     models.Record
	Profile             *models.CompanyProfile
	Quarterly           []QuarterlyFeed
}

// Calculator derives the flat metric set from raw provider records.
type Calculator struct {
	params     Params
	reconciler *RevenueReconciler
}

// NewCalculator creates a Calculator.
func NewCalculator(p Params) *Calculator {
	return &Calculator{params: p, reconciler: NewRevenueReconciler(p)}
}

// Calculate computes every metric and returns the sanitized set. Anomalies are
// appended to warnings.
func (c *Calculator) Calculate(in Inputs, warnings *models.DataQualityWarnings) models.MetricSet {
	income := NormalizeIncome(in.IncomeAnnual)
	balance := NormalizeBalance(in.BalanceAnnual)
	cash := NormalizeCashFlow(in.CashFlowAnnual)

	sources := map[string]models.Record{
		KeyMetricsQuarterly: first(in.KeyMetricsQuarterly),
		KeyMetricsAnnual:    first(in.KeyMetricsAnnual),
		BasicFinancials:     in.BasicFinancials,
	}

	m := models.NewMetricSet()
	c.valuation(&m, sources)
	c.profitability(in.Symbol, &m, income, balance, sources[KeyMetricsAnnual])
	c.financialHealth(&m, income, balance, sources[KeyMetricsAnnual])
	c.growth(in.Symbol, &m, income, in.Quarterly, warnings)
	c.cashFlow(&m, cash, balance, in.Profile)

	out := Sanitize(m)
	observability.Debug("calculated metrics", "symbol", in.Symbol, "present", countPresent(out))
	return out
}

func (c *Calculator) valuation(m *models.MetricSet, sources map[string]models.Record) {
	for name, chain := range ValuationChains {
		v, _ := chain.Resolve(sources)
		m.Set(name, v)
	}
}

func (c *Calculator) profitability(symbol string, m *models.MetricSet, income []models.IncomePeriod, balance []models.BalancePeriod, kmAnnual models.Record) {
	if len(income) == 0 {
		return
	}
	latest := income[0]
	m.Set(models.MetricEPS, firstPresent(latest.EPS, Float(kmAnnual, "eps")))
	m.Set(models.MetricNetProfitMargin, latest.NetProfitMargin)
	m.Set(models.MetricGrossProfitMargin, latest.GrossProfitMargin)
	m.Set(models.MetricOperatingProfitMargin, latest.OperatingIncomeRatio)

	if latest.OperatingIncome.Valid && latest.InterestExpense.Valid && math.Abs(latest.InterestExpense.Float64) > 1e-6 {
		m.Set(models.MetricInterestCoverageRatio, null.FloatFrom(latest.OperatingIncome.Float64/math.Abs(latest.InterestExpense.Float64)))
	}

	if len(balance) == 0 {
		return
	}
	bal := balance[0]
	equity, assets, netIncome := bal.TotalStockholdersEquity, bal.TotalAssets, latest.NetIncome
	if nonZero(equity) && netIncome.Valid {
		m.Set(models.MetricROE, null.FloatFrom(netIncome.Float64/equity.Float64))
	}
	if nonZero(assets) && netIncome.Valid {
		m.Set(models.MetricROA, null.FloatFrom(netIncome.Float64/assets.Float64))
	}

	taxRate := c.params.DefaultTaxRate
	if latest.IncomeTaxExpense.Valid && nonZero(latest.IncomeBeforeTax) {
		rate := latest.IncomeTaxExpense.Float64 / latest.IncomeBeforeTax.Float64
		if rate >= 0 && rate <= c.params.MaxTaxRate {
			taxRate = rate
		} else {
			observability.Debug("unusual effective tax rate, using default", "symbol", symbol, "rate", rate, "default", taxRate)
		}
	}
	if !latest.OperatingIncome.Valid || !bal.TotalDebt.Valid || !equity.Valid {
		return
	}
	nopat := latest.OperatingIncome.Float64 * (1 - taxRate)
	investedCapital := bal.TotalDebt.Float64 + equity.Float64 - bal.CashAndCashEquivalents.ValueOrZero()
	if investedCapital != 0 {
		m.Set(models.MetricROIC, null.FloatFrom(nopat/investedCapital))
	}
}

func (c *Calculator) financialHealth(m *models.MetricSet, income []models.IncomePeriod, balance []models.BalancePeriod, kmAnnual models.Record) {
	if len(balance) > 0 {
		bal := balance[0]
		de := Float(kmAnnual, "debtToEquity")
		if !de.Valid && bal.TotalDebt.Valid && nonZero(bal.TotalStockholdersEquity) {
			de = null.FloatFrom(bal.TotalDebt.Float64 / bal.TotalStockholdersEquity.Float64)
		}
		m.Set(models.MetricDebtToEquity, de)

		liabilities := bal.TotalCurrentLiabilities
		if bal.TotalCurrentAssets.Valid && nonZero(liabilities) {
			m.Set(models.MetricCurrentRatio, null.FloatFrom(bal.TotalCurrentAssets.Float64/liabilities.Float64))
		}
		if nonZero(liabilities) {
			quick := bal.CashAndCashEquivalents.ValueOrZero() + bal.ShortTermInvestments.ValueOrZero() + bal.NetReceivables.ValueOrZero()
			m.Set(models.MetricQuickRatio, null.FloatFrom(quick/liabilities.Float64))
		}
	}

	ebitda := Float(kmAnnual, "ebitda")
	if !ebitda.Valid && len(income) > 0 {
		ebitda = income[0].EBITDA
	}
	if nonZero(ebitda) && len(balance) > 0 && balance[0].TotalDebt.Valid {
		m.Set(models.MetricDebtToEBITDA, null.FloatFrom(balance[0].TotalDebt.Float64/ebitda.Float64))
	}
}

func (c *Calculator) growth(symbol string, m *models.MetricSet, income []models.IncomePeriod, feeds []QuarterlyFeed, warnings *models.DataQualityWarnings) {
	revenue := func(i int) null.Float {
		if i >= len(income) {
			return null.Float{}
		}
		return income[i].Revenue
	}
	eps := func(i int) null.Float {
		if i >= len(income) {
			return null.Float{}
		}
		return income[i].EPS
	}

	m.Set(models.MetricRevenueGrowthYoY, Growth(revenue(0), revenue(1)))
	m.Set(models.MetricEPSGrowthYoY, Growth(eps(0), eps(1)))
	if len(income) >= 3 {
		m.Set(models.MetricRevenueGrowthCAGR3Yr, CAGR(revenue(0), revenue(2), 2))
		m.Set(models.MetricEPSGrowthCAGR3Yr, CAGR(eps(0), eps(2), 2))
	}
	if len(income) >= 5 {
		m.Set(models.MetricRevenueGrowthCAGR5Yr, CAGR(revenue(0), revenue(4), 4))
		m.Set(models.MetricEPSGrowthCAGR5Yr, CAGR(eps(0), eps(4), 4))
	}

	rec := c.reconciler.Reconcile(symbol, feeds, warnings)
	if !rec.Latest.Valid {
		return
	}
	m.Snapshot = models.RevenueSnapshot{
		QRevenueSource:        rec.Source.String,
		LatestQRevenue:        rec.Latest,
		AvgHistoricalQRevenue: rec.HistoricalAverage,
	}
	m.Set(models.MetricRevenueGrowthQoQ, Growth(rec.Latest, rec.Previous))
}

func (c *Calculator) cashFlow(m *models.MetricSet, cash []models.CashFlowPeriod, balance []models.BalancePeriod, profile *models.CompanyProfile) {
	if len(cash) > 0 {
		fcf := cash[0].FreeCashFlow
		shares := profile.ShareCount()
		if fcf.Valid && nonZero(shares) {
			m.Set(models.MetricFCFPerShare, null.FloatFrom(fcf.Float64/shares.Float64))
			if profile != nil && nonZero(profile.MarketCap) {
				m.Set(models.MetricFCFYield, null.FloatFrom(fcf.Float64/profile.MarketCap.Float64))
			}
		}

		series := make([]null.Float, 0, len(cash))
		for _, p := range cash {
			series = append(series, p.FreeCashFlow)
		}
		m.FreeCashFlowTrend = ClassifyTrend(series)
	}

	retained := make([]null.Float, 0, len(balance))
	for _, p := range balance {
		retained = append(retained, p.RetainedEarnings)
	}
	m.RetainedEarningsTrend = ClassifyTrend(retained)
}

func first(records models.Records) models.Record {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

func nonZero(v null.Float) bool {
	return v.Valid && v.Float64 != 0
}

func countPresent(m models.MetricSet) int {
	n := 0
	for _, v := range m.Values {
		if v.Valid {
			n++
		}
	}
	return n
}
