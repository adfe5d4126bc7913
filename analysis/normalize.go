package analysis

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"

	"stock-analyzer/models"
)

// NormalizeIncome converts raw FMP income statements into typed periods.
func NormalizeIncome(records models.Records) []models.IncomePeriod {
	out := make([]models.IncomePeriod, 0, len(records))
	for _, r := range records {
		out = append(out, models.IncomePeriod{
			Date:                 stringField(r, "date"),
			Revenue:              Float(r, "revenue"),
			EPS:                  Float(r, "eps"),
			NetIncome:            Float(r, "netIncome"),
			OperatingIncome:      Float(r, "operatingIncome"),
			InterestExpense:      Float(r, "interestExpense"),
			IncomeTaxExpense:     Float(r, "incomeTaxExpense"),
			IncomeBeforeTax:      Float(r, "incomeBeforeTax"),
			EBITDA:               Float(r, "ebitda"),
			NetProfitMargin:      Float(r, "netProfitMargin"),
			GrossProfitMargin:    Float(r, "grossProfitMargin"),
			OperatingIncomeRatio: Float(r, "operatingIncomeRatio"),
		})
	}
	return out
}

// NormalizeBalance converts raw FMP balance sheets into typed periods.
func NormalizeBalance(records models.Records) []models.BalancePeriod {
	out := make([]models.BalancePeriod, 0, len(records))
	for _, r := range records {
		out = append(out, models.BalancePeriod{
			Date:                    stringField(r, "date"),
			TotalStockholdersEquity: Float(r, "totalStockholdersEquity"),
			TotalAssets:             Float(r, "totalAssets"),
			TotalDebt:               Float(r, "totalDebt"),
			CashAndCashEquivalents:  Float(r, "cashAndCashEquivalents"),
			ShortTermInvestments:    Float(r, "shortTermInvestments"),
			NetReceivables:          Float(r, "netReceivables"),
			TotalCurrentAssets:      Float(r, "totalCurrentAssets"),
			TotalCurrentLiabilities: Float(r, "totalCurrentLiabilities"),
			RetainedEarnings:        Float(r, "retainedEarnings"),
		})
	}
	return out
}

// NormalizeCashFlow converts raw FMP cash flow statements into typed periods.
func NormalizeCashFlow(records models.Records) []models.CashFlowPeriod {
	out := make([]models.CashFlowPeriod, 0, len(records))
	for _, r := range records {
		out = append(out, models.CashFlowPeriod{
			Date:         stringField(r, "date"),
			FreeCashFlow: Float(r, "freeCashFlow"),
		})
	}
	return out
}

// ProfileFromFMP normalizes an FMP /profile entry.
func ProfileFromFMP(r models.Record) *models.CompanyProfile {
	if len(r) == 0 {
		return nil
	}
	return &models.CompanyProfile{
		Symbol:            stringField(r, "symbol"),
		CompanyName:       stringField(r, "companyName"),
		Industry:          stringField(r, "industry"),
		Sector:            stringField(r, "sector"),
		CIK:               PadCIK(stringField(r, "cik")),
		Price:             Float(r, "price"),
		SharesOutstanding: Float(r, "sharesOutstanding"),
		MarketCap:         firstPresent(Float(r, "mktCap"), Float(r, "marketCap")),
		Source:            "FMP",
	}
}

// ProfileFromFinnhub normalizes a Finnhub /stock/profile2 response.
// Finnhub reports market cap and shares in millions and carries no price.
func ProfileFromFinnhub(r models.Record) *models.CompanyProfile {
	if len(r) == 0 {
		return nil
	}
	return &models.CompanyProfile{
		Symbol:            stringField(r, "ticker"),
		CompanyName:       stringField(r, "name"),
		Industry:          stringField(r, "finnhubIndustry"),
		SharesOutstanding: scaled(Float(r, "shareOutstanding"), 1e6),
		MarketCap:         scaled(Float(r, "marketCapitalization"), 1e6),
		Source:            "Finnhub",
	}
}

// ProfileFromAlphaVantage normalizes an Alpha Vantage OVERVIEW response.
// It returns nil when the overview is for a different symbol.
func ProfileFromAlphaVantage(symbol string, r models.Record) *models.CompanyProfile {
	if len(r) == 0 || !strings.EqualFold(stringField(r, "Symbol"), symbol) {
		return nil
	}
	return &models.CompanyProfile{
		Symbol:            stringField(r, "Symbol"),
		CompanyName:       stringField(r, "Name"),
		Industry:          stringField(r, "Industry"),
		Sector:            stringField(r, "Sector"),
		CIK:               PadCIK(stringField(r, "CIK")),
		SharesOutstanding: Float(r, "SharesOutstanding"),
		MarketCap:         Float(r, "MarketCapitalization"),
		Source:            "AlphaVantage",
	}
}

// PadCIK left-pads a CIK to the ten digits EDGAR expects.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if cik == "" {
		return ""
	}
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func stringField(r models.Record, key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

func scaled(v null.Float, factor float64) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(v.Float64 * factor)
}

func firstPresent(values ...null.Float) null.Float {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return null.Float{}
}
