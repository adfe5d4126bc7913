package models

import "github.com/guregu/null/v6"

// Record is one raw provider row as decoded from JSON.
type Record map[string]any

// Records is a newest-first list of raw provider rows.
type Records []Record

// IncomePeriod is one normalized annual income statement.
type IncomePeriod struct {
	Date                 string
	Revenue              null.Float
	EPS                  null.Float
	NetIncome            null.Float
	OperatingIncome      null.Float
	InterestExpense      null.Float
	IncomeTaxExpense     null.Float
	IncomeBeforeTax      null.Float
	EBITDA               null.Float
	NetProfitMargin      null.Float
	GrossProfitMargin    null.Float
	OperatingIncomeRatio null.Float
}

// BalancePeriod is one normalized annual balance sheet.
type BalancePeriod struct {
	Date                    string
	TotalStockholdersEquity null.Float
	TotalAssets             null.Float
	TotalDebt               null.Float
	CashAndCashEquivalents  null.Float
	ShortTermInvestments    null.Float
	NetReceivables          null.Float
	TotalCurrentAssets      null.Float
	TotalCurrentLiabilities null.Float
	RetainedEarnings        null.Float
}

// CashFlowPeriod is one normalized annual cash flow statement.
type CashFlowPeriod struct {
	Date         string
	FreeCashFlow null.Float
}

// CompanyProfile is the provider-agnostic company description.
type CompanyProfile struct {
	Symbol            string     `json:"symbol"`
	CompanyName       string     `json:"company_name"`
	Industry          string     `json:"industry"`
	Sector            string     `json:"sector"`
	CIK               string     `json:"cik"`
	Price             null.Float `json:"price"`
	SharesOutstanding null.Float `json:"shares_outstanding"`
	MarketCap         null.Float `json:"market_cap"`
	Source            string     `json:"source"`
}

// ShareCount prefers reported shares outstanding and falls back to market cap over price.
func (p *CompanyProfile) ShareCount() null.Float {
	if p == nil {
		return null.Float{}
	}
	if p.SharesOutstanding.Valid && p.SharesOutstanding.Float64 > 0 {
		return p.SharesOutstanding
	}
	if p.MarketCap.Valid && p.Price.Valid && p.Price.Float64 != 0 {
		return null.FloatFrom(p.MarketCap.Float64 / p.Price.Float64)
	}
	return null.Float{}
}
