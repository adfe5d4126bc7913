package analysis

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// Growth basis labels recorded in DCF assumptions.
const (
	BasisFCFCAGR     = "Historical 3yr FCF CAGR"
	BasisRevenueCAGR = "Proxy: Revenue Growth CAGR (3yr)"
	BasisRevenueYoY  = "Proxy: Revenue Growth YoY"
	BasisDefault     = "Default (Perpetual Growth Rate)"
)

type sensitivityAdjustment struct {
	label       string
	discountAdj float64
	growthAdj   float64
}

var sensitivityAdjustments = []sensitivityAdjustment{
	{label: "Discount Rate -0.5%", discountAdj: -0.005},
	{label: "Discount Rate +0.5%", discountAdj: 0.005},
	{label: "Perp. Growth -0.25%", growthAdj: -0.0025},
	{label: "Perp. Growth +0.25%", growthAdj: 0.0025},
}

// Projection is the outcome of one discounted cash flow run.
type Projection struct {
	PerShare      float64
	Rates         []float64
	TerminalValue float64
}

// Project compounds startFCF along a growth glide path that declines linearly
// from initialGrowth to perpetualGrowth, adds a Gordon terminal value and
// discounts everything to a per-share value. ok is false when years is zero or
// shares is zero. A negative horizon is a caller bug and panics.
func Project(startFCF, initialGrowth, discountRate, perpetualGrowth float64, years int, shares float64) (Projection, bool) {
	mustHorizon(years)
	if years == 0 || shares == 0 {
		return Projection{}, false
	}

	decline := (initialGrowth - perpetualGrowth) / float64(years)
	rates := make([]float64, 0, years)
	fcf := startFCF
	var pv float64
	for i := 0; i < years; i++ {
		rate := math.Max(initialGrowth-decline*float64(i), perpetualGrowth)
		fcf *= 1 + rate
		pv += fcf / math.Pow(1+discountRate, float64(i+1))
		rates = append(rates, round4(rate))
	}

	var terminal float64
	if denom := discountRate - perpetualGrowth; denom > 1e-6 {
		terminal = fcf * (1 + perpetualGrowth) / denom
	} else {
		observability.Warn("discount rate too close to perpetual growth rate, terminal value set to 0",
			"discount_rate", discountRate, "perpetual_growth_rate", perpetualGrowth)
	}
	pv += terminal / math.Pow(1+discountRate, float64(years))

	return Projection{PerShare: pv / shares, Rates: rates, TerminalValue: terminal}, true
}

// mustHorizon panics on a negative projection horizon
func mustHorizon(years int) {
	if years < 0 {
		panic(fmt.Sprintf("dcf: negative projection horizon %d", years))
	}
}

// DCFEngine values a company from its free cash flow history.
type DCFEngine struct {
	params Params
}

// NewDCFEngine creates a DCFEngine.
func NewDCFEngine(p Params) *DCFEngine {
	return &DCFEngine{params: p}
}

// Value runs the base case and the sensitivity grid. Unmet preconditions
// return a result with absent value and upside, never an error.
func (e *DCFEngine) Value(symbol string, cashFlowRecords models.Records, profile *models.CompanyProfile, metrics models.MetricSet, warnings *models.DataQualityWarnings) models.DCFResult {
	p := e.params
	mustHorizon(p.ProjectionYears)
	result := models.DCFResult{
		Assumptions: models.DCFAssumptions{
			DiscountRate:             p.DiscountRate,
			PerpetualGrowthRate:      p.PerpetualGrowthRate,
			ProjectionYears:          p.ProjectionYears,
			StartFCFBasis:            "N/A",
			FCFGrowthRatesProjection: []float64{},
			InitialGrowthRateBasis:   "N/A",
			SensitivityAnalysis:      []models.SensitivityScenario{},
		},
	}
	a := &result.Assumptions
	log := observability.WithSymbol(symbol)

	cash := NormalizeCashFlow(cashFlowRecords)
	var price null.Float
	if profile != nil {
		price = profile.Price
	}
	shares := profile.ShareCount()
	if len(cash) == 0 || profile == nil || !price.Valid || !nonZero(shares) {
		log.Warn("insufficient data for DCF (cash flow statements, profile, price or shares missing)")
		warnings.Add(models.SeverityDataQuality, "DCF valuation skipped: cash flow history, price or share count unavailable.")
		return result
	}

	startFCF := cash[0].FreeCashFlow
	if !startFCF.Valid || startFCF.Float64 <= p.MinStartFCF {
		log.Warn("latest annual FCF below DCF floor, skipping DCF", "fcf", startFCF.ValueOrZero(), "floor", p.MinStartFCF)
		warnings.Add(models.SeverityDataQuality, "DCF valuation skipped: latest annual free cash flow is not substantially positive.")
		return result
	}
	a.StartFCF = startFCF
	date := cash[0].Date
	if date == "" {
		date = "N/A"
	}
	a.StartFCFBasis = fmt.Sprintf("Latest Annual FCF (%s)", date)

	growth, basis := e.initialGrowth(cash, metrics)
	growth = math.Min(math.Max(growth, p.GrowthFloor), p.GrowthCap)
	a.InitialGrowthRateUsed = null.FloatFrom(growth)
	a.InitialGrowthRateBasis = basis

	base, ok := Project(startFCF.Float64, growth, p.DiscountRate, p.PerpetualGrowthRate, p.ProjectionYears, shares.Float64)
	if !ok {
		log.Error("DCF base case calculation failed")
		return result
	}
	result.IntrinsicValue = null.FloatFrom(base.PerShare)
	result.UpsidePercentage = upside(base.PerShare, price.Float64)
	a.FCFGrowthRatesProjection = base.Rates
	a.TerminalValue = null.FloatFrom(base.TerminalValue)

	for _, adj := range sensitivityAdjustments {
		dr := p.DiscountRate + adj.discountAdj
		g := p.PerpetualGrowthRate + adj.growthAdj
		if g >= dr-p.SensitivityMargin {
			log.Debug("skipping DCF sensitivity scenario", "scenario", adj.label, "discount_rate", dr, "perpetual_growth_rate", g)
			continue
		}
		sens, ok := Project(startFCF.Float64, growth, dr, g, p.ProjectionYears, shares.Float64)
		if !ok {
			continue
		}
		a.SensitivityAnalysis = append(a.SensitivityAnalysis, models.SensitivityScenario{
			Scenario:            adj.label,
			DiscountRate:        dr,
			PerpetualGrowthRate: g,
			IntrinsicValue:      sens.PerShare,
			Upside:              upside(sens.PerShare, price.Float64),
		})
	}

	log.Info("DCF complete", "intrinsic_value", base.PerShare, "upside", result.UpsidePercentage.ValueOrZero())
	return result
}

func (e *DCFEngine) initialGrowth(cash []models.CashFlowPeriod, metrics models.MetricSet) (float64, string) {
	if len(cash) >= 4 {
		start := cash[3].FreeCashFlow
		if start.Valid && start.Float64 > 0 {
			if v := CAGR(cash[0].FreeCashFlow, start, 3); v.Valid {
				return v.Float64, BasisFCFCAGR
			}
		}
	}
	if v := metrics.Get(models.MetricRevenueGrowthCAGR3Yr); v.Valid {
		return v.Float64, BasisRevenueCAGR
	}
	if v := metrics.Get(models.MetricRevenueGrowthYoY); v.Valid {
		return v.Float64, BasisRevenueYoY
	}
	return e.params.PerpetualGrowthRate, BasisDefault
}

func upside(value, price float64) null.Float {
	if price == 0 {
		return null.Float{}
	}
	return null.FloatFrom((value - price) / price)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
