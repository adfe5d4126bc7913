package models

import "github.com/guregu/null/v6"

// SensitivityScenario is one perturbed rerun of the DCF projection.
type SensitivityScenario struct {
	Scenario            string     `json:"scenario"`
	DiscountRate        float64    `json:"discount_rate"`
	PerpetualGrowthRate float64    `json:"perpetual_growth_rate"`
	IntrinsicValue      float64    `json:"intrinsic_value"`
	Upside              null.Float `json:"upside"`
}

// DCFAssumptions records the parameters of one DCF run, populated as far as computed.
type DCFAssumptions struct {
	DiscountRate             float64               `json:"discount_rate"`
	PerpetualGrowthRate      float64               `json:"perpetual_growth_rate"`
	ProjectionYears          int                   `json:"projection_years"`
	StartFCF                 null.Float            `json:"start_fcf"`
	StartFCFBasis            string                `json:"start_fcf_basis"`
	FCFGrowthRatesProjection []float64             `json:"fcf_growth_rates_projection"`
	InitialGrowthRateUsed    null.Float            `json:"initial_fcf_growth_rate_used"`
	InitialGrowthRateBasis   string                `json:"initial_fcf_growth_rate_basis"`
	TerminalValue            null.Float            `json:"terminal_value"`
	SensitivityAnalysis      []SensitivityScenario `json:"sensitivity_analysis"`
}

// DCFResult is the base case valuation plus the assumptions behind it.
type DCFResult struct {
	IntrinsicValue   null.Float     `json:"dcf_intrinsic_value"`
	UpsidePercentage null.Float     `json:"dcf_upside_percentage"`
	Assumptions      DCFAssumptions `json:"dcf_assumptions"`
}

// Computed reports whether the base case produced a value.
func (r DCFResult) Computed() bool {
	return r.IntrinsicValue.Valid
}
