package analysis

// Revenue feed keys accepted in Params.RevenuePriority.
const (
	SourceFMPQuarterly          = "fmp_quarterly"
	SourceAlphaVantageQuarterly = "alphavantage_quarterly"
	SourceFinnhubQuarterly      = "finnhub_quarterly"
)

// Params holds every tunable constant used by the engine.
type Params struct {
	DiscountRate        float64
	PerpetualGrowthRate float64
	ProjectionYears     int

	// Starting FCF growth is clamped to [GrowthFloor, GrowthCap].
	GrowthFloor float64
	GrowthCap   float64

	// Latest annual FCF must exceed this before a DCF is attempted.
	MinStartFCF float64

	// Sensitivity scenarios are skipped when growth comes within this margin of the discount rate.
	SensitivityMargin float64

	DefaultTaxRate     float64
	MaxTaxRate         float64
	DeviationThreshold float64
	RevenueHistory     int
	RevenuePriority    []string
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		DiscountRate:        0.09,
		PerpetualGrowthRate: 0.025,
		ProjectionYears:     5,
		GrowthFloor:         -0.05,
		GrowthCap:           0.15,
		MinStartFCF:         10000,
		SensitivityMargin:   0.001,
		DefaultTaxRate:      0.21,
		MaxTaxRate:          0.50,
		DeviationThreshold:  0.75,
		RevenueHistory:      5,
		RevenuePriority: []string{
			SourceFMPQuarterly,
			SourceAlphaVantageQuarterly,
			SourceFinnhubQuarterly,
		},
	}
}
