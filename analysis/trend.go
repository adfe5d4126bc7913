package analysis

import (
	"github.com/guregu/null/v6"

	"stock-analyzer/models"
)

// ClassifyTrend labels the three most recent annual values (newest first).
// Fewer than three periods yields TrendNotEnoughYears.
func ClassifyTrend(values []null.Float) models.Trend {
	if len(values) < 3 {
		return models.TrendNotEnoughYears
	}
	for _, v := range values[:3] {
		if !v.Valid {
			return models.TrendIncomplete
		}
	}
	v0, v1, v2 := values[0].Float64, values[1].Float64, values[2].Float64
	switch {
	case v0 > v1 && v1 > v2:
		return models.TrendGrowing
	case v0 < v1 && v1 < v2:
		return models.TrendDeclining
	case v0 > v1 && v1 < v2:
		return models.TrendDipThenRise
	case v0 < v1 && v1 > v2:
		return models.TrendRiseThenDip
	default:
		return models.TrendMixed
	}
}
