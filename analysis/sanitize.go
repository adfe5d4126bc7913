package analysis

import (
	"math"

	"github.com/guregu/null/v6"

	"stock-analyzer/models"
)

// Sanitize returns a copy of m with every NaN or infinite value replaced by
// absent, including the revenue snapshot. All other values, zero included, are
// kept as they are.
func Sanitize(m models.MetricSet) models.MetricSet {
	out := m.Clone()
	for k, v := range out.Values {
		out.Values[k] = finite(v)
	}
	out.Snapshot.LatestQRevenue = finite(out.Snapshot.LatestQRevenue)
	out.Snapshot.AvgHistoricalQRevenue = finite(out.Snapshot.AvgHistoricalQRevenue)
	return out
}

func finite(v null.Float) null.Float {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return null.Float{}
	}
	return v
}
