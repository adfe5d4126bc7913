package analysis

import (
	"math"

	"github.com/guregu/null/v6"
)

// Growth returns (current - previous) / |previous|.
// A zero previous value yields +Inf or -Inf by the sign of current, or absent
// when current is zero too. Infinities must be removed by Sanitize before a
// metric set leaves the calculator.
func Growth(current, previous null.Float) null.Float {
	if !current.Valid || !previous.Valid {
		return null.Float{}
	}
	cur, prev := current.Float64, previous.Float64
	if prev == 0 {
		switch {
		case cur == 0:
			return null.Float{}
		case cur > 0:
			return null.FloatFrom(math.Inf(1))
		default:
			return null.FloatFrom(math.Inf(-1))
		}
	}
	return null.FloatFrom((cur - prev) / math.Abs(prev))
}

// CAGR returns the compound annual growth rate from start to end over years.
// Sign flips and all-negative series have no meaningful CAGR and yield absent;
// a positive start that ends at zero is a total loss of -1.
func CAGR(end, start null.Float, years float64) null.Float {
	if !end.Valid || !start.Valid || years <= 0 || math.IsNaN(years) {
		return null.Float{}
	}
	e, s := end.Float64, start.Float64
	if s == 0 {
		return null.Float{}
	}
	if (s < 0 && e > 0) || (s > 0 && e < 0) || (s < 0 && e < 0) {
		return null.Float{}
	}
	if e == 0 && s > 0 {
		return null.FloatFrom(-1.0)
	}
	return null.FloatFrom(math.Pow(e/s, 1/years) - 1)
}
