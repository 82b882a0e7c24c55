package risk

import (
	"math"

	"github.com/rustyeddy/rebalance/indicators"
)

// AnnualizedSharpe is ((mean - rfPerStep) / std) * sqrt(stepsPerYear) over
// per-step returns, with the population std. It is exactly 0 when the std is
// below eps or there are no returns.
func AnnualizedSharpe(returns []float64, rfPerStep, stepsPerYear, eps float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := indicators.Std(returns)
	if std < eps || math.IsNaN(std) {
		return 0
	}
	mean := indicators.Mean(returns)
	return (mean - rfPerStep) / std * math.Sqrt(stepsPerYear)
}

// PeriodReturns converts an equity curve into simple per-step returns. Steps
// from a non-positive value are skipped.
func PeriodReturns(equity []float64) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev <= 0 || math.IsNaN(prev) || math.IsNaN(equity[i]) {
			continue
		}
		out = append(out, equity[i]/prev-1)
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough decline of the equity curve, as a
// fraction of the peak.
func MaxDrawdown(equity []float64) float64 {
	peak := 0.0
	dd := 0.0
	for _, v := range equity {
		if math.IsNaN(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := (peak - v) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}
