package portfolio

import (
	"math"

	"github.com/rustyeddy/rebalance/risk"
)

// Epsilon guards divisions by sums, prices and standard deviations.
const Epsilon = 1e-9

// NormalizeWeights turns an arbitrary action vector into portfolio weights.
// NaN, infinite and negative entries count as 0. When the sum is off from 1
// by more than Epsilon the vector is divided by it; an all-zero vector
// becomes equal weights. Every result lies in [0,1] and sums to 1.
func NormalizeWeights(action []float64) []float64 {
	n := len(action)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	sum := 0.0
	for i, a := range action {
		if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 {
			continue
		}
		out[i] = a
		sum += a
	}

	if sum < Epsilon {
		return EqualWeights(n)
	}
	if math.Abs(sum-1) > Epsilon {
		for i := range out {
			out[i] /= sum
		}
	}
	for i := range out {
		out[i] = risk.Clamp(out[i], 0, 1)
	}
	return out
}

func EqualWeights(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// TradedNotional is sum |to[i]-from[i]| * value: the notional needed to move
// a portfolio of the given value from one set of weights to another.
func TradedNotional(from, to []float64, value float64) float64 {
	total := 0.0
	for i := range to {
		total += math.Abs(to[i]*value - from[i]*value)
	}
	return total
}
