package indicators

import "math"

// LogReturns returns ln(p[i]/p[i-1]); the first element, and any element
// touching a NaN or non-positive price, is NaN.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		if i == 0 || !validPrice(prices[i]) || !validPrice(prices[i-1]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// RollingMean is the trailing mean over n values. Positions without n prior
// values, or whose window holds a NaN, are NaN.
func RollingMean(xs []float64, n int) []float64 {
	return rolling(xs, n, Mean)
}

// RollingStd is the trailing sample standard deviation over n values, with
// the same NaN rules as RollingMean.
func RollingStd(xs []float64, n int) []float64 {
	return rolling(xs, n, SampleStd)
}

func rolling(xs []float64, n int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if n < 1 || i+1 < n {
			out[i] = math.NaN()
			continue
		}
		win := xs[i+1-n : i+1]
		if hasNaN(win) {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(win)
	}
	return out
}

// BackFill replaces each NaN with the next non-NaN value. Trailing NaNs stay.
func BackFill(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if math.IsNaN(out[i]) {
			out[i] = next
			continue
		}
		next = out[i]
	}
	return out
}

// ForwardFill replaces each NaN with the previous non-NaN value. Leading NaNs
// stay.
func ForwardFill(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	prev := math.NaN()
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = prev
			continue
		}
		prev = out[i]
	}
	return out
}

// Fill forward-fills then back-fills and replaces whatever is still NaN with
// def. It reports how many values needed def.
func Fill(xs []float64, def float64) ([]float64, int) {
	out := BackFill(ForwardFill(xs))
	n := 0
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = def
			n++
		}
	}
	return out, n
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
