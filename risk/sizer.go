package risk

import (
	"math"
	"time"

	"github.com/rustyeddy/rebalance/simerr"
)

// StepsPerYear converts a sampling interval into the number of steps in a
// year of daysPerYear days, e.g. hourly bars over 365 days => 8760.
func StepsPerYear(interval time.Duration, daysPerYear float64) float64 {
	if interval <= 0 || daysPerYear <= 0 {
		return 0
	}
	return daysPerYear * float64(24*time.Hour) / float64(interval)
}

// Sizer turns trailing realized volatility into a position-size fraction that
// targets an annual volatility. It never levers: the fraction is in [0, 1].
type Sizer struct {
	TargetAnnualVol float64
	StepsPerYear    float64
}

func NewSizer(targetAnnualVol, stepsPerYear float64) (Sizer, error) {
	if targetAnnualVol < 0 || math.IsNaN(targetAnnualVol) {
		return Sizer{}, simerr.Configf("backtest.target_annual_vol", "must be >= 0, got %v", targetAnnualVol)
	}
	if stepsPerYear <= 0 || math.IsNaN(stepsPerYear) {
		return Sizer{}, simerr.Configf("steps_per_year", "must be positive, got %v", stepsPerYear)
	}
	return Sizer{TargetAnnualVol: targetAnnualVol, StepsPerYear: stepsPerYear}, nil
}

// Fraction returns clamp(target / (vol * sqrt(stepsPerYear)), 0, 1). A
// non-positive or NaN vol sizes to 0.
func (s Sizer) Fraction(realizedStepVol float64) float64 {
	if realizedStepVol <= 0 || math.IsNaN(realizedStepVol) || math.IsInf(realizedStepVol, 0) {
		return 0
	}
	annual := realizedStepVol * math.Sqrt(s.StepsPerYear)
	if annual <= 0 {
		return 0
	}
	return Clamp(s.TargetAnnualVol/annual, 0, 1)
}

func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
