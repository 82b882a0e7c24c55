package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/rebalance/simerr"
)

// MaxCostRate bounds fee+slippage. Beyond it a full rebalance (traded notional
// up to twice the portfolio value) could cost more than the portfolio holds.
const MaxCostRate = 0.5

// Cost is the transaction cost of trading notional:
//
//	notional * (feeRate + slippageRate)
//
// Non-positive or NaN notional costs nothing.
func Cost(notional, feeRate, slippageRate float64) float64 {
	if notional <= 0 || math.IsNaN(notional) {
		return 0
	}
	return notional * (feeRate + slippageRate)
}

// CostModel carries the two rates so both execution paths charge costs the
// same way.
type CostModel struct {
	FeeRate      float64
	SlippageRate float64
}

func (m CostModel) Cost(notional float64) float64 {
	return Cost(notional, m.FeeRate, m.SlippageRate)
}

// Rate is the combined fractional cost per unit of notional.
func (m CostModel) Rate() float64 {
	return m.FeeRate + m.SlippageRate
}

func (m CostModel) Validate() error {
	if m.FeeRate < 0 || math.IsNaN(m.FeeRate) {
		return simerr.Configf("costs.fee_rate", "must be >= 0, got %v", m.FeeRate)
	}
	if m.SlippageRate < 0 || math.IsNaN(m.SlippageRate) {
		return simerr.Configf("costs.slippage_rate", "must be >= 0, got %v", m.SlippageRate)
	}
	if m.Rate() >= MaxCostRate {
		return &simerr.ConfigError{
			Field:    "costs",
			Msg:      "fee_rate + slippage_rate",
			Expected: fmt.Sprintf("< %v", MaxCostRate),
			Actual:   fmt.Sprint(m.Rate()),
		}
	}
	return nil
}
