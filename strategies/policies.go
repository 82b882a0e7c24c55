package strategies

import (
	"math"

	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/portfolio"
)

// EqualWeight spreads the portfolio evenly across every asset each step.
type EqualWeight struct{}

func (EqualWeight) Act(obs portfolio.Observation) []float64 {
	return portfolio.EqualWeights(len(obs.Assets))
}

// BuyAndHold puts everything in the first asset and keeps it there.
type BuyAndHold struct{}

func (BuyAndHold) Act(obs portfolio.Observation) []float64 {
	w := make([]float64, len(obs.Assets))
	if len(w) > 0 {
		w[0] = 1
	}
	return w
}

// Momentum weights each asset by its positive close-to-close return over the
// last Lookback rows of the window. With nothing rising it falls back to
// equal weights.
type Momentum struct {
	Lookback int
}

func (m Momentum) Act(obs portfolio.Observation) []float64 {
	n := len(obs.Assets)
	w := make([]float64, n)
	if obs.Window == nil || obs.Window.Len() < 2 {
		return portfolio.EqualWeights(n)
	}

	last := obs.Window.Len() - 1
	first := 0
	if m.Lookback > 0 && m.Lookback < obs.Window.Len() {
		first = last - m.Lookback
	}

	rising := false
	for i, a := range obs.Assets {
		p0 := obs.Window.Value(first, market.CloseColumn(a))
		p1 := obs.Window.Value(last, market.CloseColumn(a))
		if math.IsNaN(p0) || math.IsNaN(p1) || p0 <= 0 {
			continue
		}
		if r := p1/p0 - 1; r > 0 {
			w[i] = r
			rising = true
		}
	}
	if !rising {
		return portfolio.EqualWeights(n)
	}
	return w
}
