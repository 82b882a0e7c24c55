package strategies

import (
	"math"

	"github.com/rustyeddy/rebalance/indicators"
	"github.com/rustyeddy/rebalance/market"
)

// DefaultSignalColumn is the precomputed buy flag the backtester looks for.
const DefaultSignalColumn = "buy_condition_v1"

// SignalSource records where a signal series came from.
type SignalSource string

const (
	FromColumn     SignalSource = "column"
	FromConditions SignalSource = "conditions"
	FromLogReturn  SignalSource = "log_return"
)

// Signals returns a 0/1 long signal per row for asset.
//
// It prefers a precomputed column (asset-prefixed first, then bare) with
// NaN read as 0. Without one it derives the buy condition from macd, macds,
// rsi_14 and sma_50 when all four exist, and otherwise goes long when the
// log return is positive and its 3-bar mean is positive.
func Signals(f *market.Frame, asset market.AssetKey, column string) ([]float64, SignalSource) {
	if column == "" {
		column = DefaultSignalColumn
	}
	for _, name := range []string{market.ColumnName(asset, column), column} {
		if col, ok := f.Column(name); ok {
			out := make([]float64, len(col))
			for i, v := range col {
				if !math.IsNaN(v) && v > 0.5 {
					out[i] = 1
				}
			}
			return out, FromColumn
		}
	}

	if sig, ok := buyConditions(f, asset); ok {
		return sig, FromConditions
	}
	return logReturnSignal(f, asset), FromLogReturn
}

func buyConditions(f *market.Frame, asset market.AssetKey) ([]float64, bool) {
	get := func(feature string) ([]float64, bool) {
		if c, ok := f.Column(market.ColumnName(asset, feature)); ok {
			return c, true
		}
		return f.Column(feature)
	}
	macd, ok1 := get("macd")
	macds, ok2 := get("macds")
	rsi, ok3 := get("rsi_14")
	sma, ok4 := get("sma_50")
	closes, ok5 := f.Column(market.CloseColumn(asset))
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return nil, false
	}

	out := make([]float64, f.Len())
	for i := range out {
		// comparisons with NaN are false, so gaps read as no signal
		if macd[i] > macds[i] && rsi[i] > 50 && closes[i] > sma[i] {
			out[i] = 1
		}
	}
	return out, true
}

func logReturnSignal(f *market.Frame, asset market.AssetKey) []float64 {
	lr, ok := f.Column(market.ColumnName(asset, "log_return"))
	if !ok {
		closes, _ := f.Column(market.CloseColumn(asset))
		lr = indicators.LogReturns(closes)
	}
	mean := indicators.RollingMean(lr, 3)

	out := make([]float64, len(lr))
	for i := range out {
		if lr[i] > 0 && mean[i] > 0 {
			out[i] = 1
		}
	}
	return out
}
