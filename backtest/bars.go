package backtest

import (
	"math"
	"time"

	"github.com/rustyeddy/rebalance/indicators"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/simerr"
	"github.com/rustyeddy/rebalance/strategies"
)

// Bar is one row of a single-asset series as the engine sees it.
type Bar struct {
	Time   time.Time
	Close  float64 // NaN when unknown
	Exec   float64 // fill price for orders decided on this bar
	Signal float64 // 1 long, 0 flat
	Vol    float64 // trailing per-step volatility
}

// Series is a prepared single-asset input.
type Series struct {
	Asset  market.AssetKey
	Bars   []Bar
	Source strategies.SignalSource
}

// BuildSeries reads asset's close (and open, when present) from f and
// attaches the signal and trailing volatility.
//
// Fills happen at the next bar's open, falling back to the next close and
// then to this bar's close on the last row. Volatility is the sample std of
// log returns over volWindow bars, back-filled, with defaultVol wherever it
// is still unknown.
func BuildSeries(f *market.Frame, asset market.AssetKey, signalColumn string, volWindow int, defaultVol float64) (*Series, error) {
	closes, ok := f.Column(market.CloseColumn(asset))
	if !ok {
		return nil, &simerr.ConfigError{
			Field:    "data.columns",
			Msg:      "close prices are required for the backtest asset",
			Expected: market.CloseColumn(asset),
			Actual:   "missing",
		}
	}
	opens, hasOpen := f.Column(market.ColumnName(asset, market.OpenFeature))

	signals, src := strategies.Signals(f, asset, signalColumn)
	vol := trailingVol(f, asset, closes, volWindow, defaultVol)

	bars := make([]Bar, f.Len())
	for i := range bars {
		bars[i] = Bar{
			Time:   f.Time(i),
			Close:  closes[i],
			Signal: signals[i],
			Vol:    vol[i],
			Exec:   closes[i],
		}
		if i+1 < len(bars) {
			switch {
			case hasOpen && validPrice(opens[i+1]):
				bars[i].Exec = opens[i+1]
			case validPrice(closes[i+1]):
				bars[i].Exec = closes[i+1]
			}
		}
	}
	return &Series{Asset: asset, Bars: bars, Source: src}, nil
}

func trailingVol(f *market.Frame, asset market.AssetKey, closes []float64, window int, def float64) []float64 {
	lr, ok := f.Column(market.ColumnName(asset, "log_return"))
	if !ok {
		lr = indicators.LogReturns(closes)
	}
	if window < 2 {
		window = 2
	}
	out, _ := indicators.Fill(indicators.BackFill(indicators.RollingStd(lr, window)), def)
	return out
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
