package backtest

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/risk"
	"github.com/rustyeddy/rebalance/simerr"
	"github.com/rustyeddy/rebalance/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(t *testing.T, closes, signals []float64) *Series {
	t.Helper()
	f, err := market.NewFrame(
		market.TimeSeries(t0, time.Hour, len(closes)),
		[]string{"eth_close", "eth_buy_condition_v1"},
		[][]float64{closes, signals},
	)
	require.NoError(t, err)
	s, err := BuildSeries(f, "eth", "", 24, 0.02)
	require.NoError(t, err)
	require.Equal(t, strategies.FromColumn, s.Source)
	return s
}

func run(t *testing.T, s *Series, p Params, j journal.Journal) Result {
	t.Helper()
	eng, err := NewEngine(p, Options{RunID: "test", Journal: j})
	require.NoError(t, err)
	res, err := eng.Run(s)
	require.NoError(t, err)
	return res
}

func sells(trades []journal.Trade) []journal.Trade {
	var out []journal.Trade
	for _, tr := range trades {
		if tr.Side == journal.Sell {
			out = append(out, tr)
		}
	}
	return out
}

func TestSignalExitLiquidates(t *testing.T) {
	t.Parallel()

	s := series(t,
		[]float64{100, 100, 103, 106, 109, 109},
		[]float64{1, 1, 1, 1, 1, 0},
	)
	mem := journal.NewMemory()
	res := run(t, s, DefaultParams(), mem)

	require.Len(t, res.Trades, 2)
	buy, sell := res.Trades[0], res.Trades[1]
	assert.Equal(t, journal.Buy, buy.Side)
	assert.Equal(t, 100.0, buy.Price)
	assert.Empty(t, buy.Reason)
	assert.Equal(t, journal.Sell, sell.Side)
	assert.Equal(t, ReasonSignalExit, sell.Reason)
	assert.InDelta(t, buy.Quantity, sell.Quantity, 1e-12)
	assert.Equal(t, t0.Add(5*time.Hour), sell.Time)

	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 0, res.Losses)
	assert.Greater(t, res.FinalEquity, res.StartCapital)
	assert.Len(t, res.Equity, 6)

	// the ledger and curve stream to the journal as they happen
	assert.Equal(t, res.Trades, mem.Trades())
	assert.Len(t, mem.Equity(), 6)
	assert.Equal(t, "test", mem.Trades()[0].RunID)
	assert.NotEqual(t, mem.Trades()[0].ID, mem.Trades()[1].ID)
}

func TestBuyCostAccounting(t *testing.T) {
	t.Parallel()

	s := series(t, []float64{100, 100, 100, 100}, []float64{1, 1, 1, 1})
	p := DefaultParams()
	res := run(t, s, p, nil)

	require.Len(t, res.Trades, 1)
	buy := res.Trades[0]
	assert.InDelta(t, buy.Notional*0.002, buy.Fee, 1e-9)
	assert.InDelta(t, (buy.Notional-buy.Fee)/buy.Price, buy.Quantity, 1e-9)
	assert.LessOrEqual(t, buy.Notional, p.StartCapital)

	// flat prices: net worth is cash plus position, down only by the fee
	assert.InDelta(t, p.StartCapital-buy.Fee, res.FinalEquity, 1e-6)
}

func TestStopLossFiresAtFirstBreach(t *testing.T) {
	t.Parallel()

	s := series(t,
		[]float64{100, 100, 96, 93, 92.5, 91, 91},
		[]float64{1, 1, 1, 1, 1, 1, 0},
	)
	res := run(t, s, DefaultParams(), nil)

	out := sells(res.Trades)
	require.Len(t, out, 1)
	assert.Equal(t, ReasonStopLoss, out[0].Reason)
	assert.Equal(t, t0.Add(5*time.Hour), out[0].Time)
	assert.Equal(t, 1, res.Losses)

	// flat after the stop; the final bar has the signal off so nothing re-enters
	require.Len(t, res.Trades, 2)
}

func TestPartialTakeProfitOncePerPosition(t *testing.T) {
	t.Parallel()

	s := series(t,
		[]float64{100, 100, 111, 112, 113, 113},
		[]float64{1, 1, 1, 1, 1, 0},
	)
	res := run(t, s, DefaultParams(), nil)

	require.Len(t, res.Trades, 3)
	entry := res.Trades[0]
	tp := res.Trades[1]
	exit := res.Trades[2]

	assert.Equal(t, ReasonPartialTP, tp.Reason)
	assert.Equal(t, t0.Add(2*time.Hour), tp.Time)
	assert.InDelta(t, entry.Quantity/2, tp.Quantity, 1e-12)
	assert.Equal(t, 112.0, tp.Price)

	assert.Equal(t, ReasonSignalExit, exit.Reason)
	assert.InDelta(t, entry.Quantity/2, exit.Quantity, 1e-12)
	assert.Equal(t, 2, res.Wins)
}

func TestExitLevelsTriggerOnExactBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		closes []float64
		reason string
		bar    int
	}{
		{"take profit at +10%", []float64{100, 100, 110, 110, 110, 110}, ReasonPartialTP, 2},
		{"stop at -8%", []float64{100, 100, 92, 92, 92, 92}, ReasonStopLoss, 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := series(t, tt.closes, []float64{1, 1, 1, 1, 1, 0})
			res := run(t, s, DefaultParams(), nil)

			out := sells(res.Trades)
			require.NotEmpty(t, out)
			assert.Equal(t, tt.reason, out[0].Reason)
			assert.Equal(t, t0.Add(time.Duration(tt.bar)*time.Hour), out[0].Time)
		})
	}
}

func TestDataGapCarriesNetWorth(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	s := series(t,
		[]float64{100, nan, 100, 100},
		[]float64{0, 1, 0, 0},
	)
	res := run(t, s, DefaultParams(), nil)

	require.Len(t, res.Gaps, 1)
	assert.Equal(t, 1, res.Gaps[0].Index)
	assert.ErrorIs(t, res.Gaps[0], simerr.ErrDataGap)
	assert.Empty(t, res.Trades)
	for _, p := range res.Equity {
		assert.Equal(t, 100000.0, p.NetWorth)
	}
}

func TestCloseAtEnd(t *testing.T) {
	t.Parallel()

	s := series(t, []float64{100, 100, 101, 102}, []float64{1, 1, 1, 1})
	p := DefaultParams()
	p.CloseAtEnd = true
	res := run(t, s, p, nil)

	require.Len(t, res.Trades, 2)
	last := res.Trades[1]
	assert.Equal(t, ReasonEndOfData, last.Reason)
	assert.Equal(t, 102.0, last.Price)
	assert.InDelta(t, res.FinalEquity, res.Equity[len(res.Equity)-1].NetWorth, 1e-9)
}

func TestBuildSeries(t *testing.T) {
	t.Parallel()

	f, err := market.NewFrame(
		market.TimeSeries(t0, time.Hour, 3),
		[]string{"eth_open", "eth_close"},
		[][]float64{{99, math.NaN(), 102}, {100, 101, 103}},
	)
	require.NoError(t, err)

	s, err := BuildSeries(f, "eth", "", 24, 0.02)
	require.NoError(t, err)
	assert.Equal(t, strategies.FromLogReturn, s.Source)
	assert.Equal(t, 101.0, s.Bars[0].Exec) // next open missing, next close
	assert.Equal(t, 102.0, s.Bars[1].Exec) // next open
	assert.Equal(t, 103.0, s.Bars[2].Exec) // last bar, own close
	for _, b := range s.Bars {
		assert.Equal(t, 0.02, b.Vol)
	}

	_, err = BuildSeries(f, "btc", "", 24, 0.02)
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultParams().Validate())

	bad := DefaultParams()
	bad.StopLossPct = 1.2
	assert.ErrorIs(t, bad.Validate(), simerr.ErrConfig)

	bad = DefaultParams()
	bad.Costs = risk.CostModel{FeeRate: -1}
	assert.ErrorIs(t, bad.Validate(), simerr.ErrConfig)

	_, err := NewEngine(Params{}, Options{})
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

func TestSweep(t *testing.T) {
	t.Parallel()

	s := series(t,
		[]float64{100, 100, 96, 112, 93, 91, 105, 108, 111, 100},
		[]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
	)
	grid := Grid{StopLossPct: []float64{0.05, 0.1}, PartialTPPct: []float64{0.05, 0.2}}
	results, err := Sweep(context.Background(), s, DefaultParams(), grid, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, 0.05, results[0].Params.StopLossPct)
	assert.Equal(t, 0.05, results[0].Params.PartialTPPct)
	assert.Equal(t, 0.1, results[3].Params.StopLossPct)
	assert.Equal(t, 0.2, results[3].Params.PartialTPPct)

	// each run matches a standalone engine with the same params
	for _, r := range results {
		solo := run(t, s, r.Params, nil)
		assert.InDelta(t, solo.FinalEquity, r.FinalEquity, 1e-9)
		assert.Len(t, r.Trades, len(solo.Trades))
	}

	best := Best(results)
	assert.GreaterOrEqual(t, best[0].Sharpe, best[len(best)-1].Sharpe)

	var buf bytes.Buffer
	PrintSweep(&buf, results)
	assert.Contains(t, buf.String(), "SHARPE")

	_, err = Sweep(context.Background(), s, DefaultParams(), Grid{StopLossPct: []float64{-1}}, 1, nil)
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

func TestPrintResultAndRun(t *testing.T) {
	t.Parallel()

	s := series(t, []float64{100, 100, 103, 106, 109, 109}, []float64{1, 1, 1, 1, 1, 0})
	res := run(t, s, DefaultParams(), nil)

	var buf bytes.Buffer
	PrintResult(&buf, res)
	assert.Contains(t, buf.String(), "Backtest Result")
	assert.Contains(t, buf.String(), "Win Rate:      100.00%")

	br := res.Run("data.csv", "1h", "")
	assert.Equal(t, 2, br.Trades)
	assert.Equal(t, "column", br.Signal)
	assert.InDelta(t, res.FinalEquity-res.StartCapital, br.NetPL, 1e-9)
	out, err := br.RenderOrg()
	require.NoError(t, err)
	assert.Contains(t, string(out), "signal_exit")
}
