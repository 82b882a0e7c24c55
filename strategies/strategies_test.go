package strategies

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFrame(t *testing.T, cols []string, data ...[]float64) *market.Frame {
	t.Helper()
	f, err := market.NewFrame(market.TimeSeries(t0, time.Hour, len(data[0])), cols, data)
	require.NoError(t, err)
	return f
}

func TestPolicyByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Policy
	}{
		{"equal-weight", EqualWeight{}},
		{" Equal_Weight ", EqualWeight{}},
		{"buy-and-hold", BuyAndHold{}},
		{"momentum", Momentum{Lookback: 5}},
	}
	for _, tt := range tests {
		p, err := PolicyByName(tt.name, 5)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, p)
	}

	_, err := PolicyByName("martingale", 0)
	assert.ErrorContains(t, err, "unknown policy")
}

func TestRegister(t *testing.T) {
	custom := portfolio.PolicyFunc(func(o portfolio.Observation) []float64 { return []float64{1} })
	Register("Custom_One", custom)

	p, err := PolicyByName("custom-one", 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, p.Act(portfolio.Observation{}))
	assert.Contains(t, Names(), "custom-one")
}

func TestBuiltinPolicies(t *testing.T) {
	t.Parallel()

	f := newFrame(t, []string{"a_close", "b_close", "c_close"},
		[]float64{100, 100, 110},
		[]float64{10, 12, 15},
		[]float64{5, 5, 4},
	)
	obs := portfolio.Observation{Assets: market.Assets([]string{"a", "b", "c"}), Window: f}

	assert.Equal(t, []float64{1, 0, 0}, BuyAndHold{}.Act(obs))
	for _, w := range (EqualWeight{}).Act(obs) {
		assert.InDelta(t, 1.0/3, w, 1e-12)
	}

	w := Momentum{}.Act(obs)
	assert.InDelta(t, 0.1, w[0], 1e-12)
	assert.InDelta(t, 0.5, w[1], 1e-12)
	assert.Equal(t, 0.0, w[2])

	w = Momentum{Lookback: 1}.Act(obs)
	assert.InDelta(t, 0.25, w[1], 1e-12)

	falling := newFrame(t, []string{"a_close", "b_close"}, []float64{2, 1}, []float64{2, 1})
	obs = portfolio.Observation{Assets: market.Assets([]string{"a", "b"}), Window: falling}
	assert.Equal(t, []float64{0.5, 0.5}, Momentum{}.Act(obs))
}

func TestSignalsPrefersColumn(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	f := newFrame(t, []string{"eth_close", "eth_buy_condition_v1"},
		[]float64{1, 2, 3, 4},
		[]float64{1, 0, nan, 1},
	)
	sig, src := Signals(f, "eth", "")
	assert.Equal(t, FromColumn, src)
	assert.Equal(t, []float64{1, 0, 0, 1}, sig)

	bare := newFrame(t, []string{"eth_close", "flag"}, []float64{1, 2}, []float64{0, 1})
	sig, src = Signals(bare, "eth", "flag")
	assert.Equal(t, FromColumn, src)
	assert.Equal(t, []float64{0, 1}, sig)
}

func TestSignalsFromConditions(t *testing.T) {
	t.Parallel()

	f := newFrame(t, []string{"x_close", "x_macd", "x_macds", "x_rsi_14", "x_sma_50"},
		[]float64{10, 10, 10},
		[]float64{1, 1, 0},
		[]float64{0, 0, 0},
		[]float64{60, 40, 60},
		[]float64{9, 9, 9},
	)
	sig, src := Signals(f, "x", "")
	assert.Equal(t, FromConditions, src)
	assert.Equal(t, []float64{1, 0, 0}, sig)
}

func TestSignalsFromLogReturns(t *testing.T) {
	t.Parallel()

	f := newFrame(t, []string{"x_close"}, []float64{100, 101, 102, 103, 90, 91})
	sig, src := Signals(f, "x", "")
	assert.Equal(t, FromLogReturn, src)
	// the first three rows have no 3-bar mean; row 4 falls; row 5 rises but the mean is negative
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 0}, sig)
}
