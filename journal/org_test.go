package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	trade := Trade{
		ID:       "01HV0000000000000000000000",
		RunID:    "run-1",
		Time:     time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC),
		Asset:    "crypto_eth",
		Side:     Sell,
		Price:    2200.5,
		Quantity: 0.5,
		Notional: 1100.25,
		Fee:      2.2,
		Reason:   "partial_tp",
	}

	result := FormatTradeOrg(trade)

	assert.Contains(t, result, "*** SELL crypto_eth (01HV0000)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: 01HV0000000000000000000000")
	assert.Contains(t, result, ":RUN_ID: run-1")
	assert.Contains(t, result, ":TIME: 2024-03-15T10:30:45Z")
	assert.Contains(t, result, ":PRICE: 2200.50000")
	assert.Contains(t, result, ":NOTIONAL: 1100.25")
	assert.Contains(t, result, ":REASON: partial_tp")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "**** Review")
}

func TestFormatTradeOrgEntryHasNoReason(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(Trade{ID: "short", Asset: "btc", Side: Buy})
	assert.Contains(t, result, "*** BUY btc (short)")
	assert.NotContains(t, result, ":REASON:")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	out := FormatTradesOrg([]Trade{{ID: "a", Side: Buy}, {ID: "b", Side: Sell}})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Contains(t, out, "\n\n\n*** SELL")
}

func TestBacktestRunWriteOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	run := &BacktestRun{
		RunID:           "R42",
		Created:         time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Interval:        "1h",
		Asset:           "crypto_eth",
		Signal:          "buy_condition",
		TargetAnnualVol: 0.6,
		StopLossPct:     0.08,
		PartialTPPct:    0.1,
		FeeRate:         0.001,
		SlippageRate:    0.001,
		Start:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Trades:          2,
		Wins:            1,
		StartBalance:    10000,
		EndBalance:      10900,
		NetPL:           900,
		ReturnPct:       9,
		WinRate:         100,
		MaxDDPct:        1.5,
		OrgPath:         path,
		Ledger:          []Trade{{ID: "T1", Side: Buy, Asset: "crypto_eth"}},
		Notes:           []string{"rallied"},
		NextActions:     []string{"try a tighter stop"},
	}
	require.NoError(t, run.WriteOrg())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "* BACKTEST: buy_condition crypto_eth 1h")
	assert.Contains(t, out, ":RUN_ID:      R42")
	assert.Contains(t, out, ":START_DATE:  2024-01-01")
	assert.Contains(t, out, ":END_BAL:     10900.00")
	assert.Contains(t, out, "| Stop loss %         | 8.00 |")
	assert.Contains(t, out, "- Win Rate:         *100.00%*")
	assert.Contains(t, out, "** Ledger")
	assert.Contains(t, out, "*** BUY crypto_eth (T1)")
	assert.Contains(t, out, "- rallied")
	assert.Contains(t, out, "- [ ] try a tighter stop")
	assert.Contains(t, out, "[2024-06-01 Sat 12:00]")
}

func TestBacktestRunWriteOrgNeedsPath(t *testing.T) {
	t.Parallel()

	err := (&BacktestRun{RunID: "x"}).WriteOrg()
	assert.Error(t, err)
}
