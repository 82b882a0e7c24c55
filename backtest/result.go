package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/risk"
	"github.com/rustyeddy/rebalance/simerr"
	"github.com/rustyeddy/rebalance/strategies"
)

// Result is the outcome of one backtest.
type Result struct {
	RunID  string
	Asset  string
	Signal strategies.SignalSource
	Params Params

	Equity []journal.EquityPoint
	Trades []journal.Trade
	Gaps   []simerr.DataGapWarning

	StartCapital float64
	FinalEquity  float64
	ReturnPct    float64
	MaxDrawdown  float64 // fraction of the running peak
	Sharpe       float64
	Wins         int
	Losses       int

	Start time.Time
	End   time.Time
}

func (e *Engine) result(s *Series) Result {
	curve := make([]float64, len(e.equity))
	for i, p := range e.equity {
		curve[i] = p.NetWorth
	}

	r := Result{
		RunID:        e.opts.RunID,
		Asset:        string(s.Asset),
		Signal:       s.Source,
		Params:       e.params,
		Equity:       e.equity,
		Trades:       e.trades,
		Gaps:         e.gaps,
		StartCapital: e.params.StartCapital,
		FinalEquity:  e.last,
		MaxDrawdown:  risk.MaxDrawdown(curve),
		Sharpe:       risk.AnnualizedSharpe(risk.PeriodReturns(curve), 0, e.params.StepsPerYear, 1e-9),
		Wins:         e.wins,
		Losses:       e.losses,
		Start:        s.Bars[0].Time,
		End:          s.Bars[len(s.Bars)-1].Time,
	}
	r.ReturnPct = (r.FinalEquity/r.StartCapital - 1) * 100
	return r
}

// Sells counts the exit fills, which is what wins and losses are scored on.
func (r Result) Sells() int {
	return r.Wins + r.Losses
}

// WinRate is the percentage of exits that made money.
func (r Result) WinRate() float64 {
	if r.Sells() == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Sells()) * 100
}

// Run converts r into the record used for the org report.
func (r Result) Run(dataset, interval, orgPath string) journal.BacktestRun {
	return journal.BacktestRun{
		RunID:           r.RunID,
		Created:         time.Now(),
		Interval:        interval,
		Dataset:         dataset,
		Asset:           r.Asset,
		Signal:          string(r.Signal),
		TargetAnnualVol: r.Params.TargetAnnualVol,
		StopLossPct:     r.Params.StopLossPct,
		PartialTPPct:    r.Params.PartialTPPct,
		FeeRate:         r.Params.Costs.FeeRate,
		SlippageRate:    r.Params.Costs.SlippageRate,
		Start:           r.Start,
		End:             r.End,
		Trades:          len(r.Trades),
		Wins:            r.Wins,
		Losses:          r.Losses,
		DataGaps:        len(r.Gaps),
		StartBalance:    r.StartCapital,
		EndBalance:      r.FinalEquity,
		NetPL:           r.FinalEquity - r.StartCapital,
		ReturnPct:       r.ReturnPct,
		WinRate:         r.WinRate(),
		MaxDDPct:        r.MaxDrawdown * 100,
		Sharpe:          r.Sharpe,
		OrgPath:         orgPath,
		Ledger:          r.Trades,
	}
}

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Asset:         %s\n", r.Asset)
	fmt.Fprintf(w, "Signal:        %s\n", r.Signal)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk Configuration")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Target Vol:    %.2f%%\n", r.Params.TargetAnnualVol*100)
	fmt.Fprintf(w, "Stop Loss:     %.2f%%\n", r.Params.StopLossPct*100)
	fmt.Fprintf(w, "Partial TP:    %.2f%%\n", r.Params.PartialTPPct*100)
	fmt.Fprintf(w, "Fee/Slippage:  %.4f / %.4f\n", r.Params.Costs.FeeRate, r.Params.Costs.SlippageRate)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Fills:         %d\n", len(r.Trades))
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate())
	if len(r.Gaps) > 0 {
		fmt.Fprintf(w, "Data Gaps:     %d\n", len(r.Gaps))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %.2f\n", r.StartCapital)
	fmt.Fprintf(w, "Final Equity:  %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", r.Sharpe)
	fmt.Fprintln(w)
}
