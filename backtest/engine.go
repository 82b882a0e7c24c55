// Package backtest runs a single-asset long/flat signal through a
// volatility-sized execution loop with stop-loss and partial take-profit
// exits.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/rustyeddy/rebalance/pkg/id"
	"github.com/rustyeddy/rebalance/risk"
	"github.com/rustyeddy/rebalance/simerr"
)

// Exit reasons recorded on sell trades.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonPartialTP  = "partial_tp"
	ReasonSignalExit = "signal_exit"
	ReasonEndOfData  = "end_of_data"
)

// thresholdTol absorbs float error so a bar landing exactly on a stop or
// take-profit level triggers it.
const thresholdTol = 1e-12

// Params are the knobs of one backtest.
type Params struct {
	StartCapital    float64
	TargetAnnualVol float64
	StopLossPct     float64
	PartialTPPct    float64
	StepsPerYear    float64
	Costs           risk.CostModel

	// CloseAtEnd liquidates an open position on the last bar with
	// CloseReason (ReasonEndOfData if empty).
	CloseAtEnd  bool
	CloseReason string
}

// DefaultParams are the reference hourly settings.
func DefaultParams() Params {
	return Params{
		StartCapital:    100000,
		TargetAnnualVol: 0.6,
		StopLossPct:     0.08,
		PartialTPPct:    0.10,
		StepsPerYear:    24 * 365,
		Costs:           risk.CostModel{FeeRate: 0.001, SlippageRate: 0.001},
	}
}

func (p Params) Validate() error {
	if p.StartCapital <= 0 {
		return simerr.Configf("backtest.start_capital", "must be positive, got %v", p.StartCapital)
	}
	if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return simerr.Configf("backtest.stop_loss_pct", "must be in (0,1), got %v", p.StopLossPct)
	}
	if p.PartialTPPct <= 0 {
		return simerr.Configf("backtest.partial_tp_pct", "must be positive, got %v", p.PartialTPPct)
	}
	if _, err := risk.NewSizer(p.TargetAnnualVol, p.StepsPerYear); err != nil {
		return err
	}
	return p.Costs.Validate()
}

// Options wire an engine to its collaborators. All fields are optional.
type Options struct {
	RunID   string
	Journal journal.Journal
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

// position is the open long, if any.
type position struct {
	qty       float64
	entry     float64 // fill price of the entry
	costBasis float64 // cash paid per unit including fees
	bar       int
	tpTaken   bool
}

// Engine walks one Series bar by bar. It owns all of its state and is not
// safe for concurrent use; run one engine per goroutine.
type Engine struct {
	params Params
	opts   Options
	sizer  risk.Sizer
	log    zerolog.Logger

	cash   float64
	pos    *position
	last   float64 // net worth carried across gaps
	trades []journal.Trade
	equity []journal.EquityPoint
	gaps   []simerr.DataGapWarning
	wins   int
	losses int
}

func NewEngine(p Params, opts Options) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sizer, _ := risk.NewSizer(p.TargetAnnualVol, p.StepsPerYear)
	if opts.RunID == "" {
		opts.RunID = id.New()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard
	}
	return &Engine{
		params: p,
		opts:   opts,
		sizer:  sizer,
		log:    opts.Logger.With().Str("component", "backtest").Str("run_id", opts.RunID).Logger(),
	}, nil
}

// Run walks s from the first bar to the last and returns the result. The
// engine is reset at the start so it can be reused.
func (e *Engine) Run(s *Series) (Result, error) {
	if s == nil || len(s.Bars) == 0 {
		return Result{}, fmt.Errorf("backtest: Series is required")
	}
	started := time.Now()

	e.cash = e.params.StartCapital
	e.pos = nil
	e.last = e.params.StartCapital
	e.trades, e.equity, e.gaps = nil, nil, nil
	e.wins, e.losses = 0, 0

	for i, b := range s.Bars {
		if err := e.onBar(s.Asset, i, b, i == len(s.Bars)-1); err != nil {
			return Result{}, err
		}
	}

	res := e.result(s)
	e.opts.Metrics.ObserveRun("backtest", time.Since(started))
	e.log.Info().
		Str("asset", string(s.Asset)).
		Int("bars", len(s.Bars)).
		Int("trades", len(res.Trades)).
		Float64("final_equity", res.FinalEquity).
		Float64("return_pct", res.ReturnPct).
		Msg("backtest complete")
	return res, nil
}

func (e *Engine) onBar(asset market.AssetKey, i int, b Bar, lastBar bool) error {
	if !validPrice(b.Close) {
		gap := simerr.DataGapWarning{Index: i, Time: b.Time, Asset: string(asset)}
		e.gaps = append(e.gaps, gap)
		e.opts.Metrics.AddDataGaps("backtest", 1)
		e.log.Warn().Int("bar", i).Time("time", b.Time).Msg("missing close; carrying net worth forward")
		return e.mark(b.Time, e.last)
	}

	exec := b.Exec
	if !validPrice(exec) {
		exec = b.Close
	}

	if b.Signal == 1 && e.pos == nil {
		frac := e.sizer.Fraction(b.Vol)
		if alloc := e.cash * frac; alloc > 0 {
			if err := e.buy(asset, i, b.Time, exec, alloc); err != nil {
				return err
			}
		}
	}

	// only positions opened on an earlier bar can be exited
	if e.pos != nil && e.pos.bar < i {
		move := b.Close/e.pos.entry - 1
		switch {
		case move <= -e.params.StopLossPct+thresholdTol:
			if err := e.sell(asset, b.Time, exec, e.pos.qty, ReasonStopLoss); err != nil {
				return err
			}
		case !e.pos.tpTaken && move >= e.params.PartialTPPct-thresholdTol:
			e.pos.tpTaken = true
			if err := e.sell(asset, b.Time, exec, e.pos.qty/2, ReasonPartialTP); err != nil {
				return err
			}
		}
	}

	if b.Signal == 0 && e.pos != nil {
		if err := e.sell(asset, b.Time, exec, e.pos.qty, ReasonSignalExit); err != nil {
			return err
		}
	}

	if lastBar && e.params.CloseAtEnd && e.pos != nil {
		reason := e.params.CloseReason
		if reason == "" {
			reason = ReasonEndOfData
		}
		if err := e.sell(asset, b.Time, b.Close, e.pos.qty, reason); err != nil {
			return err
		}
	}

	nw := e.cash
	if e.pos != nil {
		nw += e.pos.qty * b.Close
	}
	return e.mark(b.Time, nw)
}

func (e *Engine) buy(asset market.AssetKey, bar int, t time.Time, price, alloc float64) error {
	fee := e.params.Costs.Cost(alloc)
	qty := (alloc - fee) / price
	e.cash -= alloc
	e.pos = &position{qty: qty, entry: price, costBasis: alloc / qty, bar: bar}

	return e.record(journal.Trade{
		Time:     t,
		Asset:    string(asset),
		Side:     journal.Buy,
		Price:    price,
		Quantity: qty,
		Notional: alloc,
		Fee:      fee,
	})
}

func (e *Engine) sell(asset market.AssetKey, t time.Time, price, qty float64, reason string) error {
	gross := qty * price
	fee := e.params.Costs.Cost(gross)
	proceeds := gross - fee
	e.cash += proceeds

	if proceeds > qty*e.pos.costBasis {
		e.wins++
	} else {
		e.losses++
	}

	e.pos.qty -= qty
	if reason != ReasonPartialTP || e.pos.qty <= 0 {
		e.pos = nil
	}

	return e.record(journal.Trade{
		Time:     t,
		Asset:    string(asset),
		Side:     journal.Sell,
		Price:    price,
		Quantity: qty,
		Notional: gross,
		Fee:      fee,
		Reason:   reason,
	})
}

func (e *Engine) record(tr journal.Trade) error {
	tr.ID = id.NewAt(tr.Time)
	tr.RunID = e.opts.RunID
	e.trades = append(e.trades, tr)
	e.opts.Metrics.IncTrade(tr.Side, tr.Reason)
	e.log.Debug().
		Str("side", tr.Side).
		Str("reason", tr.Reason).
		Float64("price", tr.Price).
		Float64("qty", tr.Quantity).
		Msg("fill")
	if err := e.opts.Journal.RecordTrade(tr); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

func (e *Engine) mark(t time.Time, nw float64) error {
	e.last = nw
	p := journal.EquityPoint{RunID: e.opts.RunID, Time: t, NetWorth: nw}
	e.equity = append(e.equity, p)
	if err := e.opts.Journal.RecordEquity(p); err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}
