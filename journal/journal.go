package journal

import "time"

const (
	Buy  = "buy"
	Sell = "sell"
)

// Trade is one fill. Once recorded it is never changed.
type Trade struct {
	ID       string
	RunID    string
	Time     time.Time
	Asset    string
	Side     string
	Price    float64
	Quantity float64
	Notional float64
	Fee      float64
	Reason   string // empty for entries
}

// EquityPoint is the net worth at the end of one simulated step.
type EquityPoint struct {
	RunID    string
	Time     time.Time
	NetWorth float64
}

// StepRecord is the per-step info emitted by the portfolio environment.
type StepRecord struct {
	RunID      string
	Step       int
	Time       time.Time
	Value      float64
	Weights    []float64
	LastReturn float64
	Sharpe     float64
	Cost       float64
	Reward     float64
	Gaps       int
}

type Journal interface {
	RecordTrade(Trade) error
	RecordEquity(EquityPoint) error
	RecordStep(StepRecord) error
	Close() error
}

// Discard is a Journal that drops everything.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordTrade(Trade) error        { return nil }
func (discard) RecordEquity(EquityPoint) error { return nil }
func (discard) RecordStep(StepRecord) error    { return nil }
func (discard) Close() error                   { return nil }
