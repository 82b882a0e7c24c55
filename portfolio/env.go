// Package portfolio implements the weight-driven portfolio environment: each
// step takes target weights, charges the rebalance cost, moves prices one bar
// and returns a risk-adjusted reward.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/rebalance/indicators"
	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/rustyeddy/rebalance/risk"
	"github.com/rustyeddy/rebalance/simerr"
)

// Config fixes everything about an environment except the data.
type Config struct {
	Assets           []market.AssetKey
	InitialBalance   float64
	WindowSize       int
	RewardWindowSize int
	Costs            risk.CostModel
	StepsPerYear     float64
	RiskFreePerStep  float64
	RewardClip       float64
	RewardScale      float64
	WarmupReward     float64
	// Features are the observation columns. Empty means every frame column.
	Features []string
}

// DefaultConfig matches the reference hourly setup.
func DefaultConfig(assets []market.AssetKey) Config {
	spy := 252.0 * 24
	return Config{
		Assets:           assets,
		InitialBalance:   100000,
		WindowSize:       24,
		RewardWindowSize: 30,
		Costs:            risk.CostModel{FeeRate: 0.001, SlippageRate: 0.001},
		StepsPerYear:     spy,
		RiskFreePerStep:  0.02 / spy,
		RewardClip:       5,
		RewardScale:      0.1,
		WarmupReward:     0.01,
	}
}

// InfoSink receives the info record of every step.
type InfoSink interface {
	RecordStep(journal.StepRecord) error
}

// ObservationTransform turns a raw window into the matrix a policy sees.
type ObservationTransform interface {
	Transform(window *market.Frame) (market.Matrix, error)
}

type Options struct {
	RunID     string
	Logger    zerolog.Logger
	Metrics   *metrics.Recorder
	Sink      InfoSink
	Transform ObservationTransform
}

// Observation is what a policy acts on.
type Observation struct {
	Step     int
	Time     time.Time
	Assets   []market.AssetKey
	Window   *market.Frame // raw rows of the window, read-only
	Features market.Matrix // WindowSize x len(features), NaN-free
	Prices   []float64     // closes on the last window row
	Weights  []float64
	Value    float64
}

// Flatten returns the feature matrix row by row.
func (o Observation) Flatten() []float64 {
	return append([]float64(nil), o.Features.Data...)
}

// Info is the per-step record downstream consumers rely on.
type Info struct {
	Step       int
	Time       time.Time
	Value      float64
	Weights    []float64
	LastReturn float64
	Sharpe     float64 // windowed, unclipped
	Cost       float64
	Reward     float64
	Gaps       []simerr.DataGapWarning
}

// Record converts the info into a journal row.
func (i Info) Record(runID string) journal.StepRecord {
	return journal.StepRecord{
		RunID:      runID,
		Step:       i.Step,
		Time:       i.Time,
		Value:      i.Value,
		Weights:    append([]float64(nil), i.Weights...),
		LastReturn: i.LastReturn,
		Sharpe:     i.Sharpe,
		Cost:       i.Cost,
		Reward:     i.Reward,
		Gaps:       len(i.Gaps),
	}
}

// StepResult bundles what Step produces.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Env is a single-run portfolio environment. It is not safe for concurrent
// use; run independent environments for parallel work.
type Env struct {
	cfg      Config
	opts     Options
	log      zerolog.Logger
	frame    *market.Frame
	closes   [][]float64
	features []string

	state      State
	step       int
	totalSteps int
	value      float64
	weights    []float64
	returns    *indicators.RollingWindow
	last       Info
}

// New validates cfg against frame and returns an environment awaiting reset.
func New(frame *market.Frame, cfg Config, opts Options) (*Env, error) {
	if frame == nil {
		return nil, simerr.Configf("frame", "is required")
	}
	if len(cfg.Assets) == 0 {
		return nil, simerr.Configf("env.assets", "at least one asset is required")
	}
	if cfg.InitialBalance <= 0 {
		return nil, simerr.Configf("env.initial_balance", "must be positive, got %v", cfg.InitialBalance)
	}
	if cfg.WindowSize < 1 {
		return nil, simerr.Configf("env.window_size", "must be >= 1, got %d", cfg.WindowSize)
	}
	if cfg.RewardWindowSize < 2 {
		return nil, simerr.Configf("env.reward_window_size", "must be >= 2, got %d", cfg.RewardWindowSize)
	}
	if cfg.StepsPerYear <= 0 {
		return nil, simerr.Configf("env.steps_per_year", "must be positive, got %v", cfg.StepsPerYear)
	}
	if err := cfg.Costs.Validate(); err != nil {
		return nil, err
	}

	closeCols := market.CloseColumns(cfg.Assets)
	if missing := frame.Missing(closeCols); len(missing) > 0 {
		return nil, &simerr.ConfigError{
			Field:    "data.columns",
			Msg:      "un-normalized close prices are required for every asset",
			Expected: fmt.Sprint(closeCols),
			Actual:   fmt.Sprintf("missing %v", missing),
		}
	}

	features := cfg.Features
	if len(features) == 0 {
		features = frame.Columns()
	}
	if missing := frame.Missing(features); len(missing) > 0 {
		return nil, &simerr.ConfigError{Field: "env.features", Msg: fmt.Sprintf("missing %v", missing)}
	}

	total := frame.Len() - cfg.WindowSize - 2
	if total < 1 {
		return nil, &simerr.ConfigError{
			Field:    "data.rows",
			Msg:      "not enough history for one step",
			Expected: fmt.Sprintf(">= %d", cfg.WindowSize+3),
			Actual:   fmt.Sprint(frame.Len()),
		}
	}

	closes := make([][]float64, len(closeCols))
	for i, c := range closeCols {
		closes[i], _ = frame.Column(c)
	}

	return &Env{
		cfg:        cfg,
		opts:       opts,
		log:        opts.Logger.With().Str("component", "env").Str("run_id", opts.RunID).Logger(),
		frame:      frame,
		closes:     closes,
		features:   features,
		state:      AwaitingReset,
		totalSteps: total,
		returns:    indicators.NewRollingWindow(cfg.RewardWindowSize),
	}, nil
}

func (e *Env) State() State       { return e.state }
func (e *Env) CurrentStep() int   { return e.step }
func (e *Env) TotalSteps() int    { return e.totalSteps }
func (e *Env) Value() float64     { return e.value }
func (e *Env) Config() Config     { return e.cfg }
func (e *Env) LastInfo() Info     { return e.last }
func (e *Env) NumAssets() int     { return len(e.cfg.Assets) }
func (e *Env) Weights() []float64 { return append([]float64(nil), e.weights...) }

// Returns is the trailing per-step returns FIFO, oldest first.
func (e *Env) Returns() []float64 { return e.returns.Values() }

// Reset starts a new episode from any state.
func (e *Env) Reset() (Observation, Info, error) {
	e.step = 0
	e.value = e.cfg.InitialBalance
	e.weights = EqualWeights(len(e.cfg.Assets))
	e.returns.Reset()
	e.state = Ready

	obs, err := e.observe()
	if err != nil {
		e.state = AwaitingReset
		return Observation{}, Info{}, err
	}
	e.last = Info{
		Step:    0,
		Time:    obs.Time,
		Value:   e.value,
		Weights: e.Weights(),
	}
	e.log.Debug().Int("total_steps", e.totalSteps).Float64("value", e.value).Msg("reset")
	return obs, e.last, nil
}

// Step rebalances to action, advances one bar and scores the move.
//
// The rebalance cost is computed from the previous weights and the pre-move
// value and is deducted before prices move. A missing or non-positive price
// gives that asset a zero return for this step and is reported in Info.Gaps.
// When the sink fails the step is still committed and the error is returned
// with the result.
// When the observation cannot be built the episode is abandoned and the env
// must be reset before stepping again.
func (e *Env) Step(action []float64) (StepResult, error) {
	if !e.state.canStep() {
		return StepResult{}, &simerr.InvalidStateError{Op: "step", State: e.state.String()}
	}
	if len(action) != len(e.cfg.Assets) {
		return StepResult{}, &simerr.ShapeError{What: "action length", Expected: len(e.cfg.Assets), Actual: len(action)}
	}

	target := NormalizeWeights(action)
	pre := e.value
	cost := e.cfg.Costs.Cost(TradedNotional(e.weights, target, pre))
	afterCost := pre - cost
	e.weights = target

	p0 := e.pricesAt(e.step)
	e.step++
	p1 := e.pricesAt(e.step)

	var gaps []simerr.DataGapWarning
	stepReturn := 0.0
	for i := range target {
		a, b := p0[i], p1[i]
		if !validPrice(a) || !validPrice(b) {
			row := e.priceRow(e.step - 1)
			if validPrice(a) {
				row = e.priceRow(e.step)
			}
			gaps = append(gaps, simerr.DataGapWarning{Index: row, Time: e.frame.Time(row), Asset: string(e.cfg.Assets[i])})
			continue
		}
		stepReturn += target[i] * (b - a) / (a + Epsilon)
	}

	value := afterCost * (1 + stepReturn)
	if value < 0 || math.IsNaN(value) {
		value = 0
	}
	e.value = value

	e.returns.Update(stepReturn)
	reward := e.reward(stepReturn)

	terminated := e.step >= e.totalSteps
	if terminated {
		e.state = Terminated
	} else {
		e.state = Stepping
	}

	obs, err := e.observe()
	if err != nil {
		e.state = AwaitingReset
		return StepResult{}, fmt.Errorf("observe step %d: %w", e.step, err)
	}

	info := Info{
		Step:       e.step,
		Time:       obs.Time,
		Value:      e.value,
		Weights:    e.Weights(),
		LastReturn: stepReturn,
		Sharpe:     e.windowSharpe(),
		Cost:       cost,
		Reward:     reward,
		Gaps:       gaps,
	}
	e.last = info

	e.opts.Metrics.ObserveEnvStep(info.Value, cost, reward)
	if len(gaps) > 0 {
		e.opts.Metrics.AddDataGaps("env", len(gaps))
		for _, g := range gaps {
			e.log.Warn().Int("row", g.Index).Str("asset", g.Asset).Msg("price gap; asset return zeroed for this step")
		}
	}
	e.log.Debug().
		Int("step", info.Step).
		Float64("value", info.Value).
		Float64("cost", cost).
		Float64("reward", reward).
		Msg("step")

	res := StepResult{
		Observation: obs,
		Reward:      reward,
		Terminated:  terminated,
		Info:        info,
	}
	if e.opts.Sink != nil {
		if err := e.opts.Sink.RecordStep(info.Record(e.opts.RunID)); err != nil {
			return res, fmt.Errorf("record step %d: %w", info.Step, err)
		}
	}
	return res, nil
}

// reward is a small signed constant until the returns FIFO is full, then the
// clipped, scaled annualized Sharpe of the FIFO.
func (e *Env) reward(stepReturn float64) float64 {
	if !e.returns.Ready() {
		switch {
		case stepReturn > 0:
			return e.cfg.WarmupReward
		case stepReturn < 0:
			return -e.cfg.WarmupReward
		default:
			return 0
		}
	}
	s := risk.AnnualizedSharpe(e.returns.Values(), e.cfg.RiskFreePerStep, e.cfg.StepsPerYear, Epsilon)
	return risk.Clamp(s, -e.cfg.RewardClip, e.cfg.RewardClip) * e.cfg.RewardScale
}

func (e *Env) windowSharpe() float64 {
	if e.returns.Len() < 2 {
		return 0
	}
	return risk.AnnualizedSharpe(e.returns.Values(), e.cfg.RiskFreePerStep, e.cfg.StepsPerYear, Epsilon)
}

// priceRow is the frame row holding the prices for step: the last row of
// that step's observation window.
func (e *Env) priceRow(step int) int { return step + e.cfg.WindowSize - 1 }

func (e *Env) pricesAt(step int) []float64 {
	row := e.priceRow(step)
	out := make([]float64, len(e.closes))
	for i, col := range e.closes {
		out[i] = col[row]
	}
	return out
}

func (e *Env) observe() (Observation, error) {
	w, err := market.NewWindow(e.frame, e.step, e.cfg.WindowSize, e.features)
	if err != nil {
		return Observation{}, err
	}

	feats := w.Values
	if e.opts.Transform != nil {
		if feats, err = e.opts.Transform.Transform(w.Frame()); err != nil {
			return Observation{}, fmt.Errorf("transform observation: %w", err)
		}
	} else {
		feats = zeroNaN(feats)
	}

	last := e.priceRow(e.step)
	return Observation{
		Step:     e.step,
		Time:     e.frame.Time(last),
		Assets:   e.cfg.Assets,
		Window:   w.Frame(),
		Features: feats,
		Prices:   e.pricesAt(e.step),
		Weights:  e.Weights(),
		Value:    e.value,
	}, nil
}

func zeroNaN(m market.Matrix) market.Matrix {
	for i, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.Data[i] = 0
		}
	}
	return m
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
