package portfolio

import (
	"context"
	"time"

	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/risk"
)

// Policy picks target weights from an observation.
type Policy interface {
	Act(obs Observation) []float64
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(obs Observation) []float64

func (f PolicyFunc) Act(obs Observation) []float64 { return f(obs) }

// Summary describes one completed episode.
type Summary struct {
	RunID        string
	Steps        int
	StartValue   float64
	FinalValue   float64
	ReturnPct    float64
	TotalCost    float64
	TotalReward  float64
	MaxDrawdown  float64 // fraction
	Sharpe       float64 // over the full episode
	DataGaps     int
	FinalWeights []float64
	Duration     time.Duration
}

// EquitySink receives the portfolio value after reset and after every step.
type EquitySink interface {
	RecordEquity(journal.EquityPoint) error
}

// Run resets env and steps policy through it until the episode terminates or
// ctx is done. eq may be nil.
func Run(ctx context.Context, env *Env, policy Policy, eq EquitySink) (Summary, error) {
	start := time.Now()
	obs, info, err := env.Reset()
	if err != nil {
		return Summary{}, err
	}

	runID := env.opts.RunID
	sum := Summary{RunID: runID, StartValue: info.Value}
	curve := []float64{info.Value}
	if err := recordEquity(eq, runID, info); err != nil {
		return sum, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := env.Step(policy.Act(obs))
		if err != nil {
			return sum, err
		}
		obs = res.Observation
		sum.Steps++
		sum.TotalCost += res.Info.Cost
		sum.TotalReward += res.Reward
		sum.DataGaps += len(res.Info.Gaps)
		curve = append(curve, res.Info.Value)
		if err := recordEquity(eq, runID, res.Info); err != nil {
			return sum, err
		}
		if res.Terminated || res.Truncated {
			break
		}
	}

	sum.FinalValue = env.Value()
	sum.FinalWeights = env.Weights()
	if sum.StartValue > 0 {
		sum.ReturnPct = (sum.FinalValue/sum.StartValue - 1) * 100
	}
	sum.MaxDrawdown = risk.MaxDrawdown(curve)
	sum.Sharpe = risk.AnnualizedSharpe(risk.PeriodReturns(curve), env.cfg.RiskFreePerStep, env.cfg.StepsPerYear, Epsilon)
	sum.Duration = time.Since(start)
	env.opts.Metrics.ObserveRun("env", sum.Duration)
	env.log.Info().
		Int("steps", sum.Steps).
		Float64("final_value", sum.FinalValue).
		Float64("return_pct", sum.ReturnPct).
		Float64("cost", sum.TotalCost).
		Msg("episode complete")
	return sum, nil
}

func recordEquity(eq EquitySink, runID string, info Info) error {
	if eq == nil {
		return nil
	}
	return eq.RecordEquity(journal.EquityPoint{RunID: runID, Time: info.Time, NetWorth: info.Value})
}
