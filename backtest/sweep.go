package backtest

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/rustyeddy/rebalance/metrics"
	"golang.org/x/sync/errgroup"
)

// Grid lists the values to try for each swept parameter. An empty list
// keeps the base value.
type Grid struct {
	StopLossPct     []float64
	PartialTPPct    []float64
	TargetAnnualVol []float64
}

// Params expands the grid over base.
func (g Grid) Params(base Params) []Params {
	or := func(xs []float64, v float64) []float64 {
		if len(xs) == 0 {
			return []float64{v}
		}
		return xs
	}
	var out []Params
	for _, sl := range or(g.StopLossPct, base.StopLossPct) {
		for _, tp := range or(g.PartialTPPct, base.PartialTPPct) {
			for _, vol := range or(g.TargetAnnualVol, base.TargetAnnualVol) {
				p := base
				p.StopLossPct, p.PartialTPPct, p.TargetAnnualVol = sl, tp, vol
				out = append(out, p)
			}
		}
	}
	return out
}

// Sweep runs one engine per parameter set over the same series, at most
// parallelism at a time. The series is only read. Results come back in grid
// order; the first failure cancels the rest.
func Sweep(ctx context.Context, s *Series, base Params, grid Grid, parallelism int, rec *metrics.Recorder) ([]Result, error) {
	params := grid.Params(base)
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(params))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, p := range params {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			eng, err := NewEngine(p, Options{Metrics: rec})
			if err != nil {
				return err
			}
			res, err := eng.Run(s)
			if err != nil {
				return fmt.Errorf("sweep sl=%v tp=%v vol=%v: %w", p.StopLossPct, p.PartialTPPct, p.TargetAnnualVol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Best returns the results ordered by Sharpe, highest first.
func Best(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sharpe > out[j].Sharpe })
	return out
}

func PrintSweep(w io.Writer, results []Result) {
	fmt.Fprintf(w, "%-8s %-8s %-8s %12s %9s %8s %7s\n", "SL", "TP", "VOL", "FINAL", "RETURN%", "MAXDD%", "SHARPE")
	for _, r := range results {
		fmt.Fprintf(w, "%-8.3f %-8.3f %-8.3f %12.2f %9.2f %8.2f %7.3f\n",
			r.Params.StopLossPct, r.Params.PartialTPPct, r.Params.TargetAnnualVol,
			r.FinalEquity, r.ReturnPct, r.MaxDrawdown*100, r.Sharpe)
	}
}
