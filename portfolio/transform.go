package portfolio

import (
	"github.com/rs/zerolog"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/rustyeddy/rebalance/scaler"
)

// TransformFunc adapts a plain function to ObservationTransform.
type TransformFunc func(window *market.Frame) (market.Matrix, error)

func (f TransformFunc) Transform(window *market.Frame) (market.Matrix, error) { return f(window) }

// ScalerTransform aligns and scales each window with fitted artifacts. A
// degraded alignment is logged and counted but does not fail the step.
func ScalerTransform(a *scaler.Artifacts, base []string, rec *metrics.Recorder, log zerolog.Logger) ObservationTransform {
	return TransformFunc(func(window *market.Frame) (market.Matrix, error) {
		m, rep, err := a.Transform(window, base)
		if err != nil {
			return market.Matrix{}, err
		}
		rec.ObserveAlign(len(rep.ZeroFilled), rep.NaNZeroed)
		if rep.Degraded() {
			log.Warn().Str("report", rep.String()).Msg("observation alignment degraded")
		}
		return m, nil
	})
}
