// Package metrics exposes Prometheus instrumentation for simulation runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the simulator's collectors. A nil *Recorder is valid and
// records nothing, so engines can be built without metrics.
type Recorder struct {
	EnvSteps       prometheus.Counter
	RebalanceCost  prometheus.Counter
	PortfolioValue prometheus.Gauge
	Reward         prometheus.Gauge

	Trades   *prometheus.CounterVec
	DataGaps *prometheus.CounterVec

	AlignZeroFills prometheus.Counter
	AlignNaNFills  prometheus.Counter
	Refits         prometheus.Counter

	RunDuration *prometheus.HistogramVec
}

// New builds a Recorder and registers it on reg. A nil reg leaves the
// collectors unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		EnvSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalance_env_steps_total",
			Help: "Total number of environment steps taken",
		}),
		RebalanceCost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalance_env_cost_total",
			Help: "Cumulative transaction cost charged by the environment",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalance_env_portfolio_value",
			Help: "Portfolio value after the latest step",
		}),
		Reward: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalance_env_reward",
			Help: "Reward of the latest step",
		}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalance_backtest_trades_total",
			Help: "Backtest fills by side and reason",
		}, []string{"side", "reason"}),
		DataGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalance_data_gaps_total",
			Help: "Steps that hit a missing or invalid price",
		}, []string{"source"}),
		AlignZeroFills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalance_align_zero_filled_columns_total",
			Help: "Scaler target columns with no live match",
		}),
		AlignNaNFills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalance_align_nan_zeroed_total",
			Help: "NaN cells replaced with zero during alignment",
		}),
		Refits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalance_scaler_refits_total",
			Help: "Scaler refits performed under the refit opt-in",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rebalance_run_duration_seconds",
			Help:    "Wall time of complete runs",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"kind"}),
	}

	if reg != nil {
		for _, c := range r.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("metrics: register: %w", err)
			}
		}
	}
	return r, nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.EnvSteps, r.RebalanceCost, r.PortfolioValue, r.Reward,
		r.Trades, r.DataGaps,
		r.AlignZeroFills, r.AlignNaNFills, r.Refits,
		r.RunDuration,
	}
}

func (r *Recorder) ObserveEnvStep(value, cost, reward float64) {
	if r == nil {
		return
	}
	r.EnvSteps.Inc()
	if cost > 0 {
		r.RebalanceCost.Add(cost)
	}
	r.PortfolioValue.Set(value)
	r.Reward.Set(reward)
}

func (r *Recorder) IncTrade(side, reason string) {
	if r == nil {
		return
	}
	if reason == "" {
		reason = "entry"
	}
	r.Trades.WithLabelValues(side, reason).Inc()
}

func (r *Recorder) AddDataGaps(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.DataGaps.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) ObserveAlign(zeroFilled, nanZeroed int) {
	if r == nil {
		return
	}
	if zeroFilled > 0 {
		r.AlignZeroFills.Add(float64(zeroFilled))
	}
	if nanZeroed > 0 {
		r.AlignNaNFills.Add(float64(nanZeroed))
	}
}

func (r *Recorder) IncRefit() {
	if r == nil {
		return
	}
	r.Refits.Inc()
}

func (r *Recorder) ObserveRun(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// WriteTextfile dumps everything gathered by g in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
