package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/rustyeddy/rebalance/backtest"
	"github.com/rustyeddy/rebalance/market"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest a long/flat signal on one asset",
	Long: `Backtest walks one asset bar by bar, buying a volatility-sized
allocation when the signal turns on and exiting on stop-loss, partial
take-profit or signal exit. Fills happen at the next bar's open.

The signal is read from backtest.signal_column when the table has it,
otherwise it is derived from the indicators or log returns.

Example:
  rebalance backtest -c rebalance.yaml --data eth.csv --org report.org`,
	RunE: runBacktest,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the backtest over a grid of stop-loss, take-profit and target-vol values",
	Long: `Sweep runs one independent backtest per parameter combination, in
parallel, over the same data.

Example:
  rebalance sweep --data eth.csv --sl 0.04,0.08 --tp 0.05,0.1,0.2 -j 4`,
	RunE: runSweep,
}

var (
	btDataPath string
	btAsset    string
	btOrgPath  string
	btCloseEnd bool

	swStops       []float64
	swTakeProfits []float64
	swVols        []float64
	swParallelism int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(sweepCmd)

	for _, c := range []*cobra.Command{backtestCmd, sweepCmd} {
		c.Flags().StringVarP(&btDataPath, "data", "d", "", "feature CSV (defaults to data.csv_path)")
		c.Flags().StringVarP(&btAsset, "asset", "a", "", "asset key (defaults to backtest.asset)")
	}
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "write an org-mode report here (defaults to backtest.org_path)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", false, "liquidate any open position on the last bar")

	sweepCmd.Flags().Float64SliceVar(&swStops, "sl", nil, "stop-loss fractions to try")
	sweepCmd.Flags().Float64SliceVar(&swTakeProfits, "tp", nil, "partial take-profit fractions to try")
	sweepCmd.Flags().Float64SliceVar(&swVols, "vol", nil, "target annual volatilities to try")
	sweepCmd.Flags().IntVarP(&swParallelism, "parallel", "j", 4, "maximum concurrent backtests")
}

func backtestParams() backtest.Params {
	return backtest.Params{
		StartCapital:    cfg.Backtest.StartCapital,
		TargetAnnualVol: cfg.Backtest.TargetAnnualVol,
		StopLossPct:     cfg.Backtest.StopLossPct,
		PartialTPPct:    cfg.Backtest.PartialTPPct,
		StepsPerYear:    cfg.BacktestStepsPerYear(),
		Costs:           cfg.CostModel(),
		CloseAtEnd:      cfg.Backtest.CloseAtEnd || btCloseEnd,
	}
}

func loadSeries() (*backtest.Series, string, error) {
	frame, path, err := loadFrame(btDataPath)
	if err != nil {
		return nil, path, err
	}
	asset := btAsset
	if asset == "" {
		asset = cfg.Backtest.Asset
	}
	s, err := backtest.BuildSeries(frame, market.AssetKey(asset), cfg.Backtest.SignalColumn, cfg.Backtest.VolWindow, cfg.Backtest.DefaultVol)
	if err != nil {
		return nil, path, err
	}
	log.Info().Str("asset", asset).Str("signal", string(s.Source)).Int("bars", len(s.Bars)).Msg("series ready")
	return s, path, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	s, dataset, err := loadSeries()
	if err != nil {
		return err
	}

	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	eng, err := backtest.NewEngine(backtestParams(), backtest.Options{
		Journal: j,
		Metrics: recorder,
		Logger:  log.Logger,
	})
	if err != nil {
		return err
	}
	res, err := eng.Run(s)
	if err != nil {
		return err
	}
	backtest.PrintResult(cmd.OutOrStdout(), res)

	orgPath := btOrgPath
	if orgPath == "" {
		orgPath = cfg.Backtest.OrgPath
	}
	if orgPath != "" {
		run := res.Run(dataset, cfg.Data.Interval, orgPath)
		if err := run.WriteOrg(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Org Report:    %s\n", orgPath)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	s, _, err := loadSeries()
	if err != nil {
		return err
	}

	grid := backtest.Grid{StopLossPct: swStops, PartialTPPct: swTakeProfits, TargetAnnualVol: swVols}
	results, err := backtest.Sweep(cmd.Context(), s, backtestParams(), grid, swParallelism, recorder)
	if err != nil {
		return err
	}
	backtest.PrintSweep(cmd.OutOrStdout(), backtest.Best(results))
	return nil
}
