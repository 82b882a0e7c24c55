package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rustyeddy/rebalance/config"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Portfolio rebalancing environment and signal backtester",
	Long: `Rebalance simulates a weight-driven multi-asset portfolio and a
single-asset signal strategy over historical feature tables.

It provides tools for:
  - Stepping a portfolio environment with a named allocation policy
  - Backtesting a long/flat signal with volatility sizing and stop rules
  - Sweeping backtest parameters in parallel
  - Fitting, checking and applying feature scaler artifacts
  - Querying trade, equity and step journals`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	metricsFile string

	// set by setup for every subcommand
	cfg      *config.Config
	registry *prometheus.Registry
	recorder *metrics.Recorder
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (console, json)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := setupLogger(cfg.Log); err != nil {
		return err
	}

	registry = prometheus.NewRegistry()
	if recorder, err = metrics.New(registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if metricsFile == "" || registry == nil {
		return nil
	}
	if err := metrics.WriteTextfile(registry, metricsFile); err != nil {
		return err
	}
	log.Debug().Str("path", metricsFile).Msg("metrics written")
	return nil
}

func setupLogger(lc config.LogConfig) error {
	lvl, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", lc.Level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch lc.Format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}
