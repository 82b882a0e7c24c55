package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/rustyeddy/rebalance/pkg/id"
	"github.com/rustyeddy/rebalance/portfolio"
	"github.com/rustyeddy/rebalance/scaler"
	"github.com/rustyeddy/rebalance/strategies"
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Drive the portfolio environment",
}

var envRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one episode with a named policy",
	Long: `Run resets the portfolio environment over the feature table and steps
it with a policy until the data runs out. Every step is journaled.

Policies: equal-weight, buy-and-hold, momentum

Example:
  rebalance env run -c rebalance.yaml --data features.csv --policy momentum`,
	RunE: runEnv,
}

var (
	envDataPath string
	envPolicy   string
	envScaler   bool
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envRunCmd)

	envRunCmd.Flags().StringVarP(&envDataPath, "data", "d", "", "feature CSV (defaults to data.csv_path)")
	envRunCmd.Flags().StringVarP(&envPolicy, "policy", "p", "", "policy name (defaults to env.policy)")
	envRunCmd.Flags().BoolVar(&envScaler, "scaler", false, "scale observations with the artifacts in scaler.dir")
}

func runEnv(cmd *cobra.Command, args []string) error {
	frame, _, err := loadFrame(envDataPath)
	if err != nil {
		return err
	}

	name := envPolicy
	if name == "" {
		name = cfg.Env.Policy
	}
	policy, err := strategies.PolicyByName(name, cfg.Env.MomentumLookback)
	if err != nil {
		return err
	}

	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	runID := id.New()
	logger := log.Logger.With().Str("policy", name).Logger()
	opts := portfolio.Options{
		RunID:   runID,
		Logger:  logger,
		Metrics: recorder,
		Sink:    j,
	}

	if envScaler || cfg.Env.UseScaler {
		res, err := scaler.Resolve(cfg.Scaler.Dir, frame, cfg.Data.BaseFeatures, scaler.ResolveOptions{
			Files:      scalerFiles(),
			AllowRefit: cfg.Scaler.AllowRefit,
			Assets:     cfg.Data.Assets,
			PVTokens:   cfg.Scaler.PVTokens,
			Logger:     logger,
			Metrics:    recorder,
		})
		if err != nil {
			return err
		}
		opts.Transform = portfolio.ScalerTransform(res.Artifacts, cfg.Data.BaseFeatures, recorder, logger)
	}

	env, err := portfolio.New(frame, portfolio.Config{
		Assets:           cfg.AssetKeys(),
		InitialBalance:   cfg.Env.InitialBalance,
		WindowSize:       cfg.Env.WindowSize,
		RewardWindowSize: cfg.Env.RewardWindowSize,
		Costs:            cfg.CostModel(),
		StepsPerYear:     cfg.EnvStepsPerYear(),
		RiskFreePerStep:  cfg.RiskFreePerStep(),
		RewardClip:       cfg.Env.RewardClip,
		RewardScale:      cfg.Env.RewardScale,
		WarmupReward:     cfg.Env.WarmupReward,
	}, opts)
	if err != nil {
		return err
	}

	sum, err := portfolio.Run(cmd.Context(), env, policy, j)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run ID:        %s\n", sum.RunID)
	fmt.Fprintf(out, "Policy:        %s\n", name)
	fmt.Fprintf(out, "Steps:         %d\n", sum.Steps)
	fmt.Fprintf(out, "Start Value:   %.2f\n", sum.StartValue)
	fmt.Fprintf(out, "Final Value:   %.2f\n", sum.FinalValue)
	fmt.Fprintf(out, "Return:        %.2f%%\n", sum.ReturnPct)
	fmt.Fprintf(out, "Total Cost:    %.2f\n", sum.TotalCost)
	fmt.Fprintf(out, "Total Reward:  %.4f\n", sum.TotalReward)
	fmt.Fprintf(out, "Max Drawdown:  %.2f%%\n", sum.MaxDrawdown*100)
	fmt.Fprintf(out, "Sharpe:        %.3f\n", sum.Sharpe)
	if sum.DataGaps > 0 {
		fmt.Fprintf(out, "Data Gaps:     %d\n", sum.DataGaps)
	}
	fmt.Fprintf(out, "Weights:       %v\n", sum.FinalWeights)
	return nil
}
