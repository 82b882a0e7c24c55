package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/rustyeddy/rebalance/scaler"
	"github.com/spf13/cobra"
)

var scalerCmd = &cobra.Command{
	Use:   "scaler",
	Short: "Fit, check and apply feature scaler artifacts",
	Long: `Manage the manifest and min-max scalers stored in scaler.dir.

Subcommands:
  fit   - Fit new artifacts on a feature table (existing files are backed up)
  check - Load the artifacts and verify them against data.base_features
  align - Align and scale the last window of a feature table and report
          how the live columns matched`,
}

var scalerFitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit scaler artifacts on a feature table",
	RunE:  runScalerFit,
}

var scalerCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify scaler artifacts against the configured base features",
	Args:  cobra.NoArgs,
	RunE:  runScalerCheck,
}

var scalerAlignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align and scale the most recent window of a feature table",
	RunE:  runScalerAlign,
}

var (
	scDataPath string
	scWindow   int
)

func init() {
	rootCmd.AddCommand(scalerCmd)
	scalerCmd.AddCommand(scalerFitCmd)
	scalerCmd.AddCommand(scalerCheckCmd)
	scalerCmd.AddCommand(scalerAlignCmd)

	for _, c := range []*cobra.Command{scalerFitCmd, scalerAlignCmd} {
		c.Flags().StringVarP(&scDataPath, "data", "d", "", "feature CSV (defaults to data.csv_path)")
	}
	scalerAlignCmd.Flags().IntVarP(&scWindow, "window", "w", 0, "rows to align (defaults to env.window_size)")
}

func runScalerFit(cmd *cobra.Command, args []string) error {
	frame, _, err := loadFrame(scDataPath)
	if err != nil {
		return err
	}

	a, rep, err := scaler.Fit(frame, cfg.Data.Assets, cfg.Data.BaseFeatures, cfg.Scaler.PVTokens)
	if err != nil {
		return err
	}
	if len(rep.Missing) > 0 || len(rep.Dropped) > 0 {
		log.Warn().Strs("missing", rep.Missing).Strs("dropped", rep.Dropped).Msg("fit skipped columns")
	}
	if err := a.Save(cfg.Scaler.Dir, scalerFiles()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Fitted scalers in %s\n", cfg.Scaler.Dir)
	fmt.Fprintf(out, "  Assets:   %v\n", a.Manifest.Assets)
	fmt.Fprintf(out, "  Features: %d pv + %d ind = %d\n",
		a.Manifest.FeatureCounts.PV, a.Manifest.FeatureCounts.Ind, a.Manifest.FeatureCounts.Total)
	return nil
}

func runScalerCheck(cmd *cobra.Command, args []string) error {
	a, err := scaler.LoadArtifacts(cfg.Scaler.Dir, scalerFiles())
	if err != nil {
		return err
	}
	if err := a.Manifest.Validate(cfg.Data.BaseFeatures); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Scaler artifacts valid: %s\n", filepath.Join(cfg.Scaler.Dir, scalerFiles().Manifest))
	fmt.Fprintf(out, "  Base features: %v\n", a.Manifest.BaseFeatures)
	fmt.Fprintf(out, "  Columns:       %d\n", len(a.Manifest.OrderedCols))
	fmt.Fprintf(out, "  Created:       %s\n", a.Manifest.CreatedAt)
	return nil
}

func runScalerAlign(cmd *cobra.Command, args []string) error {
	frame, _, err := loadFrame(scDataPath)
	if err != nil {
		return err
	}

	res, err := scaler.Resolve(cfg.Scaler.Dir, frame, cfg.Data.BaseFeatures, scaler.ResolveOptions{
		Files:      scalerFiles(),
		AllowRefit: cfg.Scaler.AllowRefit,
		Assets:     cfg.Data.Assets,
		PVTokens:   cfg.Scaler.PVTokens,
		Logger:     log.Logger,
		Metrics:    recorder,
	})
	if err != nil {
		return err
	}

	w := scWindow
	if w <= 0 {
		w = cfg.Env.WindowSize
	}
	if w > frame.Len() {
		w = frame.Len()
	}
	window, err := frame.Slice(frame.Len()-w, frame.Len())
	if err != nil {
		return err
	}

	m, rep, err := res.Artifacts.Transform(window, cfg.Data.BaseFeatures)
	if err != nil {
		return err
	}
	recorder.ObserveAlign(len(rep.ZeroFilled), rep.NaNZeroed)

	out := cmd.OutOrStdout()
	if res.Refitted {
		fmt.Fprintln(out, "! artifacts were refitted on this data")
	}
	fmt.Fprintf(out, "Aligned %d rows x %d columns\n", m.Rows, m.Cols)
	fmt.Fprintf(out, "  %s\n", rep.String())
	if len(rep.ZeroFilled) > 0 {
		fmt.Fprintf(out, "  Zero-filled: %v\n", rep.ZeroFilled)
	}
	if len(rep.Reused) > 0 {
		fmt.Fprintf(out, "  Reused:      %v\n", rep.Reused)
	}
	return nil
}
