package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/rebalance/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixture writes a two-asset feature table and a matching sqlite
// config into dir and returns the config path.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,btc_close,btc_rsi,eth_close,eth_rsi,eth_buy_condition_v1\n")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		x := float64(i)
		sig := 0
		if i%10 < 6 {
			sig = 1
		}
		fmt.Fprintf(&b, "%s,%.4f,%.2f,%.4f,%.2f,%d\n",
			t0.Add(time.Duration(i)*time.Hour).Format(time.RFC3339),
			100+5*math.Sin(x/4), 50+10*math.Cos(x/5),
			20+x*0.1, 40+x/2, sig)
	}
	data := filepath.Join(dir, "features.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0644))

	c := config.Default()
	c.Data.CSVPath = data
	c.Data.Assets = []string{"btc", "eth"}
	c.Data.BaseFeatures = []string{"close", "rsi"}
	c.Env.WindowSize = 8
	c.Env.RewardWindowSize = 5
	c.Backtest.Asset = "eth"
	c.Backtest.VolWindow = 5
	c.Scaler.Dir = filepath.Join(dir, "model")
	c.Scaler.PVTokens = []string{"close"}
	c.Journal = config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "journal.sqlite")}
	c.Log.Level = "warn"

	path := filepath.Join(dir, "rebalance.yaml")
	require.NoError(t, c.SaveToFile(path))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "rebalance version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	out := execute(t, "config", "init", "-o", path)
	assert.Contains(t, out, "Created default configuration")

	out = execute(t, "config", "validate", "-f", path)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "crypto_eth")
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFixture(t, dir)
	metricsPath := filepath.Join(dir, "metrics.prom")

	out := execute(t, "env", "run", "-c", cfgPath, "--policy", "momentum", "--metrics-file", metricsPath)
	assert.Contains(t, out, "Policy:        momentum")
	assert.Contains(t, out, "Steps:         50")

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "rebalance_env_steps_total 50")

	orgPath := filepath.Join(dir, "report.org")
	out = execute(t, "backtest", "-c", cfgPath, "--org", orgPath, "--metrics-file", "")
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Signal:        column")
	_, err = os.Stat(orgPath)
	assert.NoError(t, err)

	out = execute(t, "journal", "runs", "-c", cfgPath)
	assert.Len(t, strings.Fields(out), 2)

	out = execute(t, "sweep", "-c", cfgPath, "--sl", "0.05,0.1", "--tp", "0.1", "-j", "2")
	assert.Contains(t, out, "SHARPE")
	assert.Equal(t, 3, strings.Count(out, "\n"))

	out = execute(t, "scaler", "fit", "-c", cfgPath)
	assert.Contains(t, out, "Fitted scalers")
	out = execute(t, "scaler", "check", "-c", cfgPath)
	assert.Contains(t, out, "Scaler artifacts valid")
	out = execute(t, "scaler", "align", "-c", cfgPath, "-w", "4")
	assert.Contains(t, out, "Aligned 4 rows x 4 columns")

	out = execute(t, "env", "run", "-c", cfgPath, "--policy", "equal-weight", "--scaler")
	assert.Contains(t, out, "Steps:         50")
}
