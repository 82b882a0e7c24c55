//go:build blackbox

package blackbox

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/rebalance/config"
)

// writeConfig points the default config at data and a sqlite journal.
func writeConfig(t *testing.T, dir, data string) (cfgPath, dbPath string) {
	t.Helper()

	cfgPath = filepath.Join(dir, "rebalance.yaml")
	run(t, "config", "init", "-o", cfgPath)

	c, err := config.LoadFromFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	dbPath = filepath.Join(dir, "journal.sqlite")
	c.Data.CSVPath = data
	c.Journal = config.JournalConfig{Type: "sqlite", DBPath: dbPath}
	if err := c.SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func TestBacktestJournalsTrades(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "features.csv")
	assets := []string{"crypto_btc", "crypto_eth", "crypto_sol"}

	// eth ramps 9% while the signal is on, then the signal turns off
	writeFeaturesCSV(t, data, assets, 40, func(a, i int) float64 {
		if i < 20 {
			return 100 + float64(a) + float64(i)*0.45
		}
		return 109 + float64(a)
	}, func(i int) int {
		if i < 30 {
			return 1
		}
		return 0
	})
	cfgPath, dbPath := writeConfig(t, dir, data)

	out := run(t, "backtest", "-c", cfgPath, "--log-level", "warn")
	if !contains(out, "Backtest Result") {
		t.Fatalf("expected result banner, got:\n%s", out)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var reason string
	if err := db.QueryRow(`SELECT reason FROM trades WHERE side = 'sell' ORDER BY time DESC LIMIT 1`).Scan(&reason); err != nil {
		t.Fatal(err)
	}
	if reason != "signal_exit" {
		t.Fatalf("expected signal_exit, got %q", reason)
	}
}

func TestEnvRunJournalsSteps(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "features.csv")
	assets := []string{"crypto_btc", "crypto_eth", "crypto_sol"}
	writeFeaturesCSV(t, data, assets, 50, func(a, i int) float64 {
		return 50 + float64(a*10) + float64(i%7)
	}, func(int) int { return 0 })
	cfgPath, dbPath := writeConfig(t, dir, data)

	out := run(t, "env", "run", "-c", cfgPath, "--policy", "buy-and-hold")
	if !contains(out, "Steps:         24") {
		t.Fatalf("expected 24 steps, got:\n%s", out)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM steps`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 24 {
		t.Fatalf("expected 24 step rows, got %d", n)
	}
}

func TestMissingCloseColumnFails(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "features.csv")
	writeFeaturesCSV(t, data, []string{"crypto_btc"}, 40, func(a, i int) float64 { return 1 }, func(int) int { return 0 })
	cfgPath, _ := writeConfig(t, dir, data)

	out := runFail(t, "env", "run", "-c", cfgPath)
	if !contains(out, "crypto_eth_close") {
		t.Fatalf("expected missing column in error, got:\n%s", out)
	}
}
