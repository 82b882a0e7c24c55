package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/risk"
	"github.com/rustyeddy/rebalance/simerr"
	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration. It is loaded once and handed to
// each component by value.
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data"`
	Costs    CostsConfig    `json:"costs" yaml:"costs"`
	Env      EnvConfig      `json:"env" yaml:"env"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Scaler   ScalerConfig   `json:"scaler" yaml:"scaler"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DataConfig describes the feature/price table.
type DataConfig struct {
	CSVPath      string   `json:"csv_path" yaml:"csv_path"`
	Assets       []string `json:"assets" yaml:"assets"`
	BaseFeatures []string `json:"base_features" yaml:"base_features"`
	Interval     string   `json:"interval" yaml:"interval"` // e.g. "1h", "5m"
	DaysPerYear  float64  `json:"days_per_year" yaml:"days_per_year"`
}

type CostsConfig struct {
	FeeRate      float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippageRate float64 `json:"slippage_rate" yaml:"slippage_rate"`
}

// EnvConfig parameterizes the portfolio environment.
type EnvConfig struct {
	InitialBalance     float64  `json:"initial_balance" yaml:"initial_balance"`
	WindowSize         int      `json:"window_size" yaml:"window_size"`
	RewardWindowSize   int      `json:"reward_window_size" yaml:"reward_window_size"`
	RiskFreeAnnual     float64  `json:"risk_free_annual" yaml:"risk_free_annual"`
	RiskFreePerStep    *float64 `json:"risk_free_per_step,omitempty" yaml:"risk_free_per_step,omitempty"`
	RewardClip         float64  `json:"reward_clip" yaml:"reward_clip"`
	RewardScale        float64  `json:"reward_scale" yaml:"reward_scale"`
	WarmupReward       float64  `json:"warmup_reward" yaml:"warmup_reward"`
	TradingDaysPerYear float64  `json:"trading_days_per_year" yaml:"trading_days_per_year"`
	Policy             string   `json:"policy" yaml:"policy"`
	MomentumLookback   int      `json:"momentum_lookback" yaml:"momentum_lookback"`
	UseScaler          bool     `json:"use_scaler" yaml:"use_scaler"`
}

// BacktestConfig parameterizes the single-asset signal backtester.
type BacktestConfig struct {
	Asset           string  `json:"asset" yaml:"asset"`
	SignalColumn    string  `json:"signal_column" yaml:"signal_column"`
	StartCapital    float64 `json:"start_capital" yaml:"start_capital"`
	TargetAnnualVol float64 `json:"target_annual_vol" yaml:"target_annual_vol"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	PartialTPPct    float64 `json:"partial_tp_pct" yaml:"partial_tp_pct"`
	VolWindow       int     `json:"vol_window" yaml:"vol_window"`
	DefaultVol      float64 `json:"default_vol" yaml:"default_vol"`
	CloseAtEnd      bool    `json:"close_at_end" yaml:"close_at_end"`
	OrgPath         string  `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

// ScalerConfig locates the fitted scaler artifacts.
type ScalerConfig struct {
	Dir          string   `json:"dir" yaml:"dir"`
	ManifestFile string   `json:"manifest_file" yaml:"manifest_file"`
	PVFile       string   `json:"pv_file" yaml:"pv_file"`
	IndFile      string   `json:"ind_file" yaml:"ind_file"`
	PVTokens     []string `json:"pv_tokens,omitempty" yaml:"pv_tokens,omitempty"`
	// AllowRefit lets a reproducibility mismatch trigger a refit instead of
	// stopping the run.
	AllowRefit bool `json:"allow_refit" yaml:"allow_refit"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	StepsFile  string `json:"steps_file,omitempty" yaml:"steps_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths, JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration and names the first offending key.
func (c *Config) Validate() error {
	if len(c.Data.Assets) == 0 {
		return simerr.Configf("data.assets", "at least one asset is required")
	}
	seen := make(map[string]bool)
	for _, a := range c.Data.Assets {
		if a == "" || seen[a] {
			return simerr.Configf("data.assets", "asset keys must be unique and non-empty, got %q", a)
		}
		seen[a] = true
	}
	if _, err := c.IntervalDuration(); err != nil {
		return err
	}
	if c.Data.DaysPerYear <= 0 {
		return simerr.Configf("data.days_per_year", "must be positive")
	}

	if err := c.CostModel().Validate(); err != nil {
		return err
	}

	e := c.Env
	if e.InitialBalance <= 0 {
		return simerr.Configf("env.initial_balance", "must be positive")
	}
	if e.WindowSize < 1 {
		return simerr.Configf("env.window_size", "must be >= 1")
	}
	if e.RewardWindowSize < 2 {
		return simerr.Configf("env.reward_window_size", "must be >= 2")
	}
	if e.RewardClip <= 0 {
		return simerr.Configf("env.reward_clip", "must be positive")
	}
	if e.RewardScale < 0 || e.WarmupReward < 0 {
		return simerr.Configf("env.reward_scale", "reward_scale and warmup_reward must be >= 0")
	}
	if e.TradingDaysPerYear <= 0 {
		return simerr.Configf("env.trading_days_per_year", "must be positive")
	}
	if e.Policy == "" {
		return simerr.Configf("env.policy", "is required")
	}

	b := c.Backtest
	if b.StartCapital <= 0 {
		return simerr.Configf("backtest.start_capital", "must be positive")
	}
	if b.TargetAnnualVol < 0 {
		return simerr.Configf("backtest.target_annual_vol", "must be >= 0")
	}
	if b.StopLossPct <= 0 || b.StopLossPct >= 1 {
		return simerr.Configf("backtest.stop_loss_pct", "must be between 0 and 1")
	}
	if b.PartialTPPct <= 0 {
		return simerr.Configf("backtest.partial_tp_pct", "must be positive")
	}
	if b.VolWindow < 2 {
		return simerr.Configf("backtest.vol_window", "must be >= 2")
	}
	if b.DefaultVol <= 0 {
		return simerr.Configf("backtest.default_vol", "must be positive")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return simerr.Configf("journal", "trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return simerr.Configf("journal.db_path", "required for SQLite type")
		}
	default:
		return simerr.Configf("journal.type", "must be 'csv', 'sqlite' or 'none', got %q", c.Journal.Type)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return simerr.Configf("log.level", "%v", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return simerr.Configf("log.format", "must be 'console' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// IntervalDuration parses data.interval.
func (c *Config) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Data.Interval)
	if err != nil || d <= 0 {
		return 0, simerr.Configf("data.interval", "must be a positive duration, got %q", c.Data.Interval)
	}
	return d, nil
}

// EnvStepsPerYear annualizes the environment reward over trading days.
func (c *Config) EnvStepsPerYear() float64 {
	d, _ := c.IntervalDuration()
	return risk.StepsPerYear(d, c.Env.TradingDaysPerYear)
}

// BacktestStepsPerYear annualizes backtest volatility over calendar days.
func (c *Config) BacktestStepsPerYear() float64 {
	d, _ := c.IntervalDuration()
	return risk.StepsPerYear(d, c.Data.DaysPerYear)
}

// RiskFreePerStep is the explicit override when set, else the annual rate
// spread evenly over the environment's steps per year.
func (c *Config) RiskFreePerStep() float64 {
	if c.Env.RiskFreePerStep != nil {
		return *c.Env.RiskFreePerStep
	}
	spy := c.EnvStepsPerYear()
	if spy <= 0 {
		return 0
	}
	return c.Env.RiskFreeAnnual / spy
}

func (c *Config) CostModel() risk.CostModel {
	return risk.CostModel{FeeRate: c.Costs.FeeRate, SlippageRate: c.Costs.SlippageRate}
}

func (c *Config) AssetKeys() []market.AssetKey {
	return market.Assets(c.Data.Assets)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Assets:       []string{"crypto_btc", "crypto_eth", "crypto_sol"},
			BaseFeatures: []string{"close_div_atr", "volume_div_atr", "rsi", "macd_hist"},
			Interval:     "1h",
			DaysPerYear:  365,
		},
		Costs: CostsConfig{
			FeeRate:      0.001,
			SlippageRate: 0.001,
		},
		Env: EnvConfig{
			InitialBalance:     100000,
			WindowSize:         24,
			RewardWindowSize:   30,
			RiskFreeAnnual:     0.02,
			RewardClip:         5,
			RewardScale:        0.1,
			WarmupReward:       0.01,
			TradingDaysPerYear: 252,
			Policy:             "equal-weight",
			MomentumLookback:   24,
		},
		Backtest: BacktestConfig{
			Asset:           "crypto_eth",
			SignalColumn:    "buy_condition_v1",
			StartCapital:    10000,
			TargetAnnualVol: 0.6,
			StopLossPct:     0.08,
			PartialTPPct:    0.10,
			VolWindow:       24,
			DefaultVol:      0.02,
		},
		Scaler: ScalerConfig{
			Dir:          "./model",
			ManifestFile: "scalers_manifest.json",
			PVFile:       "pv_scaler.json",
			IndFile:      "ind_scaler.json",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
			StepsFile:  "./steps.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
