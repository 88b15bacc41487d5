// Package config loads simulator configuration from YAML with environment
// overrides. A missing config file falls back to defaults so the binary runs
// out of the box.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polysim/internal/evaluation"
	"github.com/alejandrodnm/polysim/internal/exchange"
	"github.com/alejandrodnm/polysim/internal/probability"
	"github.com/alejandrodnm/polysim/internal/simulator"
	"github.com/alejandrodnm/polysim/internal/strategy"
)

type Config struct {
	Sim         SimConfig         `yaml:"sim"`
	Probability ProbabilityConfig `yaml:"probability"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	API         APIConfig         `yaml:"api"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

type SimConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	MaxMarkets      int     `yaml:"max_markets"`
	InitialBalance  float64 `yaml:"initial_balance"`
	Workers         int     `yaml:"workers"`
	AccountID       string  `yaml:"account_id"`
}

type ProbabilityConfig struct {
	MinEdgePct           float64 `yaml:"min_edge_pct"`
	MinDepth             float64 `yaml:"min_depth"`
	MaxSpreadBps         float64 `yaml:"max_spread_bps"`
	MaxResolutionHours   float64 `yaml:"max_resolution_hours"`
	MinResolutionHours   float64 `yaml:"min_resolution_hours"`
	DepthConfidenceScale float64 `yaml:"depth_confidence_scale"`
	ImbalanceWeight      float64 `yaml:"imbalance_weight"`
	MaxKelly             float64 `yaml:"max_kelly"`
}

type StrategyConfig struct {
	MinEdgePct            float64  `yaml:"min_edge_pct"`
	MaxSpreadTicks        int      `yaml:"max_spread_ticks"`
	MaxResolutionDays     float64  `yaml:"max_resolution_days"`
	MinResolutionHours    float64  `yaml:"min_resolution_hours"`
	BaseSize              float64  `yaml:"base_size"`
	MaxSize               float64  `yaml:"max_size"`
	UseKelly              bool     `yaml:"use_kelly"`
	KellyFraction         float64  `yaml:"kelly_fraction"`
	MaxOrdersPerMinute    int      `yaml:"max_orders_per_minute"`
	MaxCapitalDeployedPct float64  `yaml:"max_capital_deployed_pct"`
	ReferenceBalance      float64  `yaml:"reference_balance"`
	MaxPerMarket          float64  `yaml:"max_per_market"`
	MaxRiskScore          float64  `yaml:"max_risk_score"`
	BlockedRiskFlags      []string `yaml:"blocked_risk_flags"`
}

type ExchangeConfig struct {
	FeeRate          float64 `yaml:"fee_rate"`
	SlippageModel    string  `yaml:"slippage_model"`
	FixedSlippageBps float64 `yaml:"fixed_slippage_bps"`
	PartialFills     *bool   `yaml:"partial_fills"`
}

type EvaluationConfig struct {
	CohortDurationHours float64 `yaml:"cohort_duration_hours"`
	MaxHistory          int     `yaml:"max_history"`
}

type APIConfig struct {
	GammaBase string `yaml:"gamma_base"`
	ClobBase  string `yaml:"clob_base"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path (optional), applies .env and
// environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("POLYSIM_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("GAMMA_API_BASE"); v != "" {
		c.API.GammaBase = v
	}
	if v := os.Getenv("CLOB_API_BASE"); v != "" {
		c.API.ClobBase = v
	}
}

func (c *Config) setDefaults() {
	if c.Sim.IntervalSeconds <= 0 {
		c.Sim.IntervalSeconds = 60
	}
	if c.Sim.MaxMarkets <= 0 {
		c.Sim.MaxMarkets = 50
	}
	if c.Sim.InitialBalance <= 0 {
		c.Sim.InitialBalance = 10000
	}
	if c.Sim.AccountID == "" {
		c.Sim.AccountID = "paper"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "polysim.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Exchange.FeeRate < 0 || c.Exchange.FeeRate > 0.1 {
		return fmt.Errorf("fee_rate %.4f out of range [0, 0.1]", c.Exchange.FeeRate)
	}
	switch c.Exchange.SlippageModel {
	case "", "none", "fixed":
	default:
		return fmt.Errorf("unknown slippage_model %q", c.Exchange.SlippageModel)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Interval returns the configured cycle interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sim.IntervalSeconds) * time.Second
}

// ProbabilityConfig builds the estimation engine config, with zero values
// left for the engine's own defaults.
func (c *Config) ProbabilityConfig() probability.Config {
	return probability.Config{
		MinEdgePct:           c.Probability.MinEdgePct,
		MinDepth:             c.Probability.MinDepth,
		MaxSpreadBps:         c.Probability.MaxSpreadBps,
		MaxResolutionHours:   c.Probability.MaxResolutionHours,
		MinResolutionHours:   c.Probability.MinResolutionHours,
		DepthConfidenceScale: c.Probability.DepthConfidenceScale,
		ImbalanceWeight:      c.Probability.ImbalanceWeight,
		MaxKelly:             c.Probability.MaxKelly,
	}
}

// StrategyConfig builds the strategy engine config on top of its defaults.
func (c *Config) StrategyConfig() strategy.Config {
	cfg := strategy.DefaultConfig()
	if c.Strategy.MinEdgePct > 0 {
		cfg.MinEdgePct = c.Strategy.MinEdgePct
	}
	if c.Strategy.MaxSpreadTicks > 0 {
		cfg.MaxSpreadTicks = c.Strategy.MaxSpreadTicks
	}
	if c.Strategy.MaxResolutionDays > 0 {
		cfg.MaxResolutionDays = c.Strategy.MaxResolutionDays
	}
	if c.Strategy.MinResolutionHours > 0 {
		cfg.MinResolutionHours = c.Strategy.MinResolutionHours
	}
	if c.Strategy.BaseSize > 0 {
		cfg.BaseSize = c.Strategy.BaseSize
	}
	if c.Strategy.MaxSize > 0 {
		cfg.MaxSize = c.Strategy.MaxSize
	}
	cfg.UseKelly = c.Strategy.UseKelly
	if c.Strategy.KellyFraction > 0 {
		cfg.KellyFraction = c.Strategy.KellyFraction
	}
	if c.Strategy.MaxOrdersPerMinute > 0 {
		cfg.MaxOrdersPerMinute = c.Strategy.MaxOrdersPerMinute
	}
	if c.Strategy.MaxCapitalDeployedPct > 0 {
		cfg.MaxCapitalDeployedPct = c.Strategy.MaxCapitalDeployedPct
	}
	if c.Strategy.ReferenceBalance > 0 {
		cfg.ReferenceBalance = c.Strategy.ReferenceBalance
	}
	if c.Strategy.MaxPerMarket > 0 {
		cfg.MaxPerMarket = c.Strategy.MaxPerMarket
	}
	if c.Strategy.MaxRiskScore > 0 {
		cfg.MaxRiskScore = c.Strategy.MaxRiskScore
	}
	if len(c.Strategy.BlockedRiskFlags) > 0 {
		cfg.BlockedRiskFlags = strategy.ParseRiskFlags(c.Strategy.BlockedRiskFlags)
	}
	return cfg
}

// ExchangeConfig builds the paper exchange config.
func (c *Config) ExchangeConfig() exchange.Config {
	cfg := exchange.DefaultConfig()
	if c.Exchange.FeeRate > 0 {
		cfg.FeeRate = c.Exchange.FeeRate
	}
	if c.Exchange.SlippageModel != "" {
		cfg.SlippageModel = c.Exchange.SlippageModel
	}
	if c.Exchange.FixedSlippageBps > 0 {
		cfg.FixedSlippageBps = c.Exchange.FixedSlippageBps
	}
	if c.Exchange.PartialFills != nil {
		cfg.PartialFills = *c.Exchange.PartialFills
	}
	return cfg
}

// EvaluationConfig builds the evaluation service config.
func (c *Config) EvaluationConfig() evaluation.Config {
	cfg := evaluation.DefaultConfig()
	if c.Evaluation.CohortDurationHours > 0 {
		cfg.CohortDurationHours = c.Evaluation.CohortDurationHours
	}
	if c.Evaluation.MaxHistory > 0 {
		cfg.MaxHistory = c.Evaluation.MaxHistory
	}
	return cfg
}

// SimulatorConfig builds the runner config.
func (c *Config) SimulatorConfig() simulator.Config {
	return simulator.Config{
		AccountID:      c.Sim.AccountID,
		InitialBalance: c.Sim.InitialBalance,
		MaxMarkets:     c.Sim.MaxMarkets,
		Workers:        c.Sim.Workers,
	}
}
