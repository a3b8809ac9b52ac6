// Package config loads the YAML configuration file described in the
// configuration table: which two chains and which token pair to trade,
// the binary-search step count, the slippage/congestion discount
// parameters, TVL thresholds passed through opaquely to the collector, and
// per-chain block time hints and per-(chain,symbol) inventories.
//
// Grounded on cmd/client/main.go's flag.String("config", ...) +
// config.LoadConfig(path) flow and decoded with go.yaml.in/yaml/v2, the
// teacher's own YAML dependency.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// ChainConfig describes one side of the cross-chain pair.
type ChainConfig struct {
	Name               string        `yaml:"name"`
	BlockTimeHint      time.Duration `yaml:"block_time_hint"`
	AddTVLThreshold    float64       `yaml:"add_tvl_threshold"`
	RemoveTVLThreshold float64       `yaml:"remove_tvl_threshold"`

	// Inventory maps a token symbol to the unsigned integer amount held on
	// this chain, already scaled by the token's decimals.
	Inventory map[string]string `yaml:"inventory"`
}

func (c *ChainConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: chain name is required")
	}
	if c.AddTVLThreshold < 0 || c.RemoveTVLThreshold < 0 {
		return fmt.Errorf("config: chain %q: TVL thresholds must be non-negative", c.Name)
	}
	for symbol, amount := range c.Inventory {
		if v, ok := new(big.Int).SetString(amount, 10); !ok || v.Sign() < 0 {
			return fmt.Errorf("config: chain %q: inventory[%s] = %q is not a valid unsigned integer", c.Name, symbol, amount)
		}
	}
	return nil
}

// InventoryFor parses the configured inventory amount for symbol, returning
// a zero-valued, non-nil *big.Int if the symbol has no configured entry.
func (c *ChainConfig) InventoryFor(symbol string) *big.Int {
	raw, ok := c.Inventory[symbol]
	if !ok {
		return new(big.Int)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return new(big.Int)
	}
	return amount
}

// Config is the top-level kumad configuration.
type Config struct {
	SlowChain ChainConfig `yaml:"slow_chain"`
	FastChain ChainConfig `yaml:"fast_chain"`

	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`

	BinarySearchSteps         int   `yaml:"binary_search_steps"`
	MaxSlippageBps            int64 `yaml:"max_slippage_bps"`
	CongestionRiskDiscountBps int64 `yaml:"congestion_risk_discount_bps"`

	// SignalBusCapacity bounds the per-subscriber backlog on the outbound
	// signalbus.Bus. Not part of the original configuration table; added
	// because signalbus.NewBus requires a concrete capacity.
	SignalBusCapacity int `yaml:"signal_bus_capacity"`

	// StateStreamURL is the jsonrpc collector's upstream endpoint. The wire
	// decoding itself stays the collector's concern; this is only the dial
	// target, following cfg.StateStreamURL in the teacher's own config.
	SlowStateStreamURL string `yaml:"slow_state_stream_url"`
	FastStateStreamURL string `yaml:"fast_state_stream_url"`
}

func (c *Config) validate() error {
	if err := c.SlowChain.validate(); err != nil {
		return err
	}
	if err := c.FastChain.validate(); err != nil {
		return err
	}
	if c.TokenA == "" || c.TokenB == "" {
		return fmt.Errorf("config: token_a and token_b are both required")
	}
	if c.TokenA == c.TokenB {
		return fmt.Errorf("config: token_a and token_b must differ")
	}
	if c.BinarySearchSteps < 1 {
		return fmt.Errorf("config: binary_search_steps must be >= 1, got %d", c.BinarySearchSteps)
	}
	if c.MaxSlippageBps < 0 || c.MaxSlippageBps > 10000 {
		return fmt.Errorf("config: max_slippage_bps must be within 0..=10000, got %d", c.MaxSlippageBps)
	}
	if c.CongestionRiskDiscountBps < 0 || c.CongestionRiskDiscountBps > 10000 {
		return fmt.Errorf("config: congestion_risk_discount_bps must be within 0..=10000, got %d", c.CongestionRiskDiscountBps)
	}
	if c.SignalBusCapacity < 1 {
		c.SignalBusCapacity = 16
	}
	if c.SlowStateStreamURL == "" {
		return fmt.Errorf("config: slow_state_stream_url is required")
	}
	if c.FastStateStreamURL == "" {
		return fmt.Errorf("config: fast_state_stream_url is required")
	}
	return nil
}

// LoadConfig reads and parses the YAML file at path, validating it before
// returning.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
