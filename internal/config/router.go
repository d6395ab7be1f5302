package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type RouterConfig struct {
	// APIBase is the routing service root, e.g. https://aggregator-api.kyberswap.com
	APIBase     string
	APIClientID string
	// APIRateLimit is the outbound request budget per second.
	APIRateLimit int

	// ComparisonSource scopes the second route request of every cycle.
	ComparisonSource string
	ExcludedSources  []string
	SaveGas          bool
	Deadline         time.Duration

	FeeReceiver string
	FeeBps      int
	ChargeFeeBy string

	Debounce   time.Duration
	SessionTTL time.Duration

	MaxHops              int
	MaxResults           int
	DiscoveryTimeout     time.Duration
	DiscoveryConcurrency int
	DiscoveryCacheSize   int

	DefaultSlippageBps int
	// StableSlippagePolicy clamps default tolerances on stablecoin pairs into
	// [StableMinBps, StableMaxBps].
	StableSlippagePolicy bool
	StableMinBps         int
	StableMaxBps         int
}

func (c *RouterConfig) Key() string {
	return ROUTER_CONFIG_KEY
}

func (c *RouterConfig) Load() error {
	c.APIBase = strings.TrimRight(common.GetEnvOrDefault("ROUTER_API_BASE", "https://aggregator-api.kyberswap.com"), "/")
	c.APIClientID = common.GetEnvOrDefault("ROUTER_API_CLIENT_ID", "dmm-router")
	c.APIRateLimit = common.GetEnvOrDefaultInt("ROUTER_API_RPS", 10)

	c.ComparisonSource = common.GetEnvOrDefault("COMPARISON_SOURCE", "uniswap")
	c.ExcludedSources = splitList(os.Getenv("EXCLUDED_SOURCES"))
	c.SaveGas = common.GetEnvOrDefault("SAVE_GAS", "false") == "true"
	c.Deadline = time.Duration(common.GetEnvOrDefaultInt("DEADLINE_SEC", 1200)) * time.Second

	c.FeeReceiver = os.Getenv("FEE_RECEIVER")
	c.FeeBps = common.GetEnvOrDefaultInt("FEE_BPS", 0)
	c.ChargeFeeBy = common.GetEnvOrDefault("CHARGE_FEE_BY", "currency_out")

	c.Debounce = time.Duration(common.GetEnvOrDefaultInt("DEBOUNCE_MS", 300)) * time.Millisecond
	c.SessionTTL = time.Duration(common.GetEnvOrDefaultInt("SESSION_TTL_SEC", 900)) * time.Second

	c.MaxHops = common.GetEnvOrDefaultInt("MAX_HOPS", 3)
	c.MaxResults = common.GetEnvOrDefaultInt("MAX_RESULTS", 1)
	c.DiscoveryTimeout = time.Duration(common.GetEnvOrDefaultInt("DISCOVERY_TIMEOUT_MS", 2000)) * time.Millisecond
	c.DiscoveryConcurrency = common.GetEnvOrDefaultInt("DISCOVERY_CONCURRENCY", 8)
	c.DiscoveryCacheSize = common.GetEnvOrDefaultInt("DISCOVERY_CACHE_SIZE", 1024)

	c.DefaultSlippageBps = common.GetEnvOrDefaultInt("DEFAULT_SLIPPAGE_BPS", 50)
	c.StableSlippagePolicy = common.GetEnvOrDefault("STABLE_SLIPPAGE_POLICY", "true") == "true"
	c.StableMinBps = common.GetEnvOrDefaultInt("STABLE_SLIPPAGE_MIN_BPS", 100)
	c.StableMaxBps = common.GetEnvOrDefaultInt("STABLE_SLIPPAGE_MAX_BPS", 1000)
	return c.Validate()
}

func (c *RouterConfig) Validate() error {
	if c.APIBase == "" {
		return errors.New("invalid router config: empty api base")
	}
	if c.MaxHops <= 0 || c.MaxResults <= 0 {
		return errors.New("invalid router config: hops and results must be positive")
	}
	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps > 10000 {
		return errors.New("invalid router config: default slippage out of range")
	}
	if c.StableMinBps > c.StableMaxBps {
		return errors.New("invalid router config: stable slippage bounds inverted")
	}
	if c.FeeBps < 0 || c.FeeBps > 10000 {
		return errors.New("invalid router config: fee bps out of range")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
