package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hxuan190/dmm-router/internal/config"
)

// Config holds routectl settings loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	ChainID     uint64
	Factory     string
	ChainFile   string
	CallTimeout time.Duration
	TokenDB     string

	TokenIn  string
	TokenOut string
	Amount   string
	Raw      bool
	SwapMode string
	// SlippageBps below zero keeps the chain policy default.
	SlippageBps int
	MaxHops     int
	MaxResults  int

	APIBase          string
	ComparisonSource string

	Timeout  time.Duration
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(config.ChainIDEthereum))
	v.SetDefault("call-timeout", 3*time.Second)
	v.SetDefault("swap-mode", "ExactIn")
	v.SetDefault("slippage-bps", -1)
	v.SetDefault("max-hops", 3)
	v.SetDefault("max-results", 3)
	v.SetDefault("api-base", "https://aggregator-api.kyberswap.com")
	v.SetDefault("comparison-source", "uniswap")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("log-level", "warn")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("routectl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		RPCURL:           v.GetString("rpc"),
		ChainID:          v.GetUint64("chain-id"),
		Factory:          v.GetString("factory"),
		ChainFile:        v.GetString("chain-file"),
		CallTimeout:      v.GetDuration("call-timeout"),
		TokenDB:          v.GetString("token-db"),
		TokenIn:          v.GetString("token-in"),
		TokenOut:         v.GetString("token-out"),
		Amount:           v.GetString("amount"),
		Raw:              v.GetBool("raw"),
		SwapMode:         v.GetString("swap-mode"),
		SlippageBps:      v.GetInt("slippage-bps"),
		MaxHops:          v.GetInt("max-hops"),
		MaxResults:       v.GetInt("max-results"),
		APIBase:          v.GetString("api-base"),
		ComparisonSource: v.GetString("comparison-source"),
		Timeout:          v.GetDuration("timeout"),
		LogLevel:         v.GetString("log-level"),
	}, nil
}

func (c Config) validate() error {
	if c.TokenIn == "" || c.TokenOut == "" {
		return errors.New("token-in and token-out are required")
	}
	if c.Amount == "" {
		return errors.New("amount is required")
	}
	return nil
}

func (c Config) slippage() *int {
	if c.SlippageBps < 0 {
		return nil
	}
	bps := c.SlippageBps
	return &bps
}

// chains returns the built-in chain table merged with the optional chain
// file, plus the chain routing happens on.
func (c Config) chains() (map[uint64]*config.Chain, *config.Chain, error) {
	chains := config.DefaultChains()
	if c.ChainFile != "" {
		if err := config.LoadChainFile(c.ChainFile, chains); err != nil {
			return nil, nil, err
		}
	}
	chain, ok := chains[c.ChainID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown chain id %d", c.ChainID)
	}
	if c.Factory != "" {
		if !ethcommon.IsHexAddress(c.Factory) {
			return nil, nil, fmt.Errorf("invalid factory address %q", c.Factory)
		}
		chain.DMMFactory = ethcommon.HexToAddress(c.Factory)
	}
	return chains, chain, nil
}

func (c Config) routerConfig() (*config.RouterConfig, error) {
	rc := &config.RouterConfig{
		APIBase:              strings.TrimRight(c.APIBase, "/"),
		APIClientID:          "routectl",
		APIRateLimit:         5,
		ComparisonSource:     c.ComparisonSource,
		ChargeFeeBy:          "currency_out",
		MaxHops:              c.MaxHops,
		MaxResults:           c.MaxResults,
		DiscoveryTimeout:     c.CallTimeout,
		DiscoveryConcurrency: 8,
		DiscoveryCacheSize:   256,
		DefaultSlippageBps:   50,
		StableSlippagePolicy: true,
		StableMinBps:         100,
		StableMaxBps:         1000,
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}
