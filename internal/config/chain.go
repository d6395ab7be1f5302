package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/hxuan190/dmm-router/internal/domain"
)

// Chain holds the per-chain routing knobs: which tokens act as intermediate
// hops and which tokens count as stablecoins.
type Chain struct {
	ChainID       uint64
	Name          string
	Native        domain.Token
	WrappedNative domain.Token
	DMMFactory    common.Address
	Bases         []domain.Token
	// AdditionalBases adds hops whenever the keyed token is traded.
	AdditionalBases map[common.Address][]domain.Token
	// CustomBases restricts the keyed token to pairs against these tokens only.
	CustomBases map[common.Address][]domain.Token
	Stablecoins map[common.Address]struct{}
}

// Wrap maps the native currency to its wrapped ERC20.
func (c *Chain) Wrap(t domain.Token) domain.Token {
	if t.IsNative() {
		return c.WrappedNative
	}
	return t
}

func (c *Chain) IsStablecoin(t domain.Token) bool {
	if t.IsNative() {
		return false
	}
	_, ok := c.Stablecoins[t.Address]
	return ok
}

// KnownToken returns metadata for configured tokens without touching the chain.
func (c *Chain) KnownToken(addr common.Address) (domain.Token, bool) {
	if c.WrappedNative.Address == addr {
		return c.WrappedNative, true
	}
	for _, t := range c.Bases {
		if t.Address == addr {
			return t, true
		}
	}
	for _, list := range c.AdditionalBases {
		for _, t := range list {
			if t.Address == addr {
				return t, true
			}
		}
	}
	return domain.Token{}, false
}

type ChainsConfig struct {
	// File is an optional YAML/JSON/TOML file overriding the built-in chains.
	File   string
	Chains map[uint64]*Chain
}

func (c *ChainsConfig) Key() string {
	return CHAIN_CONFIG_KEY
}

func (c *ChainsConfig) Load() error {
	c.Chains = DefaultChains()
	c.File = os.Getenv("CHAIN_CONFIG_FILE")
	if c.File != "" {
		if err := LoadChainFile(c.File, c.Chains); err != nil {
			return err
		}
	}
	return c.Validate()
}

func (c *ChainsConfig) Validate() error {
	if len(c.Chains) == 0 {
		return errors.New("invalid chain config: no chains")
	}
	for id, chain := range c.Chains {
		if chain.WrappedNative.Address == (common.Address{}) {
			return fmt.Errorf("invalid chain config: chain %d has no wrapped native token", id)
		}
	}
	return nil
}

func (c *ChainsConfig) Get(chainID uint64) (*Chain, bool) {
	chain, ok := c.Chains[chainID]
	return chain, ok
}

type tokenEntry struct {
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Symbol   string `mapstructure:"symbol"`
}

type chainEntry struct {
	ChainID         uint64                  `mapstructure:"chainId"`
	Name            string                  `mapstructure:"name"`
	NativeSymbol    string                  `mapstructure:"nativeSymbol"`
	WrappedNative   *tokenEntry             `mapstructure:"wrappedNative"`
	Factory         string                  `mapstructure:"factory"`
	Bases           []tokenEntry            `mapstructure:"bases"`
	AdditionalBases map[string][]tokenEntry `mapstructure:"additionalBases"`
	CustomBases     map[string][]tokenEntry `mapstructure:"customBases"`
	Stablecoins     []string                `mapstructure:"stablecoins"`
}

// LoadChainFile merges the chains listed in path into chains. Fields left out
// of the file keep their current values.
func LoadChainFile(path string, chains map[uint64]*Chain) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read chain config: %w", err)
	}

	var file struct {
		Chains []chainEntry `mapstructure:"chains"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("decode chain config: %w", err)
	}

	for _, entry := range file.Chains {
		if entry.ChainID == 0 {
			return errors.New("decode chain config: missing chainId")
		}
		chain, ok := chains[entry.ChainID]
		if !ok {
			chain = &Chain{
				ChainID:         entry.ChainID,
				Native:          domain.NewNative(entry.ChainID, 18, "ETH"),
				AdditionalBases: map[common.Address][]domain.Token{},
				CustomBases:     map[common.Address][]domain.Token{},
				Stablecoins:     map[common.Address]struct{}{},
			}
			chains[entry.ChainID] = chain
		}
		if err := entry.apply(chain); err != nil {
			return fmt.Errorf("chain %d: %w", entry.ChainID, err)
		}
	}
	return nil
}

func (s chainEntry) apply(chain *Chain) error {
	if s.Name != "" {
		chain.Name = s.Name
	}
	if s.NativeSymbol != "" {
		chain.Native = domain.NewNative(chain.ChainID, 18, s.NativeSymbol)
	}
	if s.WrappedNative != nil {
		t, err := s.WrappedNative.token(chain.ChainID)
		if err != nil {
			return err
		}
		chain.WrappedNative = t
	}
	if s.Factory != "" {
		if !common.IsHexAddress(s.Factory) {
			return fmt.Errorf("bad factory address %q", s.Factory)
		}
		chain.DMMFactory = common.HexToAddress(s.Factory)
	}
	if len(s.Bases) > 0 {
		bases, err := tokenList(chain.ChainID, s.Bases)
		if err != nil {
			return err
		}
		chain.Bases = bases
	}
	for key, list := range s.AdditionalBases {
		if err := setTokenMap(chain.ChainID, chain.AdditionalBases, key, list); err != nil {
			return err
		}
	}
	for key, list := range s.CustomBases {
		if err := setTokenMap(chain.ChainID, chain.CustomBases, key, list); err != nil {
			return err
		}
	}
	if len(s.Stablecoins) > 0 {
		chain.Stablecoins = make(map[common.Address]struct{}, len(s.Stablecoins))
		for _, raw := range s.Stablecoins {
			if !common.IsHexAddress(raw) {
				return fmt.Errorf("bad stablecoin address %q", raw)
			}
			chain.Stablecoins[common.HexToAddress(raw)] = struct{}{}
		}
	}
	return nil
}

func (t tokenEntry) token(chainID uint64) (domain.Token, error) {
	if !common.IsHexAddress(t.Address) {
		return domain.Token{}, fmt.Errorf("bad token address %q", t.Address)
	}
	return domain.NewERC20(chainID, common.HexToAddress(t.Address), t.Decimals, t.Symbol), nil
}

func tokenList(chainID uint64, entries []tokenEntry) ([]domain.Token, error) {
	out := make([]domain.Token, 0, len(entries))
	for _, s := range entries {
		t, err := s.token(chainID)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func setTokenMap(chainID uint64, m map[common.Address][]domain.Token, key string, entries []tokenEntry) error {
	if !common.IsHexAddress(key) {
		return fmt.Errorf("bad token address %q", key)
	}
	list, err := tokenList(chainID, entries)
	if err != nil {
		return err
	}
	m[common.HexToAddress(key)] = list
	return nil
}
