package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type RPCConfig struct {
	RPCUrl  string
	ChainID uint64
	// ChainURLs holds nodes for the other chains SwitchChain may move to,
	// from CHAIN_RPC_URLS="137=https://...,56=https://...".
	ChainURLs map[uint64]string
	// FactoryAddress overrides the chain's default DMM factory.
	FactoryAddress string
	// CallTimeout bounds a single eth_call batch issued while resolving pools.
	CallTimeout time.Duration
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("ETH_RPC_URL")
	r.ChainID = uint64(common.GetEnvOrDefaultInt("CHAIN_ID", 1))
	urls, err := parseChainURLs(os.Getenv("CHAIN_RPC_URLS"))
	if err != nil {
		return err
	}
	r.ChainURLs = urls
	r.FactoryAddress = os.Getenv("DMM_FACTORY_ADDRESS")
	r.CallTimeout = time.Duration(common.GetEnvOrDefaultInt("RPC_CALL_TIMEOUT_MS", 3000)) * time.Millisecond
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	if r.RPCUrl == "" || r.ChainID == 0 {
		return errors.New("invalid rpc config")
	}
	if r.FactoryAddress != "" && !ethcommon.IsHexAddress(r.FactoryAddress) {
		return errors.New("invalid rpc config: bad factory address")
	}
	return nil
}

// URLs maps every chain with a configured node to its RPC URL. ETH_RPC_URL
// wins for CHAIN_ID.
func (r *RPCConfig) URLs() map[uint64]string {
	out := make(map[uint64]string, len(r.ChainURLs)+1)
	for id, url := range r.ChainURLs {
		out[id] = url
	}
	out[r.ChainID] = r.RPCUrl
	return out
}

func parseChainURLs(raw string) (map[uint64]string, error) {
	out := make(map[uint64]string)
	for _, item := range splitList(raw) {
		id, url, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("invalid rpc config: bad CHAIN_RPC_URLS entry %q", item)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil || chainID == 0 {
			return nil, fmt.Errorf("invalid rpc config: bad chain id in %q", item)
		}
		out[chainID] = strings.TrimSpace(url)
	}
	return out, nil
}
