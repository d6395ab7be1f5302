package config

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/dmm-router/internal/domain"
)

const (
	ChainIDEthereum uint64 = 1
	ChainIDPolygon  uint64 = 137
)

func erc20(chainID uint64, addr string, decimals uint8, symbol string) domain.Token {
	return domain.NewERC20(chainID, common.HexToAddress(addr), decimals, symbol)
}

// DefaultChains returns a fresh copy of the built-in chain table.
func DefaultChains() map[uint64]*Chain {
	ethWETH := erc20(ChainIDEthereum, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18, "WETH")
	ethUSDC := erc20(ChainIDEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6, "USDC")
	ethUSDT := erc20(ChainIDEthereum, "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6, "USDT")
	ethDAI := erc20(ChainIDEthereum, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI")
	ethWBTC := erc20(ChainIDEthereum, "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", 8, "WBTC")
	ethKNC := erc20(ChainIDEthereum, "0xdeFA4e8a7bcBA345F687a2f1456F5Edd9CE97202", 18, "KNC")

	polyWMATIC := erc20(ChainIDPolygon, "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", 18, "WMATIC")
	polyUSDC := erc20(ChainIDPolygon, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", 6, "USDC")
	polyUSDT := erc20(ChainIDPolygon, "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", 6, "USDT")
	polyDAI := erc20(ChainIDPolygon, "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", 18, "DAI")
	polyWETH := erc20(ChainIDPolygon, "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", 18, "WETH")
	polyKNC := erc20(ChainIDPolygon, "0x1C954E8fe737F99f68Fa1CCda3e51ebDB291948C", 18, "KNC")

	return map[uint64]*Chain{
		ChainIDEthereum: {
			ChainID:         ChainIDEthereum,
			Name:            "ethereum",
			Native:          domain.NewNative(ChainIDEthereum, 18, "ETH"),
			WrappedNative:   ethWETH,
			DMMFactory:      common.HexToAddress("0x833e4083B7ae46CeA85695c4f7ed25CDAd8886dE"),
			Bases:           []domain.Token{ethWETH, ethUSDC, ethUSDT, ethDAI, ethWBTC, ethKNC},
			AdditionalBases: map[common.Address][]domain.Token{},
			CustomBases:     map[common.Address][]domain.Token{},
			Stablecoins:     addressSet(ethUSDC, ethUSDT, ethDAI),
		},
		ChainIDPolygon: {
			ChainID:         ChainIDPolygon,
			Name:            "polygon",
			Native:          domain.NewNative(ChainIDPolygon, 18, "MATIC"),
			WrappedNative:   polyWMATIC,
			DMMFactory:      common.HexToAddress("0x5F1fe642060B5B9658C15721Ea22E982643c095c"),
			Bases:           []domain.Token{polyWMATIC, polyUSDC, polyUSDT, polyDAI, polyWETH, polyKNC},
			AdditionalBases: map[common.Address][]domain.Token{},
			CustomBases:     map[common.Address][]domain.Token{},
			Stablecoins:     addressSet(polyUSDC, polyUSDT, polyDAI),
		},
	}
}

func addressSet(tokens ...domain.Token) map[common.Address]struct{} {
	out := make(map[common.Address]struct{}, len(tokens))
	for _, t := range tokens {
		out[t.Address] = struct{}{}
	}
	return out
}
