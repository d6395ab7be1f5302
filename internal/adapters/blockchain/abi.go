package blockchain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const dmmFactoryABIJSON = `[
  {"inputs": [{"name": "token0", "type": "address"}, {"name": "token1", "type": "address"}], "name": "getPools", "outputs": [{"name": "_tokenPools", "type": "address[]"}], "stateMutability": "view", "type": "function"}
]`

const dmmPoolABIJSON = `[
  {"inputs": [], "name": "getTradeInfo", "outputs": [
    {"name": "_reserve0", "type": "uint112"},
    {"name": "_reserve1", "type": "uint112"},
    {"name": "_vReserve0", "type": "uint112"},
    {"name": "_vReserve1", "type": "uint112"},
    {"name": "feeInPrecision", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "ampBps", "outputs": [{"type": "uint32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token0", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type abiSet struct {
	factory      abi.ABI
	pool         abi.ABI
	erc20        abi.ABI
	erc20Bytes32 abi.ABI
}

var (
	abisOnce sync.Once
	abis     abiSet
	abisErr  error
)

func loadABIs() (abiSet, error) {
	abisOnce.Do(func() {
		parse := func(raw string) abi.ABI {
			if abisErr != nil {
				return abi.ABI{}
			}
			parsed, err := abi.JSON(strings.NewReader(raw))
			if err != nil {
				abisErr = err
			}
			return parsed
		}
		abis = abiSet{
			factory:      parse(dmmFactoryABIJSON),
			pool:         parse(dmmPoolABIJSON),
			erc20:        parse(erc20ABIStringJSON),
			erc20Bytes32: parse(erc20ABIBytes32JSON),
		}
	})
	return abis, abisErr
}
