package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

type callArgs struct {
	To    *common.Address `json:"to"`
	Input *hexutil.Bytes  `json:"input"`
	Data  *hexutil.Bytes  `json:"data"`
}

// fakeEth answers eth_call by contract address and 4-byte selector.
type fakeEth struct {
	chainID  uint64
	handlers map[common.Address]map[[4]byte][]byte
}

func (f *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(f.chainID))
}

func (f *fakeEth) Call(_ context.Context, args callArgs, _ string) (hexutil.Bytes, error) {
	input := args.Input
	if input == nil {
		input = args.Data
	}
	if args.To == nil || input == nil || len(*input) < 4 {
		return nil, errors.New("bad call")
	}
	var sel [4]byte
	copy(sel[:], (*input)[:4])
	out, ok := f.handlers[*args.To][sel]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeEth) on(t *testing.T, to common.Address, contract abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := contract.Methods[method]
	require.True(t, ok, method)
	packed, err := m.Outputs.Pack(outputs...)
	require.NoError(t, err)
	if f.handlers == nil {
		f.handlers = make(map[common.Address]map[[4]byte][]byte)
	}
	if f.handlers[to] == nil {
		f.handlers[to] = make(map[[4]byte][]byte)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	f.handlers[to][sel] = packed
}

func newClient(t *testing.T, fe *fakeEth) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fe))
	client := ethclient.NewClient(gethrpc.DialInProc(srv))
	t.Cleanup(client.Close)
	return client
}

func newReader(t *testing.T, fe *fakeEth) *DMMReader {
	t.Helper()
	r, err := NewDMMReader(newClient(t, fe), config.DefaultChains())
	require.NoError(t, err)
	return r
}

var (
	chain   = config.DefaultChains()[config.ChainIDEthereum]
	weth    = chain.WrappedNative
	usdc, _ = chain.KnownToken(common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	poolA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	poolB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestDiscoverPools(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)

	fe := &fakeEth{}
	fe.on(t, chain.DMMFactory, parsed.factory, "getPools", []common.Address{poolA, poolB})
	r := newReader(t, fe)

	pools, err := r.DiscoverPools(context.Background(), weth, usdc)
	require.NoError(t, err)
	require.Equal(t, []common.Address{poolA, poolB}, pools)

	foreign := domain.NewERC20(56, common.HexToAddress("0x01"), 18, "X")
	_, err = r.DiscoverPools(context.Background(), foreign, foreign)
	require.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestReadPool(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)

	// USDC sorts before WETH, so USDC is token0
	r0 := big.NewInt(2_000_000_000_000)
	r1 := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	v0 := new(big.Int).Mul(r0, big.NewInt(2))
	v1 := new(big.Int).Mul(r1, big.NewInt(2))
	fee := big.NewInt(3e15)

	fe := &fakeEth{}
	fe.on(t, poolA, parsed.pool, "token0", usdc.Address)
	fe.on(t, poolA, parsed.pool, "getTradeInfo", r0, r1, v0, v1, fee)
	fe.on(t, poolA, parsed.pool, "ampBps", uint32(20000))
	r := newReader(t, fe)

	pool, err := r.ReadPool(context.Background(), poolA, weth, usdc)
	require.NoError(t, err)
	require.Equal(t, usdc, pool.Token0())
	require.Equal(t, weth, pool.Token1())
	require.Equal(t, r0.String(), pool.Reserve0().String())
	require.Equal(t, v1.String(), pool.VReserve1().String())
	require.Equal(t, fee.String(), pool.FeeUnits().String())
	require.Equal(t, uint32(20000), pool.AmpBps())
}

func TestReadPoolRejectsWrongPair(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)

	fe := &fakeEth{}
	fe.on(t, poolA, parsed.pool, "token0", common.HexToAddress("0xdead"))
	fe.on(t, poolA, parsed.pool, "getTradeInfo", big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(0))
	fe.on(t, poolA, parsed.pool, "ampBps", uint32(10000))
	r := newReader(t, fe)

	_, err = r.ReadPool(context.Background(), poolA, weth, usdc)
	require.ErrorIs(t, err, ErrPoolMismatch)
}

func TestReadPoolCallFailure(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)

	fe := &fakeEth{}
	fe.on(t, poolA, parsed.pool, "token0", usdc.Address)
	r := newReader(t, fe)

	_, err = r.ReadPool(context.Background(), poolA, weth, usdc)
	require.Error(t, err)
}

func TestFetchToken(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)

	knc := common.HexToAddress("0xdeFA4e8a7bcBA345F687a2f1456F5Edd9CE97202")
	mkr := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	var mkrSymbol [32]byte
	copy(mkrSymbol[:], "MKR")

	fe := &fakeEth{}
	fe.on(t, knc, parsed.erc20, "decimals", uint8(18))
	fe.on(t, knc, parsed.erc20, "symbol", "KNC")
	fe.on(t, mkr, parsed.erc20, "decimals", uint8(18))
	fe.on(t, mkr, parsed.erc20Bytes32, "symbol", mkrSymbol)
	r := newReader(t, fe)

	tok, err := r.FetchToken(context.Background(), 1, knc)
	require.NoError(t, err)
	require.Equal(t, domain.NewERC20(1, knc, 18, "KNC"), tok)

	tok, err = r.FetchToken(context.Background(), 1, mkr)
	require.NoError(t, err)
	require.Equal(t, "MKR", tok.Symbol)

	_, err = r.FetchToken(context.Background(), 1, common.HexToAddress("0x0bad"))
	require.Error(t, err)
}
