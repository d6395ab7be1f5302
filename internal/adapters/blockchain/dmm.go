package blockchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

var (
	ErrUnsupportedChain = errors.New("no DMM factory configured for chain")
	ErrPoolMismatch     = errors.New("pool does not trade the requested pair")
)

// ContractCaller is the read-only slice of ethclient.Client the reader needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an execution client, giving up after timeout.
func Dial(ctx context.Context, url string, timeout time.Duration) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return ethclient.DialContext(ctx, url)
}

// DMMReader reads Kyber DMM factories, pools and ERC20 metadata through
// eth_call. It implements pool discovery, reserve reading and token
// metadata lookups.
type DMMReader struct {
	caller    ContractCaller
	factories map[uint64]common.Address
	abis      abiSet
}

func NewDMMReader(caller ContractCaller, chains map[uint64]*config.Chain) (*DMMReader, error) {
	parsed, err := loadABIs()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	factories := make(map[uint64]common.Address, len(chains))
	for id, c := range chains {
		if c.DMMFactory != (common.Address{}) {
			factories[id] = c.DMMFactory
		}
	}
	return &DMMReader{caller: caller, factories: factories, abis: parsed}, nil
}

func (r *DMMReader) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contract.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// DiscoverPools asks the chain's factory for every pool of the pair.
func (r *DMMReader) DiscoverPools(ctx context.Context, tokenA, tokenB domain.Token) ([]common.Address, error) {
	factory, ok := r.factories[tokenA.ChainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, tokenA.ChainID)
	}
	if tokenB.SortsBefore(tokenA) {
		tokenA, tokenB = tokenB, tokenA
	}
	values, err := r.call(ctx, factory, r.abis.factory, "getPools", tokenA.Address, tokenB.Address)
	if err != nil {
		return nil, err
	}
	pools, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getPools: unexpected type %T", values[0])
	}
	return pools, nil
}

// ReadPool loads a fresh snapshot of a pool. tokenA and tokenB must be the
// pool's tokens in either order.
func (r *DMMReader) ReadPool(ctx context.Context, address common.Address, tokenA, tokenB domain.Token) (*domain.Pool, error) {
	var (
		token0  common.Address
		info    []interface{}
		ampBps  uint32
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		values, err := r.call(gctx, address, r.abis.pool, "token0")
		if err != nil {
			return err
		}
		addr, ok := values[0].(common.Address)
		if !ok {
			return fmt.Errorf("token0: unexpected type %T", values[0])
		}
		token0 = addr
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, address, r.abis.pool, "getTradeInfo")
		if err != nil {
			return err
		}
		if len(values) != 5 {
			return fmt.Errorf("getTradeInfo: %d values", len(values))
		}
		info = values
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, address, r.abis.pool, "ampBps")
		if err != nil {
			return err
		}
		amp, ok := values[0].(uint32)
		if !ok {
			return fmt.Errorf("ampBps: unexpected type %T", values[0])
		}
		ampBps = amp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	first, second := tokenA, tokenB
	switch token0 {
	case tokenA.Address:
	case tokenB.Address:
		first, second = tokenB, tokenA
	default:
		return nil, fmt.Errorf("%w: %s token0 %s", ErrPoolMismatch, address.Hex(), token0.Hex())
	}

	ints := make([]*big.Int, len(info))
	for i, v := range info {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("getTradeInfo[%d]: unexpected type %T", i, v)
		}
		ints[i] = n
	}

	pool, err := domain.NewPool(domain.PoolParams{
		Address:   address,
		TokenA:    first,
		TokenB:    second,
		ReserveA:  ints[0],
		ReserveB:  ints[1],
		VReserveA: ints[2],
		VReserveB: ints[3],
		FeeUnits:  ints[4],
		AmpBps:    ampBps,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("pool", address.Hex()).Uint32("ampBps", ampBps).Msg("[dmmReader] pool read")
	return pool, nil
}

// FetchToken reads decimals and symbol. Tokens that return symbol as
// bytes32 are supported; a missing symbol leaves it empty.
func (r *DMMReader) FetchToken(ctx context.Context, chainID uint64, address common.Address) (domain.Token, error) {
	values, err := r.call(ctx, address, r.abis.erc20, "decimals")
	if err != nil {
		return domain.Token{}, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return domain.Token{}, fmt.Errorf("decimals: unexpected type %T", values[0])
	}

	symbol := ""
	if values, err := r.call(ctx, address, r.abis.erc20, "symbol"); err == nil {
		symbol, _ = values[0].(string)
	} else if values, err := r.call(ctx, address, r.abis.erc20Bytes32, "symbol"); err == nil {
		if raw, ok := values[0].([32]byte); ok {
			symbol = string(bytes.TrimRight(raw[:], "\x00"))
		}
	} else {
		log.Debug().Err(err).Str("token", address.Hex()).Msg("[dmmReader] symbol call failed")
	}
	return domain.NewERC20(chainID, address, decimals, strings.TrimSpace(symbol)), nil
}
