package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// AmpBpsUnamplified marks a pool whose virtual reserves equal its actual reserves.
	AmpBpsUnamplified uint32 = 10000
)

// FeePrecision is the denominator of Pool fee units (feeInPrecision on-chain).
var FeePrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var (
	ErrInvalidPool = errors.New("invalid pool")
)

// PoolParams describes a pool before canonical ordering. Token A/B may be
// given in any order; NewPool sorts them.
type PoolParams struct {
	Address   common.Address
	TokenA    Token
	TokenB    Token
	ReserveA  *big.Int
	ReserveB  *big.Int
	VReserveA *big.Int
	VReserveB *big.Int
	FeeUnits  *big.Int
	AmpBps    uint32
}

// Pool is an immutable snapshot of an amplified constant-product pool.
type Pool struct {
	address   common.Address
	token0    Token
	token1    Token
	reserve0  *big.Int
	reserve1  *big.Int
	vReserve0 *big.Int
	vReserve1 *big.Int
	feeUnits  *big.Int
	ampBps    uint32
}

// Reserves is one side of a pool.
type Reserves struct {
	Reserve *big.Int
	Virtual *big.Int
}

func NewPool(p PoolParams) (*Pool, error) {
	if p.TokenA.IsNative() || p.TokenB.IsNative() {
		return nil, fmt.Errorf("%w: native token in pool %s", ErrInvalidPool, p.Address.Hex())
	}
	if p.TokenA.Equal(p.TokenB) {
		return nil, fmt.Errorf("%w: identical tokens in pool %s", ErrInvalidPool, p.Address.Hex())
	}
	if p.TokenA.ChainID != p.TokenB.ChainID {
		return nil, fmt.Errorf("%w: tokens on different chains in pool %s", ErrInvalidPool, p.Address.Hex())
	}
	if p.ReserveA == nil || p.ReserveB == nil || p.ReserveA.Sign() < 0 || p.ReserveB.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad reserves in pool %s", ErrInvalidPool, p.Address.Hex())
	}
	if p.AmpBps < AmpBpsUnamplified {
		return nil, fmt.Errorf("%w: ampBps %d below %d", ErrInvalidPool, p.AmpBps, AmpBpsUnamplified)
	}

	vA, vB := p.VReserveA, p.VReserveB
	if p.AmpBps == AmpBpsUnamplified {
		if vA == nil {
			vA = p.ReserveA
		}
		if vB == nil {
			vB = p.ReserveB
		}
		if vA.Cmp(p.ReserveA) != 0 || vB.Cmp(p.ReserveB) != 0 {
			return nil, fmt.Errorf("%w: unamplified pool %s with virtual reserves != reserves", ErrInvalidPool, p.Address.Hex())
		}
	}
	if vA == nil || vB == nil || vA.Cmp(p.ReserveA) < 0 || vB.Cmp(p.ReserveB) < 0 {
		return nil, fmt.Errorf("%w: virtual reserves below reserves in pool %s", ErrInvalidPool, p.Address.Hex())
	}

	fee := p.FeeUnits
	if fee == nil {
		fee = new(big.Int)
	}
	if fee.Sign() < 0 || fee.Cmp(FeePrecision) >= 0 {
		return nil, fmt.Errorf("%w: fee units %s out of range", ErrInvalidPool, fee)
	}

	pool := &Pool{
		address:  p.Address,
		feeUnits: new(big.Int).Set(fee),
		ampBps:   p.AmpBps,
	}
	if p.TokenA.SortsBefore(p.TokenB) {
		pool.token0, pool.token1 = p.TokenA, p.TokenB
		pool.reserve0, pool.reserve1 = new(big.Int).Set(p.ReserveA), new(big.Int).Set(p.ReserveB)
		pool.vReserve0, pool.vReserve1 = new(big.Int).Set(vA), new(big.Int).Set(vB)
	} else {
		pool.token0, pool.token1 = p.TokenB, p.TokenA
		pool.reserve0, pool.reserve1 = new(big.Int).Set(p.ReserveB), new(big.Int).Set(p.ReserveA)
		pool.vReserve0, pool.vReserve1 = new(big.Int).Set(vB), new(big.Int).Set(vA)
	}
	return pool, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() Token           { return p.token0 }
func (p *Pool) Token1() Token           { return p.token1 }
func (p *Pool) AmpBps() uint32          { return p.ampBps }
func (p *Pool) FeeUnits() *big.Int      { return new(big.Int).Set(p.feeUnits) }

func (p *Pool) Reserve0() *big.Int  { return new(big.Int).Set(p.reserve0) }
func (p *Pool) Reserve1() *big.Int  { return new(big.Int).Set(p.reserve1) }
func (p *Pool) VReserve0() *big.Int { return new(big.Int).Set(p.vReserve0) }
func (p *Pool) VReserve1() *big.Int { return new(big.Int).Set(p.vReserve1) }

func (p *Pool) Involves(t Token) bool {
	return p.token0.Equal(t) || p.token1.Equal(t)
}

// Other returns the counterpart of t. The result is meaningless when the pool
// does not involve t.
func (p *Pool) Other(t Token) Token {
	if p.token0.Equal(t) {
		return p.token1
	}
	return p.token0
}

// ReserveOf returns copies of the reserves held for t.
func (p *Pool) ReserveOf(t Token) (Reserves, bool) {
	switch {
	case p.token0.Equal(t):
		return Reserves{Reserve: new(big.Int).Set(p.reserve0), Virtual: new(big.Int).Set(p.vReserve0)}, true
	case p.token1.Equal(t):
		return Reserves{Reserve: new(big.Int).Set(p.reserve1), Virtual: new(big.Int).Set(p.vReserve1)}, true
	default:
		return Reserves{}, false
	}
}

// HasLiquidity reports whether both actual reserves are positive.
func (p *Pool) HasLiquidity() bool {
	return p.reserve0.Sign() > 0 && p.reserve1.Sign() > 0
}

func (p *Pool) String() string {
	return fmt.Sprintf("%s[%s/%s]", p.address.Hex(), p.token0.Symbol, p.token1.Symbol)
}
