package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hxuan190/dmm-router/internal/domain"
)

var (
	ErrInvalidToken         = errors.New("token does not belong to pool")
	ErrInsufficientReserves = errors.New("insufficient reserves")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

func poolSides(pool *domain.Pool, tokenIn domain.Token) (in, out domain.Reserves, err error) {
	in, ok := pool.ReserveOf(tokenIn)
	if !ok {
		return in, out, fmt.Errorf("%w: %s not in %s", ErrInvalidToken, tokenIn, pool)
	}
	out, _ = pool.ReserveOf(pool.Other(tokenIn))
	return in, out, nil
}

// GetAmountOut quotes the output of selling amountIn of tokenIn into pool.
// The fee is taken from the input first, then the constant-product invariant
// is applied to the virtual reserves. The result is floored.
func GetAmountOut(pool *domain.Pool, tokenIn domain.Token, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	in, out, err := poolSides(pool, tokenIn)
	if err != nil {
		return nil, err
	}
	if in.Reserve.Sign() == 0 || out.Reserve.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty pool %s", ErrInsufficientReserves, pool)
	}

	feeComplement := GetBigInt()
	amountInWithFee := GetBigInt()
	numerator := GetBigInt()
	denominator := GetBigInt()
	defer func() {
		PutBigInt(feeComplement)
		PutBigInt(amountInWithFee)
		PutBigInt(numerator)
		PutBigInt(denominator)
	}()

	feeComplement.Sub(domain.FeePrecision, pool.FeeUnits())
	amountInWithFee.Mul(amountIn, feeComplement)
	amountInWithFee.Quo(amountInWithFee, domain.FeePrecision)

	numerator.Mul(amountInWithFee, out.Virtual)
	denominator.Add(in.Virtual, amountInWithFee)

	amountOut := new(big.Int).Quo(numerator, denominator)
	if amountOut.Cmp(out.Reserve) >= 0 {
		return nil, fmt.Errorf("%w: output %s >= reserve %s in %s", ErrInsufficientReserves, amountOut, out.Reserve, pool)
	}
	return amountOut, nil
}

// GetAmountIn quotes the input of tokenIn's counterpart needed to receive
// amountOut of tokenOut. Every division rounds up so the caller never pays
// less than the pool requires.
func GetAmountIn(pool *domain.Pool, tokenOut domain.Token, amountOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	out, ok := pool.ReserveOf(tokenOut)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s", ErrInvalidToken, tokenOut, pool)
	}
	in, _ := pool.ReserveOf(pool.Other(tokenOut))
	if in.Reserve.Sign() == 0 || amountOut.Cmp(out.Reserve) >= 0 {
		return nil, fmt.Errorf("%w: output %s >= reserve %s in %s", ErrInsufficientReserves, amountOut, out.Reserve, pool)
	}

	feeComplement := GetBigInt()
	numerator := GetBigInt()
	denominator := GetBigInt()
	defer func() {
		PutBigInt(feeComplement)
		PutBigInt(numerator)
		PutBigInt(denominator)
	}()

	numerator.Mul(in.Virtual, amountOut)
	denominator.Sub(out.Virtual, amountOut)

	amountIn := new(big.Int).Quo(numerator, denominator)
	amountIn.Add(amountIn, ONE)

	feeComplement.Sub(domain.FeePrecision, pool.FeeUnits())
	amountIn.Mul(amountIn, domain.FeePrecision)
	amountIn.Quo(amountIn, feeComplement)
	amountIn.Add(amountIn, ONE)
	return amountIn, nil
}

// MidPrice is the marginal price of tokenIn in units of the other token,
// ignoring fees: virtualReserveOut / virtualReserveIn.
func MidPrice(pool *domain.Pool, tokenIn domain.Token) (*big.Rat, error) {
	in, out, err := poolSides(pool, tokenIn)
	if err != nil {
		return nil, err
	}
	if in.Virtual.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty pool %s", ErrInsufficientReserves, pool)
	}
	return new(big.Rat).SetFrac(out.Virtual, in.Virtual), nil
}

// RouteMidPrice multiplies the mid price of every leg along the route.
func RouteMidPrice(route *domain.Route) (*big.Rat, error) {
	price := new(big.Rat).Set(ratOne)
	path := route.Path()
	for i, pool := range route.Pools() {
		leg, err := MidPrice(pool, path[i])
		if err != nil {
			return nil, err
		}
		price.Mul(price, leg)
	}
	return price, nil
}
