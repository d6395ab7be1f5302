package slippage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/dmm-router/internal/domain"
)

// MaxBps is 100%.
const MaxBps = 10000

var (
	ErrInvalidSlippage = errors.New("invalid slippage tolerance")
	ErrInvalidAmount   = errors.New("invalid amount")
)

var (
	bpsDenom     = big.NewInt(MaxBps)
	u256BpsDenom = uint256.NewInt(MaxBps)
)

// Bounds is what the user accepts for a trade. Exactly one of
// MinimumOutput (exact input) and MaximumInput (exact output) is set.
type Bounds struct {
	TradeType     domain.TradeType
	ToleranceBps  int
	MinimumOutput *big.Int
	MaximumInput  *big.Int
}

func (b *Bounds) String() string {
	if b.TradeType == domain.ExactInput {
		return fmt.Sprintf("min out %s (%d bps)", b.MinimumOutput, b.ToleranceBps)
	}
	return fmt.Sprintf("max in %s (%d bps)", b.MaximumInput, b.ToleranceBps)
}

func checkTolerance(bps int) error {
	if bps < 0 || bps > MaxBps {
		return fmt.Errorf("%w: %d bps outside [0, %d]", ErrInvalidSlippage, bps, MaxBps)
	}
	return nil
}

// MinimumOutput returns floor(out * (10000 - bps) / 10000).
func MinimumOutput(out *big.Int, bps int) (*big.Int, error) {
	if err := checkTolerance(bps); err != nil {
		return nil, err
	}
	if out == nil || out.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return mulDiv(out, uint64(MaxBps-bps), false), nil
}

// MaximumInput returns ceil(in * (10000 + bps) / 10000).
func MaximumInput(in *big.Int, bps int) (*big.Int, error) {
	if err := checkTolerance(bps); err != nil {
		return nil, err
	}
	if in == nil || in.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return mulDiv(in, uint64(MaxBps+bps), true), nil
}

// mulDiv computes x*num/10000 in 256 bits when x fits and falls back to
// big.Int otherwise.
func mulDiv(x *big.Int, num uint64, roundUp bool) *big.Int {
	if ux, overflow := uint256.FromBig(x); !overflow {
		n := uint256.NewInt(num)
		q, overflow := new(uint256.Int).MulDivOverflow(ux, n, u256BpsDenom)
		if !overflow {
			if roundUp && !new(uint256.Int).MulMod(ux, n, u256BpsDenom).IsZero() {
				q.AddUint64(q, 1)
			}
			return q.ToBig()
		}
	}

	prod := new(big.Int).Mul(x, new(big.Int).SetUint64(num))
	q, r := new(big.Int).QuoRem(prod, bpsDenom, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func bounds(tradeType domain.TradeType, in, out *big.Int, bps int) (*Bounds, error) {
	b := &Bounds{TradeType: tradeType, ToleranceBps: bps}
	var err error
	switch tradeType {
	case domain.ExactInput:
		b.MinimumOutput, err = MinimumOutput(out, bps)
	case domain.ExactOutput:
		b.MaximumInput, err = MaximumInput(in, bps)
	default:
		err = fmt.Errorf("unknown trade type %d", tradeType)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func ForTrade(t *domain.Trade, bps int) (*Bounds, error) {
	if t == nil {
		return nil, errors.New("nil trade")
	}
	return bounds(t.TradeType(), t.InputAmount(), t.OutputAmount(), bps)
}

func ForRoute(r *domain.AggregatedRoute, bps int) (*Bounds, error) {
	if r == nil {
		return nil, errors.New("nil route")
	}
	return bounds(r.TradeType, r.InputAmount, r.OutputAmount, bps)
}
