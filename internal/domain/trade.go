package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}

// ParseTradeType accepts both the API swap modes (ExactIn/ExactOut) and the
// canonical names.
func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToLower(s) {
	case "", "exactin", "exact_input", "exactinput":
		return ExactInput, nil
	case "exactout", "exact_output", "exactoutput":
		return ExactOutput, nil
	default:
		return ExactInput, fmt.Errorf("unknown trade type %q", s)
	}
}

var (
	ErrInvalidTrade = errors.New("invalid trade")
)

// Trade is an immutable priced route. Amounts[i] is the amount of Path()[i].
type Trade struct {
	tradeType      TradeType
	route          *Route
	amounts        []*big.Int
	executionPrice *big.Rat
	midPrice       *big.Rat
	priceImpact    decimal.Decimal
}

// NewTrade assembles a trade from already computed figures. Prices are raw
// output units per raw input unit.
func NewTrade(tradeType TradeType, route *Route, amounts []*big.Int, executionPrice, midPrice *big.Rat, priceImpact decimal.Decimal) (*Trade, error) {
	if route == nil {
		return nil, fmt.Errorf("%w: nil route", ErrInvalidTrade)
	}
	if len(amounts) != route.Hops()+1 {
		return nil, fmt.Errorf("%w: %d amounts for %d hops", ErrInvalidTrade, len(amounts), route.Hops())
	}
	owned := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		if a == nil || a.Sign() <= 0 {
			return nil, fmt.Errorf("%w: non-positive amount at leg %d", ErrInvalidTrade, i)
		}
		owned[i] = new(big.Int).Set(a)
	}
	return &Trade{
		tradeType:      tradeType,
		route:          route,
		amounts:        owned,
		executionPrice: new(big.Rat).Set(executionPrice),
		midPrice:       new(big.Rat).Set(midPrice),
		priceImpact:    priceImpact,
	}, nil
}

func (t *Trade) TradeType() TradeType { return t.tradeType }
func (t *Trade) Route() *Route        { return t.route }

func (t *Trade) InputAmount() *big.Int  { return new(big.Int).Set(t.amounts[0]) }
func (t *Trade) OutputAmount() *big.Int { return new(big.Int).Set(t.amounts[len(t.amounts)-1]) }

func (t *Trade) Amounts() []*big.Int {
	out := make([]*big.Int, len(t.amounts))
	for i, a := range t.amounts {
		out[i] = new(big.Int).Set(a)
	}
	return out
}

func (t *Trade) ExecutionPrice() *big.Rat { return new(big.Rat).Set(t.executionPrice) }
func (t *Trade) MidPrice() *big.Rat       { return new(big.Rat).Set(t.midPrice) }

// PriceImpact is the percentage by which the execution price is worse than
// the mid price. Positive means worse.
func (t *Trade) PriceImpact() decimal.Decimal { return t.priceImpact }

// DisplayExecutionPrice converts the raw price into whole-token units.
func (t *Trade) DisplayExecutionPrice(precision int32) decimal.Decimal {
	return ScalePrice(t.executionPrice, t.route.Input().Decimals, t.route.Output().Decimals, precision)
}

// ScalePrice turns a raw out/in price into a whole-token price.
func ScalePrice(raw *big.Rat, decimalsIn, decimalsOut uint8, precision int32) decimal.Decimal {
	return decimal.NewFromBigRat(raw, precision+int32(decimalsIn)+int32(decimalsOut)).Shift(int32(decimalsIn) - int32(decimalsOut)).Round(precision)
}
