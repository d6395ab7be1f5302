package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Leg is one hop of an aggregated route as reported by the routing service.
type Leg struct {
	Pool     string
	Source   string
	TokenIn  common.Address
	TokenOut common.Address
	// Portion is the percentage of the route input sent through this leg.
	Portion decimal.Decimal
}

// AggregatedRoute is the routing service's best route for a request, possibly
// scoped to a single liquidity source.
type AggregatedRoute struct {
	TradeType    TradeType
	TokenIn      common.Address
	TokenOut     common.Address
	InputAmount  *big.Int
	OutputAmount *big.Int
	InputUSD     decimal.NullDecimal
	OutputUSD    decimal.NullDecimal
	PriceImpact  decimal.Decimal
	GasEstimate  uint64
	Legs         []Leg
	// Source is empty for the all-source route.
	Source string
}

// Savings is how much better r is than other: extra output for exact-input
// routes, input saved for exact-output routes. Negative when other is better.
func (r *AggregatedRoute) Savings(other *AggregatedRoute) *big.Int {
	if r == nil || other == nil || r.InputAmount == nil || other.InputAmount == nil ||
		r.OutputAmount == nil || other.OutputAmount == nil {
		return nil
	}
	if r.TradeType == ExactOutput {
		return new(big.Int).Sub(other.InputAmount, r.InputAmount)
	}
	return new(big.Int).Sub(r.OutputAmount, other.OutputAmount)
}

// RouteRequest asks the routing service for its best route. Amount is the
// sell amount for exact-input requests and the buy amount otherwise.
type RouteRequest struct {
	ChainID   uint64
	TokenIn   Token
	TokenOut  Token
	Amount    *big.Int
	TradeType TradeType
	// Source restricts the route to one liquidity source; empty means all.
	Source      string
	SlippageBps int
	Recipient   common.Address
	GasPrice    *big.Int
}

// SameInput reports whether r and other describe the same user input,
// ignoring the source scope. Recipient and gas price are part of the input:
// the routing service tailors the route to both.
func (r RouteRequest) SameInput(other RouteRequest) bool {
	return r.sameTokens(other) &&
		sameAmount(r.Amount, other.Amount) &&
		r.SlippageBps == other.SlippageBps &&
		r.Recipient == other.Recipient &&
		sameAmount(r.GasPrice, other.GasPrice)
}

func sameAmount(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func (r RouteRequest) sameTokens(other RouteRequest) bool {
	return r.ChainID == other.ChainID && r.TradeType == other.TradeType &&
		r.TokenIn.Equal(other.TokenIn) && r.TokenOut.Equal(other.TokenOut)
}
