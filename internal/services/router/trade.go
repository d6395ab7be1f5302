package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hxuan190/dmm-router/internal/domain"
)

var (
	// ErrZeroOutput means a leg rounds down to nothing.
	ErrZeroOutput = errors.New("leg output rounds to zero")
)

// NewTrade prices route for amount. For exact-input trades amount is the
// input and is propagated forward leg by leg; for exact-output trades it is
// the output and is propagated backwards.
func NewTrade(route *domain.Route, amount *big.Int, tradeType domain.TradeType) (*domain.Trade, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pools := route.Pools()
	path := route.Path()
	amounts := make([]*big.Int, len(path))

	if tradeType == domain.ExactInput {
		amounts[0] = new(big.Int).Set(amount)
		for i, pool := range pools {
			out, err := GetAmountOut(pool, path[i], amounts[i])
			if err != nil {
				return nil, err
			}
			if out.Sign() == 0 {
				return nil, fmt.Errorf("%w: leg %d of %s", ErrZeroOutput, i, route)
			}
			amounts[i+1] = out
		}
	} else {
		last := len(path) - 1
		amounts[last] = new(big.Int).Set(amount)
		for i := len(pools) - 1; i >= 0; i-- {
			in, err := GetAmountIn(pools[i], path[i+1], amounts[i+1])
			if err != nil {
				return nil, err
			}
			amounts[i] = in
		}
	}

	mid, err := RouteMidPrice(route)
	if err != nil {
		return nil, err
	}
	execution := new(big.Rat).SetFrac(amounts[len(amounts)-1], amounts[0])
	impact := impactFromPrices(execution, mid).Neg()

	return domain.NewTrade(tradeType, route, amounts, execution, mid, impact)
}
