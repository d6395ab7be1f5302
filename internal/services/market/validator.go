package market

import (
	"math/big"

	"github.com/hxuan190/dmm-router/internal/domain"
)

// LiquidityValidator rejects pools whose actual reserves are empty or below
// a floor on either side.
type LiquidityValidator struct {
	minReserve *big.Int
}

func NewLiquidityValidator(minReserve *big.Int) *LiquidityValidator {
	if minReserve == nil {
		minReserve = big.NewInt(1)
	}
	return &LiquidityValidator{minReserve: minReserve}
}

func (v *LiquidityValidator) IsReady(pool *domain.Pool) bool {
	if pool == nil || !pool.HasLiquidity() {
		return false
	}
	return pool.Reserve0().Cmp(v.minReserve) >= 0 && pool.Reserve1().Cmp(v.minReserve) >= 0
}
