package router

import (
	"math/big"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/shopspring/decimal"
)

// Price impact thresholds in basis points (bps)
const (
	PriceImpactLow      uint16 = 100  // 1% - Low impact
	PriceImpactModerate uint16 = 300  // 3% - Moderate impact
	PriceImpactHigh     uint16 = 500  // 5% - High impact
	PriceImpactExtreme  uint16 = 1000 // 10% - Extreme impact
)

// priceImpactPrecision is the number of decimal places kept in percentages.
const priceImpactPrecision = 8

// PriceImpactSeverity represents the severity level of price impact
type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"     // < 1%
	SeverityLow      PriceImpactSeverity = "low"      // 1-3%
	SeverityModerate PriceImpactSeverity = "moderate" // 3-5%
	SeverityHigh     PriceImpactSeverity = "high"     // 5-10%
	SeverityExtreme  PriceImpactSeverity = "extreme"  // > 10%
)

// GetPriceImpactSeverity returns the severity level based on price impact bps
func GetPriceImpactSeverity(priceImpactBps uint16) PriceImpactSeverity {
	switch {
	case priceImpactBps < PriceImpactLow:
		return SeverityNone
	case priceImpactBps < PriceImpactModerate:
		return SeverityLow
	case priceImpactBps < PriceImpactHigh:
		return SeverityModerate
	case priceImpactBps < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// PriceImpact compares the realized price outputAmount/inputAmount with the
// product of the route's mid prices. The result is a signed percentage:
// negative means the trade executes worse than the mid price.
func PriceImpact(route *domain.Route, inputAmount, outputAmount *big.Int) (decimal.Decimal, error) {
	if inputAmount == nil || outputAmount == nil || inputAmount.Sign() <= 0 || outputAmount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	mid, err := RouteMidPrice(route)
	if err != nil {
		return decimal.Zero, err
	}
	execution := new(big.Rat).SetFrac(outputAmount, inputAmount)
	return impactFromPrices(execution, mid), nil
}

func impactFromPrices(execution, mid *big.Rat) decimal.Decimal {
	if mid.Sign() == 0 {
		return decimal.Zero
	}
	ratio := new(big.Rat).Quo(execution, mid)
	ratio.Sub(ratio, ratOne)
	ratio.Mul(ratio, ratHundred)
	return decimal.NewFromBigRat(ratio, priceImpactPrecision)
}

// ImpactBps converts a positive-is-worse percentage into capped basis points.
// Favorable impact maps to zero.
func ImpactBps(impactPercent decimal.Decimal) uint16 {
	if impactPercent.Sign() <= 0 {
		return 0
	}
	bps := impactPercent.Mul(decimal.NewFromInt(100)).Floor()
	if bps.GreaterThan(decimal.NewFromInt(65535)) {
		return 65535
	}
	return uint16(bps.IntPart())
}

// GetPriceImpactWarning returns a user-friendly warning message based on impact
func GetPriceImpactWarning(priceImpactBps uint16) string {
	severity := GetPriceImpactSeverity(priceImpactBps)

	switch severity {
	case SeverityNone:
		return ""
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - this trade will severely impact the market price"
	default:
		return ""
	}
}
