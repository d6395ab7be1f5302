package slippage

import (
	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

// Policy picks the tolerance for a pair when the caller did not set one.
// With StableAdjust on, the default for a pair of two stablecoins is
// clamped into [StableMinBps, StableMaxBps]. Explicit tolerances are used
// as given.
type Policy struct {
	DefaultBps   int
	StableAdjust bool
	StableMinBps int
	StableMaxBps int
}

func NewPolicy(cfg *config.RouterConfig) Policy {
	return Policy{
		DefaultBps:   cfg.DefaultSlippageBps,
		StableAdjust: cfg.StableSlippagePolicy,
		StableMinBps: cfg.StableMinBps,
		StableMaxBps: cfg.StableMaxBps,
	}
}

// Tolerance returns *explicit when set, otherwise the default adjusted for
// the pair. The result is validated either way.
func (p Policy) Tolerance(chain *config.Chain, tokenA, tokenB domain.Token, explicit *int) (int, error) {
	if explicit != nil {
		return *explicit, checkTolerance(*explicit)
	}
	bps := p.DefaultBps
	if p.StableAdjust && chain != nil && chain.IsStablecoin(tokenA) && chain.IsStablecoin(tokenB) {
		if bps > p.StableMaxBps {
			bps = p.StableMaxBps
		}
		if bps <= p.StableMinBps {
			bps = p.StableMinBps
		}
	}
	return bps, checkTolerance(bps)
}
