package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/dmm-router/internal/domain"
)

// Registry fans discovery out to every registered source and filters
// resolved pools through every registered validator.
type Registry struct {
	sources    []DiscoverySource
	validators []PoolValidator
}

func NewRegistry() *Registry {
	return &Registry{
		sources:    make([]DiscoverySource, 0),
		validators: make([]PoolValidator, 0),
	}
}

func NewDefaultRegistry(sources ...DiscoverySource) *Registry {
	r := NewRegistry()
	for _, s := range sources {
		r.RegisterSource(s)
	}
	r.RegisterValidator(NewLiquidityValidator(nil))
	return r
}

func (r *Registry) RegisterSource(source DiscoverySource) {
	r.sources = append(r.sources, source)
}

func (r *Registry) RegisterValidator(validator PoolValidator) {
	r.validators = append(r.validators, validator)
}

// DiscoverPools concatenates the sources' answers in registration order. It
// fails only when every source fails.
func (r *Registry) DiscoverPools(ctx context.Context, tokenA, tokenB domain.Token) ([]common.Address, error) {
	if len(r.sources) == 0 {
		return nil, errors.New("no discovery source registered")
	}
	var (
		out  []common.Address
		errs []error
	)
	for _, source := range r.sources {
		addrs, err := source.DiscoverPools(ctx, tokenA, tokenB)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, addrs...)
	}
	if len(errs) == len(r.sources) {
		return nil, fmt.Errorf("discover %s/%s: %w", tokenA, tokenB, errors.Join(errs...))
	}
	return out, nil
}

func (r *Registry) IsReady(pool *domain.Pool) bool {
	for _, v := range r.validators {
		if !v.IsReady(pool) {
			return false
		}
	}
	return true
}
