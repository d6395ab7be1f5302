package market

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/dmm-router/internal/domain"
)

// DiscoverySource lists the pool addresses trading a pair. A pair may have
// several pools (different amplification or factories).
type DiscoverySource interface {
	DiscoverPools(ctx context.Context, tokenA, tokenB domain.Token) ([]common.Address, error)
}

// ReserveReader loads a fresh pool snapshot. tokenA/tokenB carry the
// metadata to attach; the reader decides token0/token1 from chain state.
type ReserveReader interface {
	ReadPool(ctx context.Context, address common.Address, tokenA, tokenB domain.Token) (*domain.Pool, error)
}

// TokenMetadataSource fetches decimals and symbol for an ERC20.
type TokenMetadataSource interface {
	FetchToken(ctx context.Context, chainID uint64, address common.Address) (domain.Token, error)
}

// PoolValidator decides whether a resolved pool may enter the graph.
type PoolValidator interface {
	IsReady(pool *domain.Pool) bool
}
