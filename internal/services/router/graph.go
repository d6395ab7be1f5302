package router

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/hxuan190/dmm-router/internal/domain"
)

// Graph is an immutable adjacency view over a pool snapshot. Pools keep the
// order they were added in, which makes every traversal deterministic.
type Graph struct {
	pools     []*domain.Pool
	adj       map[domain.TokenKey][]*domain.Pool
	byAddress map[common.Address]*domain.Pool
}

// NewGraph indexes pools by token. A pool address seen twice keeps its first
// instance.
func NewGraph(pools []*domain.Pool) *Graph {
	g := &Graph{
		pools:     make([]*domain.Pool, 0, len(pools)),
		adj:       make(map[domain.TokenKey][]*domain.Pool),
		byAddress: make(map[common.Address]*domain.Pool, len(pools)),
	}
	for _, pool := range pools {
		if pool == nil {
			continue
		}
		if _, dup := g.byAddress[pool.Address()]; dup {
			continue
		}
		g.byAddress[pool.Address()] = pool
		g.pools = append(g.pools, pool)

		k0, k1 := pool.Token0().Key(), pool.Token1().Key()
		g.adj[k0] = append(g.adj[k0], pool)
		g.adj[k1] = append(g.adj[k1], pool)
	}
	return g
}

// poolsOf returns the internal adjacency slice; callers must not modify it.
func (g *Graph) poolsOf(t domain.Token) []*domain.Pool {
	return g.adj[t.Key()]
}

func (g *Graph) PoolCount() int {
	return len(g.pools)
}

func (g *Graph) Pools() []*domain.Pool {
	out := make([]*domain.Pool, len(g.pools))
	copy(out, g.pools)
	return out
}

func (g *Graph) Pool(address common.Address) (*domain.Pool, bool) {
	p, ok := g.byAddress[address]
	return p, ok
}

// DirectPools lists every pool trading a against b.
func (g *Graph) DirectPools(a, b domain.Token) []*domain.Pool {
	var out []*domain.Pool
	for _, pool := range g.adj[a.Key()] {
		if pool.Involves(b) {
			out = append(out, pool)
		}
	}
	return out
}
