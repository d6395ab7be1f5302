package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
	"github.com/hxuan190/dmm-router/internal/services/router"
)

var (
	ErrChainMismatch = errors.New("token is not on the active chain")
)

type PoolGraphOptions struct {
	// LookupTimeout bounds each discovery query and each reserve read.
	LookupTimeout time.Duration
	Concurrency   int
	CacheSize     int
}

func (o PoolGraphOptions) withDefaults() PoolGraphOptions {
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 2 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 1024
	}
	return o
}

// PoolGraph turns a token pair into a routable pool snapshot. Discovery
// answers are cached per pair until the chain changes; reserves are read
// fresh on every build.
type PoolGraph struct {
	mu        sync.RWMutex
	chain     *config.Chain
	discovery DiscoverySource
	reader    ReserveReader
	validator PoolValidator
	cache     *BoundedLRUCache[pairKey, []common.Address]
	opts      PoolGraphOptions
}

func NewPoolGraph(chain *config.Chain, discovery DiscoverySource, reader ReserveReader, validator PoolValidator, opts PoolGraphOptions) *PoolGraph {
	opts = opts.withDefaults()
	return &PoolGraph{
		chain:     chain,
		discovery: discovery,
		reader:    reader,
		validator: validator,
		cache:     NewBoundedLRUCache[pairKey, []common.Address]("pair_discovery", opts.CacheSize),
		opts:      opts,
	}
}

func (g *PoolGraph) Chain() *config.Chain {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.chain
}

// SwitchChain activates chain and drops every cached discovery answer.
func (g *PoolGraph) SwitchChain(chain *config.Chain) {
	g.mu.Lock()
	g.chain = chain
	g.mu.Unlock()
	g.cache.Clear()
	log.Info().Uint64("chainId", chain.ChainID).Msg("[poolGraph] switched chain, discovery cache cleared")
}

// Build resolves every candidate pool around tokenIn/tokenOut and indexes
// them into an immutable graph.
func (g *PoolGraph) Build(ctx context.Context, tokenIn, tokenOut domain.Token) (*router.Graph, error) {
	chain := g.Chain()
	for _, t := range []domain.Token{tokenIn, tokenOut} {
		if t.ChainID != chain.ChainID {
			return nil, fmt.Errorf("%w: %s on chain %d, active %d", ErrChainMismatch, t, t.ChainID, chain.ChainID)
		}
	}

	pairs := Combinations(BuildBases(tokenIn, tokenOut, chain), chain)
	pools := g.ResolvePools(ctx, pairs)
	metrics.PoolCount.Set(float64(len(pools)))
	return router.NewGraph(pools), nil
}

// ResolvePools discovers and reads the pools of every pair. Failed or timed
// out lookups are dropped. The result keeps the first instance of each pool
// address in pair order.
func (g *PoolGraph) ResolvePools(ctx context.Context, pairs []TokenPair) []*domain.Pool {
	start := time.Now()
	defer func() {
		metrics.PoolResolveDuration.Observe(time.Since(start).Seconds())
	}()

	discovered := make([][]common.Address, len(pairs))
	var eg errgroup.Group
	eg.SetLimit(g.opts.Concurrency)
	for i, pair := range pairs {
		eg.Go(func() error {
			addrs, err := g.discover(ctx, pair)
			if err != nil {
				metrics.DiscoveryFailures.WithLabelValues("discover").Inc()
				log.Debug().Err(err).Str("pair", pair.A.Symbol+"/"+pair.B.Symbol).Msg("[poolGraph] discovery failed, skipping pair")
				return nil
			}
			discovered[i] = addrs
			return nil
		})
	}
	_ = eg.Wait()

	type candidate struct {
		address common.Address
		pair    TokenPair
	}
	seen := make(map[common.Address]struct{})
	var candidates []candidate
	for i, addrs := range discovered {
		for _, addr := range addrs {
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			candidates = append(candidates, candidate{address: addr, pair: pairs[i]})
		}
	}

	resolved := make([]*domain.Pool, len(candidates))
	for i, c := range candidates {
		eg.Go(func() error {
			readCtx, cancel := context.WithTimeout(ctx, g.opts.LookupTimeout)
			defer cancel()
			pool, err := g.reader.ReadPool(readCtx, c.address, c.pair.A, c.pair.B)
			if err != nil {
				metrics.DiscoveryFailures.WithLabelValues("reserves").Inc()
				log.Debug().Err(err).Str("pool", c.address.Hex()).Msg("[poolGraph] reserve read failed, skipping pool")
				return nil
			}
			if g.validator != nil && !g.validator.IsReady(pool) {
				metrics.DiscoveryFailures.WithLabelValues("not_ready").Inc()
				return nil
			}
			resolved[i] = pool
			return nil
		})
	}
	_ = eg.Wait()

	pools := make([]*domain.Pool, 0, len(resolved))
	for _, p := range resolved {
		if p != nil {
			pools = append(pools, p)
		}
	}
	log.Debug().Int("pairs", len(pairs)).Int("candidates", len(candidates)).Int("pools", len(pools)).Msg("[poolGraph] resolved pools")
	return pools
}

func (g *PoolGraph) discover(ctx context.Context, pair TokenPair) ([]common.Address, error) {
	if addrs, ok := g.cache.Get(pair.key()); ok {
		return addrs, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, g.opts.LookupTimeout)
	defer cancel()
	addrs, err := g.discovery.DiscoverPools(lookupCtx, pair.A, pair.B)
	if err != nil {
		return nil, err
	}
	g.cache.Set(pair.key(), addrs)
	return addrs, nil
}
