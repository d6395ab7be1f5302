package router

import (
	"errors"
	"math/big"
	"time"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
)

const (
	DefaultMaxHops       = 3
	DefaultMaxNumResults = 1
)

type BestTradeOptions struct {
	// MaxNumResults bounds the sorted result list.
	MaxNumResults int
	// MaxHops bounds the number of pools in a route.
	MaxHops int
}

func (o BestTradeOptions) withDefaults() BestTradeOptions {
	if o.MaxNumResults <= 0 {
		o.MaxNumResults = DefaultMaxNumResults
	}
	if o.MaxHops <= 0 {
		o.MaxHops = DefaultMaxHops
	}
	return o
}

// search is the state of one exhaustive depth-first search. Trades are kept
// sorted best first; equal trades keep discovery order.
type search struct {
	graph     *Graph
	opts      BestTradeOptions
	tradeType domain.TradeType
	tokenIn   domain.Token
	tokenOut  domain.Token
	amount    *big.Int
	visited   map[domain.TokenKey]struct{}
	best      []*domain.Trade
	evaluated int
}

func newSearch(g *Graph, tradeType domain.TradeType, tokenIn, tokenOut domain.Token, amount *big.Int, opts BestTradeOptions) *search {
	return &search{
		graph:     g,
		opts:      opts.withDefaults(),
		tradeType: tradeType,
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		amount:    amount,
		visited:   make(map[domain.TokenKey]struct{}, 8),
	}
}

// BestTradeExactIn returns up to MaxNumResults trades selling amountIn of
// tokenIn for tokenOut, best output first. An empty result means no route.
func BestTradeExactIn(g *Graph, tokenIn domain.Token, amountIn *big.Int, tokenOut domain.Token, opts BestTradeOptions) ([]*domain.Trade, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if tokenIn.Equal(tokenOut) {
		return nil, nil
	}
	start := time.Now()
	s := newSearch(g, domain.ExactInput, tokenIn, tokenOut, amountIn, opts)
	s.visited[tokenIn.Key()] = struct{}{}
	err := s.exactIn(tokenIn, amountIn, nil)
	s.observe(start)
	if err != nil {
		return nil, err
	}
	return s.best, nil
}

// BestTradeExactOut returns up to MaxNumResults trades buying amountOut of
// tokenOut with tokenIn, cheapest input first.
func BestTradeExactOut(g *Graph, tokenIn domain.Token, tokenOut domain.Token, amountOut *big.Int, opts BestTradeOptions) ([]*domain.Trade, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if tokenIn.Equal(tokenOut) {
		return nil, nil
	}
	start := time.Now()
	s := newSearch(g, domain.ExactOutput, tokenIn, tokenOut, amountOut, opts)
	s.visited[tokenOut.Key()] = struct{}{}
	err := s.exactOut(tokenOut, amountOut, nil)
	s.observe(start)
	if err != nil {
		return nil, err
	}
	return s.best, nil
}

// FindBestTradeExactIn is BestTradeExactIn's first result, or nil.
func FindBestTradeExactIn(g *Graph, tokenIn domain.Token, amountIn *big.Int, tokenOut domain.Token, opts BestTradeOptions) (*domain.Trade, error) {
	trades, err := BestTradeExactIn(g, tokenIn, amountIn, tokenOut, opts)
	if err != nil || len(trades) == 0 {
		return nil, err
	}
	return trades[0], nil
}

// FindBestTradeExactOut is BestTradeExactOut's first result, or nil.
func FindBestTradeExactOut(g *Graph, tokenIn domain.Token, tokenOut domain.Token, amountOut *big.Int, opts BestTradeOptions) (*domain.Trade, error) {
	trades, err := BestTradeExactOut(g, tokenIn, tokenOut, amountOut, opts)
	if err != nil || len(trades) == 0 {
		return nil, err
	}
	return trades[0], nil
}

func (s *search) observe(start time.Time) {
	metrics.PathsEvaluated.Observe(float64(s.evaluated))
	metrics.PathfinderDuration.WithLabelValues(s.tradeType.String()).Observe(time.Since(start).Seconds())
}

// deadEnd reports whether err only means this branch cannot be priced.
func deadEnd(err error) bool {
	return errors.Is(err, ErrInsufficientReserves) || errors.Is(err, ErrZeroOutput)
}

func containsPool(pools []*domain.Pool, pool *domain.Pool) bool {
	for _, p := range pools {
		if p.Address() == pool.Address() {
			return true
		}
	}
	return false
}

func (s *search) exactIn(current domain.Token, amountIn *big.Int, pools []*domain.Pool) error {
	for _, pool := range s.graph.poolsOf(current) {
		if containsPool(pools, pool) {
			continue
		}
		next := pool.Other(current)
		if _, seen := s.visited[next.Key()]; seen {
			continue
		}

		amountOut, err := GetAmountOut(pool, current, amountIn)
		if err != nil {
			if deadEnd(err) {
				continue
			}
			return err
		}
		if amountOut.Sign() == 0 {
			continue
		}
		s.evaluated++

		candidate := make([]*domain.Pool, len(pools), len(pools)+1)
		copy(candidate, pools)
		candidate = append(candidate, pool)

		if next.Equal(s.tokenOut) {
			if err := s.record(candidate); err != nil {
				return err
			}
			continue
		}
		if len(candidate) >= s.opts.MaxHops {
			continue
		}

		s.visited[next.Key()] = struct{}{}
		err = s.exactIn(next, amountOut, candidate)
		delete(s.visited, next.Key())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *search) exactOut(current domain.Token, amountOut *big.Int, pools []*domain.Pool) error {
	for _, pool := range s.graph.poolsOf(current) {
		if containsPool(pools, pool) {
			continue
		}
		prev := pool.Other(current)
		if _, seen := s.visited[prev.Key()]; seen {
			continue
		}

		amountIn, err := GetAmountIn(pool, current, amountOut)
		if err != nil {
			if deadEnd(err) {
				continue
			}
			return err
		}
		s.evaluated++

		candidate := make([]*domain.Pool, 0, len(pools)+1)
		candidate = append(candidate, pool)
		candidate = append(candidate, pools...)

		if prev.Equal(s.tokenIn) {
			if err := s.record(candidate); err != nil {
				return err
			}
			continue
		}
		if len(candidate) >= s.opts.MaxHops {
			continue
		}

		s.visited[prev.Key()] = struct{}{}
		err = s.exactOut(prev, amountIn, candidate)
		delete(s.visited, prev.Key())
		if err != nil {
			return err
		}
	}
	return nil
}

// record prices a complete route from its fixed end and inserts it.
func (s *search) record(pools []*domain.Pool) error {
	route, err := domain.NewRoute(pools, s.tokenIn, s.tokenOut)
	if err != nil {
		return err
	}
	trade, err := NewTrade(route, s.amount, s.tradeType)
	if err != nil {
		if deadEnd(err) {
			return nil
		}
		return err
	}
	s.best = sortedInsert(s.best, trade, s.opts.MaxNumResults, compareTrades)
	return nil
}

// compareTrades orders a before b when it returns a negative number. Exact
// input trades rank by output, exact output trades by input, then by hop
// count.
func compareTrades(a, b *domain.Trade) int {
	if a.TradeType() == domain.ExactInput {
		if c := b.OutputAmount().Cmp(a.OutputAmount()); c != 0 {
			return c
		}
		if c := a.InputAmount().Cmp(b.InputAmount()); c != 0 {
			return c
		}
	} else {
		if c := a.InputAmount().Cmp(b.InputAmount()); c != 0 {
			return c
		}
		if c := b.OutputAmount().Cmp(a.OutputAmount()); c != 0 {
			return c
		}
	}
	return a.Route().Hops() - b.Route().Hops()
}

// sortedInsert places item after every element that compares equal to it, so
// ties keep discovery order. The list never grows beyond maxSize.
func sortedInsert(items []*domain.Trade, item *domain.Trade, maxSize int, cmp func(a, b *domain.Trade) int) []*domain.Trade {
	if len(items) >= maxSize && cmp(items[len(items)-1], item) <= 0 {
		return items
	}
	idx := len(items)
	for i, existing := range items {
		if cmp(existing, item) > 0 {
			idx = i
			break
		}
	}
	items = append(items, nil)
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	if len(items) > maxSize {
		items = items[:maxSize]
	}
	return items
}
