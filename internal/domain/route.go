package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRoute = errors.New("invalid route")
)

// Route is a loop-free walk through pools from Input to Output.
type Route struct {
	pools  []*Pool
	path   []Token
	input  Token
	output Token
}

func NewRoute(pools []*Pool, input, output Token) (*Route, error) {
	if len(pools) == 0 {
		return nil, fmt.Errorf("%w: no pools", ErrInvalidRoute)
	}

	path := make([]Token, 0, len(pools)+1)
	path = append(path, input)
	seenTokens := map[TokenKey]struct{}{input.Key(): {}}
	seenPools := make(map[string]struct{}, len(pools))

	current := input
	for i, pool := range pools {
		if !pool.Involves(current) {
			return nil, fmt.Errorf("%w: pool %d (%s) does not hold %s", ErrInvalidRoute, i, pool, current)
		}
		addr := pool.Address().Hex()
		if _, dup := seenPools[addr]; dup {
			return nil, fmt.Errorf("%w: pool %s repeated", ErrInvalidRoute, addr)
		}
		seenPools[addr] = struct{}{}

		next := pool.Other(current)
		if _, dup := seenTokens[next.Key()]; dup {
			return nil, fmt.Errorf("%w: token %s revisited", ErrInvalidRoute, next)
		}
		seenTokens[next.Key()] = struct{}{}
		path = append(path, next)
		current = next
	}
	if !current.Equal(output) {
		return nil, fmt.Errorf("%w: path ends at %s, want %s", ErrInvalidRoute, current, output)
	}

	owned := make([]*Pool, len(pools))
	copy(owned, pools)
	return &Route{pools: owned, path: path, input: input, output: output}, nil
}

func (r *Route) Pools() []*Pool {
	out := make([]*Pool, len(r.pools))
	copy(out, r.pools)
	return out
}

func (r *Route) Path() []Token {
	out := make([]Token, len(r.path))
	copy(out, r.path)
	return out
}

func (r *Route) Input() Token  { return r.input }
func (r *Route) Output() Token { return r.output }
func (r *Route) Hops() int     { return len(r.pools) }

func (r *Route) String() string {
	symbols := make([]string, len(r.path))
	for i, t := range r.path {
		symbols[i] = t.Symbol
		if symbols[i] == "" {
			symbols[i] = t.Address.Hex()
		}
	}
	return strings.Join(symbols, " -> ")
}
