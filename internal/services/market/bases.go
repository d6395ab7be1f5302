package market

import (
	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

// TokenPair is an unordered pair in canonical order (A sorts before B).
type TokenPair struct {
	A domain.Token
	B domain.Token
}

func NewTokenPair(x, y domain.Token) TokenPair {
	if y.SortsBefore(x) {
		x, y = y, x
	}
	return TokenPair{A: x, B: y}
}

type pairKey struct {
	a domain.TokenKey
	b domain.TokenKey
}

func (p TokenPair) key() pairKey {
	return pairKey{a: p.A.Key(), b: p.B.Key()}
}

// BuildBases returns tokenA, tokenB, the chain's common bases, and any extra
// bases configured for either token, in that order and without duplicates.
// Native tokens are replaced by their wrapped form.
func BuildBases(tokenA, tokenB domain.Token, chain *config.Chain) []domain.Token {
	seen := make(map[domain.TokenKey]struct{})
	var out []domain.Token
	add := func(tokens ...domain.Token) {
		for _, t := range tokens {
			t = chain.Wrap(t)
			if _, dup := seen[t.Key()]; dup {
				continue
			}
			seen[t.Key()] = struct{}{}
			out = append(out, t)
		}
	}

	tokenA, tokenB = chain.Wrap(tokenA), chain.Wrap(tokenB)
	add(tokenA, tokenB)
	add(chain.Bases...)
	add(chain.AdditionalBases[tokenA.Address]...)
	add(chain.AdditionalBases[tokenB.Address]...)
	return out
}

// Combinations lists every unordered pair of distinct bases, dropping pairs
// that violate a token's custom base restriction.
func Combinations(bases []domain.Token, chain *config.Chain) []TokenPair {
	var out []TokenPair
	for i := 0; i < len(bases); i++ {
		for j := i + 1; j < len(bases); j++ {
			x, y := bases[i], bases[j]
			if x.Equal(y) || !allowedPair(x, y, chain) {
				continue
			}
			out = append(out, NewTokenPair(x, y))
		}
	}
	return out
}

func allowedPair(x, y domain.Token, chain *config.Chain) bool {
	if custom, ok := chain.CustomBases[x.Address]; ok && !containsToken(custom, y) {
		return false
	}
	if custom, ok := chain.CustomBases[y.Address]; ok && !containsToken(custom, x) {
		return false
	}
	return true
}

func containsToken(list []domain.Token, t domain.Token) bool {
	for _, candidate := range list {
		if candidate.Equal(t) {
			return true
		}
	}
	return false
}
