package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

const (
	tokenCacheMaxSize = 10000
	tokenFetchTimeout = 10 * time.Second
	nativeTokenAlias  = "native"
)

var (
	ErrInvalidTokenAddress = errors.New("invalid token address")
	// ErrUnknownToken means the address did not answer the ERC20 metadata calls.
	ErrUnknownToken = errors.New("unknown token")
)

// TokenStore persists resolved token metadata across restarts.
type TokenStore interface {
	LoadTokens(chainID uint64) ([]domain.Token, error)
	SaveToken(token domain.Token) error
}

// TokenResolver turns a user supplied address into a token with metadata.
// Lookups go through the chain's known tokens, an in-memory cache, and
// finally the on-chain metadata source. Fetched tokens are written back to
// the store when one is configured.
type TokenResolver struct {
	cache  *BoundedLRUCache[domain.TokenKey, domain.Token]
	source TokenMetadataSource
	store  TokenStore
}

func NewTokenResolver(source TokenMetadataSource, store TokenStore) *TokenResolver {
	return &TokenResolver{
		cache:  NewBoundedLRUCache[domain.TokenKey, domain.Token]("token_metadata", tokenCacheMaxSize),
		source: source,
		store:  store,
	}
}

// Warm loads every persisted token of chainID into the cache.
func (r *TokenResolver) Warm(chainID uint64) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	tokens, err := r.store.LoadTokens(chainID)
	if err != nil {
		return 0, err
	}
	for _, t := range tokens {
		r.cache.Set(t.Key(), t)
	}
	log.Info().Uint64("chainId", chainID).Int("count", len(tokens)).Msg("[tokenResolver] warmed token cache")
	return len(tokens), nil
}

func (r *TokenResolver) Clear() {
	r.cache.Clear()
}

// Resolve accepts a hex address, the native sentinel address, or the alias
// "native".
func (r *TokenResolver) Resolve(ctx context.Context, chain *config.Chain, raw string) (domain.Token, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, nativeTokenAlias) {
		return chain.Native, nil
	}
	if !common.IsHexAddress(raw) {
		return domain.Token{}, fmt.Errorf("%w: %q", ErrInvalidTokenAddress, raw)
	}
	addr := common.HexToAddress(raw)
	if addr == domain.NativeSentinel {
		return chain.Native, nil
	}
	if t, ok := chain.KnownToken(addr); ok {
		return t, nil
	}

	key := domain.TokenKey{ChainID: chain.ChainID, Address: addr}
	if t, ok := r.cache.Get(key); ok {
		return t, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, tokenFetchTimeout)
	defer cancel()
	t, err := r.source.FetchToken(fetchCtx, chain.ChainID, addr)
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w %s: %w", ErrUnknownToken, addr.Hex(), err)
	}
	r.cache.Set(key, t)

	if r.store != nil {
		if err := r.store.SaveToken(t); err != nil {
			log.Warn().Err(err).Str("token", addr.Hex()).Msg("[tokenResolver] failed to persist token")
		}
	}
	return t, nil
}
