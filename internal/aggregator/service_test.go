package aggregator

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/services/market"
	"github.com/hxuan190/dmm-router/internal/services/router"
	"github.com/hxuan190/dmm-router/internal/services/slippage"
)

var (
	wethAddr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdcAddr = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	daiAddr  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	wbtcAddr = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
	kncAddr  = "0xdeFA4e8a7bcBA345F687a2f1456F5Edd9CE97202"
	fooAddr  = "0x00000000000000000000000000000000000000f0"

	wethUSDCPool = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	usdcDAIPool  = common.HexToAddress("0x0000000000000000000000000000000000000a02")
)

func pairID(a, b domain.Token) string {
	x, y := strings.ToLower(a.Address.Hex()), strings.ToLower(b.Address.Hex())
	if y < x {
		x, y = y, x
	}
	return x + "/" + y
}

type fakeChain struct {
	pairs map[string][]common.Address
	pools map[common.Address]*domain.Pool
	meta  map[common.Address]domain.Token

	mu      sync.Mutex
	queried map[uint64]int
}

func (f *fakeChain) record(chainID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queried == nil {
		f.queried = make(map[uint64]int)
	}
	f.queried[chainID]++
}

// chainsQueried returns the chains asked about since the last call.
func (f *fakeChain) chainsQueried() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.queried))
	for id := range f.queried {
		out = append(out, id)
	}
	slices.Sort(out)
	f.queried = nil
	return out
}

func (f *fakeChain) DiscoverPools(ctx context.Context, a, b domain.Token) ([]common.Address, error) {
	f.record(a.ChainID)
	return f.pairs[pairID(a, b)], nil
}

func (f *fakeChain) ReadPool(ctx context.Context, address common.Address, a, b domain.Token) (*domain.Pool, error) {
	f.record(a.ChainID)
	p, ok := f.pools[address]
	if !ok {
		return nil, errors.New("no such pool")
	}
	return p, nil
}

func (f *fakeChain) FetchToken(ctx context.Context, chainID uint64, address common.Address) (domain.Token, error) {
	f.record(chainID)
	t, ok := f.meta[address]
	if !ok {
		return domain.Token{}, errors.New("execution reverted")
	}
	return t, nil
}

type memStore struct {
	saved []domain.Token
}

func (m *memStore) LoadTokens(chainID uint64) ([]domain.Token, error) {
	return m.saved, nil
}

func (m *memStore) SaveToken(t domain.Token) error {
	m.saved = append(m.saved, t)
	return nil
}

type echoFetcher struct{}

func (echoFetcher) FetchRoute(ctx context.Context, req domain.RouteRequest) (*domain.AggregatedRoute, error) {
	out := new(big.Int).Mul(req.Amount, big.NewInt(3))
	if req.Source != "" {
		out.Sub(out, big.NewInt(10))
	}
	return &domain.AggregatedRoute{
		TradeType:    req.TradeType,
		TokenIn:      req.TokenIn.APIAddress(),
		TokenOut:     req.TokenOut.APIAddress(),
		InputAmount:  new(big.Int).Set(req.Amount),
		OutputAmount: out,
		Source:       req.Source,
	}, nil
}

func units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func mustPool(t *testing.T, addr common.Address, a, b domain.Token, ra, rb *big.Int) *domain.Pool {
	t.Helper()
	p, err := domain.NewPool(domain.PoolParams{
		Address:  addr,
		TokenA:   a,
		TokenB:   b,
		ReserveA: ra,
		ReserveB: rb,
		FeeUnits: big.NewInt(3e15),
		AmpBps:   domain.AmpBpsUnamplified,
	})
	require.NoError(t, err)
	return p
}

func testRouterConfig() *config.RouterConfig {
	return &config.RouterConfig{
		ComparisonSource:     "uniswap",
		Debounce:             10 * time.Millisecond,
		MaxHops:              3,
		MaxResults:           3,
		DiscoveryTimeout:     time.Second,
		DiscoveryConcurrency: 4,
		DiscoveryCacheSize:   64,
		DefaultSlippageBps:   50,
		StableSlippagePolicy: true,
		StableMinBps:         100,
		StableMaxBps:         1000,
	}
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	chains := config.DefaultChains()
	eth := chains[config.ChainIDEthereum]
	weth, _ := eth.KnownToken(common.HexToAddress(wethAddr))
	usdc, _ := eth.KnownToken(common.HexToAddress(usdcAddr))
	dai, _ := eth.KnownToken(common.HexToAddress(daiAddr))

	fc := &fakeChain{
		pairs: map[string][]common.Address{
			pairID(weth, usdc): {wethUSDCPool},
			pairID(usdc, dai):  {usdcDAIPool},
		},
		pools: map[common.Address]*domain.Pool{
			wethUSDCPool: mustPool(t, wethUSDCPool, weth, usdc, units(100, 18), units(200_000, 6)),
			usdcDAIPool:  mustPool(t, usdcDAIPool, usdc, dai, units(500_000, 6), units(500_000, 18)),
		},
		meta: map[common.Address]domain.Token{
			common.HexToAddress(fooAddr): domain.NewERC20(1, common.HexToAddress(fooAddr), 18, "FOO"),
		},
	}
	store := &memStore{}
	svc := NewService(chains, eth, testRouterConfig(), Deps{
		Discovery: fc,
		Reader:    fc,
		Metadata:  fc,
		Store:     store,
		Fetcher:   echoFetcher{},
	})
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, store
}

func TestQuoteRoutesThroughIntermediate(t *testing.T) {
	svc, _ := newTestService(t)

	q, err := svc.Quote(context.Background(), QuoteRequest{
		TokenIn:  wethAddr,
		TokenOut: daiAddr,
		Amount:   units(1, 18),
	})
	require.NoError(t, err)
	require.Equal(t, 2, q.PoolCount)
	require.Len(t, q.Trades, 1)

	best := q.Best()
	require.Equal(t, "WETH -> USDC -> DAI", best.Route().String())
	require.True(t, best.PriceImpact().IsPositive())

	// naive product of mid prices: 2000 USDC per WETH, 1 DAI per USDC
	require.Equal(t, -1, best.OutputAmount().Cmp(units(2000, 18)))

	require.Equal(t, 50, q.Bounds.ToleranceBps)
	require.Equal(t, -1, q.Bounds.MinimumOutput.Cmp(best.OutputAmount()))
	require.Equal(t, router.GetPriceImpactSeverity(q.ImpactBps), q.Severity)
}

func TestQuoteExactOutput(t *testing.T) {
	svc, _ := newTestService(t)

	q, err := svc.Quote(context.Background(), QuoteRequest{
		TokenIn:   wethAddr,
		TokenOut:  usdcAddr,
		Amount:    units(1000, 6),
		TradeType: domain.ExactOutput,
	})
	require.NoError(t, err)
	best := q.Best()
	require.Equal(t, 0, best.OutputAmount().Cmp(units(1000, 6)))
	require.Equal(t, domain.ExactOutput, q.Bounds.TradeType)
	require.Equal(t, 1, q.Bounds.MaximumInput.Cmp(best.InputAmount()))
}

func TestQuoteWrapsNativeInput(t *testing.T) {
	svc, _ := newTestService(t)

	q, err := svc.Quote(context.Background(), QuoteRequest{
		TokenIn:  "native",
		TokenOut: usdcAddr,
		Amount:   units(1, 18),
	})
	require.NoError(t, err)
	require.True(t, q.TokenIn.IsNative())
	require.Equal(t, "WETH", q.Best().Route().Input().Symbol)
}

func TestQuoteStablePairUsesStableTolerance(t *testing.T) {
	svc, _ := newTestService(t)

	q, err := svc.Quote(context.Background(), QuoteRequest{
		TokenIn:  usdcAddr,
		TokenOut: daiAddr,
		Amount:   units(100, 6),
	})
	require.NoError(t, err)
	require.Equal(t, 100, q.Bounds.ToleranceBps)

	explicit := 30
	q, err = svc.Quote(context.Background(), QuoteRequest{
		TokenIn:     usdcAddr,
		TokenOut:    daiAddr,
		Amount:      units(100, 6),
		SlippageBps: &explicit,
	})
	require.NoError(t, err)
	require.Equal(t, 30, q.Bounds.ToleranceBps)
}

func TestQuoteErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	bad := 10001

	tests := []struct {
		name string
		req  QuoteRequest
		want error
	}{
		{"no route", QuoteRequest{TokenIn: wbtcAddr, TokenOut: kncAddr, Amount: big.NewInt(1)}, ErrNoRoute},
		{"same token", QuoteRequest{TokenIn: "native", TokenOut: wethAddr, Amount: big.NewInt(1)}, ErrSameToken},
		{"zero amount", QuoteRequest{TokenIn: wethAddr, TokenOut: daiAddr, Amount: big.NewInt(0)}, router.ErrInvalidAmount},
		{"bad address", QuoteRequest{TokenIn: "0x1234", TokenOut: daiAddr, Amount: big.NewInt(1)}, market.ErrInvalidTokenAddress},
		{"bad slippage", QuoteRequest{TokenIn: wethAddr, TokenOut: daiAddr, Amount: big.NewInt(1), SlippageBps: &bad}, slippage.ErrInvalidSlippage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Quote(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveTokenPersistsFetchedMetadata(t *testing.T) {
	svc, store := newTestService(t)

	tok, err := svc.ResolveToken(context.Background(), fooAddr)
	require.NoError(t, err)
	assert.Equal(t, "FOO", tok.Symbol)
	require.Len(t, store.saved, 1)

	_, err = svc.ResolveToken(context.Background(), "0x00000000000000000000000000000000000000f1")
	require.Error(t, err)
}

func TestPools(t *testing.T) {
	svc, _ := newTestService(t)

	pools, err := svc.Pools(context.Background(), wethAddr, daiAddr)
	require.NoError(t, err)
	require.Len(t, pools, 2)
}

func TestSessionPublishesRouteAndComparison(t *testing.T) {
	svc, _ := newTestService(t)

	s, scheduled, err := svc.SetSessionInput(context.Background(), "client-1", SessionInput{
		TokenIn:  "native",
		TokenOut: usdcAddr,
		Amount:   units(1, 18),
	})
	require.NoError(t, err)
	require.True(t, scheduled)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.Wait(ctx, s.Generation())
	require.NoError(t, err)
	require.NotNil(t, res.Route)
	require.NotNil(t, res.Comparison)
	require.Equal(t, domain.NativeSentinel, res.Route.TokenIn)
	require.Equal(t, 0, res.Savings().Cmp(big.NewInt(10)))
	require.Equal(t, 50, res.Input.SlippageBps)

	got, ok := svc.Session("client-1")
	require.True(t, ok)
	require.Same(t, s, got)
}

func TestSwitchChain(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.SetSessionInput(context.Background(), "client-1", SessionInput{
		TokenIn:  wethAddr,
		TokenOut: usdcAddr,
		Amount:   units(1, 18),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.SwitchChain(999), ErrUnknownChain)
	require.NoError(t, svc.SwitchChain(config.ChainIDPolygon))
	require.Equal(t, config.ChainIDPolygon, svc.Chain().ChainID)

	_, ok := svc.Session("client-1")
	require.False(t, ok)

	// mainnet addresses are unknown on polygon and the fake has no metadata
	_, err = svc.Quote(context.Background(), QuoteRequest{TokenIn: wethAddr, TokenOut: daiAddr, Amount: big.NewInt(1)})
	require.Error(t, err)
}

type servedChains map[uint64]bool

func (s servedChains) Serves(chainID uint64) bool { return s[chainID] }

func TestSwitchChainReadsFromTheActiveChain(t *testing.T) {
	chains := config.DefaultChains()
	polygon := chains[config.ChainIDPolygon]
	wmatic := polygon.WrappedNative
	polyUSDCAddr := "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polyUSDC, ok := polygon.KnownToken(common.HexToAddress(polyUSDCAddr))
	require.True(t, ok)
	polyPool := common.HexToAddress("0x0000000000000000000000000000000000000a03")

	fc := &fakeChain{
		pairs: map[string][]common.Address{pairID(wmatic, polyUSDC): {polyPool}},
		pools: map[common.Address]*domain.Pool{
			polyPool: mustPool(t, polyPool, wmatic, polyUSDC, units(1_000_000, 18), units(800_000, 6)),
		},
	}
	served := servedChains{config.ChainIDEthereum: true}
	svc := NewService(chains, chains[config.ChainIDEthereum], testRouterConfig(), Deps{
		Networks:  served,
		Discovery: fc,
		Reader:    fc,
		Metadata:  fc,
		Fetcher:   echoFetcher{},
	})
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Stop() })

	require.ErrorIs(t, svc.SwitchChain(config.ChainIDPolygon), ErrChainNotServed)
	require.Equal(t, config.ChainIDEthereum, svc.Chain().ChainID)

	served[config.ChainIDPolygon] = true
	require.NoError(t, svc.SwitchChain(config.ChainIDPolygon))
	fc.chainsQueried()

	q, err := svc.Quote(context.Background(), QuoteRequest{
		TokenIn:  "native",
		TokenOut: polyUSDCAddr,
		Amount:   units(10, 18),
	})
	require.NoError(t, err)
	require.Equal(t, config.ChainIDPolygon, q.ChainID)
	require.Equal(t, "WMATIC -> USDC", q.Best().Route().String())
	require.Equal(t, []uint64{config.ChainIDPolygon}, fc.chainsQueried())
}
