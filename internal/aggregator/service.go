package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/dmm-router/internal/adapters/aggregatorapi"
	"github.com/hxuan190/dmm-router/internal/adapters/blockchain"
	"github.com/hxuan190/dmm-router/internal/adapters/persistence"
	"github.com/hxuan190/dmm-router/internal/common"
	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
	"github.com/hxuan190/dmm-router/internal/services/coordinator"
	"github.com/hxuan190/dmm-router/internal/services/market"
	"github.com/hxuan190/dmm-router/internal/services/router"
	"github.com/hxuan190/dmm-router/internal/services/slippage"
)

const AGGREGATOR_SERVICE = "aggregator-service"

var (
	ErrNoRoute      = errors.New("no route found")
	ErrSameToken    = errors.New("input and output token are the same")
	ErrUnknownChain = errors.New("unknown chain")
	// ErrChainNotServed is returned when no RPC node is configured for a chain.
	ErrChainNotServed = errors.New("no rpc node for chain")
)

// QuoteRequest is a local quote against freshly read DMM pools. Tokens are
// raw addresses or the native alias.
type QuoteRequest struct {
	TokenIn   string
	TokenOut  string
	Amount    *big.Int
	TradeType domain.TradeType
	// SlippageBps overrides the chain's default tolerance when set.
	SlippageBps *int
	MaxResults  int
}

type Quote struct {
	ChainID uint64
	// TokenIn and TokenOut are the tokens as requested; trades route through
	// their wrapped form.
	TokenIn   domain.Token
	TokenOut  domain.Token
	Trades    []*domain.Trade
	Bounds    *slippage.Bounds
	ImpactBps uint16
	Severity  router.PriceImpactSeverity
	Warning   string
	PoolCount int
}

func (q *Quote) Best() *domain.Trade {
	return q.Trades[0]
}

// SessionInput is one user edit fed to a route coordinator session.
type SessionInput struct {
	TokenIn     string
	TokenOut    string
	Amount      *big.Int
	TradeType   domain.TradeType
	SlippageBps *int
	Recipient   ethcommon.Address
	GasPrice    *big.Int
}

type Service struct {
	container.BaseDIInstance
	logger *common.ServiceLogger

	mu       sync.RWMutex
	chains   map[uint64]*config.Chain
	networks ChainSet
	nodes    *blockchain.Nodes
	store    *persistence.Storage

	tokens    *market.TokenResolver
	graph     *market.PoolGraph
	sessions  *coordinator.Manager
	policy    slippage.Policy
	tradeOpts router.BestTradeOptions
}

// ChainSet reports which chains have a node behind the chain readers.
type ChainSet interface {
	Serves(chainID uint64) bool
}

// Deps are the outside-world collaborators of the service. Store may be nil;
// a nil Networks lets SwitchChain move to any configured chain.
type Deps struct {
	Networks  ChainSet
	Discovery market.DiscoverySource
	Reader    market.ReserveReader
	Metadata  market.TokenMetadataSource
	Store     market.TokenStore
	Fetcher   coordinator.RouteFetcher
}

// NewService builds a service outside the DI container, routing on chain.
func NewService(chains map[uint64]*config.Chain, chain *config.Chain, cfg *config.RouterConfig, d Deps) *Service {
	svc := &Service{}
	svc.assemble(chains, chain, cfg, d)
	return svc
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = common.NewServiceLogger(svc)
	rpcConfig := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	routerConfig := c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	chainsConfig := c.GetConfig(config.CHAIN_CONFIG_KEY).(*config.ChainsConfig)
	storeConfig := c.GetConfig(config.STORE_CONFIG_KEY).(*config.StoreConfig)

	chain, ok := chainsConfig.Get(rpcConfig.ChainID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, rpcConfig.ChainID)
	}
	if rpcConfig.FactoryAddress != "" {
		chain.DMMFactory = ethcommon.HexToAddress(rpcConfig.FactoryAddress)
	}

	nodes := blockchain.NewNodes()
	svc.nodes = nodes
	for chainID, url := range rpcConfig.URLs() {
		if _, ok := chainsConfig.Get(chainID); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
		}
		client, err := blockchain.DialChain(context.Background(), url, chainID, rpcConfig.CallTimeout)
		if err != nil {
			return fmt.Errorf("dial rpc for chain %d: %w", chainID, err)
		}
		reader, err := blockchain.NewDMMReader(client, chainsConfig.Chains)
		if err != nil {
			client.Close()
			return err
		}
		nodes.Add(chainID, reader, client)
	}

	var store market.TokenStore
	if storeConfig.PersistenceEnabled {
		s, err := persistence.NewStorage(storeConfig.DBPath)
		if err != nil {
			return err
		}
		svc.store = s
		store = s
	}

	api := aggregatorapi.NewClient(routerConfig.APIBase, chainsConfig.Chains, nil, aggregatorapi.OptionsFromConfig(routerConfig))

	svc.assemble(chainsConfig.Chains, chain, routerConfig, Deps{
		Networks:  nodes,
		Discovery: nodes,
		Reader:    nodes,
		Metadata:  nodes,
		Store:     store,
		Fetcher:   api,
	})
	return nil
}

func (svc *Service) assemble(chains map[uint64]*config.Chain, chain *config.Chain, cfg *config.RouterConfig, d Deps) {
	if svc.logger == nil {
		svc.logger = common.NewServiceLogger(svc)
	}
	svc.chains = chains
	svc.networks = d.Networks
	svc.tokens = market.NewTokenResolver(d.Metadata, d.Store)
	svc.graph = market.NewPoolGraph(chain, market.NewDefaultRegistry(d.Discovery), d.Reader, market.NewDefaultRegistry(), market.PoolGraphOptions{
		LookupTimeout: cfg.DiscoveryTimeout,
		Concurrency:   cfg.DiscoveryConcurrency,
		CacheSize:     cfg.DiscoveryCacheSize,
	})
	svc.sessions = coordinator.NewManager(d.Fetcher, coordinator.Options{
		Debounce:         cfg.Debounce,
		ComparisonSource: cfg.ComparisonSource,
	}, cfg.SessionTTL)
	svc.policy = slippage.NewPolicy(cfg)
	svc.tradeOpts = router.BestTradeOptions{
		MaxNumResults: cfg.MaxResults,
		MaxHops:       cfg.MaxHops,
	}
}

func (svc *Service) Start() error {
	chain := svc.graph.Chain()
	if _, err := svc.tokens.Warm(chain.ChainID); err != nil {
		svc.logger.Warn().Err(err).Uint64("chainId", chain.ChainID).Msg("[aggregatorService] failed to warm token cache")
	}
	svc.sessions.Start()
	svc.logger.Info().Str("chain", chain.Name).Msg("[aggregatorService] started")
	return nil
}

func (svc *Service) Stop() error {
	svc.sessions.Stop()
	var err error
	if svc.store != nil {
		if cerr := svc.store.Close(); cerr != nil {
			svc.logger.Error().Err(cerr).Msg("[aggregatorService] failed to close token store")
			err = cerr
		}
	}
	if svc.nodes != nil {
		svc.nodes.Close()
	}
	return err
}

func (svc *Service) Chain() *config.Chain {
	return svc.graph.Chain()
}

// SwitchChain moves routing to chainID. Discovery and token caches are
// dropped and every live session is closed.
func (svc *Service) SwitchChain(chainID uint64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	chain, ok := svc.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	if svc.networks != nil && !svc.networks.Serves(chainID) {
		return fmt.Errorf("%w: %d", ErrChainNotServed, chainID)
	}
	svc.graph.SwitchChain(chain)
	svc.tokens.Clear()
	svc.sessions.Reset()
	if _, err := svc.tokens.Warm(chainID); err != nil {
		svc.logger.Warn().Err(err).Uint64("chainId", chainID).Msg("[aggregatorService] failed to warm token cache")
	}
	return nil
}

func (svc *Service) ResolveToken(ctx context.Context, raw string) (domain.Token, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.tokens.Resolve(ctx, svc.graph.Chain(), raw)
}

func (svc *Service) resolvePair(ctx context.Context, chain *config.Chain, rawIn, rawOut string) (domain.Token, domain.Token, error) {
	tokenIn, err := svc.tokens.Resolve(ctx, chain, rawIn)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	tokenOut, err := svc.tokens.Resolve(ctx, chain, rawOut)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	if chain.Wrap(tokenIn).Equal(chain.Wrap(tokenOut)) {
		return domain.Token{}, domain.Token{}, ErrSameToken
	}
	return tokenIn, tokenOut, nil
}

func swapMode(t domain.TradeType) string {
	if t == domain.ExactOutput {
		return "ExactOut"
	}
	return "ExactIn"
}

// Quote resolves the candidate pools around the pair, searches them and
// attaches slippage bounds and an impact warning to the best trade.
func (svc *Service) Quote(ctx context.Context, req QuoteRequest) (q *Quote, err error) {
	start := time.Now()
	mode := swapMode(req.TradeType)
	defer func() {
		status := "success"
		switch {
		case errors.Is(err, ErrNoRoute):
			status = "no_route"
		case err != nil:
			status = "error"
		}
		metrics.QuoteRequests.WithLabelValues(mode, status).Inc()
		metrics.QuoteDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, router.ErrInvalidAmount
	}

	svc.mu.RLock()
	defer svc.mu.RUnlock()

	chain := svc.graph.Chain()
	tokenIn, tokenOut, err := svc.resolvePair(ctx, chain, req.TokenIn, req.TokenOut)
	if err != nil {
		return nil, err
	}
	bps, err := svc.policy.Tolerance(chain, tokenIn, tokenOut, req.SlippageBps)
	if err != nil {
		return nil, err
	}

	g, err := svc.graph.Build(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	opts := svc.tradeOpts
	if req.MaxResults > 0 {
		opts.MaxNumResults = req.MaxResults
	}
	wrappedIn, wrappedOut := chain.Wrap(tokenIn), chain.Wrap(tokenOut)
	var trades []*domain.Trade
	if req.TradeType == domain.ExactOutput {
		trades, err = router.BestTradeExactOut(g, wrappedIn, wrappedOut, req.Amount, opts)
	} else {
		trades, err = router.BestTradeExactIn(g, wrappedIn, req.Amount, wrappedOut, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("search trades: %w", err)
	}
	if len(trades) == 0 {
		return nil, ErrNoRoute
	}

	best := trades[0]
	bounds, err := slippage.ForTrade(best, bps)
	if err != nil {
		return nil, err
	}
	impactBps := router.ImpactBps(best.PriceImpact())
	severity := router.GetPriceImpactSeverity(impactBps)
	metrics.PriceImpact.WithLabelValues(string(severity)).Observe(float64(impactBps))

	svc.logger.Debug().
		Str("route", best.Route().String()).
		Str("in", best.InputAmount().String()).
		Str("out", best.OutputAmount().String()).
		Uint16("impactBps", impactBps).
		Msg("[aggregatorService] quote")

	return &Quote{
		ChainID:   chain.ChainID,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		Trades:    trades,
		Bounds:    bounds,
		ImpactBps: impactBps,
		Severity:  severity,
		Warning:   router.GetPriceImpactWarning(impactBps),
		PoolCount: g.PoolCount(),
	}, nil
}

// Pools returns the ready pools the graph for the pair would hold.
func (svc *Service) Pools(ctx context.Context, rawA, rawB string) ([]*domain.Pool, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	chain := svc.graph.Chain()
	tokenA, tokenB, err := svc.resolvePair(ctx, chain, rawA, rawB)
	if err != nil {
		return nil, err
	}
	g, err := svc.graph.Build(ctx, tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	return g.Pools(), nil
}

// SetSessionInput feeds one user edit to the coordinator session id. The
// bool reports whether a new cycle was scheduled.
func (svc *Service) SetSessionInput(ctx context.Context, id string, in SessionInput) (*coordinator.Session, bool, error) {
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, false, router.ErrInvalidAmount
	}

	svc.mu.RLock()
	defer svc.mu.RUnlock()

	chain := svc.graph.Chain()
	tokenIn, tokenOut, err := svc.resolvePair(ctx, chain, in.TokenIn, in.TokenOut)
	if err != nil {
		return nil, false, err
	}
	bps, err := svc.policy.Tolerance(chain, tokenIn, tokenOut, in.SlippageBps)
	if err != nil {
		return nil, false, err
	}

	return svc.sessions.SetInput(id, domain.RouteRequest{
		ChainID:     chain.ChainID,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      new(big.Int).Set(in.Amount),
		TradeType:   in.TradeType,
		SlippageBps: bps,
		Recipient:   in.Recipient,
		GasPrice:    in.GasPrice,
	})
}

func (svc *Service) Session(id string) (*coordinator.Session, bool) {
	return svc.sessions.Get(id)
}
