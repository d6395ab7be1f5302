package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hxuan190/dmm-router/internal/adapters/aggregatorapi"
	"github.com/hxuan190/dmm-router/internal/adapters/blockchain"
	"github.com/hxuan190/dmm-router/internal/adapters/persistence"
	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/common"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/services/market"
	"github.com/hxuan190/dmm-router/internal/services/slippage"
)

const (
	sessionID        = "routectl"
	displayPrecision = 8
)

// app is one command invocation wired against a live RPC endpoint.
type app struct {
	cfg   Config
	svc   *aggregator.Service
	nodes *blockchain.Nodes
	store *persistence.Storage
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	common.SetupLogger(cfg.LogLevel, "dev")

	if cfg.RPCURL == "" {
		return nil, errors.New("rpc url is required")
	}
	chains, chain, err := cfg.chains()
	if err != nil {
		return nil, err
	}
	routerCfg, err := cfg.routerConfig()
	if err != nil {
		return nil, err
	}

	client, err := blockchain.DialChain(ctx, cfg.RPCURL, chain.ChainID, cfg.CallTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	reader, err := blockchain.NewDMMReader(client, chains)
	if err != nil {
		client.Close()
		return nil, err
	}
	nodes := blockchain.NewNodes()
	nodes.Add(chain.ChainID, reader, client)

	a := &app{cfg: cfg, nodes: nodes}
	var store market.TokenStore
	if cfg.TokenDB != "" {
		s, err := persistence.NewStorage(cfg.TokenDB)
		if err != nil {
			nodes.Close()
			return nil, err
		}
		a.store = s
		store = s
	}

	a.svc = aggregator.NewService(chains, chain, routerCfg, aggregator.Deps{
		Networks:  nodes,
		Discovery: nodes,
		Reader:    nodes,
		Metadata:  nodes,
		Store:     store,
		Fetcher:   aggregatorapi.NewClient(routerCfg.APIBase, chains, nil, aggregatorapi.OptionsFromConfig(routerCfg)),
	})
	if err := a.svc.Start(); err != nil {
		a.Close()
		return nil, err
	}

	log.Debug().
		Str("rpc", cfg.RPCURL).
		Str("chain", chain.Name).
		Str("factory", chain.DMMFactory.Hex()).
		Msg("routectl ready")
	return a, nil
}

func (a *app) Close() {
	if err := a.svc.Stop(); err != nil {
		log.Warn().Err(err).Msg("stop aggregator service")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close token store")
		}
	}
	a.nodes.Close()
}

// withSignals cancels on SIGINT/SIGTERM or when --timeout elapses.
func withSignals(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// parseUnits turns a whole-token amount into smallest units. Raw amounts
// are already in smallest units.
func parseUnits(raw string, decimals uint8, isRaw bool) (*big.Int, error) {
	if isRaw {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok || v.Sign() <= 0 {
			return nil, fmt.Errorf("invalid amount %q", raw)
		}
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", raw, decimals)
	}
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return scaled.BigInt(), nil
}

func formatUnits(v *big.Int, t domain.Token) string {
	return decimal.NewFromBigInt(v, -int32(t.Decimals)).String() + " " + t.Symbol
}

// tradeInput resolves the pair and scales the amount by the decimals of the
// exact side.
func (a *app) tradeInput(ctx context.Context) (domain.TradeType, *big.Int, error) {
	if err := a.cfg.validate(); err != nil {
		return 0, nil, err
	}
	tradeType, err := domain.ParseTradeType(a.cfg.SwapMode)
	if err != nil {
		return 0, nil, err
	}
	exact := a.cfg.TokenIn
	if tradeType == domain.ExactOutput {
		exact = a.cfg.TokenOut
	}
	token, err := a.svc.ResolveToken(ctx, exact)
	if err != nil {
		return 0, nil, err
	}
	amount, err := parseUnits(a.cfg.Amount, token.Decimals, a.cfg.Raw)
	if err != nil {
		return 0, nil, err
	}
	return tradeType, amount, nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, cancel := withSignals(cmd)
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tradeType, amount, err := a.tradeInput(ctx)
	if err != nil {
		return err
	}
	q, err := a.svc.Quote(ctx, aggregator.QuoteRequest{
		TokenIn:     a.cfg.TokenIn,
		TokenOut:    a.cfg.TokenOut,
		Amount:      amount,
		TradeType:   tradeType,
		SlippageBps: a.cfg.slippage(),
		MaxResults:  a.cfg.MaxResults,
	})
	if err != nil {
		return err
	}
	printQuote(cmd.OutOrStdout(), q)
	return nil
}

func printQuote(out io.Writer, q *aggregator.Quote) {
	best := q.Best()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Route\t%s\n", best.Route())
	fmt.Fprintf(w, "Amount in\t%s\n", formatUnits(best.InputAmount(), q.TokenIn))
	fmt.Fprintf(w, "Amount out\t%s\n", formatUnits(best.OutputAmount(), q.TokenOut))
	fmt.Fprintf(w, "Price\t%s %s per %s\n", best.DisplayExecutionPrice(displayPrecision), q.TokenOut.Symbol, q.TokenIn.Symbol)
	fmt.Fprintf(w, "Price impact\t%s%% (%s)\n", best.PriceImpact().StringFixed(2), q.Warning)
	if best.TradeType() == domain.ExactInput {
		fmt.Fprintf(w, "Minimum out\t%s (%d bps)\n", formatUnits(q.Bounds.MinimumOutput, q.TokenOut), q.Bounds.ToleranceBps)
	} else {
		fmt.Fprintf(w, "Maximum in\t%s (%d bps)\n", formatUnits(q.Bounds.MaximumInput, q.TokenIn), q.Bounds.ToleranceBps)
	}
	fmt.Fprintf(w, "Pools\t%d considered\n", q.PoolCount)
	for i, t := range q.Trades[1:] {
		fmt.Fprintf(w, "Alternative %d\t%s: %s -> %s\n", i+1, t.Route(),
			formatUnits(t.InputAmount(), q.TokenIn), formatUnits(t.OutputAmount(), q.TokenOut))
	}
	w.Flush()
}

func runPools(cmd *cobra.Command, _ []string) error {
	ctx, cancel := withSignals(cmd)
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.TokenIn == "" || a.cfg.TokenOut == "" {
		return errors.New("token-in and token-out are required")
	}
	pools, err := a.svc.Pools(ctx, a.cfg.TokenIn, a.cfg.TokenOut)
	if err != nil {
		return err
	}
	printPools(cmd.OutOrStdout(), pools)
	return nil
}

func printPools(out io.Writer, pools []*domain.Pool) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tPAIR\tAMP\tFEE\tRESERVE0\tRESERVE1")
	for _, p := range pools {
		fee := decimal.NewFromBigInt(p.FeeUnits(), -16)
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s%%\t%s\t%s\n",
			p.Address().Hex(),
			p.Token0().Symbol, p.Token1().Symbol,
			decimal.New(int64(p.AmpBps()), -4).String(),
			fee.String(),
			decimal.NewFromBigInt(p.Reserve0(), -int32(p.Token0().Decimals)).String(),
			decimal.NewFromBigInt(p.Reserve1(), -int32(p.Token1().Decimals)).String(),
		)
	}
	w.Flush()
	fmt.Fprintf(out, "%d pools\n", len(pools))
}

func runRoute(cmd *cobra.Command, _ []string) error {
	ctx, cancel := withSignals(cmd)
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tradeType, amount, err := a.tradeInput(ctx)
	if err != nil {
		return err
	}
	s, _, err := a.svc.SetSessionInput(ctx, sessionID, aggregator.SessionInput{
		TokenIn:     a.cfg.TokenIn,
		TokenOut:    a.cfg.TokenOut,
		Amount:      amount,
		TradeType:   tradeType,
		SlippageBps: a.cfg.slippage(),
	})
	if err != nil {
		return err
	}
	res, err := s.Wait(ctx, s.Generation())
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	return printRoute(cmd.OutOrStdout(), res.Input, res.Route, res.Comparison, res.ComparisonErr)
}

func printRoute(out io.Writer, req domain.RouteRequest, route, comparison *domain.AggregatedRoute, comparisonErr error) error {
	bounds, err := slippage.ForRoute(route, req.SlippageBps)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Amount in\t%s\n", formatUnits(route.InputAmount, req.TokenIn))
	fmt.Fprintf(w, "Amount out\t%s\n", formatUnits(route.OutputAmount, req.TokenOut))
	if route.TradeType == domain.ExactInput {
		fmt.Fprintf(w, "Minimum out\t%s (%d bps)\n", formatUnits(bounds.MinimumOutput, req.TokenOut), bounds.ToleranceBps)
	} else {
		fmt.Fprintf(w, "Maximum in\t%s (%d bps)\n", formatUnits(bounds.MaximumInput, req.TokenIn), bounds.ToleranceBps)
	}
	fmt.Fprintf(w, "Sources\t%s\n", sources(route.Legs))
	fmt.Fprintf(w, "Gas estimate\t%d\n", route.GasEstimate)
	for _, l := range route.Legs {
		fmt.Fprintf(w, "Leg\t%s %s%% via %s\n", l.Source, l.Portion.String(), l.Pool)
	}

	switch {
	case comparisonErr != nil:
		fmt.Fprintf(w, "Comparison\tunavailable: %v\n", comparisonErr)
	case comparison != nil:
		saved := req.TokenOut
		if route.TradeType == domain.ExactOutput {
			saved = req.TokenIn
		}
		fmt.Fprintf(w, "Comparison\t%s %s -> %s\n", comparison.Source,
			formatUnits(comparison.InputAmount, req.TokenIn), formatUnits(comparison.OutputAmount, req.TokenOut))
		if savings := route.Savings(comparison); savings != nil {
			fmt.Fprintf(w, "Savings\t%s\n", formatUnits(savings, saved))
		}
	}
	return w.Flush()
}

func sources(legs []domain.Leg) string {
	seen := make(map[string]struct{}, len(legs))
	var out []string
	for _, l := range legs {
		if _, ok := seen[l.Source]; ok {
			continue
		}
		seen[l.Source] = struct{}{}
		out = append(out, l.Source)
	}
	return strings.Join(out, ",")
}
