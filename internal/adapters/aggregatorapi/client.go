package aggregatorapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/metrics"
)

const (
	routePath       = "/route"
	maxErrorBody    = 4 << 10
	clientIDHeader  = "X-Client-Id"
	defaultDeadline = 20 * time.Minute
)

type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
	KindCanceled  ErrorKind = "canceled"
)

// RouteFetchError is returned for every failed route request.
type RouteFetchError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *RouteFetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("route fetch %s %d: %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("route fetch %s: %v", e.Kind, e.Err)
}

func (e *RouteFetchError) Unwrap() error { return e.Err }

type Options struct {
	SaveGas         bool
	ExcludedSources []string
	Deadline        time.Duration
	FeeReceiver     string
	FeeBps          int
	ChargeFeeBy     string
	ClientID        string
	RequestsPerSec  int
}

func OptionsFromConfig(cfg *config.RouterConfig) Options {
	return Options{
		SaveGas:         cfg.SaveGas,
		ExcludedSources: cfg.ExcludedSources,
		Deadline:        cfg.Deadline,
		FeeReceiver:     cfg.FeeReceiver,
		FeeBps:          cfg.FeeBps,
		ChargeFeeBy:     cfg.ChargeFeeBy,
		ClientID:        cfg.APIClientID,
		RequestsPerSec:  cfg.APIRateLimit,
	}
}

// Client talks to the aggregation service. One client serves every chain;
// the chain name is the first path segment.
type Client struct {
	baseURL    string
	chainNames map[uint64]string
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       Options
	now        func() time.Time
}

func NewClient(baseURL string, chains map[uint64]*config.Chain, httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Deadline <= 0 {
		opts.Deadline = defaultDeadline
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
		burst = opts.RequestsPerSec
	}
	names := make(map[uint64]string, len(chains))
	for id, c := range chains {
		names[id] = c.Name
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainNames: names,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		opts:       opts,
		now:        time.Now,
	}
}

type legResponse struct {
	Pool     string          `json:"pool"`
	Exchange string          `json:"exchange"`
	TokenIn  string          `json:"tokenIn"`
	TokenOut string          `json:"tokenOut"`
	Portion  decimal.Decimal `json:"portion"`
}

type routeResponse struct {
	InputAmount  string              `json:"inputAmount"`
	OutputAmount string              `json:"outputAmount"`
	InputUSD     decimal.NullDecimal `json:"inputUsd"`
	OutputUSD    decimal.NullDecimal `json:"outputUsd"`
	PriceImpact  decimal.Decimal     `json:"priceImpact"`
	GasEstimate  uint64              `json:"gasEstimate"`
	Route        []legResponse       `json:"route"`
}

// FetchRoute requests the best route for req. Cancelling ctx aborts the
// request at the transport and yields a KindCanceled error.
func (c *Client) FetchRoute(ctx context.Context, req domain.RouteRequest) (*domain.AggregatedRoute, error) {
	kind := "primary"
	if req.Source != "" {
		kind = "comparison"
	}
	start := time.Now()
	route, err := c.fetch(ctx, req)
	status := "ok"
	if err != nil {
		var fe *RouteFetchError
		if errors.As(err, &fe) {
			status = string(fe.Kind)
		} else {
			status = "error"
		}
	}
	metrics.RouteFetchDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
	return route, err
}

func (c *Client) fetch(ctx context.Context, req domain.RouteRequest) (*domain.AggregatedRoute, error) {
	endpoint, err := c.endpoint(req)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RouteFetchError{Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.opts.ClientID != "" {
		httpReq.Header.Set(clientIDHeader, c.opts.ClientID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RouteFetchError{Kind: KindStatus, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(body)))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}
	var data routeResponse
	if err := sonic.Unmarshal(body, &data); err != nil {
		return nil, &RouteFetchError{Kind: KindDecode, Err: err}
	}

	route, err := data.toDomain(req)
	if err != nil {
		return nil, &RouteFetchError{Kind: KindDecode, Err: err}
	}
	log.Debug().
		Str("source", req.Source).
		Str("in", route.InputAmount.String()).
		Str("out", route.OutputAmount.String()).
		Int("legs", len(route.Legs)).
		Msg("[aggregatorApi] route fetched")
	return route, nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &RouteFetchError{Kind: KindCanceled, Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RouteFetchError{Kind: KindCanceled, Err: err}
	}
	return &RouteFetchError{Kind: KindTransport, Err: err}
}

func (c *Client) endpoint(req domain.RouteRequest) (string, error) {
	chain, ok := c.chainNames[req.ChainID]
	if !ok {
		return "", &RouteFetchError{Kind: KindTransport, Err: fmt.Errorf("unsupported chain %d", req.ChainID)}
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", &RouteFetchError{Kind: KindTransport, Err: errors.New("amount must be positive")}
	}

	q := url.Values{}
	q.Set("sellToken", req.TokenIn.APIAddress().Hex())
	q.Set("buyToken", req.TokenOut.APIAddress().Hex())
	if req.TradeType == domain.ExactOutput {
		q.Set("buyAmount", req.Amount.String())
	} else {
		q.Set("sellAmount", req.Amount.String())
	}
	q.Set("saveGas", strconv.FormatBool(c.opts.SaveGas))
	if req.GasPrice != nil && req.GasPrice.Sign() > 0 {
		q.Set("gasPrice", req.GasPrice.String())
	}
	if req.Source != "" {
		q.Set("includedSources", req.Source)
	} else if len(c.opts.ExcludedSources) > 0 {
		q.Set("excludedSources", strings.Join(c.opts.ExcludedSources, ","))
	}
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("deadline", strconv.FormatInt(c.now().Add(c.opts.Deadline).Unix(), 10))
	if req.Recipient != (common.Address{}) {
		q.Set("recipient", req.Recipient.Hex())
	}
	if c.opts.FeeReceiver != "" && c.opts.FeeBps > 0 {
		q.Set("feeReceiver", c.opts.FeeReceiver)
		q.Set("feeBps", strconv.Itoa(c.opts.FeeBps))
		q.Set("chargeFeeBy", c.opts.ChargeFeeBy)
	}
	return c.baseURL + "/" + chain + routePath + "?" + q.Encode(), nil
}

func (r *routeResponse) toDomain(req domain.RouteRequest) (*domain.AggregatedRoute, error) {
	in, ok := new(big.Int).SetString(r.InputAmount, 10)
	if !ok || in.Sign() < 0 {
		return nil, fmt.Errorf("bad inputAmount %q", r.InputAmount)
	}
	out, ok := new(big.Int).SetString(r.OutputAmount, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("bad outputAmount %q", r.OutputAmount)
	}

	legs := make([]domain.Leg, 0, len(r.Route))
	for i, l := range r.Route {
		if !common.IsHexAddress(l.TokenIn) || !common.IsHexAddress(l.TokenOut) {
			return nil, fmt.Errorf("bad token address in leg %d", i)
		}
		legs = append(legs, domain.Leg{
			Pool:     l.Pool,
			Source:   l.Exchange,
			TokenIn:  common.HexToAddress(l.TokenIn),
			TokenOut: common.HexToAddress(l.TokenOut),
			Portion:  l.Portion,
		})
	}

	return &domain.AggregatedRoute{
		TradeType:    req.TradeType,
		TokenIn:      req.TokenIn.APIAddress(),
		TokenOut:     req.TokenOut.APIAddress(),
		InputAmount:  in,
		OutputAmount: out,
		InputUSD:     r.InputUSD,
		OutputUSD:    r.OutputUSD,
		PriceImpact:  r.PriceImpact,
		GasEstimate:  r.GasEstimate,
		Legs:         legs,
		Source:       req.Source,
	}, nil
}
