package http

import (
	"math/big"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
)

// displayPrecision is the number of decimals kept in human readable prices.
const displayPrecision = 8

type QuoteHandler struct {
	routing RoutingService
}

func NewQuoteHandler(routing RoutingService) *QuoteHandler {
	return &QuoteHandler{routing: routing}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Input token address, "native", or 0xEeee...EEeE for the native currency
	TokenIn string `form:"tokenIn" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Output token address
	TokenOut string `form:"tokenOut" binding:"required" example:"0x6B175474E89094C44Da98b954EedeAC495271d0F"`

	// Amount in smallest token units (wei for 18-decimal tokens)
	Amount string `form:"amount" binding:"required" example:"1000000000000000000"`

	// - "ExactIn": Amount is the exact input, output is estimated
	// - "ExactOut": Amount is the exact output desired, input is estimated
	SwapMode string `form:"swapMode" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points. Defaults to the chain policy.
	SlippageBps *int `form:"slippageBps" example:"50"`

	// Number of alternative routes to return, best first
	MaxResults int `form:"maxResults" example:"1"`
}

// TokenInfo describes a token as resolved on the active chain
type TokenInfo struct {
	Address  string `json:"address" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`
	Symbol   string `json:"symbol" example:"WETH"`
	Decimals uint8  `json:"decimals" example:"18"`
	Native   bool   `json:"native" example:"false"`
}

func tokenInfo(t domain.Token) TokenInfo {
	return TokenInfo{
		Address:  t.APIAddress().Hex(),
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		Native:   t.IsNative(),
	}
}

// RouteInfo describes a single hop in the swap route
type RouteInfo struct {
	// DMM pool used for this hop
	PoolAddress string `json:"poolAddress" example:"0x306121f1344ac5F84760998484c0176d7BFB7134"`

	InputToken  string `json:"inputToken" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`
	OutputToken string `json:"outputToken" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Amplification in bps, 10000 = plain constant product
	AmpBps uint32 `json:"ampBps" example:"20000"`

	// Fee in 1e18 precision
	FeeUnits string `json:"feeUnits" example:"3000000000000000"`

	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"1974064"`
}

// AlternativeRoute is a ranked route other than the best one
type AlternativeRoute struct {
	RoutePath []string `json:"routePath"`
	AmountIn  string   `json:"amountIn" example:"1000000000000000000"`
	AmountOut string   `json:"amountOut" example:"1960000000"`
}

// QuoteResponse contains the best trade with its slippage bounds
type QuoteResponse struct {
	ChainID  uint64    `json:"chainId" example:"1"`
	TokenIn  TokenInfo `json:"tokenIn"`
	TokenOut TokenInfo `json:"tokenOut"`
	SwapMode string    `json:"swapMode" example:"ExactIn"`

	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"1962221344227031262380"`

	// Whole-token output per whole-token input
	ExecutionPrice string `json:"executionPrice" example:"1962.22134422"`

	// Signed percentage; positive means worse than the mid price
	PriceImpactPercent  string `json:"priceImpactPercent" example:"1.38"`
	PriceImpactBps      uint16 `json:"priceImpactBps" example:"138"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme" example:"low"`
	PriceImpactWarning  string `json:"priceImpactWarning" example:"Low price impact"`

	SlippageBps int `json:"slippageBps" example:"50"`

	// Minimum output (ExactIn) or maximum input (ExactOut) after slippage
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"1952410237505896105068"`

	Routes    []RouteInfo `json:"routes"`
	RoutePath []string    `json:"routePath"`
	HopCount  int         `json:"hopCount" example:"2"`

	// Pools considered while searching
	PoolCount int `json:"poolCount" example:"7"`

	Alternatives []AlternativeRoute `json:"alternatives,omitempty"`
}

func parseAmount(raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

func routePath(r *domain.Route) []string {
	path := r.Path()
	out := make([]string, len(path))
	for i, t := range path {
		out[i] = t.Address.Hex()
	}
	return out
}

func buildQuoteResponse(q *aggregator.Quote) QuoteResponse {
	best := q.Best()
	route := best.Route()
	amounts := best.Amounts()
	path := route.Path()

	routes := make([]RouteInfo, 0, route.Hops())
	for i, pool := range route.Pools() {
		routes = append(routes, RouteInfo{
			PoolAddress: pool.Address().Hex(),
			InputToken:  path[i].Address.Hex(),
			OutputToken: path[i+1].Address.Hex(),
			AmpBps:      pool.AmpBps(),
			FeeUnits:    pool.FeeUnits().String(),
			AmountIn:    amounts[i].String(),
			AmountOut:   amounts[i+1].String(),
		})
	}

	threshold := q.Bounds.MinimumOutput
	if best.TradeType() == domain.ExactOutput {
		threshold = q.Bounds.MaximumInput
	}

	var alternatives []AlternativeRoute
	for _, t := range q.Trades[1:] {
		alternatives = append(alternatives, AlternativeRoute{
			RoutePath: routePath(t.Route()),
			AmountIn:  t.InputAmount().String(),
			AmountOut: t.OutputAmount().String(),
		})
	}

	return QuoteResponse{
		ChainID:              q.ChainID,
		TokenIn:              tokenInfo(q.TokenIn),
		TokenOut:             tokenInfo(q.TokenOut),
		SwapMode:             swapModeName(best.TradeType()),
		AmountIn:             best.InputAmount().String(),
		AmountOut:            best.OutputAmount().String(),
		ExecutionPrice:       best.DisplayExecutionPrice(displayPrecision).String(),
		PriceImpactPercent:   best.PriceImpact().StringFixed(2),
		PriceImpactBps:       q.ImpactBps,
		PriceImpactSeverity:  string(q.Severity),
		PriceImpactWarning:   q.Warning,
		SlippageBps:          q.Bounds.ToleranceBps,
		OtherAmountThreshold: threshold.String(),
		Routes:               routes,
		RoutePath:            routePath(route),
		HopCount:             route.Hops(),
		PoolCount:            q.PoolCount,
		Alternatives:         alternatives,
	}
}

func swapModeName(t domain.TradeType) string {
	if t == domain.ExactOutput {
		return "ExactOut"
	}
	return "ExactIn"
}

// @Summary Get swap quote
// @Description Find the best route across Kyber DMM pools for a token pair. Candidate pools are
// @Description read from chain on every request, so the quote reflects current reserves.
// @Description
// @Description **Swap Modes:**
// @Description - ExactIn: You specify exact input amount, output is estimated
// @Description - ExactOut: You specify exact output desired, input is estimated
// @Tags quote
// @Produce json
// @Param tokenIn query string true "Input token address or native" example("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
// @Param tokenOut query string true "Output token address or native" example("0x6B175474E89094C44Da98b954EedeAC495271d0F")
// @Param amount query string true "Amount in smallest token units" example("1000000000000000000")
// @Param swapMode query string false "Swap mode: ExactIn or ExactOut" Enums(ExactIn, ExactOut) default(ExactIn)
// @Param slippageBps query int false "Slippage tolerance in basis points"
// @Param maxResults query int false "Number of ranked routes to return"
// @Success 200 {object} QuoteResponse "Best trade with slippage bounds"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 422 {object} httputil.Response "No route found between the token pair"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		httputil.HandleBadRequest(c, "invalid amount: must be a positive integer")
		return
	}
	tradeType, err := domain.ParseTradeType(req.SwapMode)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid swapMode: must be ExactIn or ExactOut")
		return
	}
	if req.MaxResults < 0 || req.MaxResults > 10 {
		httputil.HandleBadRequest(c, "invalid maxResults: must be between 1 and 10")
		return
	}

	q, err := h.routing.Quote(c.Request.Context(), aggregator.QuoteRequest{
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		Amount:      amount,
		TradeType:   tradeType,
		SlippageBps: req.SlippageBps,
		MaxResults:  req.MaxResults,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	httputil.HandleSuccess(c, buildQuoteResponse(q))
}
