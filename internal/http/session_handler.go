package http

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
	"github.com/hxuan190/dmm-router/internal/services/coordinator"
	"github.com/hxuan190/dmm-router/internal/services/slippage"
)

const maxSessionWait = 10 * time.Second

type SessionHandler struct {
	routing RoutingService
}

func NewSessionHandler(routing RoutingService) *SessionHandler {
	return &SessionHandler{routing: routing}
}

func (h *SessionHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.PUT("/:id/input", h.setInput)
	pub.GET("/:id", h.getSession)
}

func (h *SessionHandler) Root() string {
	return "/sessions"
}

// SessionInputRequest is one edit of the swap form
type SessionInputRequest struct {
	TokenIn  string `json:"tokenIn" binding:"required" example:"native"`
	TokenOut string `json:"tokenOut" binding:"required" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`
	Amount   string `json:"amount" binding:"required" example:"1000000000000000000"`
	SwapMode string `json:"swapMode" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Defaults to the chain policy
	SlippageBps *int `json:"slippageBps,omitempty" example:"50"`

	Recipient string `json:"recipient,omitempty" example:"0x0000000000000000000000000000000000000001"`
	GasPrice  string `json:"gasPrice,omitempty" example:"30000000000"`
}

type LegView struct {
	Pool     string `json:"pool"`
	Source   string `json:"source" example:"kyberswap-elastic"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Portion  string `json:"portion" example:"100"`
}

// RouteView is a route as returned by the aggregation service
type RouteView struct {
	Source       string    `json:"source,omitempty" example:"uniswap"`
	AmountIn     string    `json:"amountIn"`
	AmountOut    string    `json:"amountOut"`
	AmountInUSD  string    `json:"amountInUsd,omitempty"`
	AmountOutUSD string    `json:"amountOutUsd,omitempty"`
	PriceImpact  string    `json:"priceImpact"`
	GasEstimate  uint64    `json:"gasEstimate"`
	Legs         []LegView `json:"legs"`
}

type SessionResultView struct {
	Generation uint64     `json:"generation"`
	Route      *RouteView `json:"route,omitempty"`
	Comparison *RouteView `json:"comparison,omitempty"`

	// Extra output (ExactIn) or saved input (ExactOut) against the comparison route
	Savings string `json:"savings,omitempty"`

	// Minimum output (ExactIn) or maximum input (ExactOut) of the route after slippage
	OtherAmountThreshold string `json:"otherAmountThreshold,omitempty"`

	Error           string    `json:"error,omitempty"`
	ComparisonError string    `json:"comparisonError,omitempty"`
	PublishedAt     time.Time `json:"publishedAt"`
}

type SessionInputView struct {
	TokenIn     TokenInfo `json:"tokenIn"`
	TokenOut    TokenInfo `json:"tokenOut"`
	Amount      string    `json:"amount"`
	SwapMode    string    `json:"swapMode"`
	SlippageBps int       `json:"slippageBps"`
}

type SessionResponse struct {
	ID         string             `json:"id"`
	State      string             `json:"state" enums:"IDLE,DEBOUNCING,FETCHING,READY,FAILED"`
	Generation uint64             `json:"generation"`
	Scheduled  *bool              `json:"scheduled,omitempty"`
	Input      *SessionInputView  `json:"input,omitempty"`
	Result     *SessionResultView `json:"result,omitempty"`
	LastSeen   time.Time          `json:"lastSeen"`
}

func routeView(r *domain.AggregatedRoute) *RouteView {
	if r == nil {
		return nil
	}
	legs := make([]LegView, 0, len(r.Legs))
	for _, l := range r.Legs {
		legs = append(legs, LegView{
			Pool:     l.Pool,
			Source:   l.Source,
			TokenIn:  l.TokenIn.Hex(),
			TokenOut: l.TokenOut.Hex(),
			Portion:  l.Portion.String(),
		})
	}
	v := &RouteView{
		Source:      r.Source,
		AmountIn:    r.InputAmount.String(),
		AmountOut:   r.OutputAmount.String(),
		PriceImpact: r.PriceImpact.String(),
		GasEstimate: r.GasEstimate,
		Legs:        legs,
	}
	if r.InputUSD.Valid {
		v.AmountInUSD = r.InputUSD.Decimal.String()
	}
	if r.OutputUSD.Valid {
		v.AmountOutUSD = r.OutputUSD.Decimal.String()
	}
	return v
}

func resultView(res *coordinator.Result) *SessionResultView {
	if res == nil {
		return nil
	}
	v := &SessionResultView{
		Generation:  res.Generation,
		Route:       routeView(res.Route),
		Comparison:  routeView(res.Comparison),
		PublishedAt: res.PublishedAt,
	}
	if s := res.Savings(); s != nil {
		v.Savings = s.String()
	}
	if res.Route != nil {
		if b, err := slippage.ForRoute(res.Route, res.Input.SlippageBps); err == nil {
			v.OtherAmountThreshold = b.MinimumOutput.String()
			if b.TradeType == domain.ExactOutput {
				v.OtherAmountThreshold = b.MaximumInput.String()
			}
		}
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	if res.ComparisonErr != nil {
		v.ComparisonError = res.ComparisonErr.Error()
	}
	return v
}

func sessionResponse(s *coordinator.Session) SessionResponse {
	snap := s.Snapshot()
	resp := SessionResponse{
		ID:         snap.ID,
		State:      snap.State.String(),
		Generation: s.Generation(),
		Result:     resultView(snap.Result),
		LastSeen:   snap.LastSeen,
	}
	if in := snap.Input; in != nil {
		resp.Input = &SessionInputView{
			TokenIn:     tokenInfo(in.TokenIn),
			TokenOut:    tokenInfo(in.TokenOut),
			Amount:      in.Amount.String(),
			SwapMode:    swapModeName(in.TradeType),
			SlippageBps: in.SlippageBps,
		}
	}
	return resp
}

func (r SessionInputRequest) toInput() (aggregator.SessionInput, string) {
	amount, ok := parseAmount(r.Amount)
	if !ok {
		return aggregator.SessionInput{}, "invalid amount: must be a positive integer"
	}
	tradeType, err := domain.ParseTradeType(r.SwapMode)
	if err != nil {
		return aggregator.SessionInput{}, "invalid swapMode: must be ExactIn or ExactOut"
	}
	in := aggregator.SessionInput{
		TokenIn:     r.TokenIn,
		TokenOut:    r.TokenOut,
		Amount:      amount,
		TradeType:   tradeType,
		SlippageBps: r.SlippageBps,
	}
	if r.Recipient != "" {
		if !common.IsHexAddress(r.Recipient) {
			return aggregator.SessionInput{}, "invalid recipient address"
		}
		in.Recipient = common.HexToAddress(r.Recipient)
	}
	if r.GasPrice != "" {
		gp, ok := new(big.Int).SetString(r.GasPrice, 10)
		if !ok || gp.Sign() < 0 {
			return aggregator.SessionInput{}, "invalid gasPrice"
		}
		in.GasPrice = gp
	}
	return in, ""
}

// @Summary Update session input
// @Description Feed the current swap form into a route session. Requests are debounced; a new input
// @Description cancels the fetch of the previous one. Pass waitMs to block until the new input's
// @Description result is published.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Client session id"
// @Param waitMs query int false "Milliseconds to wait for the result (max 10000)"
// @Param input body SessionInputRequest true "Swap input"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} httputil.Response "Invalid input"
// @Router /api/v1/sessions/{id}/input [put]
func (h *SessionHandler) setInput(c *gin.Context) {
	var req SessionInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid body: "+err.Error())
		return
	}
	in, msg := req.toInput()
	if msg != "" {
		httputil.HandleBadRequest(c, msg)
		return
	}
	var wait time.Duration
	if raw := c.Query("waitMs"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			httputil.HandleBadRequest(c, "invalid waitMs")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, maxSessionWait)
	}

	s, scheduled, err := h.routing.SetSessionInput(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		handleError(c, err)
		return
	}

	if wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		_, err := s.Wait(ctx, s.Generation())
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			handleError(c, err)
			return
		}
	}

	resp := sessionResponse(s)
	resp.Scheduled = &scheduled
	httputil.HandleSuccess(c, resp)
}

// @Summary Get session
// @Description Current state and the last published route with its comparison.
// @Tags sessions
// @Produce json
// @Param id path string true "Client session id"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} httputil.Response "Unknown session"
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) getSession(c *gin.Context) {
	s, ok := h.routing.Session(c.Param("id"))
	if !ok {
		httputil.HandleNotFound(c, "session not found")
		return
	}
	httputil.HandleSuccess(c, sessionResponse(s))
}
