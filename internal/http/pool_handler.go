package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
)

type PoolHandler struct {
	routing RoutingService
}

func NewPoolHandler(routing RoutingService) *PoolHandler {
	return &PoolHandler{routing: routing}
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listPools)
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

// PoolInfo is a fresh snapshot of one DMM pool
type PoolInfo struct {
	Address string    `json:"address" example:"0x306121f1344ac5F84760998484c0176d7BFB7134"`
	Token0  TokenInfo `json:"token0"`
	Token1  TokenInfo `json:"token1"`

	Reserve0  string `json:"reserve0" example:"1250000000000000000000"`
	Reserve1  string `json:"reserve1" example:"2500000000000"`
	VReserve0 string `json:"vReserve0" example:"2500000000000000000000"`
	VReserve1 string `json:"vReserve1" example:"5000000000000"`

	// Fee in 1e18 precision
	FeeUnits string `json:"feeUnits" example:"3000000000000000"`
	AmpBps   uint32 `json:"ampBps" example:"20000"`
}

// PoolListResponse lists the candidate pools for a pair
type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`
	Total int        `json:"total" example:"7"`
}

func poolInfo(p *domain.Pool) PoolInfo {
	return PoolInfo{
		Address:   p.Address().Hex(),
		Token0:    tokenInfo(p.Token0()),
		Token1:    tokenInfo(p.Token1()),
		Reserve0:  p.Reserve0().String(),
		Reserve1:  p.Reserve1().String(),
		VReserve0: p.VReserve0().String(),
		VReserve1: p.VReserve1().String(),
		FeeUnits:  p.FeeUnits().String(),
		AmpBps:    p.AmpBps(),
	}
}

// @Summary List candidate pools
// @Description Resolve every DMM pool connecting the pair through the chain's base tokens.
// @Tags pools
// @Produce json
// @Param tokenA query string true "First token address or native"
// @Param tokenB query string true "Second token address or native"
// @Success 200 {object} PoolListResponse
// @Failure 400 {object} httputil.Response "Invalid token"
// @Router /api/v1/pools [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	tokenA, tokenB := c.Query("tokenA"), c.Query("tokenB")
	if tokenA == "" || tokenB == "" {
		httputil.HandleBadRequest(c, "tokenA and tokenB are required")
		return
	}

	pools, err := h.routing.Pools(c.Request.Context(), tokenA, tokenB)
	if err != nil {
		handleError(c, err)
		return
	}

	infos := make([]PoolInfo, 0, len(pools))
	for _, p := range pools {
		infos = append(infos, poolInfo(p))
	}
	httputil.HandleSuccess(c, PoolListResponse{
		Pools: infos,
		Total: len(infos),
	})
}
