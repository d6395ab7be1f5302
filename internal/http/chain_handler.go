package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
)

type ChainHandler struct {
	routing RoutingService
}

func NewChainHandler(routing RoutingService) *ChainHandler {
	return &ChainHandler{routing: routing}
}

func (h *ChainHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getChain)
	admin.PUT("/:chainId", h.switchChain)
}

func (h *ChainHandler) Root() string {
	return "/chain"
}

// ChainResponse describes the chain routes are computed on
type ChainResponse struct {
	ChainID       uint64      `json:"chainId" example:"1"`
	Name          string      `json:"name" example:"ethereum"`
	Native        TokenInfo   `json:"native"`
	WrappedNative TokenInfo   `json:"wrappedNative"`
	Factory       string      `json:"factory" example:"0x833e4083B7ae46CeA85695c4f7ed25CDAd8886dE"`
	Bases         []TokenInfo `json:"bases"`
}

func chainResponse(chain *config.Chain) ChainResponse {
	bases := make([]TokenInfo, 0, len(chain.Bases))
	for _, t := range chain.Bases {
		bases = append(bases, tokenInfo(t))
	}
	return ChainResponse{
		ChainID:       chain.ChainID,
		Name:          chain.Name,
		Native:        tokenInfo(chain.Native),
		WrappedNative: tokenInfo(chain.WrappedNative),
		Factory:       chain.DMMFactory.Hex(),
		Bases:         bases,
	}
}

// @Summary Active chain
// @Tags chain
// @Produce json
// @Success 200 {object} ChainResponse
// @Router /api/v1/chain [get]
func (h *ChainHandler) getChain(c *gin.Context) {
	httputil.HandleSuccess(c, chainResponse(h.routing.Chain()))
}

// @Summary Switch the active chain
// @Description Drops discovery and token caches and closes every session.
// @Tags chain
// @Produce json
// @Param chainId path int true "Chain id"
// @Param X-Admin-Token header string true "Admin token"
// @Success 200 {object} ChainResponse
// @Failure 400 {object} httputil.Response "No rpc node for chain"
// @Failure 401 {object} httputil.Response "Missing or wrong admin token"
// @Failure 404 {object} httputil.Response "Unknown chain"
// @Router /api/v1/admin/chain/{chainId} [put]
func (h *ChainHandler) switchChain(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid chainId")
		return
	}
	if err := h.routing.SwitchChain(chainID); err != nil {
		handleError(c, err)
		return
	}
	httputil.HandleSuccess(c, chainResponse(h.routing.Chain()))
}
