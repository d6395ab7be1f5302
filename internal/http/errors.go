package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/dmm-router/internal/adapters/aggregatorapi"
	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/common"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
	"github.com/hxuan190/dmm-router/internal/services/coordinator"
	"github.com/hxuan190/dmm-router/internal/services/market"
	"github.com/hxuan190/dmm-router/internal/services/router"
	"github.com/hxuan190/dmm-router/internal/services/slippage"
)

func toHttpError(err error) *common.HttpError {
	var httpErr *common.HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var fetchErr *aggregatorapi.RouteFetchError
	switch {
	case errors.Is(err, aggregator.ErrNoRoute):
		return common.HTTPErrorUnprocessable("")
	case errors.Is(err, aggregator.ErrSameToken),
		errors.Is(err, market.ErrInvalidTokenAddress),
		errors.Is(err, market.ErrChainMismatch),
		errors.Is(err, router.ErrInvalidAmount),
		errors.Is(err, aggregator.ErrChainNotServed),
		errors.Is(err, slippage.ErrInvalidSlippage):
		return common.HTTPErrorBadRequest(err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.HTTPErrorBadGateway("request timed out")
	case errors.Is(err, market.ErrUnknownToken):
		return common.HTTPErrorBadRequest(err.Error())
	case errors.Is(err, aggregator.ErrUnknownChain):
		return common.HTTPErrorNotFound(err.Error())
	case errors.Is(err, coordinator.ErrSessionClosed):
		return common.HTTPErrorNotFound("session closed")
	case errors.As(err, &fetchErr):
		return common.HTTPErrorBadGateway(fetchErr.Error())
	default:
		return common.HTTPErrorInternalError("")
	}
}

func handleError(c *gin.Context, err error) {
	httpErr := toHttpError(err)
	if httpErr.StatusCode >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("[httpService] request failed")
	}
	httputil.HttpError(c, httpErr)
}
