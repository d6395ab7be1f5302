package aggregatorapi

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
)

const routeBody = `{
	"inputAmount": "1000000000000000000",
	"outputAmount": "1974316068",
	"inputUsd": 1980.5,
	"outputUsd": "1974.31",
	"priceImpact": "-0.31",
	"gasEstimate": 180000,
	"route": [
		{"pool": "0xpool1", "exchange": "kyberswap", "tokenIn": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "tokenOut": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "portion": "60"},
		{"pool": "0xpool2", "exchange": "uniswap", "tokenIn": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "tokenOut": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "portion": "40"}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, config.DefaultChains(), srv.Client(), opts)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func ethRequest(t *testing.T) domain.RouteRequest {
	chain := config.DefaultChains()[config.ChainIDEthereum]
	usdc, ok := chain.KnownToken(common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"))
	require.True(t, ok)
	return domain.RouteRequest{
		ChainID:     config.ChainIDEthereum,
		TokenIn:     chain.Native,
		TokenOut:    usdc,
		Amount:      big.NewInt(1_000_000_000_000_000_000),
		TradeType:   domain.ExactInput,
		SlippageBps: 50,
		Recipient:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
}

func TestFetchRouteQueryAndDecode(t *testing.T) {
	var got url.Values
	var path, clientID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		path = r.URL.Path
		clientID = r.Header.Get(clientIDHeader)
		_, _ = w.Write([]byte(routeBody))
	}, Options{ExcludedSources: []string{"a", "b"}, Deadline: time.Minute, ClientID: "dmm-router", FeeReceiver: "0xfee", FeeBps: 10, ChargeFeeBy: "currency_out"})

	route, err := c.FetchRoute(context.Background(), ethRequest(t))
	require.NoError(t, err)

	require.Equal(t, "/ethereum/route", path)
	require.Equal(t, "dmm-router", clientID)
	require.Equal(t, domain.NativeSentinel.Hex(), got.Get("sellToken"))
	require.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", got.Get("buyToken"))
	require.Equal(t, "1000000000000000000", got.Get("sellAmount"))
	require.Empty(t, got.Get("buyAmount"))
	require.Equal(t, "a,b", got.Get("excludedSources"))
	require.Empty(t, got.Get("includedSources"))
	require.Equal(t, "50", got.Get("slippageBps"))
	require.Equal(t, "1700000060", got.Get("deadline"))
	require.Equal(t, "false", got.Get("saveGas"))
	require.Equal(t, "10", got.Get("feeBps"))
	require.Equal(t, ethRequest(t).Recipient.Hex(), got.Get("recipient"))

	require.Equal(t, "1974316068", route.OutputAmount.String())
	require.True(t, route.InputUSD.Valid)
	require.Equal(t, "1980.5", route.InputUSD.Decimal.String())
	require.Equal(t, "1974.31", route.OutputUSD.Decimal.String())
	require.Equal(t, "-0.31", route.PriceImpact.String())
	require.Equal(t, uint64(180000), route.GasEstimate)
	require.Len(t, route.Legs, 2)
	require.Equal(t, "uniswap", route.Legs[1].Source)
	require.Equal(t, "40", route.Legs[1].Portion.String())
	require.Equal(t, domain.NativeSentinel, route.TokenIn)
}

func TestFetchRouteComparisonScope(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"inputAmount":"5","outputAmount":"1000","priceImpact":"0","gasEstimate":1,"route":[]}`))
	}, Options{ExcludedSources: []string{"a"}})

	req := ethRequest(t)
	req.Source = "uniswap"
	req.TradeType = domain.ExactOutput
	route, err := c.FetchRoute(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "uniswap", got.Get("includedSources"))
	require.Empty(t, got.Get("excludedSources"))
	require.Equal(t, "1000000000000000000", got.Get("buyAmount"))
	require.Equal(t, "uniswap", route.Source)
	require.False(t, route.InputUSD.Valid)
}

func TestFetchRouteErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    ErrorKind
		status  int
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "route not found", http.StatusNotFound)
		}, KindStatus, http.StatusNotFound},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, KindDecode, 0},
		{"bad amount", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"inputAmount":"x","outputAmount":"1"}`))
		}, KindDecode, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler, Options{})
			_, err := c.FetchRoute(context.Background(), ethRequest(t))
			var fe *RouteFetchError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, tc.kind, fe.Kind)
			require.Equal(t, tc.status, fe.Status)
		})
	}
}

func TestFetchRouteCanceled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchRoute(ctx, ethRequest(t))
	require.ErrorIs(t, err, context.Canceled)
	var fe *RouteFetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, KindCanceled, fe.Kind)
}

func TestFetchRouteUnsupportedChain(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}, Options{})
	req := ethRequest(t)
	req.ChainID = 999
	_, err := c.FetchRoute(context.Background(), req)
	require.Error(t, err)
}
