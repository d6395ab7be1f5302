package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRouteRequestSameInput(t *testing.T) {
	base := RouteRequest{
		ChainID:     1,
		TokenIn:     tokA,
		TokenOut:    tokB,
		Amount:      big.NewInt(100),
		TradeType:   ExactInput,
		SlippageBps: 50,
		GasPrice:    big.NewInt(20),
	}
	tests := []struct {
		name   string
		modify func(r *RouteRequest)
		same   bool
	}{
		{"identical", func(r *RouteRequest) {}, true},
		{"equal amount, new pointer", func(r *RouteRequest) { r.Amount = big.NewInt(100) }, true},
		{"source ignored", func(r *RouteRequest) { r.Source = "uniswap" }, true},
		{"amount", func(r *RouteRequest) { r.Amount = big.NewInt(101) }, false},
		{"slippage", func(r *RouteRequest) { r.SlippageBps = 30 }, false},
		{"token out", func(r *RouteRequest) { r.TokenOut = tokC }, false},
		{"recipient", func(r *RouteRequest) { r.Recipient = common.HexToAddress("0x01") }, false},
		{"gas price", func(r *RouteRequest) { r.GasPrice = big.NewInt(21) }, false},
		{"gas price dropped", func(r *RouteRequest) { r.GasPrice = nil }, false},
		{"nil amount", func(r *RouteRequest) { r.Amount = nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.modify(&other)
			if got := base.SameInput(other); got != tt.same {
				t.Fatalf("SameInput = %v, want %v", got, tt.same)
			}
			if got := other.SameInput(base); got != tt.same {
				t.Fatalf("reverse SameInput = %v, want %v", got, tt.same)
			}
		})
	}
}
