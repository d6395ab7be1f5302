package router

import (
	"testing"

	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/shopspring/decimal"
)

func TestGetPriceImpactSeverity(t *testing.T) {
	tests := []struct {
		bps  uint16
		want PriceImpactSeverity
	}{
		{0, SeverityNone},
		{99, SeverityNone},
		{100, SeverityLow},
		{299, SeverityLow},
		{300, SeverityModerate},
		{500, SeverityHigh},
		{999, SeverityHigh},
		{1000, SeverityExtreme},
		{65535, SeverityExtreme},
	}
	for _, tt := range tests {
		if got := GetPriceImpactSeverity(tt.bps); got != tt.want {
			t.Errorf("GetPriceImpactSeverity(%d) = %s, want %s", tt.bps, got, tt.want)
		}
	}
	if GetPriceImpactWarning(50) != "" {
		t.Error("no warning expected below 1%")
	}
	if GetPriceImpactWarning(2000) == "" {
		t.Error("extreme impact must warn")
	}
}

func TestImpactBps(t *testing.T) {
	tests := []struct {
		percent string
		want    uint16
	}{
		{"-0.5", 0},
		{"0", 0},
		{"1.966", 196},
		{"12.5", 1250},
		{"1000", 65535},
	}
	for _, tt := range tests {
		if got := ImpactBps(decimal.RequireFromString(tt.percent)); got != tt.want {
			t.Errorf("ImpactBps(%s) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}

func TestPriceImpactIsNegativeWhenWorse(t *testing.T) {
	wethUsdc, usdcDai := wethUsdcDai(t)
	route, err := domain.NewRoute([]*domain.Pool{wethUsdc, usdcDai}, weth, dai)
	if err != nil {
		t.Fatal(err)
	}
	trade, err := NewTrade(route, units(1, 18), domain.ExactInput)
	if err != nil {
		t.Fatal(err)
	}

	signed, err := PriceImpact(route, trade.InputAmount(), trade.OutputAmount())
	if err != nil {
		t.Fatal(err)
	}
	if signed.Sign() >= 0 {
		t.Fatalf("signed impact %s should be negative", signed)
	}
	if !signed.Neg().Equal(trade.PriceImpact()) {
		t.Fatalf("trade impact %s does not mirror signed impact %s", trade.PriceImpact(), signed)
	}

	// exactly at mid price: 1 WETH for 2000 DAI
	mid, err := PriceImpact(route, units(1, 18), units(2_000, 18))
	if err != nil {
		t.Fatal(err)
	}
	if !mid.IsZero() {
		t.Fatalf("impact at mid price = %s", mid)
	}
}
