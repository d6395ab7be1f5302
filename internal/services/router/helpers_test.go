package router

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hxuan190/dmm-router/internal/domain"
)

var (
	weth = domain.NewERC20(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH")
	usdc = domain.NewERC20(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC")
	dai  = domain.NewERC20(1, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18, "DAI")
	wbtc = domain.NewERC20(1, common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), 8, "WBTC")
	knc  = domain.NewERC20(1, common.HexToAddress("0xdeFA4e8a7bcBA345F687a2f1456F5Edd9CE97202"), 18, "KNC")
)

// fee30bps is 0.3% in fee precision units.
var fee30bps = new(big.Int).Div(new(big.Int).Mul(domain.FeePrecision, big.NewInt(3)), big.NewInt(1000))

func units(whole int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(whole), scale)
}

func mustPool(t testing.TB, addr string, a, b domain.Token, ra, rb *big.Int, fee *big.Int) *domain.Pool {
	t.Helper()
	p, err := domain.NewPool(domain.PoolParams{
		Address:  common.HexToAddress(addr),
		TokenA:   a,
		TokenB:   b,
		ReserveA: ra,
		ReserveB: rb,
		FeeUnits: fee,
		AmpBps:   domain.AmpBpsUnamplified,
	})
	if err != nil {
		t.Fatalf("NewPool(%s): %v", addr, err)
	}
	return p
}

func mustAmpPool(t testing.TB, addr string, a, b domain.Token, ra, rb, va, vb *big.Int, fee *big.Int, amp uint32) *domain.Pool {
	t.Helper()
	p, err := domain.NewPool(domain.PoolParams{
		Address:   common.HexToAddress(addr),
		TokenA:    a,
		TokenB:    b,
		ReserveA:  ra,
		ReserveB:  rb,
		VReserveA: va,
		VReserveB: vb,
		FeeUnits:  fee,
		AmpBps:    amp,
	})
	if err != nil {
		t.Fatalf("NewPool(%s): %v", addr, err)
	}
	return p
}

// wethUsdcDai is the two pool market WETH/USDC + USDC/DAI.
func wethUsdcDai(t testing.TB) (*domain.Pool, *domain.Pool) {
	wethUsdc := mustPool(t, "0x1001", weth, usdc, units(100, 18), units(200_000, 6), fee30bps)
	usdcDai := mustPool(t, "0x1002", usdc, dai, units(500_000, 6), units(500_000, 18), fee30bps)
	return wethUsdc, usdcDai
}
