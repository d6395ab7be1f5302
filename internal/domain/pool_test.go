package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokA = NewERC20(1, common.HexToAddress("0x00000000000000000000000000000000000000aa"), 18, "A")
	tokB = NewERC20(1, common.HexToAddress("0x00000000000000000000000000000000000000bb"), 6, "B")
	tokC = NewERC20(1, common.HexToAddress("0x00000000000000000000000000000000000000cc"), 18, "C")
)

func TestTokenOrderingAndEquality(t *testing.T) {
	if !tokA.SortsBefore(tokB) || tokB.SortsBefore(tokA) {
		t.Fatal("expected A < B by address")
	}
	native := NewNative(1, 18, "ETH")
	if !native.SortsBefore(tokA) {
		t.Fatal("native must sort first")
	}
	renamed := NewERC20(1, tokA.Address, 9, "other")
	if !renamed.Equal(tokA) {
		t.Fatal("metadata must not affect identity")
	}
	otherChain := NewERC20(10, tokA.Address, 18, "A")
	if otherChain.Equal(tokA) {
		t.Fatal("chain id is part of identity")
	}
}

func TestNewPoolSortsTokens(t *testing.T) {
	p, err := NewPool(PoolParams{
		Address:  common.HexToAddress("0x01"),
		TokenA:   tokB,
		TokenB:   tokA,
		ReserveA: big.NewInt(200),
		ReserveB: big.NewInt(100),
		AmpBps:   AmpBpsUnamplified,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if !p.Token0().Equal(tokA) || p.Reserve0().Int64() != 100 || p.Reserve1().Int64() != 200 {
		t.Fatalf("tokens not sorted: %s", p)
	}
	if p.VReserve0().Cmp(p.Reserve0()) != 0 {
		t.Fatal("unamplified pool must mirror reserves")
	}

	r, ok := p.ReserveOf(tokB)
	if !ok || r.Reserve.Int64() != 200 {
		t.Fatalf("ReserveOf(B) = %v %v", r, ok)
	}
	r.Reserve.SetInt64(0)
	if p.Reserve1().Int64() != 200 {
		t.Fatal("ReserveOf must return copies")
	}
}

func TestNewPoolValidation(t *testing.T) {
	tests := []struct {
		name   string
		params PoolParams
	}{
		{"same token", PoolParams{TokenA: tokA, TokenB: tokA, ReserveA: big.NewInt(1), ReserveB: big.NewInt(1), AmpBps: 10000}},
		{"native", PoolParams{TokenA: NewNative(1, 18, "ETH"), TokenB: tokA, ReserveA: big.NewInt(1), ReserveB: big.NewInt(1), AmpBps: 10000}},
		{"amp below one", PoolParams{TokenA: tokA, TokenB: tokB, ReserveA: big.NewInt(1), ReserveB: big.NewInt(1), AmpBps: 9000}},
		{"unamplified mismatch", PoolParams{TokenA: tokA, TokenB: tokB, ReserveA: big.NewInt(1), ReserveB: big.NewInt(1), VReserveA: big.NewInt(2), VReserveB: big.NewInt(1), AmpBps: 10000}},
		{"virtual below actual", PoolParams{TokenA: tokA, TokenB: tokB, ReserveA: big.NewInt(5), ReserveB: big.NewInt(5), VReserveA: big.NewInt(4), VReserveB: big.NewInt(10), AmpBps: 20000}},
		{"fee too high", PoolParams{TokenA: tokA, TokenB: tokB, ReserveA: big.NewInt(1), ReserveB: big.NewInt(1), FeeUnits: FeePrecision, AmpBps: 10000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPool(tt.params); !errors.Is(err, ErrInvalidPool) {
				t.Fatalf("expected ErrInvalidPool, got %v", err)
			}
		})
	}
}

func TestNewRoute(t *testing.T) {
	ab, _ := NewPool(PoolParams{Address: common.HexToAddress("0x01"), TokenA: tokA, TokenB: tokB, ReserveA: big.NewInt(10), ReserveB: big.NewInt(10), AmpBps: 10000})
	bc, _ := NewPool(PoolParams{Address: common.HexToAddress("0x02"), TokenA: tokB, TokenB: tokC, ReserveA: big.NewInt(10), ReserveB: big.NewInt(10), AmpBps: 10000})

	r, err := NewRoute([]*Pool{ab, bc}, tokA, tokC)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if r.Hops() != 2 || !r.Path()[1].Equal(tokB) {
		t.Fatalf("unexpected path %s", r)
	}

	if _, err := NewRoute([]*Pool{bc}, tokA, tokC); !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("disconnected route accepted: %v", err)
	}
	if _, err := NewRoute([]*Pool{ab, ab}, tokA, tokA); !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("repeated pool accepted: %v", err)
	}
	if _, err := NewRoute([]*Pool{ab}, tokA, tokC); !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("wrong output accepted: %v", err)
	}
}

func TestSavings(t *testing.T) {
	best := &AggregatedRoute{TradeType: ExactInput, InputAmount: big.NewInt(100), OutputAmount: big.NewInt(120)}
	cmp := &AggregatedRoute{TradeType: ExactInput, InputAmount: big.NewInt(100), OutputAmount: big.NewInt(110)}
	if got := best.Savings(cmp); got.Int64() != 10 {
		t.Fatalf("exact-in savings = %s", got)
	}

	best = &AggregatedRoute{TradeType: ExactOutput, InputAmount: big.NewInt(90), OutputAmount: big.NewInt(50)}
	cmp = &AggregatedRoute{TradeType: ExactOutput, InputAmount: big.NewInt(95), OutputAmount: big.NewInt(50)}
	if got := best.Savings(cmp); got.Int64() != 5 {
		t.Fatalf("exact-out savings = %s", got)
	}
	if best.Savings(nil) != nil {
		t.Fatal("nil comparison must yield nil")
	}
}
