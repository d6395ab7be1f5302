package domain

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeSentinel is the placeholder address routing APIs use for the
// native currency.
var NativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

type TokenKind uint8

const (
	TokenKindERC20 TokenKind = iota
	TokenKindNative
)

func (k TokenKind) String() string {
	switch k {
	case TokenKindNative:
		return "native"
	case TokenKindERC20:
		return "erc20"
	default:
		return "unknown"
	}
}

// Token is either the chain's native currency or an ERC20 contract. Native
// tokens never carry an address and never appear inside a pool; they are
// wrapped before routing.
type Token struct {
	ChainID  uint64
	Kind     TokenKind
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// TokenKey is the comparable identity of a token.
type TokenKey struct {
	ChainID uint64
	Native  bool
	Address common.Address
}

func NewERC20(chainID uint64, address common.Address, decimals uint8, symbol string) Token {
	return Token{
		ChainID:  chainID,
		Kind:     TokenKindERC20,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
	}
}

func NewNative(chainID uint64, decimals uint8, symbol string) Token {
	return Token{
		ChainID:  chainID,
		Kind:     TokenKindNative,
		Decimals: decimals,
		Symbol:   symbol,
	}
}

// APIAddress is the address routing APIs expect for t.
func (t Token) APIAddress() common.Address {
	if t.IsNative() {
		return NativeSentinel
	}
	return t.Address
}

func (t Token) IsNative() bool {
	return t.Kind == TokenKindNative
}

func (t Token) Key() TokenKey {
	if t.IsNative() {
		return TokenKey{ChainID: t.ChainID, Native: true}
	}
	return TokenKey{ChainID: t.ChainID, Address: t.Address}
}

// Equal compares identity only; decimals and symbol are metadata.
func (t Token) Equal(other Token) bool {
	return t.Key() == other.Key()
}

// SortsBefore defines the canonical token order used for pool token0/token1:
// native first, then ERC20 by address bytes.
func (t Token) SortsBefore(other Token) bool {
	if t.IsNative() != other.IsNative() {
		return t.IsNative()
	}
	return bytes.Compare(t.Address.Bytes(), other.Address.Bytes()) < 0
}

func (t Token) String() string {
	if t.IsNative() {
		return fmt.Sprintf("%s(native:%d)", t.Symbol, t.ChainID)
	}
	if t.Symbol == "" {
		return t.Address.Hex()
	}
	return fmt.Sprintf("%s(%s)", t.Symbol, t.Address.Hex())
}
