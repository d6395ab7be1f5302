package router

import (
	"math/big"
	"sync"
)

// Pre-computed constants (avoid allocation on every call)
var (
	// ONE for ceiling adjustments
	ONE = big.NewInt(1)

	ratOne     = big.NewRat(1, 1)
	ratHundred = big.NewRat(100, 1)
)

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

// GetBigInt gets a scratch big.Int from the pool
func GetBigInt() *big.Int {
	return bigIntPool.Get().(*big.Int)
}

// PutBigInt returns a big.Int to the pool
func PutBigInt(v *big.Int) {
	v.SetInt64(0)
	bigIntPool.Put(v)
}
