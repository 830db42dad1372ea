package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	PriceConfig      = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001
	CollateralConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001 token units
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// QuoInt128 performs numerator / denominator, truncating toward zero.
// Truncation (not floor) matters for negative numerators: -7/2 is -3,
// which is what big.Int.Quo gives and big.Int.Div does not.
func QuoInt128(numerator *big.Int, denominator int64) int64 {
	quotient := getInt128()
	quotient.Quo(numerator, big.NewInt(denominator))

	result := quotient.Int64()
	putInt128(quotient)

	return result
}

// MulQuo computes a * b / d with an int128 intermediate and
// truncation toward zero.
func MulQuo(a, b, d int64) int64 {
	numerator := MultiplyInt128(a, b)
	result := QuoInt128(numerator, d)
	putInt128(numerator)
	return result
}

// ComputePnL calculates signed PnL for a position at the given mark price.
//
//	pnl = sideSign * (markPrice - entryPrice) * size / entryPrice
//
// The multiply widens to int128 before the divide, and the divide
// truncates toward zero. Price and size share the same fixed-point
// scale on both axes, so the scales cancel and the result is in
// collateral token units.
func ComputePnL(
	sideSign int64, // +1 for long, -1 for short
	entryPrice int64,
	markPrice int64,
	size int64,
) int64 {
	priceDiff := markPrice - entryPrice
	return MulQuo(sideSign*priceDiff, size, entryPrice)
}

// ComputeNotional calculates position notional value in collateral units.
func ComputeNotional(size, markPrice int64) int64 {
	return MulQuo(size, markPrice, PriceConfig.Scale)
}
