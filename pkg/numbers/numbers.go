// Package numbers holds the fixed-point arithmetic shared by the stake and
// vesting ledgers. Rates are expressed in 1e18 fixed point (ONE == 100%).
// All formulas multiply at full precision before dividing so truncation only
// happens once, at the very end.
package numbers

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// SecondsPerYear is fixed at 365 days; leap seconds and leap days are
// deliberately ignored by the accrual formula.
const SecondsPerYear uint64 = 365 * 24 * 3600

const rateDecimals = 18

// ONE is the fixed-point denominator (10^18).
var ONE = new(big.Int).Exp(big.NewInt(10), big.NewInt(rateDecimals), nil)

// AccruedReward computes principal * ratePerYear * elapsed / (ONE * secondsPerYear).
// ratePerYear is 1e18 fixed point. Returns zero for empty principal, zero
// rate or zero elapsed time. The result is always a fresh big.Int.
func AccruedReward(principal *big.Int, ratePerYear *big.Int, elapsedSeconds uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 ||
		ratePerYear == nil || ratePerYear.Sign() <= 0 ||
		elapsedSeconds == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(principal, ratePerYear)
	num.Mul(num, new(big.Int).SetUint64(elapsedSeconds))
	den := new(big.Int).Mul(ONE, new(big.Int).SetUint64(SecondsPerYear))
	return num.Div(num, den)
}

// VestedAmount evaluates the cliff+linear release curve at `now`.
// The cliff only gates whether release has begun; once past it, the vested
// amount is linear in the time elapsed since startTime, so the curve catches
// up instantly at the cliff boundary.
func VestedAmount(total *big.Int, startTime, cliffDuration, vestingDuration, now uint64) *big.Int {
	if total == nil || total.Sign() <= 0 || vestingDuration == 0 {
		return big.NewInt(0)
	}
	if now < startTime || now < SaturatingAdd(startTime, cliffDuration) {
		return big.NewInt(0)
	}
	if now >= SaturatingAdd(startTime, vestingDuration) {
		return new(big.Int).Set(total)
	}
	elapsed := new(big.Int).SetUint64(now - startTime)
	vested := new(big.Int).Mul(total, elapsed)
	return vested.Div(vested, new(big.Int).SetUint64(vestingDuration))
}

// SaturatingAdd clamps a+b at the uint64 maximum instead of wrapping. Time
// boundaries computed from untrusted durations must never land in the past.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// RateFromString parses a human-readable annual rate ("0.10" == 10%) into
// 1e18 fixed point.
func RateFromString(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid rate '%s': %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("rate '%s' must not be negative", s)
	}
	return d.Shift(rateDecimals).BigInt(), nil
}

// RateToString renders a 1e18 fixed-point rate back to its decimal form.
func RateToString(rate *big.Int) string {
	if rate == nil {
		return "0"
	}
	return decimal.NewFromBigInt(rate, -rateDecimals).String()
}

// AmountFromString parses a non-negative base-10 integer token amount.
func AmountFromString(s string) (*big.Int, error) {
	a, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount '%s'", s)
	}
	if a.Sign() < 0 {
		return nil, fmt.Errorf("amount '%s' must not be negative", s)
	}
	return a, nil
}

// AmountToString renders an amount; nil is rendered as "0".
func AmountToString(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return a.String()
}

// AmountToFloat converts an amount to float64 for metrics gauges. Precision
// loss is acceptable there.
func AmountToFloat(a *big.Int) float64 {
	if a == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(a).Float64()
	return f
}
