package numbers

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), ONE)
}

func rate(s string) *big.Int {
	r, err := RateFromString(s)
	if err != nil {
		panic(err)
	}
	return r
}

func Test_AccruedReward(t *testing.T) {
	t.Run("full year at 10% yields 10%", func(t *testing.T) {
		reward := AccruedReward(tokens(1000), rate("0.10"), SecondsPerYear)
		assert.Equal(t, tokens(100), reward)
	})

	t.Run("half year at 10% yields 5%", func(t *testing.T) {
		reward := AccruedReward(tokens(1000), rate("0.10"), SecondsPerYear/2)
		assert.Equal(t, tokens(50), reward)
	})

	t.Run("split interval sums to full interval", func(t *testing.T) {
		full := AccruedReward(tokens(1000), rate("0.10"), SecondsPerYear)
		first := AccruedReward(tokens(1000), rate("0.10"), SecondsPerYear/2)
		second := AccruedReward(tokens(1000), rate("0.10"), SecondsPerYear-SecondsPerYear/2)
		assert.Equal(t, full, new(big.Int).Add(first, second))
	})

	t.Run("truncates toward zero", func(t *testing.T) {
		// 1 wei principal accrues nothing over one second. Compared via Cmp
		// because reflect.DeepEqual distinguishes big.Int zero representations.
		reward := AccruedReward(big.NewInt(1), rate("0.10"), 1)
		assert.Zero(t, big.NewInt(0).Cmp(reward))
	})

	t.Run("zero inputs yield zero", func(t *testing.T) {
		assert.Equal(t, big.NewInt(0), AccruedReward(nil, rate("0.10"), 100))
		assert.Equal(t, big.NewInt(0), AccruedReward(big.NewInt(0), rate("0.10"), 100))
		assert.Equal(t, big.NewInt(0), AccruedReward(tokens(1000), big.NewInt(0), 100))
		assert.Equal(t, big.NewInt(0), AccruedReward(tokens(1000), rate("0.10"), 0))
	})

	t.Run("result does not alias inputs", func(t *testing.T) {
		principal := tokens(1000)
		reward := AccruedReward(principal, rate("0.10"), SecondsPerYear)
		reward.Add(reward, big.NewInt(1))
		assert.Equal(t, tokens(1000), principal)
	})
}

func Test_VestedAmount(t *testing.T) {
	var (
		total = tokens(10000)
		start = uint64(1_000_000)
		cliff = uint64(30 * 24 * 3600)
		dur   = uint64(365 * 24 * 3600)
	)

	t.Run("zero before start", func(t *testing.T) {
		assert.Equal(t, big.NewInt(0), VestedAmount(total, start, cliff, dur, start-1))
	})

	t.Run("zero before cliff", func(t *testing.T) {
		assert.Equal(t, big.NewInt(0), VestedAmount(total, start, cliff, dur, start+cliff-1))
	})

	t.Run("catches up at the cliff boundary", func(t *testing.T) {
		vested := VestedAmount(total, start, cliff, dur, start+cliff)
		expected := new(big.Int).Mul(total, new(big.Int).SetUint64(cliff))
		expected.Div(expected, new(big.Int).SetUint64(dur))
		assert.Equal(t, expected, vested)
		assert.Equal(t, 1, vested.Sign())
	})

	t.Run("linear after the cliff", func(t *testing.T) {
		vested := VestedAmount(total, start, cliff, dur, start+dur/2)
		assert.Equal(t, tokens(5000), vested)
	})

	t.Run("full amount at the end", func(t *testing.T) {
		assert.Equal(t, total, VestedAmount(total, start, cliff, dur, start+dur))
	})

	t.Run("saturates past the end", func(t *testing.T) {
		assert.Equal(t, total, VestedAmount(total, start, cliff, dur, start+dur*10))
	})

	t.Run("no cliff vests from the first second", func(t *testing.T) {
		vested := VestedAmount(total, start, 0, dur, start+1)
		assert.Equal(t, 1, vested.Sign())
	})

	t.Run("zero duration yields zero", func(t *testing.T) {
		assert.Equal(t, big.NewInt(0), VestedAmount(total, start, 0, 0, start+1))
	})

	t.Run("boundaries saturate instead of wrapping", func(t *testing.T) {
		// start+cliff overflows uint64; a wrapped boundary would sit in the
		// past and release everything immediately.
		huge := uint64(math.MaxUint64 - 500)
		assert.Equal(t, big.NewInt(0), VestedAmount(total, start, huge, huge, start+1))
		assert.Equal(t, big.NewInt(0), VestedAmount(total, start, huge, huge, math.MaxUint64-1))
	})
}

func Test_SaturatingAdd(t *testing.T) {
	assert.Equal(t, uint64(3), SaturatingAdd(1, 2))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, 0))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64-1, 2))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd(1000, math.MaxUint64-500))
}

func Test_RateConversions(t *testing.T) {
	t.Run("parses decimal rates", func(t *testing.T) {
		r, err := RateFromString("0.10")
		assert.Nil(t, err)
		assert.Equal(t, new(big.Int).Div(ONE, big.NewInt(10)), r)
	})

	t.Run("parses 100%", func(t *testing.T) {
		r, err := RateFromString("1")
		assert.Nil(t, err)
		assert.Equal(t, ONE, r)
	})

	t.Run("rejects negative rates", func(t *testing.T) {
		_, err := RateFromString("-0.1")
		assert.NotNil(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := RateFromString("ten percent")
		assert.NotNil(t, err)
	})

	t.Run("renders back to decimal", func(t *testing.T) {
		r, _ := RateFromString("0.25")
		assert.Equal(t, "0.25", RateToString(r))
		assert.Equal(t, "0", RateToString(nil))
	})
}

func Test_AmountConversions(t *testing.T) {
	t.Run("parses integer amounts", func(t *testing.T) {
		a, err := AmountFromString("1000000000000000000")
		assert.Nil(t, err)
		assert.Equal(t, ONE, a)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := AmountFromString("-5")
		assert.NotNil(t, err)
	})

	t.Run("rejects non-integers", func(t *testing.T) {
		_, err := AmountFromString("1.5")
		assert.NotNil(t, err)
	})

	t.Run("renders nil as zero", func(t *testing.T) {
		assert.Equal(t, "0", AmountToString(nil))
		assert.Equal(t, "42", AmountToString(big.NewInt(42)))
	})
}
