package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decs(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestSimpleMovingAverage(t *testing.T) {
	avg, ok := SimpleMovingAverage(decs(1, 2, 3, 4, 5), 3)
	require.True(t, ok)
	assert.Equal(t, "4", avg.String())

	_, ok = SimpleMovingAverage(decs(1, 2), 3)
	assert.False(t, ok)
}

func TestLinearWeightedAverage(t *testing.T) {
	// (1·1 + 2·2 + 3·3) / 6
	avg, ok := LinearWeightedAverage(decs(100, 1, 2, 3), 3)
	require.True(t, ok)
	assert.Equal(t, "2.333333333", avg.String())

	avg, ok = LinearWeightedAverage(decs(7, 7, 7), 3)
	require.True(t, ok)
	assert.Equal(t, "7", avg.String())
}

func TestExponentialStep(t *testing.T) {
	assert.Equal(t, "15", ExponentialStep(decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.RequireFromString("0.5")).String())
	assert.Equal(t, "11", ExponentialStep(decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.RequireFromString("0.1")).String())
	assert.Equal(t, "20", ExponentialStep(decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.NewFromInt(1)).String())
}

func TestDetectCrossover_SingleConfirmationAtFlip(t *testing.T) {
	const n = 10
	for k := 1; k < n; k++ {
		fast := make([]decimal.Decimal, n)
		slow := make([]decimal.Decimal, n)
		for i := range fast {
			slow[i] = decimal.NewFromInt(100)
			if i < k {
				fast[i] = decimal.NewFromInt(90)
			} else {
				fast[i] = decimal.NewFromInt(110)
			}
		}
		for order := 1; order <= k; order++ {
			for i := 0; i < n; i++ {
				got := DetectCrossover(fast, slow, i, order)
				if i == k {
					assert.Equal(t, CrossFromBelow, got, "k=%d order=%d index=%d", k, order, i)
				} else {
					assert.Equal(t, CrossNone, got, "k=%d order=%d index=%d", k, order, i)
				}
			}
		}
	}
}

func TestDetectCrossover_FromAbove(t *testing.T) {
	fast := decs(5, 5, 5, 1)
	slow := decs(3, 3, 3, 3)
	assert.Equal(t, CrossFromAbove, DetectCrossover(fast, slow, 3, 3))
	assert.Equal(t, "ABOVE", DetectCrossover(fast, slow, 3, 3).String())
}

func TestDetectCrossover_NeedsConsistentHistory(t *testing.T) {
	// abajo, encima, abajo, encima: un solo punto previo opuesto no basta con order 2
	fast := decs(1, 5, 1, 5)
	slow := decs(3, 3, 3, 3)
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 3, 2))
	assert.Equal(t, CrossFromBelow, DetectCrossover(fast, slow, 3, 1))
}

func TestDetectCrossover_EqualPointsBreakConfirmation(t *testing.T) {
	fast := decs(1, 3, 5)
	slow := decs(3, 3, 3)
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 2, 2))
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 1, 1), "equal is no side")
}

func TestDetectCrossover_OutOfRange(t *testing.T) {
	fast := decs(1, 5)
	slow := decs(3, 3)
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 5, 1))
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 1, 0))
	assert.Equal(t, CrossNone, DetectCrossover(fast, slow, 0, 1))
}
