package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimitOrder(t *testing.T) {
	order := NewLimitOrder("tok-1", SideBuy, 0.45, 100, QueueNeutral)

	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, OrderOpen, order.Status)
	assert.Equal(t, 100.0, order.Remaining)
	assert.Equal(t, 0.0, order.Filled)
	assert.Equal(t, 0.0, order.AvgFillPrice)
	assert.True(t, order.IsActive())
}

func TestAddFillMaintainsInvariants(t *testing.T) {
	order := NewMarketOrder("tok-1", SideBuy, 100)

	order.AddFill(0.40, 50, 0.02)
	assert.Equal(t, OrderPartial, order.Status)
	assert.Equal(t, 0.40, order.AvgFillPrice, "first fill sets the average exactly")
	assert.Equal(t, 100.0, order.Filled+order.Remaining)

	order.AddFill(0.42, 50, 0.021)
	assert.Equal(t, OrderFilled, order.Status)
	assert.Equal(t, 100.0, order.Filled)
	assert.Equal(t, 0.0, order.Remaining)
	assert.InDelta(t, 0.41, order.AvgFillPrice, 1e-9)
	assert.InDelta(t, 0.041, order.TotalFees, 1e-9)
	require.Len(t, order.Fills, 2)
}

func TestVWAPWeightsBySize(t *testing.T) {
	order := NewMarketOrder("tok-1", SideBuy, 100)

	order.AddFill(0.40, 75, 0)
	order.AddFill(0.48, 25, 0)

	// 0.40*0.75 + 0.48*0.25 = 0.42
	assert.InDelta(t, 0.42, order.AvgFillPrice, 1e-9)
}

func TestCancelTransitions(t *testing.T) {
	order := NewLimitOrder("tok-1", SideBuy, 0.45, 100, QueueConservative)
	require.True(t, order.Cancel())
	assert.Equal(t, OrderCanceled, order.Status)
	assert.True(t, order.Status.Terminal())

	assert.False(t, order.Cancel(), "terminal orders cannot be canceled again")

	filled := NewMarketOrder("tok-1", SideBuy, 10)
	filled.AddFill(0.50, 10, 0)
	assert.Equal(t, OrderFilled, filled.Status)
	assert.False(t, filled.Cancel())
}

func TestPartialOrderCancelable(t *testing.T) {
	order := NewLimitOrder("tok-1", SideBuy, 0.45, 100, QueueNeutral)
	order.AddFill(0.45, 40, 0)

	assert.Equal(t, OrderPartial, order.Status)
	assert.True(t, order.IsActive())
	assert.True(t, order.Cancel())
	assert.Equal(t, 40.0, order.Filled, "fills survive cancellation")
}

func TestParseOrderSide(t *testing.T) {
	side, ok := ParseOrderSide("SELL")
	assert.True(t, ok)
	assert.Equal(t, SideSell, side)

	_, ok = ParseOrderSide("SHORT")
	assert.False(t, ok)
}
