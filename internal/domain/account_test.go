package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	account := NewAccount(10000)

	assert.NotEmpty(t, account.AccountID)
	assert.Equal(t, 10000.0, account.Balance)
	assert.Equal(t, 10000.0, account.InitialBalance)
	assert.Empty(t, account.Positions)
	assert.Equal(t, 0.0, account.WinRate())
}

func TestGetOrCreatePosition(t *testing.T) {
	account := NewAccount(1000)

	position := account.GetOrCreatePosition("tok-1", "mkt-1", SideYes)
	require.NotNil(t, position)
	assert.Equal(t, SideYes, position.Side)

	again := account.GetOrCreatePosition("tok-1", "mkt-1", SideYes)
	assert.Same(t, position, again)

	assert.Nil(t, account.Position("tok-unknown"))
}

func TestEquityIsBalancePlusRealized(t *testing.T) {
	account := NewAccount(1000)

	position := account.GetOrCreatePosition("tok-1", "mkt-1", SideYes)
	position.Add(100, 0.40, 0)
	account.Balance -= 40

	assert.InDelta(t, account.Balance+account.TotalPnL(), account.Equity(), 1e-9)

	position.Reduce(100, 0.50, 0)
	account.Balance += 50

	assert.InDelta(t, 10.0, account.TotalPnL(), 1e-9)
	assert.InDelta(t, account.Balance+account.TotalPnL(), account.Equity(), 1e-9)
}

func TestEquityWithUnrealizedMarks(t *testing.T) {
	account := NewAccount(1000)
	position := account.GetOrCreatePosition("tok-1", "mkt-1", SideYes)
	position.Add(100, 0.40, 0)
	account.Balance -= 40

	marked := account.EquityWithUnrealized(map[string]float64{"tok-1": 0.45})
	assert.InDelta(t, 960+5, marked, 1e-9)

	unmarked := account.EquityWithUnrealized(nil)
	assert.InDelta(t, 960, unmarked, 1e-9)
}

func TestWinRate(t *testing.T) {
	account := NewAccount(1000)
	account.TotalTrades = 4
	account.WinningTrades = 3

	assert.InDelta(t, 75.0, account.WinRate(), 1e-9)
}

func TestOpenPositions(t *testing.T) {
	account := NewAccount(1000)

	open := account.GetOrCreatePosition("tok-1", "mkt-1", SideYes)
	open.Add(10, 0.50, 0)

	closed := account.GetOrCreatePosition("tok-2", "mkt-2", SideNo)
	closed.Add(10, 0.50, 0)
	closed.Resolve(SideYes)

	positions := account.OpenPositions()
	require.Len(t, positions, 1)
	assert.Equal(t, "tok-1", positions[0].TokenID)
}
