package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the mutable paper trading ledger. All mutations for one account
// must be serialized by the caller; a half-applied fill (balance debited,
// position not yet updated) violates the equity invariant.
type Account struct {
	AccountID      string
	Balance        float64
	InitialBalance float64

	Positions map[string]*Position // token id → position, at most one per token
	Orders    map[string]*Order    // order id → order

	TotalTrades   int
	WinningTrades int
	TotalFeesPaid float64

	CreatedAt time.Time
}

// NewAccount creates an account funded with the given balance.
func NewAccount(initialBalance float64) *Account {
	return &Account{
		AccountID:      uuid.New().String(),
		Balance:        initialBalance,
		InitialBalance: initialBalance,
		Positions:      make(map[string]*Position),
		Orders:         make(map[string]*Order),
		CreatedAt:      time.Now().UTC(),
	}
}

// Position returns the position for a token, or nil if none exists.
func (a *Account) Position(tokenID string) *Position {
	return a.Positions[tokenID]
}

// GetOrCreatePosition returns the token's position, creating it if needed.
// Quantity accumulates into the same Position object per token.
func (a *Account) GetOrCreatePosition(tokenID, marketID string, side TokenSide) *Position {
	if p, ok := a.Positions[tokenID]; ok {
		return p
	}
	p := &Position{
		TokenID:  tokenID,
		MarketID: marketID,
		Side:     side,
	}
	a.Positions[tokenID] = p
	return p
}

// TotalPnL is the realized P&L summed across all positions.
func (a *Account) TotalPnL() float64 {
	var total float64
	for _, p := range a.Positions {
		total += p.RealizedPnL
	}
	return total
}

// Equity is balance plus realized P&L. This equality holds exactly after any
// sequence of fills and settlements.
func (a *Account) Equity() float64 {
	return a.Balance + a.TotalPnL()
}

// EquityWithUnrealized marks open positions to the given mid prices.
// Positions without a mark contribute only their realized P&L.
func (a *Account) EquityWithUnrealized(marks map[string]float64) float64 {
	equity := a.Balance
	for tokenID, p := range a.Positions {
		if mark, ok := marks[tokenID]; ok && p.IsOpen() {
			equity += p.TotalPnL(mark)
		} else {
			equity += p.RealizedPnL
		}
	}
	return equity
}

// WinRate returns the percentage of trades with positive realized P&L.
func (a *Account) WinRate() float64 {
	if a.TotalTrades == 0 {
		return 0
	}
	return float64(a.WinningTrades) / float64(a.TotalTrades) * 100
}

// OpenPositions returns every position with quantity > 0.
func (a *Account) OpenPositions() []*Position {
	var open []*Position
	for _, p := range a.Positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}
