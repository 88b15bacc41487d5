package domain

import "time"

// PositionEntry records one addition to a position.
type PositionEntry struct {
	Quantity  float64
	Price     float64
	Fee       float64
	Timestamp time.Time
}

// Position is the account's holding in one token.
// Invariant: Quantity >= 0; at Quantity 0 the position is closed and
// AvgPrice is meaningless until re-opened.
type Position struct {
	TokenID  string
	MarketID string
	Side     TokenSide

	Quantity float64
	AvgPrice float64

	RealizedPnL float64
	TotalFees   float64

	OpenedAt *time.Time
	ClosedAt *time.Time

	Entries []PositionEntry
}

// Add increases the position, updating the volume-weighted average price.
func (p *Position) Add(quantity, price, fee float64) {
	if p.Quantity == 0 {
		now := time.Now().UTC()
		p.OpenedAt = &now
		p.ClosedAt = nil
	}

	oldValue := p.Quantity * p.AvgPrice
	p.Quantity += quantity
	if p.Quantity > 0 {
		p.AvgPrice = (oldValue + quantity*price) / p.Quantity
	} else {
		p.AvgPrice = 0
	}

	p.TotalFees += fee
	p.Entries = append(p.Entries, PositionEntry{
		Quantity:  quantity,
		Price:     price,
		Fee:       fee,
		Timestamp: time.Now().UTC(),
	})
}

// Reduce sells off part of the position and returns the realized P&L for
// this reduction. Quantity is capped at the current holding.
func (p *Position) Reduce(quantity, price, fee float64) float64 {
	if quantity > p.Quantity {
		quantity = p.Quantity
	}

	pnl := (price-p.AvgPrice)*quantity - fee

	p.Quantity -= quantity
	p.RealizedPnL += pnl
	p.TotalFees += fee

	if p.Quantity <= 0 {
		p.Quantity = 0
		now := time.Now().UTC()
		p.ClosedAt = &now
	}

	return pnl
}

// Resolve settles the position at market resolution: each token is worth 1.0
// if the held side matches the outcome, else 0.0. Returns the settlement P&L
// delta and zeroes the position.
func (p *Position) Resolve(outcome TokenSide) float64 {
	if p.Quantity == 0 {
		return 0
	}

	settlement := 0.0
	if p.Side == outcome {
		settlement = 1.0
	}

	pnl := (settlement - p.AvgPrice) * p.Quantity
	p.RealizedPnL += pnl
	p.Quantity = 0
	now := time.Now().UTC()
	p.ClosedAt = &now

	return pnl
}

// UnrealizedPnL values the open quantity at the given mark price.
func (p *Position) UnrealizedPnL(mark float64) float64 {
	if p.Quantity == 0 {
		return 0
	}
	return (mark - p.AvgPrice) * p.Quantity
}

// TotalPnL is realized plus unrealized P&L at the given mark price.
func (p *Position) TotalPnL(mark float64) float64 {
	return p.RealizedPnL + p.UnrealizedPnL(mark)
}

// IsOpen reports whether the position holds any quantity.
func (p *Position) IsOpen() bool {
	return p.Quantity > 0
}

// CostBasis is the current quantity valued at the average entry price.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AvgPrice
}
