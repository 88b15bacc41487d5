package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// ParseOrderSide maps a raw side string to an OrderSide.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(s) {
	case SideBuy, SideSell:
		return OrderSide(s), true
	}
	return SideBuy, false
}

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// QueueMode governs fill assumptions for resting limit orders.
type QueueMode string

const (
	// QueueConservative assumes last in queue: fill only if price trades through.
	QueueConservative QueueMode = "CONSERVATIVE"
	// QueueNeutral assumes a fill once the best price reaches our level.
	QueueNeutral QueueMode = "NEUTRAL"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "OPEN"
	OrderPartial  OrderStatus = "PARTIAL"
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderRejected OrderStatus = "REJECTED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCanceled || s == OrderRejected
}

// Fill is a single fill event recorded against an order.
type Fill struct {
	FillID    string
	Price     float64
	Size      float64
	Fee       float64
	Timestamp time.Time
}

// Order is a paper order. Invariant: Filled + Remaining == Size at all times,
// and AvgFillPrice is the running volume-weighted mean of all fills.
type Order struct {
	OrderID   string
	TokenID   string
	MarketID  string
	TokenSide TokenSide // which outcome token this order trades
	Side      OrderSide
	Price     float64 // ignored for market orders
	Size      float64
	Type      OrderType
	QueueMode QueueMode
	Status    OrderStatus

	Filled       float64
	Remaining    float64
	AvgFillPrice float64 // 0 until the first fill
	Fills        []Fill
	TotalFees    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMarketOrder creates a market order. Market orders carry no price.
func NewMarketOrder(tokenID string, side OrderSide, size float64) *Order {
	now := time.Now().UTC()
	return &Order{
		OrderID:   uuid.New().String(),
		TokenID:   tokenID,
		Side:      side,
		Size:      size,
		Remaining: size,
		Type:      TypeMarket,
		QueueMode: QueueNeutral,
		Status:    OrderOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewLimitOrder creates a limit order with the given queue mode.
func NewLimitOrder(tokenID string, side OrderSide, price, size float64, mode QueueMode) *Order {
	now := time.Now().UTC()
	return &Order{
		OrderID:   uuid.New().String(),
		TokenID:   tokenID,
		Side:      side,
		Price:     price,
		Size:      size,
		Remaining: size,
		Type:      TypeLimit,
		QueueMode: mode,
		Status:    OrderOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddFill records a fill, updating the running average price and status.
func (o *Order) AddFill(price, size, fee float64) {
	o.Fills = append(o.Fills, Fill{
		FillID:    uuid.New().String(),
		Price:     price,
		Size:      size,
		Fee:       fee,
		Timestamp: time.Now().UTC(),
	})

	oldFilled := o.Filled
	o.Filled += size
	o.Remaining -= size
	o.TotalFees += fee

	if oldFilled == 0 {
		o.AvgFillPrice = price
	} else {
		o.AvgFillPrice = (o.AvgFillPrice*oldFilled + price*size) / o.Filled
	}

	if o.Remaining <= 0 {
		o.Status = OrderFilled
	} else if o.Filled > 0 {
		o.Status = OrderPartial
	}

	o.UpdatedAt = time.Now().UTC()
}

// Cancel marks an active order canceled. Returns false for terminal orders.
func (o *Order) Cancel() bool {
	if !o.IsActive() {
		return false
	}
	o.Status = OrderCanceled
	o.UpdatedAt = time.Now().UTC()
	return true
}

// IsActive reports whether the order is still OPEN or PARTIAL.
func (o *Order) IsActive() bool {
	return o.Status == OrderOpen || o.Status == OrderPartial
}
