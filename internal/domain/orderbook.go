package domain

import "time"

// BookLevel is a single (price, size) level in an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is an L2 snapshot for one token.
// Bids are sorted high to low, asks low to high; treat snapshots as read-only.
type OrderBook struct {
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// BestBid returns the highest bid price, or 0 if there are no bids.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if there are no asks.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// MidPrice returns the midpoint between best bid and best ask.
// With a one-sided book it returns the surviving best price; empty book → 0.
func (ob OrderBook) MidPrice() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	default:
		return ask
	}
}

// Spread returns ask - bid, or 0 when either side is empty.
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// SpreadBps returns the spread in basis points of the mid price.
func (ob OrderBook) SpreadBps() float64 {
	mid := ob.MidPrice()
	if mid == 0 {
		return 0
	}
	return ob.Spread() / mid * 10000
}

// BidDepth returns the total size resting on the bid side.
func (ob OrderBook) BidDepth() float64 {
	var total float64
	for _, l := range ob.Bids {
		total += l.Size
	}
	return total
}

// AskDepth returns the total size resting on the ask side.
func (ob OrderBook) AskDepth() float64 {
	var total float64
	for _, l := range ob.Asks {
		total += l.Size
	}
	return total
}

// Imbalance returns (bid_depth - ask_depth) / (bid_depth + ask_depth).
// Positive means more bids (bullish), negative more asks. Empty book → 0.
func (ob OrderBook) Imbalance() float64 {
	bid := ob.BidDepth()
	ask := ob.AskDepth()
	total := bid + ask
	if total == 0 {
		return 0
	}
	return (bid - ask) / total
}

// SimulateMarketOrder walks the opposing side for a hypothetical market order
// and returns (volume-weighted average price, filled size, unfilled remainder).
// avgPrice is 0 when nothing would fill.
func (ob OrderBook) SimulateMarketOrder(side OrderSide, size float64) (avgPrice, filled, remaining float64) {
	levels := ob.Asks
	if side == SideSell {
		levels = ob.Bids
	}

	remaining = size
	var cost float64
	for _, l := range levels {
		if remaining <= 0 {
			break
		}
		fillSize := min(remaining, l.Size)
		cost += fillSize * l.Price
		filled += fillSize
		remaining -= fillSize
	}

	if filled > 0 {
		avgPrice = cost / filled
	}
	return avgPrice, filled, remaining
}

// Sorted reports whether both sides respect their price ordering and all
// sizes are non-negative. A false result means the snapshot producer is buggy.
func (ob OrderBook) Sorted() bool {
	for i, l := range ob.Bids {
		if l.Size < 0 || (i > 0 && l.Price >= ob.Bids[i-1].Price) {
			return false
		}
	}
	for i, l := range ob.Asks {
		if l.Size < 0 || (i > 0 && l.Price <= ob.Asks[i-1].Price) {
			return false
		}
	}
	return true
}
