// Package ports defines the interfaces between the simulation core and its
// adapters.
package ports

import (
	"context"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// MarketProvider fetches tradeable markets from a data source.
type MarketProvider interface {
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
}

// BookProvider fetches order book snapshots for a set of tokens.
type BookProvider interface {
	FetchBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error)
}
