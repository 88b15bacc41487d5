package exchange

import (
	"fmt"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// SlippageModel adjusts a fill price to simulate execution friction on top
// of walking the book.
type SlippageModel interface {
	Adjust(price float64, side domain.OrderSide) float64
}

// NoSlippage fills at the book price.
type NoSlippage struct{}

func (NoSlippage) Adjust(price float64, _ domain.OrderSide) float64 {
	return price
}

// FixedSlippage worsens every fill by a fixed number of basis points: buys
// pay more, sells receive less.
type FixedSlippage struct {
	Bps float64
}

func (s FixedSlippage) Adjust(price float64, side domain.OrderSide) float64 {
	if side == domain.SideBuy {
		return price * (1 + s.Bps/10000)
	}
	return price * (1 - s.Bps/10000)
}

// NewSlippageModel builds a model by name.
func NewSlippageModel(name string, bps float64) (SlippageModel, error) {
	switch name {
	case "", "none":
		return NoSlippage{}, nil
	case "fixed":
		return FixedSlippage{Bps: bps}, nil
	default:
		return nil, fmt.Errorf("exchange.NewSlippageModel: unknown model %q", name)
	}
}
