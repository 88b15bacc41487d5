// Package exchange simulates order execution against real order book
// snapshots. It keeps paper accounts, matches market and limit orders by
// walking the opposing side of the book, charges fees, applies a pluggable
// slippage model, and settles positions when markets resolve.
package exchange

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// Config holds the execution parameters.
type Config struct {
	FeeRate          float64 // taker fee as a fraction of notional
	SlippageModel    string  // "none" or "fixed"
	FixedSlippageBps float64
	PartialFills     bool // allow filling only part of an order
}

// DefaultConfig returns execution defaults: 10 bps fee, no slippage,
// partial fills allowed.
func DefaultConfig() Config {
	return Config{
		FeeRate:          0.001,
		SlippageModel:    "none",
		FixedSlippageBps: 5.0,
		PartialFills:     true,
	}
}

// ExecutionResult reports the outcome of a submission.
type ExecutionResult struct {
	Success     bool
	Order       *domain.Order
	Fills       []domain.Fill
	Message     string
	AvgPrice    float64
	TotalSize   float64
	TotalFee    float64
	SlippageBps float64
}

type accountState struct {
	mu      sync.Mutex
	account *domain.Account
}

// Exchange is the paper venue. Each account has its own lock so execution
// for different accounts can proceed concurrently; the outer lock only
// guards the maps.
type Exchange struct {
	cfg      Config
	slippage SlippageModel
	logger   *slog.Logger

	mu       sync.RWMutex
	accounts map[string]*accountState
	resting  map[string][]*domain.Order // tokenID -> resting limit orders
	history  []*domain.Order
}

// New creates an Exchange with the given config.
func New(cfg Config, logger *slog.Logger) (*Exchange, error) {
	model, err := NewSlippageModel(cfg.SlippageModel, cfg.FixedSlippageBps)
	if err != nil {
		return nil, fmt.Errorf("exchange.New: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchange{
		cfg:      cfg,
		slippage: model,
		logger:   logger,
		accounts: make(map[string]*accountState),
		resting:  make(map[string][]*domain.Order),
	}, nil
}

// CreateAccount registers a paper account with an initial balance.
func (e *Exchange) CreateAccount(accountID string, initialBalance float64) *domain.Account {
	e.mu.Lock()
	defer e.mu.Unlock()

	account := domain.NewAccount(initialBalance)
	account.AccountID = accountID
	e.accounts[accountID] = &accountState{account: account}
	return account
}

// Account returns a registered account, or nil.
func (e *Exchange) Account(accountID string) *domain.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if state, ok := e.accounts[accountID]; ok {
		return state.account
	}
	return nil
}

func (e *Exchange) state(accountID string) (*accountState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown account %q", accountID)
	}
	return state, nil
}

// SubmitOrder validates and executes an order against the given book
// snapshot. Rejected orders never mutate balance or positions. Limit orders
// that cross the book execute immediately; otherwise they rest.
func (e *Exchange) SubmitOrder(accountID string, order *domain.Order, book domain.OrderBook) (ExecutionResult, error) {
	state, err := e.state(accountID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("exchange.SubmitOrder: %w", err)
	}

	if !book.Sorted() {
		e.logger.Warn("order book snapshot is not sorted", "token_id", book.TokenID)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if msg := e.validate(state.account, order, book); msg != "" {
		order.Status = domain.OrderRejected
		order.UpdatedAt = time.Now().UTC()
		return ExecutionResult{Order: order, Message: msg}, nil
	}

	var result ExecutionResult
	if order.Type == domain.TypeMarket {
		result = e.executeMarket(state.account, order, book)
	} else {
		result = e.executeLimit(state.account, order, book)
	}
	e.recordOrder(state.account, order)
	return result, nil
}

// validate returns a rejection message, or empty when the order may trade.
func (e *Exchange) validate(account *domain.Account, order *domain.Order, book domain.OrderBook) string {
	if order.Size <= 0 {
		return "Order size must be positive"
	}

	if order.Side == domain.SideBuy {
		var maxPrice float64
		if order.Type == domain.TypeMarket {
			if len(book.Asks) == 0 {
				return "No liquidity on ask side"
			}
			// Worst case for a market buy is sweeping to the last ask.
			maxPrice = book.Asks[len(book.Asks)-1].Price
		} else {
			maxPrice = order.Price
		}
		cost := order.Size * maxPrice * (1 + e.cfg.FeeRate)
		if cost > account.Balance {
			return fmt.Sprintf("Insufficient balance: need $%.2f, have $%.2f", cost, account.Balance)
		}
		return ""
	}

	position := account.Position(order.TokenID)
	if position == nil || position.Quantity < order.Size {
		held := 0.0
		if position != nil {
			held = position.Quantity
		}
		return fmt.Sprintf("Insufficient position: need %.2f, have %.2f", order.Size, held)
	}
	return ""
}

// executeMarket walks the opposing side of the book level by level, applying
// slippage and fees per fill.
func (e *Exchange) executeMarket(account *domain.Account, order *domain.Order, book domain.OrderBook) ExecutionResult {
	levels := book.Asks
	if order.Side == domain.SideSell {
		levels = book.Bids
	}

	var fills []domain.Fill
	var totalFee float64

	for _, level := range levels {
		if order.Remaining <= 0 {
			break
		}
		fillSize := math.Min(order.Remaining, level.Size)
		fillPrice := e.slippage.Adjust(level.Price, order.Side)
		fee := fillSize * fillPrice * e.cfg.FeeRate

		order.AddFill(fillPrice, fillSize, fee)
		fills = append(fills, order.Fills[len(order.Fills)-1])
		totalFee += fee

		if !e.cfg.PartialFills {
			break
		}
	}

	if len(fills) == 0 {
		order.Status = domain.OrderRejected
		order.UpdatedAt = time.Now().UTC()
		return ExecutionResult{Order: order, Message: "Could not fill any quantity"}
	}

	var slippageBps float64
	if best := levels[0].Price; best > 0 {
		slippageBps = math.Abs(order.AvgFillPrice-best) / best * 10000
	}

	e.applyFill(account, order, totalFee)

	return ExecutionResult{
		Success:     true,
		Order:       order,
		Fills:       fills,
		Message:     fmt.Sprintf("Filled %.2f @ avg $%.4f", order.Filled, order.AvgFillPrice),
		AvgPrice:    order.AvgFillPrice,
		TotalSize:   order.Filled,
		TotalFee:    totalFee,
		SlippageBps: slippageBps,
	}
}

// executeLimit fills a marketable limit order against levels at or better
// than the limit price, without slippage. Anything left over rests.
func (e *Exchange) executeLimit(account *domain.Account, order *domain.Order, book domain.OrderBook) ExecutionResult {
	marketable := false
	levels := book.Asks
	if order.Side == domain.SideBuy {
		if ask := book.BestAsk(); ask > 0 && order.Price >= ask {
			marketable = true
		}
	} else {
		levels = book.Bids
		if bid := book.BestBid(); bid > 0 && order.Price <= bid {
			marketable = true
		}
	}

	var fills []domain.Fill
	var totalFee float64

	if marketable {
		for _, level := range levels {
			if order.Remaining <= 0 {
				break
			}
			if order.Side == domain.SideBuy && level.Price > order.Price {
				break
			}
			if order.Side == domain.SideSell && level.Price < order.Price {
				break
			}
			fillSize := math.Min(order.Remaining, level.Size)
			fee := fillSize * level.Price * e.cfg.FeeRate

			order.AddFill(level.Price, fillSize, fee)
			fills = append(fills, order.Fills[len(order.Fills)-1])
			totalFee += fee

			if !e.cfg.PartialFills {
				break
			}
		}
	}

	if len(fills) > 0 {
		e.applyFill(account, order, totalFee)
		// A partially filled remainder keeps resting at the limit price.
		if order.Remaining > 0 {
			e.rest(order)
		}
		return ExecutionResult{
			Success:   true,
			Order:     order,
			Fills:     fills,
			Message:   fmt.Sprintf("Filled %.2f @ avg $%.4f", order.Filled, order.AvgFillPrice),
			AvgPrice:  order.AvgFillPrice,
			TotalSize: order.Filled,
			TotalFee:  totalFee,
		}
	}

	e.rest(order)

	return ExecutionResult{
		Success: true,
		Order:   order,
		Message: fmt.Sprintf("Order resting @ $%.4f", order.Price),
	}
}

func (e *Exchange) rest(order *domain.Order) {
	e.mu.Lock()
	e.resting[order.TokenID] = append(e.resting[order.TokenID], order)
	e.mu.Unlock()
}

// applyFill settles an executed order into the account ledger. The caller
// holds the account lock.
func (e *Exchange) applyFill(account *domain.Account, order *domain.Order, totalFee float64) {
	cost := order.Filled * order.AvgFillPrice

	if order.Side == domain.SideBuy {
		account.Balance -= cost + totalFee
		position := account.GetOrCreatePosition(order.TokenID, order.MarketID, order.TokenSide)
		position.Add(order.Filled, order.AvgFillPrice, totalFee)
	} else {
		account.Balance += cost - totalFee
		position := account.Position(order.TokenID)
		if position != nil {
			pnl := position.Reduce(order.Filled, order.AvgFillPrice, totalFee)
			if pnl > 0 {
				account.WinningTrades++
			}
		}
	}

	account.TotalTrades++
	account.TotalFeesPaid += totalFee
}

func (e *Exchange) recordOrder(account *domain.Account, order *domain.Order) {
	account.Orders[order.OrderID] = order

	e.mu.Lock()
	e.history = append(e.history, order)
	e.mu.Unlock()
}

// CancelOrder cancels an active order by id and removes it from the resting
// book index.
func (e *Exchange) CancelOrder(accountID, orderID string) error {
	state, err := e.state(accountID)
	if err != nil {
		return fmt.Errorf("exchange.CancelOrder: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	order, ok := state.account.Orders[orderID]
	if !ok {
		return fmt.Errorf("exchange.CancelOrder: unknown order %q", orderID)
	}
	if !order.Cancel() {
		return fmt.Errorf("exchange.CancelOrder: order %q is not active", orderID)
	}

	e.mu.Lock()
	resting := e.resting[order.TokenID]
	for i, candidate := range resting {
		if candidate.OrderID == orderID {
			e.resting[order.TokenID] = append(resting[:i], resting[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	return nil
}

// ResolvePositions settles every open position an account holds in a market.
// Winning tokens pay out $1 per share to the balance. Returns the total
// realized P&L delta and the quantity settled.
func (e *Exchange) ResolvePositions(accountID, marketID string, outcome domain.TokenSide) (float64, float64, error) {
	state, err := e.state(accountID)
	if err != nil {
		return 0, 0, fmt.Errorf("exchange.ResolvePositions: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	var totalPnL, totalQty float64
	for _, position := range state.account.Positions {
		if position.MarketID != marketID || !position.IsOpen() {
			continue
		}
		quantity := position.Quantity
		pnl := position.Resolve(outcome)
		totalPnL += pnl
		totalQty += quantity

		if position.Side == outcome {
			state.account.Balance += quantity
		}
		if pnl > 0 {
			state.account.WinningTrades++
		}
		state.account.TotalTrades++
	}

	return totalPnL, totalQty, nil
}

// OpenPositions returns the account's open positions.
func (e *Exchange) OpenPositions(accountID string) ([]*domain.Position, error) {
	state, err := e.state(accountID)
	if err != nil {
		return nil, fmt.Errorf("exchange.OpenPositions: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.account.OpenPositions(), nil
}

// PositionValue marks the account's open positions to the given prices.
func (e *Exchange) PositionValue(accountID string, marks map[string]float64) (float64, error) {
	state, err := e.state(accountID)
	if err != nil {
		return 0, fmt.Errorf("exchange.PositionValue: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	var value float64
	for _, position := range state.account.Positions {
		if !position.IsOpen() {
			continue
		}
		if mark, ok := marks[position.TokenID]; ok {
			value += position.Quantity * mark
		} else {
			value += position.CostBasis()
		}
	}
	return value, nil
}

// RestingOrders returns the resting limit orders for a token.
func (e *Exchange) RestingOrders(tokenID string) []*domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]*domain.Order, len(e.resting[tokenID]))
	copy(orders, e.resting[tokenID])
	return orders
}

// OrderHistory returns all orders ever submitted, most recent last.
func (e *Exchange) OrderHistory() []*domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	history := make([]*domain.Order, len(e.history))
	copy(history, e.history)
	return history
}
