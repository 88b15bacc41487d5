// Package simulator orchestrates one full paper-trading loop: fetch markets
// and books, estimate probabilities concurrently, run the strategy, execute
// against the paper exchange, and log every decision for evaluation.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/polysim/internal/domain"
	"github.com/alejandrodnm/polysim/internal/evaluation"
	"github.com/alejandrodnm/polysim/internal/exchange"
	"github.com/alejandrodnm/polysim/internal/ports"
	"github.com/alejandrodnm/polysim/internal/probability"
	"github.com/alejandrodnm/polysim/internal/strategy"
)

// Config controls the simulation loop.
type Config struct {
	AccountID      string
	InitialBalance float64
	MaxMarkets     int
	Workers        int // 0 means 2x CPUs
	MinEdge        float64
}

// DefaultConfig returns loop defaults.
func DefaultConfig() Config {
	return Config{
		AccountID:      "paper",
		InitialBalance: 10000,
		MaxMarkets:     50,
		MinEdge:        0.015,
	}
}

// CycleResult summarizes one pass over the market universe.
type CycleResult struct {
	MarketsScanned int
	BooksFetched   int
	Estimates      int
	Tradeable      int
	OrdersPlaced   int
	OrdersRejected int
	Holds          int
	Duration       time.Duration
}

// Runner wires the engines together. Construct with New and drive it with
// RunCycle; market resolutions enter through ResolveMarket.
type Runner struct {
	cfg        Config
	probEngine *probability.Engine
	stratEng   *strategy.Engine
	exchange   *exchange.Exchange
	evaluation *evaluation.Service
	markets    ports.MarketProvider
	books      ports.BookProvider
	logger     *slog.Logger
}

// New creates a Runner and registers its paper account on the exchange.
func New(
	cfg Config,
	probEngine *probability.Engine,
	stratEng *strategy.Engine,
	ex *exchange.Exchange,
	eval *evaluation.Service,
	markets ports.MarketProvider,
	books ports.BookProvider,
	logger *slog.Logger,
) *Runner {
	if cfg.AccountID == "" {
		cfg.AccountID = DefaultConfig().AccountID
	}
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = DefaultConfig().InitialBalance
	}
	if cfg.MinEdge <= 0 {
		cfg.MinEdge = DefaultConfig().MinEdge
	}
	if logger == nil {
		logger = slog.Default()
	}
	ex.CreateAccount(cfg.AccountID, cfg.InitialBalance)
	return &Runner{
		cfg:        cfg,
		probEngine: probEngine,
		stratEng:   stratEng,
		exchange:   ex,
		evaluation: eval,
		markets:    markets,
		books:      books,
		logger:     logger,
	}
}

// Account returns the runner's paper account.
func (r *Runner) Account() *domain.Account {
	return r.exchange.Account(r.cfg.AccountID)
}

// Evaluation exposes the evaluation service for reporting.
func (r *Runner) Evaluation() *evaluation.Service {
	return r.evaluation
}

// RunCycle executes one scan-estimate-trade pass.
func (r *Runner) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	var result CycleResult

	markets, err := r.markets.FetchMarkets(ctx)
	if err != nil {
		return result, fmt.Errorf("simulator.RunCycle: fetch markets: %w", err)
	}
	if r.cfg.MaxMarkets > 0 && len(markets) > r.cfg.MaxMarkets {
		markets = markets[:r.cfg.MaxMarkets]
	}
	result.MarketsScanned = len(markets)

	active := markets[:0]
	for _, market := range markets {
		if market.IsActive() && market.YesToken != nil && market.NoToken != nil {
			active = append(active, market)
		}
	}

	tokenIDs := make([]string, 0, len(active)*2)
	for _, market := range active {
		tokenIDs = append(tokenIDs, market.YesToken.TokenID, market.NoToken.TokenID)
	}

	books, err := r.books.FetchBooks(ctx, tokenIDs)
	if err != nil {
		return result, fmt.Errorf("simulator.RunCycle: fetch books: %w", err)
	}
	result.BooksFetched = len(books)

	estimates := r.estimateAll(ctx, active, books)
	result.Estimates = len(estimates)

	byID := make(map[string]domain.Market, len(active))
	for _, market := range active {
		byID[market.MarketID] = market
	}

	for _, estimate := range estimates {
		if !estimate.IsTradeable() || math.Abs(estimate.Edge) < r.cfg.MinEdge {
			continue
		}
		result.Tradeable++

		market := byID[estimate.MarketID]
		book := books[market.YesToken.TokenID]

		if err := ctx.Err(); err != nil {
			return result, err
		}
		r.trade(market, book, books, estimate, &result)
	}

	result.Duration = time.Since(start)
	r.logger.Info("cycle complete",
		"markets", result.MarketsScanned,
		"tradeable", result.Tradeable,
		"orders", result.OrdersPlaced,
		"holds", result.Holds,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// estimateAll fans estimation out over a bounded worker pool. Estimation is
// pure, so workers share nothing but the input slice.
func (r *Runner) estimateAll(ctx context.Context, markets []domain.Market, books map[string]domain.OrderBook) []domain.ProbabilityEstimate {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	jobs := make(chan domain.Market)
	results := make(chan domain.ProbabilityEstimate, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for market := range jobs {
				book, ok := books[market.YesToken.TokenID]
				if !ok {
					continue
				}
				results <- r.probEngine.Estimate(market, book, nil)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, market := range markets {
			select {
			case jobs <- market:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	estimates := make([]domain.ProbabilityEstimate, 0, len(markets))
	for estimate := range results {
		estimates = append(estimates, estimate)
	}
	return estimates
}

// trade runs the strategy for one estimate and executes the resulting signal.
func (r *Runner) trade(
	market domain.Market,
	yesBook domain.OrderBook,
	books map[string]domain.OrderBook,
	estimate domain.ProbabilityEstimate,
	result *CycleResult,
) {
	account := r.Account()
	exposure := r.marketExposure(account, market.MarketID)

	signal := r.stratEng.Evaluate(estimate, market, yesBook, account.Balance, exposure)
	if signal.Intent == strategy.IntentHold {
		result.Holds++
		r.logger.Debug("holding", "market", market.Slug, "reason", signal.Reason)
		return
	}

	// BUY_NO trades the NO token against its own book; the signal price was
	// derived from the YES book so it must be recomputed.
	token := market.YesToken
	book := yesBook
	if signal.Intent == strategy.IntentBuyNo {
		token = market.NoToken
		if noBook, ok := books[token.TokenID]; ok {
			book = noBook
			signal.Price = noBook.BestBid()
		} else {
			book = domain.OrderBook{TokenID: token.TokenID}
			signal.Price = 0
		}
		if signal.Price == 0 {
			signal.Price = (1 - estimate.FairProb) - 0.01
		}
		signal.Price = math.Max(0.01, math.Min(0.99, signal.Price))
	}

	order := r.stratEng.CreateOrder(signal, token.TokenID)
	order.MarketID = market.MarketID
	order.TokenSide = token.Side

	execution, err := r.exchange.SubmitOrder(r.cfg.AccountID, order, book)
	if err != nil {
		r.logger.Error("order submission failed", "market", market.Slug, "error", err)
		result.OrdersRejected++
		return
	}
	if !execution.Success {
		r.logger.Debug("order rejected", "market", market.Slug, "reason", execution.Message)
		result.OrdersRejected++
		return
	}
	result.OrdersPlaced++

	var fillPrice *float64
	if len(execution.Fills) > 0 {
		avg := execution.AvgPrice
		fillPrice = &avg
	}
	r.evaluation.LogDecision(market, estimate, order.Side, token.Side,
		order.Size, signal.Price, fillPrice)
	r.stratEng.RecordPosition(market.MarketID, order.Size*signal.Price)

	r.logger.Info("order placed",
		"market", market.Slug,
		"intent", string(signal.Intent),
		"size", order.Size,
		"price", signal.Price,
		"filled", order.Filled,
	)
}

func (r *Runner) marketExposure(account *domain.Account, marketID string) float64 {
	var exposure float64
	for _, position := range account.Positions {
		if position.MarketID == marketID && position.IsOpen() {
			exposure += position.CostBasis()
		}
	}
	return exposure
}

// ResolveMarket settles a market everywhere: exchange positions, evaluation
// decisions, and strategy exposure tracking.
func (r *Runner) ResolveMarket(marketID string, outcome domain.TokenSide) (float64, int, error) {
	pnl, qty, err := r.exchange.ResolvePositions(r.cfg.AccountID, marketID, outcome)
	if err != nil {
		return 0, 0, fmt.Errorf("simulator.ResolveMarket: %w", err)
	}
	resolved := r.evaluation.ResolveMarket(marketID, outcome)
	r.stratEng.ClearPosition(marketID)

	r.logger.Info("market resolved",
		"market_id", marketID,
		"outcome", string(outcome),
		"pnl", pnl,
		"quantity", qty,
		"decisions", resolved,
	)
	return pnl, resolved, nil
}

// ResolveClosedMarkets settles every fetched market that has already
// resolved and still has open positions or pending decisions.
func (r *Runner) ResolveClosedMarkets(ctx context.Context) (int, error) {
	markets, err := r.markets.FetchMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("simulator.ResolveClosedMarkets: %w", err)
	}

	settled := 0
	for _, market := range markets {
		if market.ResolutionStatus != domain.StatusResolved || market.Outcome == nil {
			continue
		}
		if _, _, err := r.ResolveMarket(market.MarketID, *market.Outcome); err != nil {
			return settled, err
		}
		settled++
	}
	return settled, nil
}
