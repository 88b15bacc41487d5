// Package strategy converts probability estimates into order intents.
// The engine is conservative and research-focused: it only enters when the
// edge clears a threshold, checks liquidity before sizing, respects risk
// limits, and throttles order frequency.
package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// tickSize is the price increment assumed for the spread tick count.
const tickSize = 0.001

// Intent is what the strategy wants to do.
type Intent string

const (
	IntentBuyYes  Intent = "BUY_YES"
	IntentBuyNo   Intent = "BUY_NO"
	IntentSellYes Intent = "SELL_YES"
	IntentSellNo  Intent = "SELL_NO"
	IntentHold    Intent = "HOLD"
	IntentClose   Intent = "CLOSE"
)

// Signal is the engine's output for one evaluation.
type Signal struct {
	MarketID  string
	TokenID   string
	Intent    Intent
	Size      float64
	Price     float64 // 0 for market orders
	OrderType domain.OrderType
	Reason    string
	Estimate  domain.ProbabilityEstimate
	Timestamp time.Time
}

// Config holds entry thresholds, sizing rules, throttles, and risk controls.
type Config struct {
	MinEdgePct         float64
	MaxSpreadTicks     int
	MinDepthMultiple   float64 // book depth must be this multiple of order size
	MaxResolutionDays  float64
	MinResolutionHours float64

	BaseSize        float64
	MaxSize         float64
	SizeByEdge      bool // scale size by edge strength, up to 2x
	SizeByLiquidity bool // cap size by available depth
	UseKelly        bool
	KellyFraction   float64 // fraction of full Kelly to use

	MaxOrdersPerMinute    int
	MaxCapitalDeployedPct float64
	ReferenceBalance      float64 // balance the deployed percentage is measured against
	MaxPerMarket          float64

	MaxRiskScore     float64
	BlockedRiskFlags []domain.RiskFlag
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MinEdgePct:            1.5,
		MaxSpreadTicks:        1,
		MinDepthMultiple:      3.0,
		MaxResolutionDays:     30.0,
		MinResolutionHours:    1.0,
		BaseSize:              100.0,
		MaxSize:               500.0,
		SizeByEdge:            true,
		SizeByLiquidity:       true,
		UseKelly:              false,
		KellyFraction:         0.25,
		MaxOrdersPerMinute:    5,
		MaxCapitalDeployedPct: 50.0,
		ReferenceBalance:      10000.0,
		MaxPerMarket:          500.0,
		MaxRiskScore:          0.5,
		BlockedRiskFlags:      []domain.RiskFlag{domain.FlagDisputeRisk, domain.FlagLowDepth},
	}
}

// ParseRiskFlags converts raw flag names into domain risk flags, dropping
// anything unknown.
func ParseRiskFlags(names []string) []domain.RiskFlag {
	known := map[domain.RiskFlag]bool{
		domain.FlagLowDepth:       true,
		domain.FlagWideSpread:     true,
		domain.FlagLongResolution: true,
		domain.FlagHighVolatility: true,
		domain.FlagLowVolume:      true,
		domain.FlagDisputeRisk:    true,
		domain.FlagImbalancedBook: true,
		domain.FlagNearCertainty:  true,
	}
	var flags []domain.RiskFlag
	for _, name := range names {
		if flag := domain.RiskFlag(name); known[flag] {
			flags = append(flags, flag)
		}
	}
	return flags
}

// Engine evaluates estimates into signals. Throttle and per-market exposure
// state is owned here explicitly so tests can construct fresh, deterministic
// instances.
type Engine struct {
	cfg Config

	mu                sync.Mutex
	orderTimes        []time.Time
	positionsByMarket map[string]float64

	now func() time.Time
}

// New creates an Engine with the given config.
func New(cfg Config) *Engine {
	if cfg.MaxOrdersPerMinute <= 0 {
		cfg.MaxOrdersPerMinute = DefaultConfig().MaxOrdersPerMinute
	}
	if cfg.ReferenceBalance <= 0 {
		cfg.ReferenceBalance = DefaultConfig().ReferenceBalance
	}
	return &Engine{
		cfg:               cfg,
		positionsByMarket: make(map[string]float64),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate turns an estimate into a trading signal. currentPosition is the
// caller's known exposure in this market, merged with the engine's own
// bookkeeping for the per-market cap. A skip yields IntentHold with the
// first matching reason.
func (e *Engine) Evaluate(
	estimate domain.ProbabilityEstimate,
	market domain.Market,
	book domain.OrderBook,
	balance float64,
	currentPosition float64,
) Signal {
	if reason := e.checkSkip(estimate, market, book, balance, currentPosition); reason != "" {
		return Signal{
			MarketID:  market.MarketID,
			TokenID:   estimate.TokenID,
			Intent:    IntentHold,
			OrderType: domain.TypeLimit,
			Reason:    reason,
			Estimate:  estimate,
			Timestamp: e.now(),
		}
	}

	// Direction follows the sign of the edge. This engine only enters; it
	// never initiates unsolicited sells.
	intent := IntentBuyYes
	if estimate.Edge < 0 {
		intent = IntentBuyNo
	}

	size := e.size(estimate, book, balance)
	price := e.price(estimate, book, intent)

	reason := fmt.Sprintf("Edge: %.2f%%, Confidence: %.0f%%, Fair: %.1f%% vs Market: %.1f%%",
		estimate.EdgePct, estimate.Confidence*100, estimate.FairProb*100, estimate.MarketProb*100)

	return Signal{
		MarketID:  market.MarketID,
		TokenID:   estimate.TokenID,
		Intent:    intent,
		Size:      size,
		Price:     price,
		OrderType: domain.TypeLimit,
		Reason:    reason,
		Estimate:  estimate,
		Timestamp: e.now(),
	}
}

// checkSkip applies the skip policy in order; the first hit wins.
func (e *Engine) checkSkip(
	estimate domain.ProbabilityEstimate,
	market domain.Market,
	book domain.OrderBook,
	balance float64,
	currentPosition float64,
) string {
	if math.Abs(estimate.EdgePct) < e.cfg.MinEdgePct {
		return fmt.Sprintf("Edge too small: %.2f%% < %.1f%%", estimate.EdgePct, e.cfg.MinEdgePct)
	}

	if estimate.RiskScore > e.cfg.MaxRiskScore {
		return fmt.Sprintf("Risk too high: %.2f", estimate.RiskScore)
	}

	for _, flag := range e.cfg.BlockedRiskFlags {
		if estimate.HasFlag(flag) {
			return fmt.Sprintf("Blocked risk flag: %s", flag)
		}
	}

	if spread := book.Spread(); spread > 0 {
		ticks := int(spread / tickSize)
		if ticks > e.cfg.MaxSpreadTicks {
			return fmt.Sprintf("Spread too wide: %d ticks", ticks)
		}
	}

	hours := market.HoursToResolution()
	if hours > e.cfg.MaxResolutionDays*24 {
		return fmt.Sprintf("Resolution too far: %.1f days", hours/24)
	}
	if hours < e.cfg.MinResolutionHours {
		return fmt.Sprintf("Resolution too soon: %.1f hours", hours)
	}

	deployedPct := (1 - balance/e.cfg.ReferenceBalance) * 100
	if deployedPct > e.cfg.MaxCapitalDeployedPct {
		return fmt.Sprintf("Max capital deployed: %.0f%%", deployedPct)
	}

	e.mu.Lock()
	inMarket := e.positionsByMarket[market.MarketID]
	e.mu.Unlock()
	if currentPosition > inMarket {
		inMarket = currentPosition
	}
	if inMarket >= e.cfg.MaxPerMarket {
		return fmt.Sprintf("Max position in market: $%.0f", inMarket)
	}

	if !e.allowOrder() {
		return "Order throttle limit reached"
	}

	return ""
}

// size computes the position size: base size scaled by edge, capped by
// liquidity, Kelly notional, the absolute maximum, and 90% of balance,
// floored at the minimum ticket and rounded to a whole unit.
func (e *Engine) size(estimate domain.ProbabilityEstimate, book domain.OrderBook, balance float64) float64 {
	size := e.cfg.BaseSize

	if e.cfg.SizeByEdge && e.cfg.MinEdgePct > 0 {
		edgeMultiple := math.Abs(estimate.EdgePct) / e.cfg.MinEdgePct
		size *= math.Min(2.0, edgeMultiple)
	}

	if e.cfg.SizeByLiquidity {
		depth := math.Min(book.BidDepth(), book.AskDepth())
		if depth < size*e.cfg.MinDepthMultiple {
			size = depth / e.cfg.MinDepthMultiple
		}
	}

	if e.cfg.UseKelly && estimate.KellyFraction > 0 {
		kellySize := balance * estimate.KellyFraction * e.cfg.KellyFraction
		size = math.Min(size, kellySize)
	}

	size = math.Min(size, e.cfg.MaxSize)
	size = math.Min(size, balance*0.9)
	size = math.Round(size)

	return math.Max(10, size)
}

// price joins the best same-side price when available, else offsets one cent
// from fair value, clamped to [0.01, 0.99]. Orders are always LIMIT here.
func (e *Engine) price(estimate domain.ProbabilityEstimate, book domain.OrderBook, intent Intent) float64 {
	var price float64
	if intent == IntentBuyYes || intent == IntentBuyNo {
		price = book.BestBid()
		if price == 0 {
			price = estimate.FairProb - 0.01
		}
	} else {
		price = book.BestAsk()
		if price == 0 {
			price = estimate.FairProb + 0.01
		}
	}
	return math.Max(0.01, math.Min(0.99, price))
}

// allowOrder enforces the sliding one-minute order-rate throttle. A granted
// slot is consumed immediately.
func (e *Engine) allowOrder() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	cutoff := now.Add(-time.Minute)

	kept := e.orderTimes[:0]
	for _, ts := range e.orderTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.orderTimes = kept

	if len(e.orderTimes) >= e.cfg.MaxOrdersPerMinute {
		return false
	}

	e.orderTimes = append(e.orderTimes, now)
	return true
}

// RecordPosition adds exposure bookkeeping for a market after a trade.
// Exposure tracking is the engine's responsibility, not the ledger's.
func (e *Engine) RecordPosition(marketID string, size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positionsByMarket[marketID] += size
}

// ClearPosition drops exposure tracking for a market (e.g. on resolution).
func (e *Engine) ClearPosition(marketID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positionsByMarket, marketID)
}

// MarketExposure returns the tracked exposure for a market.
func (e *Engine) MarketExposure(marketID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionsByMarket[marketID]
}

// CreateOrder builds a limit order from a non-hold signal against the given
// token.
func (e *Engine) CreateOrder(signal Signal, tokenID string) *domain.Order {
	side := domain.SideBuy
	if signal.Intent == IntentSellYes || signal.Intent == IntentSellNo {
		side = domain.SideSell
	}
	return domain.NewLimitOrder(tokenID, side, signal.Price, signal.Size, domain.QueueNeutral)
}
