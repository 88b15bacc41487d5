package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysim/internal/domain"
)

func testMarket(hoursToResolution float64) domain.Market {
	end := time.Now().UTC().Add(time.Duration(hoursToResolution * float64(time.Hour)))
	return domain.Market{
		MarketID:         "mkt-1",
		Slug:             "test-market",
		Question:         "Will it happen?",
		Category:         domain.CategoryCrypto,
		EndTime:          end,
		ResolutionStatus: domain.StatusOpen,
	}
}

func testBook(bid, ask, depth float64) domain.OrderBook {
	return domain.OrderBook{
		TokenID:   "tok-yes",
		Bids:      []domain.BookLevel{{Price: bid, Size: depth}},
		Asks:      []domain.BookLevel{{Price: ask, Size: depth}},
		Timestamp: time.Now().UTC(),
	}
}

func testEstimate(edgePct float64) domain.ProbabilityEstimate {
	marketProb := 0.50
	edge := edgePct / 100
	return domain.ProbabilityEstimate{
		MarketID:   "mkt-1",
		TokenID:    "tok-yes",
		FairProb:   marketProb + edge,
		MarketProb: marketProb,
		Edge:       edge,
		EdgePct:    edgePct,
		Confidence: 0.8,
		RiskScore:  0.0,
		Timestamp:  time.Now().UTC(),
	}
}

func TestEvaluateHoldsWhenEdgeBelowThreshold(t *testing.T) {
	engine := New(DefaultConfig())

	signal := engine.Evaluate(testEstimate(1.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Edge too small")
	assert.Contains(t, signal.Reason, "1.5%")
}

func TestEvaluateBuysYesOnPositiveEdge(t *testing.T) {
	engine := New(DefaultConfig())

	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	require.Equal(t, IntentBuyYes, signal.Intent)
	assert.Equal(t, domain.TypeLimit, signal.OrderType)
	assert.Equal(t, 0.50, signal.Price, "buy should join the best bid")
	assert.Greater(t, signal.Size, 0.0)
}

func TestEvaluateBuysNoOnNegativeEdge(t *testing.T) {
	engine := New(DefaultConfig())

	signal := engine.Evaluate(testEstimate(-5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	assert.Equal(t, IntentBuyNo, signal.Intent)
}

func TestEvaluateSkipsOnRiskScore(t *testing.T) {
	engine := New(DefaultConfig())
	estimate := testEstimate(5.0)
	estimate.RiskScore = 0.6

	signal := engine.Evaluate(estimate, testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Risk too high")
}

func TestEvaluateSkipsOnBlockedFlag(t *testing.T) {
	engine := New(DefaultConfig())
	estimate := testEstimate(5.0)
	estimate.RiskFlags = []domain.RiskFlag{domain.FlagLowDepth}
	estimate.RiskScore = 0.125

	signal := engine.Evaluate(estimate, testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Blocked risk flag")
}

func TestEvaluateSkipsOnWideSpread(t *testing.T) {
	engine := New(DefaultConfig())

	// Spread of 0.01 is 10 ticks at 0.001 ticks, above the 1-tick limit.
	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.49, 0.50, 1000), 10000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Spread too wide")
}

func TestEvaluateSkipsOnResolutionWindow(t *testing.T) {
	engine := New(DefaultConfig())
	book := testBook(0.50, 0.501, 1000)

	tooFar := engine.Evaluate(testEstimate(5.0), testMarket(31*24), book, 10000, 0)
	assert.Equal(t, IntentHold, tooFar.Intent)
	assert.Contains(t, tooFar.Reason, "Resolution too far")

	tooSoon := engine.Evaluate(testEstimate(5.0), testMarket(0.5), book, 10000, 0)
	assert.Equal(t, IntentHold, tooSoon.Intent)
	assert.Contains(t, tooSoon.Reason, "Resolution too soon")
}

func TestEvaluateSkipsOnCapitalDeployed(t *testing.T) {
	engine := New(DefaultConfig())

	// Balance of 4000 against a 10000 reference means 60% deployed.
	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 4000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Max capital deployed")
}

func TestEvaluateSkipsOnPerMarketCap(t *testing.T) {
	engine := New(DefaultConfig())
	engine.RecordPosition("mkt-1", 500)

	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Max position in market")

	engine.ClearPosition("mkt-1")
	signal = engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)
	assert.Equal(t, IntentBuyYes, signal.Intent)
}

func TestEvaluateUsesCallerPositionForCap(t *testing.T) {
	engine := New(DefaultConfig())

	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 600)

	assert.Equal(t, IntentHold, signal.Intent)
	assert.Contains(t, signal.Reason, "Max position in market")
}

func TestEvaluateThrottlesOrderRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOrdersPerMinute = 2
	engine := New(cfg)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	engine.now = func() time.Time { return current }

	market := testMarket(48)
	book := testBook(0.50, 0.501, 1000)

	for i := 0; i < 2; i++ {
		signal := engine.Evaluate(testEstimate(5.0), market, book, 10000, 0)
		require.Equal(t, IntentBuyYes, signal.Intent)
	}

	throttled := engine.Evaluate(testEstimate(5.0), market, book, 10000, 0)
	assert.Equal(t, IntentHold, throttled.Intent)
	assert.Contains(t, throttled.Reason, "throttle")

	// Past the window the throttle resets.
	current = base.Add(61 * time.Second)
	signal := engine.Evaluate(testEstimate(5.0), market, book, 10000, 0)
	assert.Equal(t, IntentBuyYes, signal.Intent)
}

func TestSizeScalesByEdgeAndCapsAtDouble(t *testing.T) {
	engine := New(DefaultConfig())
	book := testBook(0.50, 0.501, 10000)

	// 3% edge is 2x the 1.5% minimum, so base 100 doubles to 200.
	size := engine.size(testEstimate(3.0), book, 10000)
	assert.Equal(t, 200.0, size)

	// 15% edge would be 10x, capped at 2x.
	size = engine.size(testEstimate(15.0), book, 10000)
	assert.Equal(t, 200.0, size)
}

func TestSizeCappedByLiquidity(t *testing.T) {
	engine := New(DefaultConfig())

	// Depth of 90 with a 3x multiple caps size at 30.
	size := engine.size(testEstimate(1.5), testBook(0.50, 0.501, 90), 10000)
	assert.Equal(t, 30.0, size)
}

func TestSizeFlooredAtMinimumTicket(t *testing.T) {
	engine := New(DefaultConfig())

	size := engine.size(testEstimate(1.5), testBook(0.50, 0.501, 6), 10000)
	assert.Equal(t, 10.0, size)
}

func TestSizeCappedByBalance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCapitalDeployedPct = 100
	engine := New(cfg)

	size := engine.size(testEstimate(1.5), testBook(0.50, 0.501, 10000), 50)
	assert.Equal(t, 45.0, size)
}

func TestSizeKellyCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseKelly = true
	engine := New(cfg)

	estimate := testEstimate(1.5)
	estimate.KellyFraction = 0.10

	// Kelly notional: 10000 * 0.10 * 0.25 = 250, above base 100, no cap.
	size := engine.size(estimate, testBook(0.50, 0.501, 10000), 10000)
	assert.Equal(t, 100.0, size)

	// With a small balance the Kelly notional binds: 1000 * 0.10 * 0.25 = 25.
	size = engine.size(estimate, testBook(0.50, 0.501, 10000), 1000)
	assert.Equal(t, 25.0, size)
}

func TestPriceFallsBackToFairOffset(t *testing.T) {
	engine := New(DefaultConfig())
	empty := domain.OrderBook{TokenID: "tok-yes"}

	estimate := testEstimate(5.0)
	price := engine.price(estimate, empty, IntentBuyYes)
	assert.InDelta(t, estimate.FairProb-0.01, price, 1e-9)

	price = engine.price(estimate, empty, IntentSellYes)
	assert.InDelta(t, estimate.FairProb+0.01, price, 1e-9)
}

func TestCreateOrderFromSignal(t *testing.T) {
	engine := New(DefaultConfig())
	signal := engine.Evaluate(testEstimate(5.0), testMarket(48), testBook(0.50, 0.501, 1000), 10000, 0)
	require.Equal(t, IntentBuyYes, signal.Intent)

	order := engine.CreateOrder(signal, "tok-yes")

	assert.Equal(t, domain.SideBuy, order.Side)
	assert.Equal(t, domain.TypeLimit, order.Type)
	assert.Equal(t, signal.Price, order.Price)
	assert.Equal(t, signal.Size, order.Size)
	assert.NotEmpty(t, order.OrderID)
}
