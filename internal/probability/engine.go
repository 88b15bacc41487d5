// Package probability estimates fair probabilities for binary markets from
// order book snapshots. Estimation is a pure function of its inputs: the same
// market and book always produce the same estimate, so calls may run
// concurrently as long as snapshots are not mutated underneath them.
package probability

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// SignalProbabilityAdjustment is the external-signals key for a raw additive
// adjustment to the fair probability (news, sentiment, model output).
const SignalProbabilityAdjustment = "probability_adjustment"

// Config holds the model thresholds and weights.
type Config struct {
	MinEdgePct float64 // minimum edge to surface as an opportunity

	MinDepth           float64 // notional floor before LOW_DEPTH
	MaxSpreadBps       float64 // bps ceiling before WIDE_SPREAD
	MaxResolutionHours float64 // horizon ceiling before LONG_RESOLUTION
	MinResolutionHours float64

	DepthConfidenceScale float64 // depth for full confidence
	ImbalanceWeight      float64 // weight of book imbalance in fair prob

	MaxKelly float64 // Kelly fraction ceiling
}

// DefaultConfig returns the v1 model defaults.
func DefaultConfig() Config {
	return Config{
		MinEdgePct:           1.5,
		MinDepth:             100.0,
		MaxSpreadBps:         200.0,
		MaxResolutionHours:   720.0,
		MinResolutionHours:   1.0,
		DepthConfidenceScale: 1000.0,
		ImbalanceWeight:      0.1,
		MaxKelly:             0.25,
	}
}

// Engine is the v1 probability model: market mid price as the base, order
// book imbalance for directional bias, depth and spread for confidence, and
// time to resolution for risk adjustment.
type Engine struct {
	cfg          Config
	modelVersion string
}

// New creates an Engine. Zero-valued config fields get defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinEdgePct <= 0 {
		cfg.MinEdgePct = def.MinEdgePct
	}
	if cfg.MinDepth <= 0 {
		cfg.MinDepth = def.MinDepth
	}
	if cfg.MaxSpreadBps <= 0 {
		cfg.MaxSpreadBps = def.MaxSpreadBps
	}
	if cfg.MaxResolutionHours <= 0 {
		cfg.MaxResolutionHours = def.MaxResolutionHours
	}
	if cfg.MinResolutionHours <= 0 {
		cfg.MinResolutionHours = def.MinResolutionHours
	}
	if cfg.DepthConfidenceScale <= 0 {
		cfg.DepthConfidenceScale = def.DepthConfidenceScale
	}
	if cfg.ImbalanceWeight <= 0 {
		cfg.ImbalanceWeight = def.ImbalanceWeight
	}
	if cfg.MaxKelly <= 0 {
		cfg.MaxKelly = def.MaxKelly
	}
	return &Engine{cfg: cfg, modelVersion: "v1.0"}
}

// Estimate produces a probability estimate for the market's YES token.
// externalSignals may be nil; an empty order book degrades to a 0.5 mid with
// zero depth rather than failing.
func (e *Engine) Estimate(market domain.Market, book domain.OrderBook, externalSignals map[string]float64) domain.ProbabilityEstimate {
	marketProb := book.MidPrice()
	if marketProb == 0 {
		marketProb = 0.5
	}

	flags := e.assessRisks(market, book)
	riskScore := float64(len(flags)) / domain.NumRiskFlags

	fairProb := e.fairProb(market, book, externalSignals)

	edge := fairProb - marketProb

	tokenID := ""
	if market.YesToken != nil {
		tokenID = market.YesToken.TokenID
	}

	return domain.ProbabilityEstimate{
		MarketID:      market.MarketID,
		TokenID:       tokenID,
		FairProb:      fairProb,
		MarketProb:    marketProb,
		Edge:          edge,
		EdgePct:       edge * 100,
		ExpectedValue: edge * 100, // EV of a $100 position
		KellyFraction: e.kelly(fairProb, marketProb),
		Confidence:    e.confidence(book, market, len(flags)),
		RiskFlags:     flags,
		RiskScore:     riskScore,
		Timestamp:     time.Now().UTC(),
		ModelVersion:  e.modelVersion,
		Inputs: domain.EstimateInputs{
			MidPrice:          marketProb,
			Spread:            book.Spread(),
			Imbalance:         book.Imbalance(),
			BidDepth:          book.BidDepth(),
			AskDepth:          book.AskDepth(),
			HoursToResolution: market.HoursToResolution(),
			Category:          market.Category,
		},
	}
}

// fairProb layers the adjustments over the mid price and clamps to [0.01, 0.99].
func (e *Engine) fairProb(market domain.Market, book domain.OrderBook, externalSignals map[string]float64) float64 {
	base := book.MidPrice()
	if base == 0 {
		base = 0.5
	}

	// Positive imbalance (more bids) suggests YES is underpriced. Near
	// resolution the market itself is the better forecaster, so the
	// adjustment is halved under 24h.
	imbalanceAdj := book.Imbalance() * e.cfg.ImbalanceWeight
	if market.HoursToResolution() < 24 {
		imbalanceAdj *= 0.5
	}

	// Crypto markets overshoot at the extremes; shrink toward the center.
	categoryAdj := 0.0
	if market.Category == domain.CategoryCrypto && (base > 0.9 || base < 0.1) {
		if base > 0.5 {
			categoryAdj = -0.02
		} else {
			categoryAdj = 0.02
		}
	}

	externalAdj := 0.0
	if externalSignals != nil {
		externalAdj = externalSignals[SignalProbabilityAdjustment]
	}

	fair := base + imbalanceAdj + categoryAdj + externalAdj
	return math.Max(0.01, math.Min(0.99, fair))
}

// assessRisks returns every independently triggered risk flag.
func (e *Engine) assessRisks(market domain.Market, book domain.OrderBook) []domain.RiskFlag {
	var flags []domain.RiskFlag

	totalDepth := book.BidDepth() + book.AskDepth()
	if totalDepth < e.cfg.MinDepth {
		flags = append(flags, domain.FlagLowDepth)
	}

	if bps := book.SpreadBps(); bps > e.cfg.MaxSpreadBps {
		flags = append(flags, domain.FlagWideSpread)
	}

	if market.HoursToResolution() > e.cfg.MaxResolutionHours {
		flags = append(flags, domain.FlagLongResolution)
	}

	if mid := book.MidPrice(); mid > 0.95 || (mid > 0 && mid < 0.05) {
		flags = append(flags, domain.FlagNearCertainty)
	}

	if math.Abs(book.Imbalance()) > 0.7 {
		flags = append(flags, domain.FlagImbalancedBook)
	}

	if market.Volume24h < 1000 {
		flags = append(flags, domain.FlagLowVolume)
	}

	return flags
}

// kelly computes the Kelly criterion fraction for buying YES at the market
// price with believed probability fairProb: (b·p − q) / b with b = (1−m)/m.
// No edge means no bet.
func (e *Engine) kelly(fairProb, marketProb float64) float64 {
	if fairProb <= marketProb {
		return 0
	}

	b := (1 - marketProb) / marketProb
	if b <= 0 {
		return 0
	}

	p := fairProb
	q := 1 - fairProb
	kelly := (b*p - q) / b

	return math.Max(0, math.Min(e.cfg.MaxKelly, kelly))
}

// confidence scores how much to trust the estimate, clamped to [0.1, 1.0].
func (e *Engine) confidence(book domain.OrderBook, market domain.Market, numFlags int) float64 {
	confidence := 1.0 - float64(numFlags)*0.1

	totalDepth := book.BidDepth() + book.AskDepth()
	confidence *= math.Min(1.0, totalDepth/e.cfg.DepthConfidenceScale)

	if bps := book.SpreadBps(); bps > 0 {
		confidence *= math.Max(0.5, 1-bps/500)
	}

	// Distant resolutions leave more room for the world to change.
	hours := market.HoursToResolution()
	if hours > 720 {
		confidence *= 0.6
	} else if hours > 168 {
		confidence *= 0.8
	}

	return math.Max(0.1, math.Min(1.0, confidence))
}

// ScanTradeable estimates every active market with a known YES book and
// returns the tradeable estimates sorted by absolute edge, best first.
// minEdge <= 0 falls back to the configured minimum edge.
func (e *Engine) ScanTradeable(markets []domain.Market, books map[string]domain.OrderBook, minEdge float64) []domain.ProbabilityEstimate {
	if minEdge <= 0 {
		minEdge = e.cfg.MinEdgePct / 100
	}

	var opportunities []domain.ProbabilityEstimate
	for _, market := range markets {
		if !market.IsActive() || market.YesToken == nil {
			continue
		}
		book, ok := books[market.YesToken.TokenID]
		if !ok {
			continue
		}

		est := e.Estimate(market, book, nil)
		if est.IsTradeable() && math.Abs(est.Edge) >= minEdge {
			opportunities = append(opportunities, est)
		}
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return math.Abs(opportunities[i].Edge) > math.Abs(opportunities[j].Edge)
	})

	return opportunities
}
