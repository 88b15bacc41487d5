package domain

import "time"

// RiskFlag tags an independently triggered risk condition on an estimate.
type RiskFlag string

const (
	FlagLowDepth       RiskFlag = "LOW_DEPTH"       // insufficient liquidity
	FlagWideSpread     RiskFlag = "WIDE_SPREAD"     // spread too wide
	FlagLongResolution RiskFlag = "LONG_RESOLUTION" // too far from resolution
	FlagHighVolatility RiskFlag = "HIGH_VOLATILITY" // price moving rapidly
	FlagLowVolume      RiskFlag = "LOW_VOLUME"      // low trading activity
	FlagDisputeRisk    RiskFlag = "DISPUTE_RISK"    // ambiguous resolution criteria
	FlagImbalancedBook RiskFlag = "IMBALANCED_BOOK" // heavily skewed order book
	FlagNearCertainty  RiskFlag = "NEAR_CERTAINTY"  // price near 0 or 1
)

// NumRiskFlags is the normalization constant for the risk score: the total
// number of defined flags.
const NumRiskFlags = 8

// EstimateInputs captures the raw inputs an estimate was derived from.
type EstimateInputs struct {
	MidPrice          float64
	Spread            float64
	Imbalance         float64
	BidDepth          float64
	AskDepth          float64
	HoursToResolution float64
	Category          Category
}

// ProbabilityEstimate is the probability model's output for one market.
type ProbabilityEstimate struct {
	MarketID string
	TokenID  string

	FairProb   float64 // our estimated fair probability of YES
	MarketProb float64 // market-implied probability (mid price)

	Edge    float64 // FairProb - MarketProb
	EdgePct float64

	ExpectedValue float64 // EV of a $100 position
	KellyFraction float64

	Confidence float64 // 0-1

	RiskFlags []RiskFlag
	RiskScore float64 // flag count / NumRiskFlags

	Timestamp    time.Time
	ModelVersion string
	Inputs       EstimateInputs
}

// HasFlag reports whether the estimate carries the given risk flag.
func (e ProbabilityEstimate) HasFlag(f RiskFlag) bool {
	for _, rf := range e.RiskFlags {
		if rf == f {
			return true
		}
	}
	return false
}

// IsTradeable reports whether the estimate clears every tradeability gate:
// |edge| >= 1.5%, confidence >= 0.5, risk score < 0.7, and no near-certainty.
func (e ProbabilityEstimate) IsTradeable() bool {
	return abs(e.Edge) >= 0.015 &&
		e.Confidence >= 0.5 &&
		e.RiskScore < 0.7 &&
		!e.HasFlag(FlagNearCertainty)
}

// SuggestedSide returns the side to trade, false when not tradeable.
func (e ProbabilityEstimate) SuggestedSide() (OrderSide, bool) {
	if !e.IsTradeable() {
		return SideBuy, false
	}
	if e.Edge > 0 {
		return SideBuy, true
	}
	return SideSell, true
}

// HasCriticalRisk reports whether a dispute-risk or low-depth flag is set.
func (e ProbabilityEstimate) HasCriticalRisk() bool {
	return e.HasFlag(FlagDisputeRisk) || e.HasFlag(FlagLowDepth)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
