package domain

import "time"

// DecisionRecord logs one trading decision for later evaluation against the
// realized outcome. Resolution fields stay nil until the market settles.
type DecisionRecord struct {
	DecisionID string
	MarketID   string
	TokenID    string

	Timestamp  time.Time
	Side       OrderSide
	TokenSide  TokenSide // side of the token actually traded
	Size       float64
	EntryPrice float64

	// Estimate snapshot at decision time.
	FairProb   float64
	MarketProb float64
	Edge       float64
	Confidence float64

	// Execution.
	FillPrice     *float64
	ExecutionDrag *float64 // (fill - entry) / entry, in bps

	// Set on resolution.
	Outcome           *TokenSide
	FinalValue        *float64 // 1.0 or 0.0 for the traded token
	PnL               *float64
	PredictionCorrect *bool
	EdgeRealized      *float64
}

// Resolved reports whether the decision's market has settled.
func (d *DecisionRecord) Resolved() bool {
	return d.Outcome != nil
}

// CohortStats aggregates decisions whose timestamps fall in one fixed-duration
// window. Stats are recomputed lazily from member decisions on request.
type CohortStats struct {
	CohortID  string
	StartTime time.Time
	EndTime   time.Time

	TotalDecisions      int
	ProfitableDecisions int

	MeanEdge              float64
	MeanEdgeRealized      float64
	EdgePreservationRatio float64

	BrierScore float64

	MeanExecutionDragBps float64

	TotalPnL        float64
	CapitalDeployed float64
}
