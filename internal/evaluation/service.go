// Package evaluation measures prediction quality against realized outcomes.
// Every trading decision is logged with its estimate snapshot; when the
// market resolves the decision is scored, feeding Brier scores, edge
// preservation, execution drag, and time-based cohort statistics.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polysim/internal/domain"
	"github.com/alejandrodnm/polysim/internal/ports"
)

// Config controls cohort windowing and in-memory retention.
type Config struct {
	CohortDurationHours float64
	MaxHistory          int
}

// DefaultConfig returns 12h cohorts and a 1000-decision history.
func DefaultConfig() Config {
	return Config{
		CohortDurationHours: 12.0,
		MaxHistory:          1000,
	}
}

// Metrics is the aggregate scorecard over resolved decisions.
type Metrics struct {
	TotalDecisions        int
	ResolvedDecisions     int
	CorrectPredictions    int
	ProfitableDecisions   int
	Accuracy              float64 // percent
	WinRate               float64 // percent of resolved decisions with positive P&L
	BrierScore            float64
	MeanEdge              float64
	MeanEdgeRealized      float64
	EdgePreservationRatio float64
	MeanExecutionDragBps  float64
	TotalPnL              float64
}

// Service records and scores decisions. A nil store keeps everything in
// memory only.
type Service struct {
	cfg    Config
	store  ports.DecisionStore
	logger *slog.Logger

	mu        sync.Mutex
	decisions []*domain.DecisionRecord
	byID      map[string]*domain.DecisionRecord

	cohorts            map[string]*domain.CohortStats
	cohortMembers      map[string][]*domain.DecisionRecord
	cohortOf           map[string]string // decision id -> cohort id
	currentCohortID    string
	currentCohortStart time.Time

	now func() time.Time
}

// New creates a Service, restoring prior decisions from the store when one
// is provided.
func New(cfg Config, store ports.DecisionStore, logger *slog.Logger) (*Service, error) {
	if cfg.CohortDurationHours <= 0 {
		cfg.CohortDurationHours = DefaultConfig().CohortDurationHours
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		byID:          make(map[string]*domain.DecisionRecord),
		cohorts:       make(map[string]*domain.CohortStats),
		cohortMembers: make(map[string][]*domain.DecisionRecord),
		cohortOf:      make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}

	if store != nil {
		records, err := store.LoadDecisions(context.Background())
		if err != nil {
			return nil, fmt.Errorf("evaluation.New: load decisions: %w", err)
		}
		// Restore caps at MaxHistory so a restored service aggregates the
		// same window a long-running one would.
		if len(records) > cfg.MaxHistory {
			records = records[len(records)-cfg.MaxHistory:]
		}
		for _, record := range records {
			s.decisions = append(s.decisions, record)
			s.byID[record.DecisionID] = record
			s.assignCohort(record)
		}
		s.logger.Info("restored decision history", "decisions", len(records))
	}

	return s, nil
}

// LogDecision records a trading decision at execution time. fillPrice may be
// nil for resting orders; execution drag is only computed for filled ones.
func (s *Service) LogDecision(
	market domain.Market,
	estimate domain.ProbabilityEstimate,
	side domain.OrderSide,
	tokenSide domain.TokenSide,
	size float64,
	entryPrice float64,
	fillPrice *float64,
) *domain.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &domain.DecisionRecord{
		DecisionID: uuid.New().String(),
		MarketID:   market.MarketID,
		TokenID:    estimate.TokenID,
		Timestamp:  s.now(),
		Side:       side,
		TokenSide:  tokenSide,
		Size:       size,
		EntryPrice: entryPrice,
		FairProb:   estimate.FairProb,
		MarketProb: estimate.MarketProb,
		Edge:       estimate.Edge,
		Confidence: estimate.Confidence,
		FillPrice:  fillPrice,
	}

	if fillPrice != nil && entryPrice > 0 {
		drag := (*fillPrice - entryPrice) / entryPrice * 10000
		record.ExecutionDrag = &drag
	}

	s.decisions = append(s.decisions, record)
	if len(s.decisions) > s.cfg.MaxHistory {
		s.evict(s.decisions[0])
		s.decisions = s.decisions[1:]
	}
	s.byID[record.DecisionID] = record
	s.assignCohort(record)
	s.persist(record)

	return record
}

// ResolveDecision scores one decision against the market outcome.
func (s *Service) ResolveDecision(decisionID string, outcome domain.TokenSide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[decisionID]
	if !ok {
		return fmt.Errorf("evaluation.ResolveDecision: unknown decision %q", decisionID)
	}
	if record.Resolved() {
		return fmt.Errorf("evaluation.ResolveDecision: decision %q already resolved", decisionID)
	}

	s.score(record, outcome)
	s.persist(record)
	return nil
}

// ResolveMarket scores every pending decision in a market. Returns the number
// of decisions resolved.
func (s *Service) ResolveMarket(marketID string, outcome domain.TokenSide) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := 0
	for _, record := range s.decisions {
		if record.MarketID != marketID || record.Resolved() {
			continue
		}
		s.score(record, outcome)
		s.persist(record)
		resolved++
	}
	return resolved
}

// score fills in the resolution fields. Caller holds the lock.
func (s *Service) score(record *domain.DecisionRecord, outcome domain.TokenSide) {
	record.Outcome = &outcome

	finalValue := 0.0
	if record.TokenSide == outcome {
		finalValue = 1.0
	}
	record.FinalValue = &finalValue

	fill := record.EntryPrice
	if record.FillPrice != nil {
		fill = *record.FillPrice
	}

	var pnl, edgeRealized float64
	if record.Side == domain.SideBuy {
		pnl = (finalValue - fill) * record.Size
		edgeRealized = finalValue - fill
	} else {
		pnl = (fill - finalValue) * record.Size
		edgeRealized = fill - finalValue
	}
	record.PnL = &pnl
	record.EdgeRealized = &edgeRealized

	// The estimate predicted YES-richness when edge > 0; it was right when
	// the market in fact resolved YES.
	correct := (record.Edge > 0) == (outcome == domain.SideYes)
	record.PredictionCorrect = &correct
}

// Metrics aggregates resolved decisions. A nil decision set means all.
func (s *Service) Metrics(records []*domain.DecisionRecord) Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = s.decisions
	}
	return computeMetrics(records)
}

func computeMetrics(records []*domain.DecisionRecord) Metrics {
	m := Metrics{TotalDecisions: len(records)}

	var brierSum, edgeSum, absEdgeSum, realizedSum, dragSum float64
	var dragCount int

	for _, record := range records {
		if !record.Resolved() {
			continue
		}
		m.ResolvedDecisions++

		outcome01 := 0.0
		if *record.Outcome == domain.SideYes {
			outcome01 = 1.0
		}
		diff := record.FairProb - outcome01
		brierSum += diff * diff

		if record.PredictionCorrect != nil && *record.PredictionCorrect {
			m.CorrectPredictions++
		}

		edgeSum += record.Edge
		absEdgeSum += math.Abs(record.Edge)
		if record.EdgeRealized != nil {
			realizedSum += *record.EdgeRealized
		}
		if record.PnL != nil {
			m.TotalPnL += *record.PnL
			if *record.PnL > 0 {
				m.ProfitableDecisions++
			}
		}
		if record.ExecutionDrag != nil {
			dragSum += *record.ExecutionDrag
			dragCount++
		}
	}

	if m.ResolvedDecisions == 0 {
		return m
	}

	n := float64(m.ResolvedDecisions)
	m.Accuracy = float64(m.CorrectPredictions) / n * 100
	m.WinRate = float64(m.ProfitableDecisions) / n * 100
	m.BrierScore = brierSum / n
	m.MeanEdge = edgeSum / n
	m.MeanEdgeRealized = realizedSum / n
	if absEdgeSum > 0 {
		m.EdgePreservationRatio = realizedSum / absEdgeSum
	}
	if dragCount > 0 {
		m.MeanExecutionDragBps = dragSum / float64(dragCount)
	}

	return m
}

// assignCohort places a record in the current time cohort, rolling a new
// cohort when the window has elapsed. Caller holds the lock.
func (s *Service) assignCohort(record *domain.DecisionRecord) {
	duration := time.Duration(s.cfg.CohortDurationHours * float64(time.Hour))

	if s.currentCohortID == "" || record.Timestamp.Sub(s.currentCohortStart) >= duration {
		s.currentCohortStart = record.Timestamp
		s.currentCohortID = "cohort_" + record.Timestamp.Format("20060102_1504")
		s.cohorts[s.currentCohortID] = &domain.CohortStats{
			CohortID:  s.currentCohortID,
			StartTime: s.currentCohortStart,
			EndTime:   s.currentCohortStart.Add(duration),
		}
	}

	s.cohortMembers[s.currentCohortID] = append(s.cohortMembers[s.currentCohortID], record)
	s.cohortOf[record.DecisionID] = s.currentCohortID
}

// evict drops a decision from every index so cohort stats and metrics stay
// in agreement. Caller holds the lock.
func (s *Service) evict(record *domain.DecisionRecord) {
	delete(s.byID, record.DecisionID)

	cohortID, ok := s.cohortOf[record.DecisionID]
	if !ok {
		return
	}
	delete(s.cohortOf, record.DecisionID)

	members := s.cohortMembers[cohortID]
	for i, member := range members {
		if member.DecisionID == record.DecisionID {
			s.cohortMembers[cohortID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(s.cohortMembers[cohortID]) == 0 {
		delete(s.cohortMembers, cohortID)
		delete(s.cohorts, cohortID)
	}
}

// Cohorts returns cohort statistics recomputed from member decisions, oldest
// first.
func (s *Service) Cohorts() []*domain.CohortStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.CohortStats, 0, len(s.cohorts))
	for id, stats := range s.cohorts {
		members := s.cohortMembers[id]
		metrics := computeMetrics(members)

		stats.TotalDecisions = len(members)
		stats.ProfitableDecisions = metrics.ProfitableDecisions
		stats.TotalPnL = metrics.TotalPnL
		stats.BrierScore = metrics.BrierScore
		stats.MeanEdge = metrics.MeanEdge
		stats.MeanEdgeRealized = metrics.MeanEdgeRealized
		stats.EdgePreservationRatio = metrics.EdgePreservationRatio
		stats.MeanExecutionDragBps = metrics.MeanExecutionDragBps

		var deployed float64
		for _, record := range members {
			deployed += record.Size * record.EntryPrice
		}
		stats.CapitalDeployed = deployed

		out = append(out, stats)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// PendingResolutions returns decisions whose markets have not settled yet.
func (s *Service) PendingResolutions() []*domain.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*domain.DecisionRecord
	for _, record := range s.decisions {
		if !record.Resolved() {
			pending = append(pending, record)
		}
	}
	return pending
}

// History returns the most recent decisions, newest last, capped at limit
// (0 means all).
func (s *Service) History(limit int) []*domain.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.decisions) {
		limit = len(s.decisions)
	}
	out := make([]*domain.DecisionRecord, limit)
	copy(out, s.decisions[len(s.decisions)-limit:])
	return out
}

// persist writes through to the store, logging failures without failing the
// simulation. Caller holds the lock.
func (s *Service) persist(record *domain.DecisionRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveDecision(context.Background(), record); err != nil {
		s.logger.Warn("failed to persist decision", "decision_id", record.DecisionID, "error", err)
	}
}
