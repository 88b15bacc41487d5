package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysim/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	return svc
}

func evalMarket() domain.Market {
	return domain.Market{
		MarketID:         "mkt-1",
		Slug:             "test-market",
		Category:         domain.CategoryCrypto,
		EndTime:          time.Now().UTC().Add(48 * time.Hour),
		ResolutionStatus: domain.StatusOpen,
	}
}

func evalEstimate(fairProb, marketProb float64) domain.ProbabilityEstimate {
	return domain.ProbabilityEstimate{
		MarketID:   "mkt-1",
		TokenID:    "tok-yes",
		FairProb:   fairProb,
		MarketProb: marketProb,
		Edge:       fairProb - marketProb,
		Confidence: 0.8,
		Timestamp:  time.Now().UTC(),
	}
}

func ptr(v float64) *float64 { return &v }

func TestLogDecisionComputesDrag(t *testing.T) {
	svc := newTestService(t)

	record := svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.51))

	require.NotNil(t, record.ExecutionDrag)
	// (0.51 - 0.50) / 0.50 = 200 bps.
	assert.InDelta(t, 200, *record.ExecutionDrag, 1e-9)
	assert.False(t, record.Resolved())
}

func TestLogDecisionWithoutFillHasNoDrag(t *testing.T) {
	svc := newTestService(t)

	record := svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)

	assert.Nil(t, record.ExecutionDrag)
}

func TestResolveDecisionScoresBuy(t *testing.T) {
	svc := newTestService(t)
	record := svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))

	require.NoError(t, svc.ResolveDecision(record.DecisionID, domain.SideYes))

	require.True(t, record.Resolved())
	assert.Equal(t, 1.0, *record.FinalValue)
	assert.InDelta(t, 50.0, *record.PnL, 1e-9)
	assert.InDelta(t, 0.50, *record.EdgeRealized, 1e-9)
	assert.True(t, *record.PredictionCorrect)

	err := svc.ResolveDecision(record.DecisionID, domain.SideYes)
	assert.Error(t, err, "double resolution must fail")
}

func TestResolveDecisionLosingNoToken(t *testing.T) {
	svc := newTestService(t)
	estimate := evalEstimate(0.45, 0.50) // negative edge, so a NO-token buy
	record := svc.LogDecision(evalMarket(), estimate,
		domain.SideBuy, domain.SideNo, 100, 0.50, ptr(0.50))

	require.NoError(t, svc.ResolveDecision(record.DecisionID, domain.SideYes))

	assert.Equal(t, 0.0, *record.FinalValue)
	assert.InDelta(t, -50.0, *record.PnL, 1e-9)
	assert.False(t, *record.PredictionCorrect,
		"negative edge predicted NO but the market resolved YES")
}

func TestBrierScorePerfectPrediction(t *testing.T) {
	svc := newTestService(t)
	record := svc.LogDecision(evalMarket(), evalEstimate(1.0, 0.90),
		domain.SideBuy, domain.SideYes, 100, 0.90, ptr(0.90))
	require.NoError(t, svc.ResolveDecision(record.DecisionID, domain.SideYes))

	metrics := svc.Metrics(nil)
	assert.Equal(t, 0.0, metrics.BrierScore)
}

func TestBrierScoreCoinFlip(t *testing.T) {
	svc := newTestService(t)
	record := svc.LogDecision(evalMarket(), evalEstimate(0.50, 0.45),
		domain.SideBuy, domain.SideYes, 100, 0.45, ptr(0.45))
	require.NoError(t, svc.ResolveDecision(record.DecisionID, domain.SideYes))

	metrics := svc.Metrics(nil)
	assert.InDelta(t, 0.25, metrics.BrierScore, 1e-9)
}

func TestResolveMarketScoresAllPending(t *testing.T) {
	svc := newTestService(t)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))
	svc.LogDecision(evalMarket(), evalEstimate(0.60, 0.50),
		domain.SideBuy, domain.SideYes, 50, 0.50, ptr(0.50))

	other := evalMarket()
	other.MarketID = "mkt-2"
	otherEstimate := evalEstimate(0.55, 0.50)
	otherEstimate.MarketID = "mkt-2"
	svc.LogDecision(other, otherEstimate, domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))

	resolved := svc.ResolveMarket("mkt-1", domain.SideYes)

	assert.Equal(t, 2, resolved)
	assert.Len(t, svc.PendingResolutions(), 1)
	assert.Equal(t, "mkt-2", svc.PendingResolutions()[0].MarketID)
}

func TestMetricsAggregation(t *testing.T) {
	svc := newTestService(t)

	winner := svc.LogDecision(evalMarket(), evalEstimate(0.60, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))
	loser := svc.LogDecision(evalMarket(), evalEstimate(0.60, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))

	require.NoError(t, svc.ResolveDecision(winner.DecisionID, domain.SideYes))
	require.NoError(t, svc.ResolveDecision(loser.DecisionID, domain.SideNo))

	metrics := svc.Metrics(nil)

	assert.Equal(t, 2, metrics.TotalDecisions)
	assert.Equal(t, 2, metrics.ResolvedDecisions)
	assert.Equal(t, 1, metrics.CorrectPredictions)
	assert.InDelta(t, 50.0, metrics.Accuracy, 1e-9)
	assert.Equal(t, 1, metrics.ProfitableDecisions)
	assert.InDelta(t, 50.0, metrics.WinRate, 1e-9)
	// PnL: +0.50*100 and -0.50*100 cancel out.
	assert.InDelta(t, 0.0, metrics.TotalPnL, 1e-9)
	// Edge realized: +0.50 and -0.50; mean |edge| is 0.10.
	assert.InDelta(t, 0.0, metrics.EdgePreservationRatio, 1e-9)
	// Brier: (0.6-1)^2 and (0.6-0)^2 averaged.
	assert.InDelta(t, (0.16+0.36)/2, metrics.BrierScore, 1e-9)
}

func TestCohortRollsAfterWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CohortDurationHours = 1.0
	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))
	current = base.Add(30 * time.Minute)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))
	current = base.Add(90 * time.Minute)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))

	cohorts := svc.Cohorts()
	require.Len(t, cohorts, 2)
	assert.Equal(t, "cohort_20260115_1200", cohorts[0].CohortID)
	assert.Equal(t, 2, cohorts[0].TotalDecisions)
	assert.Equal(t, 1, cohorts[1].TotalDecisions)
	assert.InDelta(t, 50.0, cohorts[1].CapitalDeployed, 1e-9)
}

func TestCohortStatsFromResolvedMembers(t *testing.T) {
	svc := newTestService(t)
	record := svc.LogDecision(evalMarket(), evalEstimate(0.60, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, ptr(0.50))
	require.NoError(t, svc.ResolveDecision(record.DecisionID, domain.SideYes))

	cohorts := svc.Cohorts()
	require.Len(t, cohorts, 1)
	assert.Equal(t, 1, cohorts[0].ProfitableDecisions)
	assert.InDelta(t, 50.0, cohorts[0].TotalPnL, 1e-9)
	assert.InDelta(t, 0.16, cohorts[0].BrierScore, 1e-9)
}

func TestHistoryEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 2
	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)

	first := svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)

	assert.Len(t, svc.History(0), 2)
	err = svc.ResolveDecision(first.DecisionID, domain.SideYes)
	assert.Error(t, err, "evicted decisions are no longer addressable")
}

func TestEvictionKeepsCohortsConsistent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 2
	cfg.CohortDurationHours = 1.0
	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)
	current = base.Add(90 * time.Minute)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)
	current = base.Add(100 * time.Minute)
	svc.LogDecision(evalMarket(), evalEstimate(0.55, 0.50),
		domain.SideBuy, domain.SideYes, 100, 0.50, nil)

	// The first cohort's only member was evicted, so the cohort is gone and
	// cohort totals match the retained history.
	cohorts := svc.Cohorts()
	require.Len(t, cohorts, 1)
	assert.Equal(t, 2, cohorts[0].TotalDecisions)

	total := 0
	for _, cohort := range cohorts {
		total += cohort.TotalDecisions
	}
	assert.Equal(t, svc.Metrics(nil).TotalDecisions, total)
}
