// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/feedback"
	"github.com/traylinx/cortex/internal/strategy"
)

// failingModelCatalog simulates an unreachable catalog.
type failingModelCatalog struct{}

func (f *failingModelCatalog) ListCandidates(ctx context.Context, filter *catalog.CandidateFilter) ([]*catalog.Candidate, error) {
	return nil, catalog.ErrCatalogUnavailable
}

func testEngine(t *testing.T, candidates []*catalog.Candidate, opts EngineOptions) *Engine {
	t.Helper()
	tasks := catalog.NewStaticTaskCatalog([]*catalog.TaskMetadata{financialSummaryTask()})
	models := catalog.NewStaticModelCatalog(candidates)
	return NewEngine(tasks, models, nil, strategy.NewRegistry(), feedback.NewTracker(feedback.TrackerOptions{}), opts)
}

func TestDecideSelectsMaxScore(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA(), candidateB()}, EngineOptions{ConfidenceThreshold: 0.3})

	d, err := e.Decide(context.Background(), &RoutingRequest{
		TaskType:        "financial_summary",
		EstimatedTokens: 1000,
	}, &DecideOptions{StrategyOverride: "cost_optimized"})
	require.NoError(t, err)

	assert.Equal(t, "prov_b:model_b", d.Selected.Key())
	assert.False(t, d.Degraded)
	assert.Equal(t, "cost_optimized", d.StrategyUsed)
	assert.NotEmpty(t, d.DecisionID)
	assert.Len(t, d.Reasoning, 3)
	require.Len(t, d.FallbackChain, 1)
	assert.Equal(t, "prov_a:model_a", d.FallbackChain[0].Candidate.Key())
}

func TestDecideQualityFirstFlipsWinner(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA(), candidateB()}, EngineOptions{ConfidenceThreshold: 0.3})

	d, err := e.Decide(context.Background(), &RoutingRequest{
		TaskType:        "financial_summary",
		EstimatedTokens: 1000,
	}, &DecideOptions{StrategyOverride: "quality_first"})
	require.NoError(t, err)
	assert.Equal(t, "prov_a:model_a", d.Selected.Key())
}

func TestDecidePureCostWeightPicksCheapest(t *testing.T) {
	mk := func(model string, cost float64) *catalog.Candidate {
		return &catalog.Candidate{
			Provider: "p", ModelID: model,
			CostPer1kInput: cost, CostPer1kOutput: cost,
			AvgLatencyMs: 1000, CapabilityScore: 0.9,
			Privacy: catalog.PrivacyCloud, IsAvailable: true,
		}
	}
	e := testEngine(t, []*catalog.Candidate{mk("expensive", 0.012), mk("cheap", 0.006), mk("mid", 0.008)},
		EngineOptions{ConfidenceThreshold: 0.01})

	pureCost := strategy.WeightVector{Cost: 1.0}
	d, err := e.Decide(context.Background(), &RoutingRequest{
		TaskType:        "financial_summary",
		EstimatedTokens: 1000,
	}, &DecideOptions{WeightOverride: &pureCost})
	require.NoError(t, err)

	assert.Equal(t, "p:cheap", d.Selected.Key())
	assert.Equal(t, "custom", d.StrategyUsed)
}

func TestDecideDegradedWhenNoConfidenceQualifies(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA(), candidateB()}, EngineOptions{ConfidenceThreshold: 0.99})

	d, err := e.Decide(context.Background(), &RoutingRequest{
		TaskType:        "financial_summary",
		EstimatedTokens: 1000,
	}, nil)
	require.NoError(t, err)
	assert.True(t, d.Degraded)

	stats := e.GetStatistics()
	assert.Equal(t, int64(1), stats.DegradedDecisions)
}

func TestDecideTaskNotFound(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA()}, EngineOptions{})

	_, err := e.Decide(context.Background(), &RoutingRequest{TaskType: "unknown_task"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrTaskNotFound)

	var derr *DecisionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, StageResolveTask, derr.Stage)
}

func TestDecideNoCandidates(t *testing.T) {
	// Candidates below the task's capability floor are filtered out.
	weak := candidateA()
	weak.CapabilityScore = 0.1
	e := testEngine(t, []*catalog.Candidate{weak}, EngineOptions{})

	_, err := e.Decide(context.Background(), &RoutingRequest{TaskType: "financial_summary"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCandidates)

	stats := e.GetStatistics()
	assert.Equal(t, int64(1), stats.FailedDecisions)
	assert.Equal(t, int64(0), stats.TotalDecisions)
}

func TestDecideCatalogUnavailable(t *testing.T) {
	tasks := catalog.NewStaticTaskCatalog([]*catalog.TaskMetadata{financialSummaryTask()})
	e := NewEngine(tasks, &failingModelCatalog{}, nil, strategy.NewRegistry(),
		feedback.NewTracker(feedback.TrackerOptions{}), EngineOptions{})

	_, err := e.Decide(context.Background(), &RoutingRequest{TaskType: "financial_summary"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
}

func TestDecideInvalidRequest(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA()}, EngineOptions{})

	_, err := e.Decide(context.Background(), &RoutingRequest{}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.Decide(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDecideCancelledContext(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA(), candidateB()}, EngineOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Decide(ctx, &RoutingRequest{TaskType: "financial_summary", EstimatedTokens: 1000}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecideEstimatesTokensFromContent(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA()}, EngineOptions{ConfidenceThreshold: 0.01})

	req := &RoutingRequest{
		TaskType: "financial_summary",
		Content:  "Summarize the quarterly earnings report for the board meeting.",
	}
	_, err := e.Decide(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Greater(t, req.EstimatedTokens, 0)
}

func TestRecordOutcomeFeedsTracker(t *testing.T) {
	tracker := feedback.NewTracker(feedback.TrackerOptions{})
	tasks := catalog.NewStaticTaskCatalog([]*catalog.TaskMetadata{financialSummaryTask()})
	models := catalog.NewStaticModelCatalog([]*catalog.Candidate{candidateA()})
	e := NewEngine(tasks, models, nil, strategy.NewRegistry(), tracker, EngineOptions{ConfidenceThreshold: 0.01})

	d, err := e.Decide(context.Background(), &RoutingRequest{TaskType: "financial_summary", EstimatedTokens: 1000}, nil)
	require.NoError(t, err)

	require.NoError(t, e.RecordOutcome(d.DecisionID, feedback.ActualMetrics{
		Cost: d.ExpectedCost, LatencyMs: d.ExpectedLatencyMs, Quality: 0.9, Success: true,
	}))

	p := tracker.GetProfile("prov_a", "model_a")
	require.NotNil(t, p)
	assert.Equal(t, 1, p.SampleCount)

	assert.Error(t, e.RecordOutcome("no-such-decision", feedback.ActualMetrics{}))
}

func TestDecisionHistoryAndStatistics(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA(), candidateB()}, EngineOptions{ConfidenceThreshold: 0.3})

	for i := 0; i < 3; i++ {
		_, err := e.Decide(context.Background(), &RoutingRequest{
			TaskType:        "financial_summary",
			EstimatedTokens: 1000,
		}, &DecideOptions{StrategyOverride: "cost_optimized"})
		require.NoError(t, err)
	}

	history := e.GetDecisionHistory(2, HistoryFilter{})
	assert.Len(t, history, 2)

	stats := e.GetStatistics()
	assert.Equal(t, int64(3), stats.TotalDecisions)
	assert.Equal(t, int64(3), stats.StrategyUsage["cost_optimized"])
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}

func TestHealthCheck(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA()}, EngineOptions{})
	health := e.HealthCheck()
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Components)

	// Without a tracker the engine still works but reports degraded.
	tasks := catalog.NewStaticTaskCatalog(nil)
	models := catalog.NewStaticModelCatalog(nil)
	bare := NewEngine(tasks, models, nil, strategy.NewRegistry(), nil, EngineOptions{})
	assert.Equal(t, "degraded", bare.HealthCheck().Status)
}

func TestEngineReset(t *testing.T) {
	e := testEngine(t, []*catalog.Candidate{candidateA()}, EngineOptions{ConfidenceThreshold: 0.01})
	_, err := e.Decide(context.Background(), &RoutingRequest{TaskType: "financial_summary", EstimatedTokens: 1000}, nil)
	require.NoError(t, err)

	e.Reset()
	assert.Equal(t, int64(0), e.GetStatistics().TotalDecisions)
	assert.Empty(t, e.GetDecisionHistory(0, HistoryFilter{}))
}
