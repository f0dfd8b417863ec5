// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cortex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/config"
	"github.com/traylinx/cortex/internal/feedback"
	"github.com/traylinx/cortex/internal/routing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.NoError(t, err)
	cfg.Strategies.Dir = t.TempDir()
	cfg.LogDir = t.TempDir()
	return cfg
}

func testCatalogs() (catalog.TaskCatalog, catalog.ModelCatalog) {
	tasks := catalog.NewStaticTaskCatalog([]*catalog.TaskMetadata{{
		TaskType:           "summarize",
		MinCapabilityScore: 0.5,
		MaxCostPer1k:       0.01,
		MaxLatencyMs:       5000,
		DataSensitivity:    catalog.SensitivityInternal,
	}})
	models := catalog.NewStaticModelCatalog([]*catalog.Candidate{
		{Provider: "ollama", ModelID: "llama3", AvgLatencyMs: 3000,
			CapabilityScore: 0.7, Privacy: catalog.PrivacyLocal, IsAvailable: true},
		{Provider: "gemini", ModelID: "flash", CostPer1kInput: 0.0005, CostPer1kOutput: 0.0015,
			AvgLatencyMs: 800, CapabilityScore: 0.8, Privacy: catalog.PrivacyCloud, IsAvailable: true},
	})
	return tasks, models
}

func TestServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.AuditExport.Enabled = true
	cfg.AuditExport.LogPath = filepath.Join(t.TempDir(), "audit.log")

	tasks, models := testCatalogs()
	svc, err := New(ctx, cfg, tasks, models, nil)
	require.NoError(t, err)
	defer svc.Close(ctx)

	d, err := svc.Decide(ctx, &routing.RoutingRequest{
		TaskType:        "summarize",
		EstimatedTokens: 1000,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Selected)
	assert.Equal(t, "balanced", d.StrategyUsed)

	require.NoError(t, svc.RecordOutcome(d.DecisionID, feedback.ActualMetrics{
		Cost:      d.ExpectedCost,
		LatencyMs: d.ExpectedLatencyMs,
		Quality:   0.85,
		Success:   true,
	}))

	p := svc.Tracker.GetProfile(d.Selected.Provider, d.Selected.ModelID)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.SampleCount)

	stats := svc.Engine.GetStatistics()
	assert.Equal(t, int64(1), stats.TotalDecisions)
}

func TestServiceAdjustmentFlow(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Feedback.MinSamples = 5

	tasks, models := testCatalogs()
	svc, err := New(ctx, cfg, tasks, models, nil)
	require.NoError(t, err)
	defer svc.Close(ctx)

	_, err = svc.SuggestAdjustment("balanced", 0)
	assert.ErrorIs(t, err, feedback.ErrInsufficientData)

	for i := 0; i < 6; i++ {
		d, err := svc.Decide(ctx, &routing.RoutingRequest{TaskType: "summarize", EstimatedTokens: 1000}, nil)
		require.NoError(t, err)
		require.NoError(t, svc.RecordOutcome(d.DecisionID, feedback.ActualMetrics{
			Cost: d.ExpectedCost, LatencyMs: d.ExpectedLatencyMs, Quality: 0.85, Success: true,
		}))
	}

	suggestion, err := svc.SuggestAdjustment("balanced", 0)
	require.NoError(t, err)
	require.NotNil(t, suggestion)

	updated, err := svc.ApplyAdjustment(suggestion)
	require.NoError(t, err)
	assert.NoError(t, updated.Weights.Validate())
	assert.Len(t, svc.Adjuster.History(), 1)
}

func TestServiceRejectsMissingCollaborators(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	tasks, models := testCatalogs()

	_, err := New(ctx, nil, tasks, models, nil)
	assert.Error(t, err)

	_, err = New(ctx, cfg, nil, models, nil)
	assert.Error(t, err)

	_, err = New(ctx, cfg, tasks, nil, nil)
	assert.Error(t, err)
}
