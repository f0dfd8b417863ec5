// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcomeFansOutPerFactor(t *testing.T) {
	tr := NewTracker(TrackerOptions{})

	records, err := tr.RecordOutcome("d1", "ollama", "llama3",
		PredictedMetrics{Cost: 0.01, LatencyMs: 2000, Quality: 0.9},
		ActualMetrics{Cost: 0.012, LatencyMs: 2500, Quality: 0.85, Success: true})
	require.NoError(t, err)
	require.Len(t, records, 4)

	byFactor := make(map[OutcomeFactor]*Record, 4)
	for _, r := range records {
		byFactor[r.Factor] = r
	}
	require.Contains(t, byFactor, OutcomeCost)
	require.Contains(t, byFactor, OutcomeLatency)
	require.Contains(t, byFactor, OutcomeQuality)
	require.Contains(t, byFactor, OutcomeSuccess)

	assert.InDelta(t, 0.002, byFactor[OutcomeCost].Variance, 1e-9)
	assert.InDelta(t, 500, byFactor[OutcomeLatency].Variance, 1e-9)
	assert.Equal(t, 1.0, byFactor[OutcomeSuccess].Actual)
}

func TestProfileSeededByFirstOutcome(t *testing.T) {
	tr := NewTracker(TrackerOptions{})

	_, err := tr.RecordOutcome("d1", "openai", "gpt-4",
		PredictedMetrics{Cost: 0.03, LatencyMs: 1000, Quality: 0.95},
		ActualMetrics{Cost: 0.03, LatencyMs: 1200, Quality: 0.9, Success: true})
	require.NoError(t, err)

	p := tr.GetProfile("openai", "gpt-4")
	require.NotNil(t, p)
	assert.Equal(t, 1, p.SampleCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 1e-9)
	assert.InDelta(t, 1200, p.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.9, p.AvgQuality, 1e-9)
}

// The EMA with alpha 0.1 must move by a predictable amount per repeat
// application: no hidden state beyond the profile itself.
func TestEMAUpdateIsReproducible(t *testing.T) {
	predicted := PredictedMetrics{Cost: 0.01, LatencyMs: 1000, Quality: 0.9}

	first := ActualMetrics{Cost: 0.01, LatencyMs: 1000, Quality: 0.9, Success: true}
	second := ActualMetrics{Cost: 0.01, LatencyMs: 2000, Quality: 0.5, Success: true}

	runTwice := func() *PerformanceProfile {
		tr := NewTracker(TrackerOptions{})
		_, err := tr.RecordOutcome("d1", "p", "m", predicted, first)
		require.NoError(t, err)
		_, err = tr.RecordOutcome("d2", "p", "m", predicted, second)
		require.NoError(t, err)
		return tr.GetProfile("p", "m")
	}

	a := runTwice()
	b := runTwice()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.AvgLatencyMs, b.AvgLatencyMs)
	assert.Equal(t, a.AvgQuality, b.AvgQuality)

	// Seed 1000, then ema toward 2000 with alpha 0.1.
	assert.InDelta(t, 1000+0.1*(2000-1000), a.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.9+0.1*(0.5-0.9), a.AvgQuality, 1e-9)
	assert.Equal(t, 2, a.SampleCount)
}

func TestGetProfileReturnsCopy(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.RecordOutcome("d1", "p", "m",
		PredictedMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.8},
		ActualMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.8, Success: true})
	require.NoError(t, err)

	p := tr.GetProfile("p", "m")
	require.NotNil(t, p)
	p.AvgQuality = 0.0
	p.AccuracyByFactor[OutcomeCost] = -1

	again := tr.GetProfile("p", "m")
	assert.InDelta(t, 0.8, again.AvgQuality, 1e-9)
	assert.NotEqual(t, -1.0, again.AccuracyByFactor[OutcomeCost])
}

func TestRecordOutcomeJSON(t *testing.T) {
	tr := NewTracker(TrackerOptions{})

	payload := []byte(`{
		"predicted": {"cost": 0.02, "latency_ms": 1500, "quality": 0.9},
		"actual": {"cost": 0.025, "latency_ms": 1800, "quality": 0.88, "success": true}
	}`)
	records, err := tr.RecordOutcomeJSON("d9", "gemini", "flash", payload)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	p := tr.GetProfile("gemini", "flash")
	require.NotNil(t, p)
	assert.InDelta(t, 1800, p.AvgLatencyMs, 1e-9)
}

func TestRecordsSinceFilters(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.RecordOutcome("d1", "a", "m1",
		PredictedMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5},
		ActualMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5, Success: true})
	require.NoError(t, err)
	_, err = tr.RecordOutcome("d2", "b", "m2",
		PredictedMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5},
		ActualMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5, Success: false})
	require.NoError(t, err)

	all := tr.RecordsSince(time.Now().Add(-time.Hour), "", "")
	assert.Len(t, all, 8)

	onlyA := tr.RecordsSince(time.Now().Add(-time.Hour), "a", "m1")
	assert.Len(t, onlyA, 4)

	none := tr.RecordsSince(time.Now().Add(time.Hour), "", "")
	assert.Empty(t, none)
}

func TestTrackerBoundsRecordRetention(t *testing.T) {
	tr := NewTracker(TrackerOptions{MaxRecords: 8})
	for i := 0; i < 5; i++ {
		_, err := tr.RecordOutcome("d", "p", "m",
			PredictedMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5},
			ActualMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5, Success: true})
		require.NoError(t, err)
	}
	got := tr.RecordsSince(time.Time{}, "", "")
	assert.LessOrEqual(t, len(got), 8)
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(TrackerOptions{})
	_, err := tr.RecordOutcome("d1", "p", "m",
		PredictedMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5},
		ActualMetrics{Cost: 0.01, LatencyMs: 100, Quality: 0.5, Success: true})
	require.NoError(t, err)

	tr.Reset()
	assert.Nil(t, tr.GetProfile("p", "m"))
	assert.Empty(t, tr.RecordsSince(time.Time{}, "", ""))
}
