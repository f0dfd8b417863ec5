// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package feedback ingests post-execution outcomes, maintains per-candidate
// performance profiles, and proposes bounded weight adjustments to
// strategies based on observed prediction accuracy.
package feedback

import (
	"time"

	"github.com/traylinx/cortex/internal/strategy"
)

// OutcomeFactor identifies what a feedback record measures.
type OutcomeFactor string

const (
	OutcomeCost    OutcomeFactor = "cost"
	OutcomeLatency OutcomeFactor = "latency"
	OutcomeQuality OutcomeFactor = "quality"
	OutcomeSuccess OutcomeFactor = "success"
)

// PredictedMetrics are the engine's expectations at decision time.
type PredictedMetrics struct {
	Cost      float64 `json:"cost"`
	LatencyMs int64   `json:"latency_ms"`
	Quality   float64 `json:"quality"`
}

// ActualMetrics are the observed outcomes reported by the caller after
// execution.
type ActualMetrics struct {
	Cost      float64 `json:"cost"`
	LatencyMs int64   `json:"latency_ms"`
	Quality   float64 `json:"quality"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
}

// Record is a single predicted-vs-actual comparison for one factor of one
// decision.
type Record struct {
	ID         int64         `json:"id,omitempty"`
	DecisionID string        `json:"decision_id"`
	Provider   string        `json:"provider"`
	ModelID    string        `json:"model_id"`
	Factor     OutcomeFactor `json:"factor"`
	Predicted  float64       `json:"predicted"`
	Actual     float64       `json:"actual"`
	// Variance is |actual - predicted|.
	Variance float64 `json:"variance"`
	// Accuracy is 1 - variance/|predicted|, clamped to [0,1].
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// PerformanceProfile aggregates feedback for one candidate via
// exponential moving averages.
type PerformanceProfile struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`

	// AccuracyByFactor is the EMA of prediction accuracy per factor.
	AccuracyByFactor map[OutcomeFactor]float64 `json:"accuracy_by_factor"`
	// RelativeVariance is the EMA of variance/|predicted| per factor,
	// clamped to [0,1].
	RelativeVariance map[OutcomeFactor]float64 `json:"relative_variance"`

	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgQuality   float64 `json:"avg_quality"`
	SampleCount  int     `json:"sample_count"`

	LastUpdated time.Time `json:"last_updated"`
}

// Key returns the "provider:model" identity of the profiled candidate.
func (p *PerformanceProfile) Key() string {
	return p.Provider + ":" + p.ModelID
}

// Fresh reports whether the profile was updated within maxAge.
func (p *PerformanceProfile) Fresh(maxAge time.Duration) bool {
	return p != nil && time.Since(p.LastUpdated) <= maxAge
}

// Suggestion is the result of a weight-adjustment analysis.
type Suggestion struct {
	Strategy    string                  `json:"strategy"`
	Before      strategy.WeightVector   `json:"before"`
	Weights     strategy.WeightVector   `json:"weights"`
	Reasons     []string                `json:"reasons"`
	SampleCount int                     `json:"sample_count"`
	FactorStats map[OutcomeFactor]Stats `json:"factor_stats"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Stats summarizes the records behind one factor's adjustment.
type Stats struct {
	AvgAccuracy      float64 `json:"avg_accuracy"`
	AvgRelVariance   float64 `json:"avg_rel_variance"`
	SampleCount      int     `json:"sample_count"`
}

// AdjustmentEntry records one applied weight change for audit purposes.
type AdjustmentEntry struct {
	Strategy  string                `json:"strategy"`
	Before    strategy.WeightVector `json:"before"`
	After     strategy.WeightVector `json:"after"`
	Reasons   []string              `json:"reasons"`
	Version   string                `json:"version"`
	Timestamp time.Time             `json:"timestamp"`
}
