// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing implements the decision engine: given an inbound
// request it scores every eligible candidate against a strategy's weight
// vector and selects the best execution target with a fallback chain and
// a full audit trail.
package routing

import (
	"time"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/strategy"
)

// RoutingRequest is an inbound task to be routed.
type RoutingRequest struct {
	RequestID string `json:"request_id"`
	TaskType  string `json:"task_type"`

	// Content is optional raw content used only to estimate tokens when
	// EstimatedTokens is zero.
	Content         string `json:"content,omitempty"`
	EstimatedTokens int    `json:"estimated_tokens"`

	CallerTier string `json:"caller_tier,omitempty"`
	Priority   int    `json:"priority,omitempty"`

	// Caller-imposed ceilings; zero means the task catalog's limits apply.
	MaxAcceptableCost      float64 `json:"max_acceptable_cost,omitempty"`
	MaxAcceptableLatencyMs int64   `json:"max_acceptable_latency_ms,omitempty"`

	RequiresHighQuality bool         `json:"requires_high_quality,omitempty"`
	Preferences         *Preferences `json:"preferences,omitempty"`
}

// Preferences carries explicit caller provider preferences plus a
// historical bias signal in [-1, 1] per provider.
type Preferences struct {
	PreferredProviders []string           `json:"preferred_providers,omitempty"`
	AvoidedProviders   []string           `json:"avoided_providers,omitempty"`
	ProviderBias       map[string]float64 `json:"provider_bias,omitempty"`
}

// CandidateScore is the evaluation of one candidate for one request.
// Derived state; it lives only as long as the audit record holding it.
type CandidateScore struct {
	Candidate    *catalog.Candidate          `json:"candidate"`
	FactorScores map[strategy.Factor]float64 `json:"factor_scores"`
	TotalScore   float64                     `json:"total_score"`
	Confidence   float64                     `json:"confidence"`
	Reasoning    []string                    `json:"reasoning"`

	// Predictions backing the score, kept for outcome comparison.
	ExpectedCost      float64 `json:"expected_cost"`
	ExpectedLatencyMs int64   `json:"expected_latency_ms"`
	ExpectedQuality   float64 `json:"expected_quality"`
}

// FallbackOption is one entry of a decision's fallback chain.
type FallbackOption struct {
	Candidate *catalog.Candidate `json:"candidate"`
	Score     float64            `json:"score"`
	Reason    string             `json:"reason"`
}

// Decision is the engine's answer to a routing request.
type Decision struct {
	DecisionID string `json:"decision_id"`
	RequestID  string `json:"request_id"`
	TaskType   string `json:"task_type"`

	Selected *catalog.Candidate `json:"selected"`

	StrategyUsed string                `json:"strategy_used"`
	WeightsUsed  strategy.WeightVector `json:"weights_used"`

	Reasoning []string `json:"reasoning"`

	ExpectedCost      float64 `json:"expected_cost"`
	ExpectedLatencyMs int64   `json:"expected_latency_ms"`
	ExpectedQuality   float64 `json:"expected_quality"`
	Confidence        float64 `json:"confidence"`

	// Degraded marks a selection that fell back to the best raw score
	// because no candidate met the confidence threshold.
	Degraded bool `json:"degraded"`

	FallbackChain []*FallbackOption `json:"fallback_chain"`

	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// DecisionAudit is the durable record of one decision. Append-only,
// retained in a bounded ring buffer owned by the engine.
type DecisionAudit struct {
	DecisionID string `json:"decision_id"`
	RequestID  string `json:"request_id"`
	TaskType   string `json:"task_type"`

	Selected  *catalog.Candidate `json:"selected"`
	AllScores []*CandidateScore  `json:"all_scores"`

	StrategyUsed string                `json:"strategy_used"`
	WeightsUsed  strategy.WeightVector `json:"weights_used"`
	Reasoning    []string              `json:"reasoning"`
	Confidence   float64               `json:"confidence"`
	Degraded     bool                  `json:"degraded"`

	ExpectedCost      float64 `json:"expected_cost"`
	ExpectedLatencyMs int64   `json:"expected_latency_ms"`
	ExpectedQuality   float64 `json:"expected_quality"`

	FallbackChain   []string  `json:"fallback_chain"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// Statistics are the engine's running counters.
type Statistics struct {
	TotalDecisions       int64            `json:"total_decisions"`
	FailedDecisions      int64            `json:"failed_decisions"`
	DegradedDecisions    int64            `json:"degraded_decisions"`
	SuccessRate          float64          `json:"success_rate"`
	StrategyUsage        map[string]int64 `json:"strategy_usage"`
	AvgDecisionLatencyMs float64          `json:"avg_decision_latency_ms"`
	AvgConfidence        float64          `json:"avg_confidence"`
}

// HistoryFilter narrows GetDecisionHistory results. Zero values match
// everything.
type HistoryFilter struct {
	TaskType     string
	StrategyUsed string
	DegradedOnly bool
}

// ComponentStatus reports the health of one engine component.
type ComponentStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok" or "degraded"
	Detail string `json:"detail,omitempty"`
}

// HealthStatus is the engine's overall health report.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
}

// DecideOptions carries per-call overrides for Decide.
type DecideOptions struct {
	// StrategyOverride names a registered strategy to use directly.
	StrategyOverride string
	// WeightOverride bypasses the registry entirely. It must be a valid
	// normalized weight vector.
	WeightOverride *strategy.WeightVector
	// PolicyName selects the policy used for attribute-based resolution.
	PolicyName string
}
