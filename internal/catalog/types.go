// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package catalog defines the boundary to the external task and model
// catalogs. The decision engine consumes these interfaces; it never owns
// the data behind them.
package catalog

import "context"

// PrivacyLevel describes where a candidate executes requests.
type PrivacyLevel string

const (
	PrivacyLocal  PrivacyLevel = "local"
	PrivacyHybrid PrivacyLevel = "hybrid"
	PrivacyCloud  PrivacyLevel = "cloud"
)

// SensitivityLevel describes how sensitive a task's data is.
type SensitivityLevel string

const (
	SensitivityPublic       SensitivityLevel = "public"
	SensitivityInternal     SensitivityLevel = "internal"
	SensitivityConfidential SensitivityLevel = "confidential"
	SensitivityRestricted   SensitivityLevel = "restricted"
)

// TaskMetadata describes the requirements of a task type as recorded in
// the external task catalog.
type TaskMetadata struct {
	TaskType                string           `json:"task_type" yaml:"task_type"`
	MinCapabilityScore      float64          `json:"min_capability_score" yaml:"min_capability_score"`
	MaxCostPer1k            float64          `json:"max_cost_per_1k" yaml:"max_cost_per_1k"`
	MaxLatencyMs            int64            `json:"max_latency_ms" yaml:"max_latency_ms"`
	RequiredFeatures        []string         `json:"required_features,omitempty" yaml:"required_features,omitempty"`
	DataSensitivity         SensitivityLevel `json:"data_sensitivity" yaml:"data_sensitivity"`
	RequiresLocalProcessing bool             `json:"requires_local_processing" yaml:"requires_local_processing"`
	AllowCloudFallback      bool             `json:"allow_cloud_fallback" yaml:"allow_cloud_fallback"`
}

// Candidate is a provider+model combination eligible to serve requests.
// Read-only to the decision engine.
type Candidate struct {
	Provider        string       `json:"provider"`
	ModelID         string       `json:"model_id"`
	CostPer1kInput  float64      `json:"cost_per_1k_input"`
	CostPer1kOutput float64      `json:"cost_per_1k_output"`
	AvgLatencyMs    int64        `json:"avg_latency_ms"`
	CapabilityScore float64      `json:"capability_score"`
	Privacy         PrivacyLevel `json:"privacy"`
	IsAvailable     bool         `json:"is_available"`

	// Features lists capabilities the model supports, matched against a
	// task's required features (e.g. "function_calling", "vision").
	Features []string `json:"features,omitempty"`
}

// Key returns the canonical "provider:model" identifier for a candidate.
func (c *Candidate) Key() string {
	return c.Provider + ":" + c.ModelID
}

// IsFree reports whether the candidate charges nothing per token.
func (c *Candidate) IsFree() bool {
	return c.CostPer1kInput == 0 && c.CostPer1kOutput == 0
}

// CandidateFilter constrains a ListCandidates query.
type CandidateFilter struct {
	MinCapabilityScore float64
	MaxCostPer1k       float64
	RequireLocal       bool
	RequiredFeatures   []string
}

// RecentStats is an observed performance window for one candidate, as
// reported by the optional telemetry collaborator.
type RecentStats struct {
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	SuccessRate  float64 `json:"success_rate"`
	AvgQuality   float64 `json:"avg_quality"`
	SampleCount  int     `json:"sample_count"`
}

// TaskCatalog resolves task-type metadata.
type TaskCatalog interface {
	GetTaskMetadata(ctx context.Context, taskType string) (*TaskMetadata, error)
}

// ModelCatalog lists eligible candidates for a filter.
type ModelCatalog interface {
	ListCandidates(ctx context.Context, filter *CandidateFilter) ([]*Candidate, error)
}

// PerformanceTelemetry provides recent observed stats for a candidate.
// Implementations may be absent; callers must tolerate ErrNoTelemetry.
type PerformanceTelemetry interface {
	GetRecentStats(ctx context.Context, provider, modelID string, windowHours int) (*RecentStats, error)
}
