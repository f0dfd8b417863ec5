// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package strategy provides the named strategy and policy registry for the
// routing decision engine. Strategies carry weight vectors over the six
// decision factors; policies map request attributes to strategy names.
package strategy

import "time"

// Factor identifies one of the six decision factors.
type Factor string

const (
	FactorCost           Factor = "cost"
	FactorLatency        Factor = "latency"
	FactorQuality        Factor = "quality"
	FactorAvailability   Factor = "availability"
	FactorPrivacy        Factor = "privacy"
	FactorUserPreference Factor = "user_preference"
)

// AllFactors returns the six decision factors in canonical order.
func AllFactors() []Factor {
	return []Factor{
		FactorCost,
		FactorLatency,
		FactorQuality,
		FactorAvailability,
		FactorPrivacy,
		FactorUserPreference,
	}
}

// PerformanceTargets captures the service-level expectations a strategy is
// tuned for. Purely descriptive; the engine does not enforce them.
type PerformanceTargets struct {
	MaxCostPerRequest float64 `yaml:"max_cost_per_request,omitempty" json:"max_cost_per_request,omitempty"`
	MaxLatencyMs      int64   `yaml:"max_latency_ms,omitempty" json:"max_latency_ms,omitempty"`
	MinQualityScore   float64 `yaml:"min_quality_score,omitempty" json:"min_quality_score,omitempty"`
}

// Provenance records where a derived strategy came from.
type Provenance struct {
	BaseStrategy   string    `yaml:"base_strategy" json:"base_strategy"`
	TrafficPercent float64   `yaml:"traffic_percent" json:"traffic_percent"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
}

// Strategy is a named, versioned weight configuration.
type Strategy struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Weights WeightVector `yaml:"weights" json:"weights"`

	UseCases           []string            `yaml:"use_cases,omitempty" json:"use_cases,omitempty"`
	PerformanceTargets *PerformanceTargets `yaml:"performance_targets,omitempty" json:"performance_targets,omitempty"`

	// Version follows semantic versioning; weight mutations bump the minor.
	Version  string `yaml:"version" json:"version"`
	IsActive bool   `yaml:"is_active" json:"is_active"`

	Provenance *Provenance `yaml:"provenance,omitempty" json:"provenance,omitempty"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	// FilePath is the source file of the strategy (not serialized).
	FilePath string `yaml:"-" json:"-"`
}

// ConditionRule maps an expression over request attributes to a strategy.
// Rules are evaluated before the plain attribute mappings, highest
// priority first.
type ConditionRule struct {
	Condition string `yaml:"condition" json:"condition"` // e.g. "Priority >= 4 && CallerTier == 'enterprise'"
	Strategy  string `yaml:"strategy" json:"strategy"`
	Priority  int    `yaml:"priority" json:"priority"`
}

// Policy maps request attributes to strategy names.
type Policy struct {
	Name string `yaml:"name" json:"name"`

	ConditionRules     []ConditionRule   `yaml:"condition_rules,omitempty" json:"condition_rules,omitempty"`
	TaskTypeMappings   map[string]string `yaml:"task_type_mappings,omitempty" json:"task_type_mappings,omitempty"`
	CallerTierMappings map[string]string `yaml:"caller_tier_mappings,omitempty" json:"caller_tier_mappings,omitempty"`
	PriorityMappings   map[int]string    `yaml:"priority_mappings,omitempty" json:"priority_mappings,omitempty"`

	FallbackStrategy string `yaml:"fallback_strategy,omitempty" json:"fallback_strategy,omitempty"`
	IsActive         bool   `yaml:"is_active" json:"is_active"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	FilePath string `yaml:"-" json:"-"`
}

// RequestContext is the environment for policy condition evaluation.
type RequestContext struct {
	TaskType        string    `json:"task_type"`
	CallerTier      string    `json:"caller_tier"`
	Priority        int       `json:"priority"`
	EstimatedTokens int       `json:"estimated_tokens"`
	Hour            int       `json:"hour"`
	DayOfWeek       string    `json:"day_of_week"`
	Timestamp       time.Time `json:"timestamp"`
}
