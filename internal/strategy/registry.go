// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultStrategyName is used when no policy or override resolves.
const DefaultStrategyName = "balanced"

// MaxVariantTraffic caps the traffic share an A/B variant may declare.
const MaxVariantTraffic = 0.5

// Registry holds named strategies and policies. All mutations are
// serialized by the registry lock. Stored *Strategy values are immutable;
// updates replace the pointer so in-flight decisions keep the version they
// resolved.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	policies   map[string]*Policy
	evaluator  *ConditionEvaluator
}

// NewRegistry creates a registry pre-populated with the built-in
// strategies.
func NewRegistry() *Registry {
	r := &Registry{
		strategies: make(map[string]*Strategy),
		policies:   make(map[string]*Policy),
		evaluator:  NewConditionEvaluator(),
	}

	for _, s := range BuiltinStrategies() {
		r.strategies[s.Name] = s
	}

	return r
}

// BuiltinStrategies returns the well-known default strategies.
func BuiltinStrategies() []*Strategy {
	now := time.Now()
	mk := func(name, display, desc string, w WeightVector, useCases ...string) *Strategy {
		return &Strategy{
			Name:        name,
			DisplayName: display,
			Description: desc,
			Weights:     w,
			UseCases:    useCases,
			Version:     "1.0.0",
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	return []*Strategy{
		mk("balanced", "Balanced",
			"Even weighting across all decision factors.",
			WeightVector{Cost: 0.2, Latency: 0.2, Quality: 0.25, Availability: 0.15, Privacy: 0.1, UserPreference: 0.1},
			"general"),
		mk("cost_optimized", "Cost Optimized",
			"Minimizes spend; quality and latency are secondary.",
			WeightVector{Cost: 0.5, Latency: 0.1, Quality: 0.15, Availability: 0.1, Privacy: 0.05, UserPreference: 0.1},
			"batch", "summarization"),
		mk("quality_first", "Quality First",
			"Maximizes output quality regardless of cost.",
			WeightVector{Cost: 0.05, Latency: 0.1, Quality: 0.5, Availability: 0.15, Privacy: 0.1, UserPreference: 0.1},
			"reasoning", "analysis"),
		mk("privacy_first", "Privacy First",
			"Prefers local and hybrid execution for sensitive data.",
			WeightVector{Cost: 0.1, Latency: 0.1, Quality: 0.15, Availability: 0.1, Privacy: 0.45, UserPreference: 0.1},
			"pii", "confidential"),
		mk("low_latency", "Low Latency",
			"Minimizes response time for interactive workloads.",
			WeightVector{Cost: 0.1, Latency: 0.5, Quality: 0.15, Availability: 0.15, Privacy: 0.05, UserPreference: 0.05},
			"interactive", "chat"),
	}
}

// StrategyUpdate carries the mutable fields of a strategy. Nil fields are
// left unchanged.
type StrategyUpdate struct {
	DisplayName        *string
	Description        *string
	Weights            *WeightVector
	UseCases           []string
	PerformanceTargets *PerformanceTargets
}

// CreateStrategy registers a new strategy. The weight vector must already
// be normalized; validation failures are returned synchronously and
// nothing is applied.
func (r *Registry) CreateStrategy(s *Strategy) error {
	if s == nil || s.Name == "" {
		return &ValidationError{Kind: "weights", Detail: "strategy name cannot be empty"}
	}
	if err := s.Weights.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, s.Name)
	}

	cp := *s
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.IsActive = true
	if cp.Version == "" {
		cp.Version = "1.0.0"
	}

	r.strategies[cp.Name] = &cp
	log.Infof("Created strategy '%s' (version %s)", cp.Name, cp.Version)
	return nil
}

// UpdateStrategy applies the given update to a strategy, bumping its
// version and UpdatedAt. The stored strategy is replaced wholesale so
// readers holding the prior pointer are unaffected.
func (r *Registry) UpdateStrategy(name string, upd StrategyUpdate) (*Strategy, error) {
	if upd.Weights != nil {
		if err := upd.Weights.Validate(); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}

	next := *cur
	if upd.DisplayName != nil {
		next.DisplayName = *upd.DisplayName
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.Weights != nil {
		next.Weights = *upd.Weights
	}
	if upd.UseCases != nil {
		next.UseCases = upd.UseCases
	}
	if upd.PerformanceTargets != nil {
		next.PerformanceTargets = upd.PerformanceTargets
	}
	next.Version = bumpMinor(cur.Version)
	next.UpdatedAt = time.Now()

	r.strategies[name] = &next
	log.Infof("Updated strategy '%s' to version %s", name, next.Version)
	return &next, nil
}

// DeactivateStrategy soft-deletes a strategy. It refuses while any active
// policy still references the strategy.
func (r *Registry) DeactivateStrategy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}

	for _, p := range r.policies {
		if p.IsActive && policyReferences(p, name) {
			return fmt.Errorf("%w: %s referenced by policy %s", ErrStrategyReferenced, name, p.Name)
		}
	}

	next := *cur
	next.IsActive = false
	next.UpdatedAt = time.Now()
	r.strategies[name] = &next

	log.Infof("Deactivated strategy '%s'", name)
	return nil
}

// GetStrategy returns the named strategy. The returned value must be
// treated as immutable.
func (r *Registry) GetStrategy(name string) (*Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return s, nil
}

// ListStrategies returns all strategies sorted by name.
func (r *Registry) ListStrategies() []*Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreatePolicy registers a new policy. Every referenced strategy must
// exist and every condition rule must compile before the policy is
// accepted.
func (r *Registry) CreatePolicy(p *Policy) error {
	if p == nil || p.Name == "" {
		return &ValidationError{Kind: "policy", Detail: "policy name cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPolicyExists, p.Name)
	}
	if err := r.validatePolicyLocked(p); err != nil {
		return err
	}

	cp := *p
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	cp.IsActive = true

	r.policies[cp.Name] = &cp
	log.Infof("Created policy '%s' (%d condition rules, %d task mappings)",
		cp.Name, len(cp.ConditionRules), len(cp.TaskTypeMappings))
	return nil
}

// UpdatePolicy revalidates and replaces an existing policy.
func (r *Registry) UpdatePolicy(p *Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.policies[p.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, p.Name)
	}
	if err := r.validatePolicyLocked(p); err != nil {
		return err
	}

	cp := *p
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	cp.IsActive = true
	r.policies[cp.Name] = &cp

	log.Infof("Updated policy '%s'", cp.Name)
	return nil
}

// GetPolicy returns the named policy.
func (r *Registry) GetPolicy(name string) (*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, name)
	}
	return p, nil
}

// ResolveStrategyFor resolves the strategy name for a request using the
// named policy, or the registry default when policyName is empty or the
// policy resolves nothing. Resolution precedence: condition rules →
// task-type mapping → caller-tier mapping → priority mapping → policy
// fallback → registry default.
func (r *Registry) ResolveStrategyFor(reqCtx *RequestContext, policyName string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if policyName == "" {
		return DefaultStrategyName, nil
	}

	p, ok := r.policies[policyName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPolicyNotFound, policyName)
	}
	if !p.IsActive {
		log.Warnf("Policy '%s' is inactive, using default strategy", policyName)
		return DefaultStrategyName, nil
	}

	// Condition rules, highest priority first.
	rules := make([]ConditionRule, len(p.ConditionRules))
	copy(rules, p.ConditionRules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	for _, rule := range rules {
		matched, err := r.evaluator.Evaluate(rule.Condition, reqCtx)
		if err != nil {
			log.Warnf("Skipping condition rule in policy '%s': %v", p.Name, err)
			continue
		}
		if matched && r.strategyUsableLocked(rule.Strategy) {
			return rule.Strategy, nil
		}
	}

	if name, ok := p.TaskTypeMappings[reqCtx.TaskType]; ok && r.strategyUsableLocked(name) {
		return name, nil
	}
	if name, ok := p.CallerTierMappings[reqCtx.CallerTier]; ok && r.strategyUsableLocked(name) {
		return name, nil
	}
	if name, ok := p.PriorityMappings[reqCtx.Priority]; ok && r.strategyUsableLocked(name) {
		return name, nil
	}
	if p.FallbackStrategy != "" && r.strategyUsableLocked(p.FallbackStrategy) {
		return p.FallbackStrategy, nil
	}

	return DefaultStrategyName, nil
}

// Validate checks every strategy's weights and every policy's references.
// The first failure is returned.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, s := range r.strategies {
		if err := s.Weights.Validate(); err != nil {
			return fmt.Errorf("strategy '%s': %w", name, err)
		}
	}
	for _, p := range r.policies {
		if err := r.validatePolicyLocked(p); err != nil {
			return err
		}
	}
	return nil
}

// CreateABVariant clones a base strategy, applies the given weight deltas,
// normalizes, and registers the result with provenance metadata. Traffic
// splitting itself is the caller's responsibility.
func (r *Registry) CreateABVariant(baseName string, deltas map[Factor]float64, trafficPct float64) (*Strategy, error) {
	if trafficPct <= 0 || trafficPct > MaxVariantTraffic {
		return nil, &ValidationError{
			Kind:   "variant",
			Detail: fmt.Sprintf("traffic percentage %.2f outside (0, %.2f]", trafficPct, MaxVariantTraffic),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	base, ok := r.strategies[baseName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, baseName)
	}

	weights := base.Weights.ApplyDeltas(deltas).Normalized()
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	variant := &Strategy{
		Name:        fmt.Sprintf("%s_ab_%s", baseName, uuid.New().String()[:8]),
		DisplayName: base.DisplayName + " (A/B variant)",
		Description: fmt.Sprintf("A/B variant of '%s' at %.0f%% traffic", baseName, trafficPct*100),
		Weights:     weights,
		UseCases:    base.UseCases,
		Version:     "1.0.0",
		IsActive:    true,
		Provenance: &Provenance{
			BaseStrategy:   baseName,
			TrafficPercent: trafficPct,
			CreatedAt:      now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.strategies[variant.Name] = variant
	log.Infof("Created A/B variant '%s' from '%s' (%.0f%% traffic)",
		variant.Name, baseName, trafficPct*100)
	return variant, nil
}

func (r *Registry) validatePolicyLocked(p *Policy) error {
	check := func(name, where string) error {
		if name == "" {
			return nil
		}
		if _, ok := r.strategies[name]; !ok {
			return &ValidationError{
				Kind:   "policy",
				Detail: fmt.Sprintf("policy '%s' %s references unknown strategy '%s'", p.Name, where, name),
			}
		}
		return nil
	}

	for _, rule := range p.ConditionRules {
		if err := check(rule.Strategy, "condition rule"); err != nil {
			return err
		}
		// Compile eagerly so broken expressions fail at create time.
		if _, err := r.evaluator.Evaluate(rule.Condition, &RequestContext{}); err != nil {
			return &ValidationError{Kind: "policy", Detail: err.Error()}
		}
	}
	for _, name := range p.TaskTypeMappings {
		if err := check(name, "task-type mapping"); err != nil {
			return err
		}
	}
	for _, name := range p.CallerTierMappings {
		if err := check(name, "caller-tier mapping"); err != nil {
			return err
		}
	}
	for _, name := range p.PriorityMappings {
		if err := check(name, "priority mapping"); err != nil {
			return err
		}
	}
	return check(p.FallbackStrategy, "fallback")
}

func (r *Registry) strategyUsableLocked(name string) bool {
	s, ok := r.strategies[name]
	if !ok {
		log.Warnf("Resolved strategy '%s' is not registered, falling through", name)
		return false
	}
	if !s.IsActive {
		log.Warnf("Resolved strategy '%s' is inactive, falling through", name)
		return false
	}
	return true
}

func policyReferences(p *Policy, strategyName string) bool {
	for _, rule := range p.ConditionRules {
		if rule.Strategy == strategyName {
			return true
		}
	}
	for _, name := range p.TaskTypeMappings {
		if name == strategyName {
			return true
		}
	}
	for _, name := range p.CallerTierMappings {
		if name == strategyName {
			return true
		}
	}
	for _, name := range p.PriorityMappings {
		if name == strategyName {
			return true
		}
	}
	return p.FallbackStrategy == strategyName
}

// bumpMinor increments the minor component of a semantic version string.
// Unparseable versions restart at 1.1.0.
func bumpMinor(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "1.1.0"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "1.1.0"
	}
	return fmt.Sprintf("%s.%d.0", parts[0], minor+1)
}
