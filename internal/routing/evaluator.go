// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"
	"math"
	"time"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/feedback"
	"github.com/traylinx/cortex/internal/strategy"
)

const (
	// DefaultProfileFreshness bounds how old a performance profile may be
	// before the evaluator falls back to the candidate's static baseline.
	DefaultProfileFreshness = 24 * time.Hour

	// defaultSuccessRate is assumed for candidates with no history.
	defaultSuccessRate = 0.8

	// latencyComplexityPer1k scales predicted latency per 1000 estimated
	// tokens. The multiplier is capped at 2x the baseline.
	latencyComplexityPer1k = 0.1

	// loadPenaltyScale converts a candidate's share of recent selections
	// into an availability deduction.
	loadPenaltyScale = 0.2

	// qualityBoost is added when a candidate's capability exceeds the
	// task's minimum requirement.
	qualityBoost = 0.05

	// confidenceSampleTarget is the profile sample count at which the
	// history component of confidence saturates.
	confidenceSampleTarget = 20
)

// Evaluator scores a single candidate against a request. It is a pure
// function over its inputs and safe for concurrent use.
type Evaluator struct {
	// ProfileFreshness overrides DefaultProfileFreshness when positive.
	ProfileFreshness time.Duration
}

// EvalInput bundles everything Evaluate needs beyond the candidate
// itself. RecentShare is the fraction of recent decisions that selected
// this candidate, supplied by the engine's audit window.
type EvalInput struct {
	Request     *RoutingRequest
	Task        *catalog.TaskMetadata
	Weights     strategy.WeightVector
	Profile     *feedback.PerformanceProfile
	RecentShare float64
}

// Evaluate computes all six factor scores, the weighted total, and the
// confidence for one candidate.
func (e *Evaluator) Evaluate(c *catalog.Candidate, in EvalInput) (*CandidateScore, error) {
	if c == nil {
		return nil, fmt.Errorf("routing: nil candidate")
	}
	if in.Request == nil || in.Task == nil {
		return nil, fmt.Errorf("routing: evaluation input missing request or task metadata")
	}

	tokens := float64(in.Request.EstimatedTokens)
	if tokens <= 0 {
		tokens = 1000
	}

	profile := in.Profile
	if profile != nil && !profile.Fresh(e.freshness()) {
		profile = nil
	}

	score := &CandidateScore{
		Candidate:    c,
		FactorScores: make(map[strategy.Factor]float64, 6),
	}

	score.ExpectedCost = totalCost(c, tokens)
	score.ExpectedLatencyMs = predictLatency(c, profile, tokens)
	score.ExpectedQuality = blendQuality(c, in.Task, profile)

	score.FactorScores[strategy.FactorCost] = e.costScore(c, in, tokens, score.ExpectedCost)
	score.FactorScores[strategy.FactorLatency] = e.latencyScore(in, score.ExpectedLatencyMs)
	score.FactorScores[strategy.FactorQuality] = score.ExpectedQuality
	score.FactorScores[strategy.FactorAvailability] = e.availabilityScore(c, profile, in.RecentShare)
	score.FactorScores[strategy.FactorPrivacy] = privacyScore(in.Task, c.Privacy)
	score.FactorScores[strategy.FactorUserPreference] = preferenceScore(c, in.Request.Preferences)

	for _, f := range strategy.AllFactors() {
		score.TotalScore += score.FactorScores[f] * in.Weights.Get(f)
	}
	score.Confidence = confidence(score.FactorScores, profile)
	score.Reasoning = factorReasoning(score, in.Weights)

	return score, nil
}

func (e *Evaluator) freshness() time.Duration {
	if e.ProfileFreshness > 0 {
		return e.ProfileFreshness
	}
	return DefaultProfileFreshness
}

// totalCost applies the usual 70/30 input/output token split.
func totalCost(c *catalog.Candidate, tokens float64) float64 {
	per1k := tokens / 1000.0
	return 0.7*per1k*c.CostPer1kInput + 0.3*per1k*c.CostPer1kOutput
}

func (e *Evaluator) costScore(c *catalog.Candidate, in EvalInput, tokens, cost float64) float64 {
	if c.IsFree() {
		return 1.0
	}
	budget := (tokens / 1000.0) * in.Task.MaxCostPer1k
	if in.Request.MaxAcceptableCost > 0 && (budget <= 0 || in.Request.MaxAcceptableCost < budget) {
		budget = in.Request.MaxAcceptableCost
	}
	return piecewiseScore(cost, budget)
}

func predictLatency(c *catalog.Candidate, profile *feedback.PerformanceProfile, tokens float64) int64 {
	base := float64(c.AvgLatencyMs)
	if profile != nil && profile.SampleCount > 0 && profile.AvgLatencyMs > 0 {
		base = profile.AvgLatencyMs
	}
	factor := 1.0 + (tokens/1000.0)*latencyComplexityPer1k
	if factor > 2.0 {
		factor = 2.0
	}
	return int64(base * factor)
}

func (e *Evaluator) latencyScore(in EvalInput, predictedMs int64) float64 {
	budget := float64(in.Task.MaxLatencyMs)
	if in.Request.MaxAcceptableLatencyMs > 0 && (budget <= 0 || float64(in.Request.MaxAcceptableLatencyMs) < budget) {
		budget = float64(in.Request.MaxAcceptableLatencyMs)
	}
	return piecewiseScore(float64(predictedMs), budget)
}

func blendQuality(c *catalog.Candidate, task *catalog.TaskMetadata, profile *feedback.PerformanceProfile) float64 {
	q := c.CapabilityScore
	if q > task.MinCapabilityScore {
		q = math.Min(1.0, q+qualityBoost)
	}
	if profile != nil && profile.SampleCount > 0 && profile.AvgQuality > 0 {
		q = 0.7*q + 0.3*profile.AvgQuality
	}
	return clamp01(q)
}

func (e *Evaluator) availabilityScore(c *catalog.Candidate, profile *feedback.PerformanceProfile, recentShare float64) float64 {
	if !c.IsAvailable {
		return 0
	}
	rate := defaultSuccessRate
	if profile != nil && profile.SampleCount > 0 {
		rate = profile.SuccessRate
	}
	return clamp01(rate - recentShare*loadPenaltyScale)
}

// privacyCompat maps (data sensitivity, candidate privacy) to a score.
// Local candidates are always compatible.
var privacyCompat = map[catalog.SensitivityLevel]map[catalog.PrivacyLevel]float64{
	catalog.SensitivityPublic: {
		catalog.PrivacyLocal: 1.0, catalog.PrivacyHybrid: 1.0, catalog.PrivacyCloud: 1.0,
	},
	catalog.SensitivityInternal: {
		catalog.PrivacyLocal: 1.0, catalog.PrivacyHybrid: 0.9, catalog.PrivacyCloud: 0.7,
	},
	catalog.SensitivityConfidential: {
		catalog.PrivacyLocal: 1.0, catalog.PrivacyHybrid: 0.6, catalog.PrivacyCloud: 0.3,
	},
	catalog.SensitivityRestricted: {
		catalog.PrivacyLocal: 1.0, catalog.PrivacyHybrid: 0.2, catalog.PrivacyCloud: 0.0,
	},
}

// privacyScore is a hard filter expressed as a score: a disqualified
// candidate gets 0 and participates normally in the weighted average.
func privacyScore(task *catalog.TaskMetadata, level catalog.PrivacyLevel) float64 {
	if task.RequiresLocalProcessing {
		if level == catalog.PrivacyLocal {
			return 1.0
		}
		if task.AllowCloudFallback && level == catalog.PrivacyHybrid {
			return 0.3
		}
		return 0.0
	}
	row, ok := privacyCompat[task.DataSensitivity]
	if !ok {
		row = privacyCompat[catalog.SensitivityInternal]
	}
	if s, ok := row[level]; ok {
		return s
	}
	return 0.5
}

func preferenceScore(c *catalog.Candidate, prefs *Preferences) float64 {
	s := 0.5
	if prefs == nil {
		return s
	}
	for _, p := range prefs.PreferredProviders {
		if p == c.Provider {
			s += 0.3
			break
		}
	}
	for _, p := range prefs.AvoidedProviders {
		if p == c.Provider {
			s -= 0.4
			break
		}
	}
	if bias, ok := prefs.ProviderBias[c.Provider]; ok {
		s += bias * 0.2
	}
	return clamp01(s)
}

// confidence combines factor-score dispersion (0.8) with the depth of
// the candidate's history (0.2). The dispersion term maps the maximum
// possible standard deviation over [0,1] scores to zero confidence.
func confidence(scores map[strategy.Factor]float64, profile *feedback.PerformanceProfile) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	stddev := math.Sqrt(variance)

	dispersion := 1.0 - math.Min(1.0, stddev/0.5)

	depth := 0.0
	if profile != nil {
		depth = math.Min(1.0, float64(profile.SampleCount)/confidenceSampleTarget)
	}
	return 0.8*dispersion + 0.2*depth
}

// factorReasoning emits one line per factor, ordered by weighted
// contribution, for the audit record.
func factorReasoning(score *CandidateScore, weights strategy.WeightVector) []string {
	type contrib struct {
		factor strategy.Factor
		value  float64
	}
	contribs := make([]contrib, 0, 6)
	for _, f := range strategy.AllFactors() {
		contribs = append(contribs, contrib{f, score.FactorScores[f] * weights.Get(f)})
	}
	for i := 0; i < len(contribs); i++ {
		for j := i + 1; j < len(contribs); j++ {
			if contribs[j].value > contribs[i].value {
				contribs[i], contribs[j] = contribs[j], contribs[i]
			}
		}
	}
	lines := make([]string, 0, len(contribs))
	for _, c := range contribs {
		lines = append(lines, fmt.Sprintf("%s: score %.3f (weighted %.3f)", c.factor, score.FactorScores[c.factor], c.value))
	}
	return lines
}

// piecewiseScore maps value against budget: 1.0 at or below half budget,
// linear down to 0.5 at budget, then decaying toward 0 beyond it.
func piecewiseScore(value, budget float64) float64 {
	if value <= 0 {
		return 1.0
	}
	if budget <= 0 {
		return 0.0
	}
	half := 0.5 * budget
	switch {
	case value <= half:
		return 1.0
	case value <= budget:
		return 1.0 - 0.5*((value-half)/half)
	default:
		return 0.5 * (budget / value)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
