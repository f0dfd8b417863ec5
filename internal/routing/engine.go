// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/cortex/internal/catalog"
	"github.com/traylinx/cortex/internal/feedback"
	"github.com/traylinx/cortex/internal/strategy"
	"github.com/traylinx/cortex/internal/tokens"
)

const (
	// DefaultConfidenceThreshold gates winner selection; candidates below
	// it only win through the degraded fallback path.
	DefaultConfidenceThreshold = 0.7

	// DefaultFallbackDepth is how many runners-up go into the fallback
	// chain.
	DefaultFallbackDepth = 3

	// DefaultMaxParallelEval bounds the per-request evaluation fan-out.
	DefaultMaxParallelEval = 8

	// telemetryWindowHours is the lookback passed to the optional
	// telemetry collaborator.
	telemetryWindowHours = 24

	// customStrategyName labels decisions made with a caller-supplied
	// weight override.
	customStrategyName = "custom"
)

// EngineOptions configure a decision engine. Zero values take the
// package defaults.
type EngineOptions struct {
	ConfidenceThreshold float64
	FallbackDepth       int
	MaxParallelEval     int
	AuditSize           int
	RecentWindow        int
	ProfileFreshness    time.Duration

	// TokenEstimator selects the estimation method ("tiktoken" or
	// "simple") used when a request has no token estimate.
	TokenEstimator string
}

// Engine is the decision engine. It is safe for concurrent Decide
// calls; shared state is confined to the registry, the tracker, and the
// audit log, each with its own locking.
type Engine struct {
	tasks     catalog.TaskCatalog
	models    catalog.ModelCatalog
	telemetry catalog.PerformanceTelemetry

	registry  *strategy.Registry
	tracker   *feedback.Tracker
	evaluator *Evaluator
	estimator *tokens.Estimator
	audit     *AuditLog

	opts EngineOptions
}

// NewEngine wires a decision engine. telemetry may be nil; its absence
// is tolerated and static candidate baselines are used instead.
func NewEngine(tasks catalog.TaskCatalog, models catalog.ModelCatalog, telemetry catalog.PerformanceTelemetry,
	reg *strategy.Registry, tracker *feedback.Tracker, opts EngineOptions) *Engine {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.FallbackDepth <= 0 {
		opts.FallbackDepth = DefaultFallbackDepth
	}
	if opts.MaxParallelEval <= 0 {
		opts.MaxParallelEval = DefaultMaxParallelEval
	}
	return &Engine{
		tasks:     tasks,
		models:    models,
		telemetry: telemetry,
		registry:  reg,
		tracker:   tracker,
		evaluator: &Evaluator{ProfileFreshness: opts.ProfileFreshness},
		estimator: tokens.NewEstimator(opts.TokenEstimator),
		audit:     NewAuditLog(opts.AuditSize, opts.RecentWindow),
		opts:      opts,
	}
}

// Audit exposes the engine's audit log for export and inspection.
func (e *Engine) Audit() *AuditLog { return e.audit }

// Decide routes one request. Any failure before selection aborts the
// whole decision; per-candidate evaluation errors only shrink the pool.
func (e *Engine) Decide(ctx context.Context, req *RoutingRequest, opts *DecideOptions) (*Decision, error) {
	start := time.Now()
	if opts == nil {
		opts = &DecideOptions{}
	}
	if err := e.prepareRequest(req); err != nil {
		return nil, err
	}

	task, err := e.tasks.GetTaskMetadata(ctx, req.TaskType)
	if err != nil {
		e.audit.RecordFailure()
		return nil, decisionErr(StageResolveTask, req.RequestID, err)
	}

	candidates, err := e.fetchCandidates(ctx, req, task)
	if err != nil {
		e.audit.RecordFailure()
		return nil, err
	}

	strategyName, weights, err := e.resolveStrategy(req, opts)
	if err != nil {
		e.audit.RecordFailure()
		return nil, decisionErr(StageResolveStrategy, req.RequestID, err)
	}

	scores, err := e.evaluateAll(ctx, req, task, weights, candidates)
	if err != nil {
		e.audit.RecordFailure()
		return nil, err
	}

	winner, degraded := e.selectWinner(scores)
	decision := e.buildDecision(req, winner, scores, strategyName, weights, degraded, start)
	e.recordAudit(req, decision, scores)

	if degraded {
		log.WithFields(log.Fields{
			"decision_id": decision.DecisionID,
			"candidate":   decision.Selected.Key(),
			"confidence":  decision.Confidence,
		}).Warn("Degraded selection: no candidate met the confidence threshold")
	}
	return decision, nil
}

func (e *Engine) prepareRequest(req *RoutingRequest) error {
	if req == nil || req.TaskType == "" {
		return fmt.Errorf("%w: task type is required", ErrInvalidRequest)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.EstimatedTokens <= 0 && req.Content != "" {
		req.EstimatedTokens = e.estimator.Estimate(req.Content)
	}
	if req.EstimatedTokens <= 0 {
		req.EstimatedTokens = 1000
	}
	return nil
}

func (e *Engine) fetchCandidates(ctx context.Context, req *RoutingRequest, task *catalog.TaskMetadata) ([]*catalog.Candidate, error) {
	filter := &catalog.CandidateFilter{
		MinCapabilityScore: task.MinCapabilityScore,
		MaxCostPer1k:       task.MaxCostPer1k,
		RequireLocal:       task.RequiresLocalProcessing && !task.AllowCloudFallback,
		RequiredFeatures:   task.RequiredFeatures,
	}
	candidates, err := e.models.ListCandidates(ctx, filter)
	if err != nil {
		return nil, decisionErr(StageFetchCandidates, req.RequestID, err)
	}
	if len(candidates) == 0 {
		return nil, decisionErr(StageFetchCandidates, req.RequestID, ErrNoCandidates)
	}
	return candidates, nil
}

// resolveStrategy applies the override precedence: explicit weight
// vector, explicit strategy name, policy resolution, registry default.
func (e *Engine) resolveStrategy(req *RoutingRequest, opts *DecideOptions) (string, strategy.WeightVector, error) {
	if opts.WeightOverride != nil {
		if err := opts.WeightOverride.Validate(); err != nil {
			return "", strategy.WeightVector{}, err
		}
		return customStrategyName, *opts.WeightOverride, nil
	}

	name := opts.StrategyOverride
	if name == "" {
		now := time.Now()
		reqCtx := &strategy.RequestContext{
			TaskType:        req.TaskType,
			CallerTier:      req.CallerTier,
			Priority:        req.Priority,
			EstimatedTokens: req.EstimatedTokens,
			Hour:            now.Hour(),
			DayOfWeek:       now.Weekday().String(),
			Timestamp:       now,
		}
		resolved, err := e.registry.ResolveStrategyFor(reqCtx, opts.PolicyName)
		if err != nil {
			return "", strategy.WeightVector{}, err
		}
		name = resolved
	}

	s, err := e.registry.GetStrategy(name)
	if err != nil {
		return "", strategy.WeightVector{}, err
	}
	return s.Name, s.Weights, nil
}

// evaluateAll fans evaluation out across candidates, skipping those
// whose evaluation errors. Scores come back in declaration order.
func (e *Engine) evaluateAll(ctx context.Context, req *RoutingRequest, task *catalog.TaskMetadata,
	weights strategy.WeightVector, candidates []*catalog.Candidate) ([]*CandidateScore, error) {

	results := make([]*CandidateScore, len(candidates))
	sem := make(chan struct{}, e.opts.MaxParallelEval)
	done := make(chan int, len(candidates))

	for i, c := range candidates {
		go func(idx int, cand *catalog.Candidate) {
			defer func() { done <- idx }()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			score, err := e.evaluator.Evaluate(cand, EvalInput{
				Request:     req,
				Task:        task,
				Weights:     weights,
				Profile:     e.lookupProfile(ctx, cand),
				RecentShare: e.audit.RecentShare(cand.Key()),
			})
			if err != nil {
				log.WithFields(log.Fields{
					"request_id": req.RequestID,
					"candidate":  cand.Key(),
					"error":      err,
				}).Warn("Skipping candidate: evaluation failed")
				return
			}
			results[idx] = score
		}(i, c)
	}

	for range candidates {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, decisionErr(StageEvaluate, req.RequestID, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, decisionErr(StageEvaluate, req.RequestID, err)
	}

	scores := make([]*CandidateScore, 0, len(results))
	for _, s := range results {
		if s != nil {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return nil, decisionErr(StageEvaluate, req.RequestID, ErrAllEvaluationsFailed)
	}
	return scores, nil
}

// lookupProfile prefers the tracker's learned profile and falls back to
// the optional telemetry collaborator for candidates with no history.
func (e *Engine) lookupProfile(ctx context.Context, c *catalog.Candidate) *feedback.PerformanceProfile {
	if e.tracker != nil {
		if p := e.tracker.GetProfile(c.Provider, c.ModelID); p != nil && p.SampleCount > 0 {
			return p
		}
	}
	if e.telemetry == nil {
		return nil
	}
	stats, err := e.telemetry.GetRecentStats(ctx, c.Provider, c.ModelID, telemetryWindowHours)
	if err != nil || stats == nil || stats.SampleCount == 0 {
		return nil
	}
	return &feedback.PerformanceProfile{
		Provider:     c.Provider,
		ModelID:      c.ModelID,
		SuccessRate:  stats.SuccessRate,
		AvgLatencyMs: float64(stats.AvgLatencyMs),
		AvgQuality:   stats.AvgQuality,
		SampleCount:  stats.SampleCount,
		LastUpdated:  time.Now(),
	}
}

// selectWinner picks the max total score among candidates meeting the
// confidence threshold. An empty qualified set falls back to the global
// maximum, flagged as degraded. Ties break by higher confidence, then
// by declaration order.
func (e *Engine) selectWinner(scores []*CandidateScore) (winner *CandidateScore, degraded bool) {
	best := func(pool []*CandidateScore) *CandidateScore {
		var top *CandidateScore
		for _, s := range pool {
			if top == nil || s.TotalScore > top.TotalScore ||
				(s.TotalScore == top.TotalScore && s.Confidence > top.Confidence) {
				top = s
			}
		}
		return top
	}

	qualified := make([]*CandidateScore, 0, len(scores))
	for _, s := range scores {
		if s.Confidence >= e.opts.ConfidenceThreshold {
			qualified = append(qualified, s)
		}
	}
	if len(qualified) > 0 {
		return best(qualified), false
	}
	return best(scores), true
}

func (e *Engine) buildDecision(req *RoutingRequest, winner *CandidateScore, scores []*CandidateScore,
	strategyName string, weights strategy.WeightVector, degraded bool, start time.Time) *Decision {

	d := &Decision{
		DecisionID:        uuid.New().String(),
		RequestID:         req.RequestID,
		TaskType:          req.TaskType,
		Selected:          winner.Candidate,
		StrategyUsed:      strategyName,
		WeightsUsed:       weights,
		Reasoning:         topFactorReasoning(winner, weights, 3),
		ExpectedCost:      winner.ExpectedCost,
		ExpectedLatencyMs: winner.ExpectedLatencyMs,
		ExpectedQuality:   winner.ExpectedQuality,
		Confidence:        winner.Confidence,
		Degraded:          degraded,
		FallbackChain:     buildFallbackChain(winner, scores, e.opts.FallbackDepth),
		ExecutionTimeMs:   time.Since(start).Milliseconds(),
		Timestamp:         time.Now(),
	}
	return d
}

// topFactorReasoning returns the n highest weighted-contribution lines
// from the winner's per-factor reasoning.
func topFactorReasoning(s *CandidateScore, weights strategy.WeightVector, n int) []string {
	lines := s.Reasoning
	if len(lines) == 0 {
		lines = factorReasoning(s, weights)
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// buildFallbackChain returns the next-best candidates by score, each
// with a one-line reason.
func buildFallbackChain(winner *CandidateScore, scores []*CandidateScore, depth int) []*FallbackOption {
	rest := make([]*CandidateScore, 0, len(scores))
	for _, s := range scores {
		if s != winner {
			rest = append(rest, s)
		}
	}
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			if rest[j].TotalScore > rest[i].TotalScore ||
				(rest[j].TotalScore == rest[i].TotalScore && rest[j].Confidence > rest[i].Confidence) {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	if len(rest) > depth {
		rest = rest[:depth]
	}
	chain := make([]*FallbackOption, 0, len(rest))
	for i, s := range rest {
		chain = append(chain, &FallbackOption{
			Candidate: s.Candidate,
			Score:     s.TotalScore,
			Reason: fmt.Sprintf("rank %d: total score %.3f, confidence %.2f, expected cost $%.4f",
				i+2, s.TotalScore, s.Confidence, s.ExpectedCost),
		})
	}
	return chain
}

func (e *Engine) recordAudit(req *RoutingRequest, d *Decision, scores []*CandidateScore) {
	fallbackKeys := make([]string, 0, len(d.FallbackChain))
	for _, f := range d.FallbackChain {
		fallbackKeys = append(fallbackKeys, f.Candidate.Key())
	}
	e.audit.Append(&DecisionAudit{
		DecisionID:        d.DecisionID,
		RequestID:         d.RequestID,
		TaskType:          d.TaskType,
		Selected:          d.Selected,
		AllScores:         scores,
		StrategyUsed:      d.StrategyUsed,
		WeightsUsed:       d.WeightsUsed,
		Reasoning:         d.Reasoning,
		Confidence:        d.Confidence,
		Degraded:          d.Degraded,
		ExpectedCost:      d.ExpectedCost,
		ExpectedLatencyMs: d.ExpectedLatencyMs,
		ExpectedQuality:   d.ExpectedQuality,
		FallbackChain:     fallbackKeys,
		ExecutionTimeMs:   d.ExecutionTimeMs,
		Timestamp:         d.Timestamp,
	})
}

// RecordOutcome reports the observed result of executing a past
// decision. Predicted metrics come from the decision's audit record.
func (e *Engine) RecordOutcome(decisionID string, actual feedback.ActualMetrics) error {
	if e.tracker == nil {
		return fmt.Errorf("routing: no feedback tracker configured")
	}
	entry := e.audit.Get(decisionID)
	if entry == nil || entry.Selected == nil {
		return fmt.Errorf("routing: unknown decision %s", decisionID)
	}
	predicted := feedback.PredictedMetrics{
		Cost:      entry.ExpectedCost,
		LatencyMs: entry.ExpectedLatencyMs,
		Quality:   entry.ExpectedQuality,
	}
	_, err := e.tracker.RecordOutcome(decisionID, entry.Selected.Provider, entry.Selected.ModelID, predicted, actual)
	return err
}

// GetDecisionHistory returns recent audit entries, newest first.
func (e *Engine) GetDecisionHistory(limit int, filter HistoryFilter) []*DecisionAudit {
	return e.audit.History(limit, filter)
}

// GetStatistics returns the engine's running counters.
func (e *Engine) GetStatistics() Statistics {
	return e.audit.Statistics()
}

// HealthCheck reports the state of the engine's components.
func (e *Engine) HealthCheck() HealthStatus {
	components := []ComponentStatus{}

	regStatus := ComponentStatus{Name: "registry", Status: "ok"}
	if err := e.registry.Validate(); err != nil {
		regStatus.Status = "degraded"
		regStatus.Detail = err.Error()
	}
	components = append(components, regStatus)

	auditStatus := ComponentStatus{Name: "audit", Status: "ok",
		Detail: fmt.Sprintf("%d entries retained", e.audit.Size())}
	components = append(components, auditStatus)

	trackerStatus := ComponentStatus{Name: "feedback", Status: "ok"}
	if e.tracker == nil {
		trackerStatus.Status = "degraded"
		trackerStatus.Detail = "no tracker configured"
	}
	components = append(components, trackerStatus)

	telemetryStatus := ComponentStatus{Name: "telemetry", Status: "ok"}
	if e.telemetry == nil {
		telemetryStatus.Detail = "not configured, using static baselines"
	}
	components = append(components, telemetryStatus)

	overall := "ok"
	for _, c := range components {
		if c.Status != "ok" {
			overall = "degraded"
			break
		}
	}
	return HealthStatus{Status: overall, Components: components}
}

// Reset clears the audit log and statistics. The tracker's profiles are
// left intact; callers reset those separately.
func (e *Engine) Reset() {
	e.audit.Reset()
}
