// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/cortex/internal/strategy"
)

// AdjusterOptions tunes the weight-adjustment heuristics.
type AdjusterOptions struct {
	// Window is the default feedback lookback for suggestions.
	Window time.Duration
	// MinSamples is the minimum outcome count (not record count) required
	// before a suggestion is produced.
	MinSamples int
	// AccuracyThreshold: factors averaging below this lose weight.
	AccuracyThreshold float64
	// VarianceTolerance: relative variance above this marks a factor noisy.
	VarianceTolerance float64
	// MaxDecreaseStep caps a per-factor decrease as a fraction of the
	// current weight.
	MaxDecreaseStep float64
	// MaxIncreaseStep caps a per-factor increase as a fraction of the
	// current weight.
	MaxIncreaseStep float64
	// FailureRateThreshold: a global failure rate above this boosts the
	// availability weight.
	FailureRateThreshold float64
}

// DefaultAdjusterOptions returns the standard tuning.
func DefaultAdjusterOptions() AdjusterOptions {
	return AdjusterOptions{
		Window:               72 * time.Hour,
		MinSamples:           20,
		AccuracyThreshold:    0.7,
		VarianceTolerance:    0.2,
		MaxDecreaseStep:      0.05,
		MaxIncreaseStep:      0.025,
		FailureRateThreshold: 0.1,
	}
}

// Adjuster derives bounded strategy weight adjustments from tracked
// feedback. ApplyAdjustment is mutually exclusive per strategy.
type Adjuster struct {
	tracker *Tracker
	opts    AdjusterOptions

	mu      sync.Mutex
	history []*AdjustmentEntry
}

// NewAdjuster creates an adjuster over the given tracker.
func NewAdjuster(tracker *Tracker, opts AdjusterOptions) *Adjuster {
	if opts.Window <= 0 {
		opts.Window = 72 * time.Hour
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = 20
	}
	if opts.AccuracyThreshold <= 0 {
		opts.AccuracyThreshold = 0.7
	}
	if opts.VarianceTolerance <= 0 {
		opts.VarianceTolerance = 0.2
	}
	if opts.MaxDecreaseStep <= 0 {
		opts.MaxDecreaseStep = 0.05
	}
	if opts.MaxIncreaseStep <= 0 {
		opts.MaxIncreaseStep = 0.025
	}
	if opts.FailureRateThreshold <= 0 {
		opts.FailureRateThreshold = 0.1
	}
	return &Adjuster{tracker: tracker, opts: opts}
}

// factorWeightTarget maps an outcome factor to the weight factor it
// recalibrates. The success factor steers availability.
func factorWeightTarget(f OutcomeFactor) strategy.Factor {
	switch f {
	case OutcomeCost:
		return strategy.FactorCost
	case OutcomeLatency:
		return strategy.FactorLatency
	case OutcomeQuality:
		return strategy.FactorQuality
	case OutcomeSuccess:
		return strategy.FactorAvailability
	}
	return ""
}

// SuggestAdjustment analyzes feedback within window (zero uses the
// configured default) and proposes a new weight vector for the strategy.
// Each weight moves by at most the configured step fraction, and the
// result sums to 1.0 within the weight tolerance. Returns
// ErrInsufficientData when too few outcomes fell inside the window.
func (a *Adjuster) SuggestAdjustment(s *strategy.Strategy, window time.Duration) (*Suggestion, error) {
	if s == nil {
		return nil, fmt.Errorf("feedback: strategy cannot be nil")
	}
	if window <= 0 {
		window = a.opts.Window
	}

	cutoff := time.Now().Add(-window)
	records := a.tracker.RecordsSince(cutoff, "", "")

	stats := make(map[OutcomeFactor]*Stats)
	outcomes := 0
	failures := 0
	for _, r := range records {
		st, ok := stats[r.Factor]
		if !ok {
			st = &Stats{}
			stats[r.Factor] = st
		}
		st.AvgAccuracy += r.Accuracy
		st.AvgRelVariance += relativeVariance(r.Predicted, r.Variance)
		st.SampleCount++

		if r.Factor == OutcomeSuccess {
			outcomes++
			if r.Actual == 0 {
				failures++
			}
		}
	}
	for _, st := range stats {
		if st.SampleCount > 0 {
			st.AvgAccuracy /= float64(st.SampleCount)
			st.AvgRelVariance /= float64(st.SampleCount)
		}
	}

	if outcomes < a.opts.MinSamples {
		return nil, fmt.Errorf("%w: %d outcomes in window, need %d",
			ErrInsufficientData, outcomes, a.opts.MinSamples)
	}

	multipliers := make(map[strategy.Factor]float64)
	var reasons []string

	for _, factor := range []OutcomeFactor{OutcomeCost, OutcomeLatency, OutcomeQuality} {
		st, ok := stats[factor]
		if !ok || st.SampleCount == 0 {
			continue
		}
		target := factorWeightTarget(factor)
		switch {
		case st.AvgAccuracy < a.opts.AccuracyThreshold && st.AvgRelVariance > a.opts.VarianceTolerance:
			multipliers[target] = 1 - a.opts.MaxDecreaseStep
			reasons = append(reasons, fmt.Sprintf(
				"%s predictions unreliable (accuracy %.2f, variance %.2f): decreasing weight",
				factor, st.AvgAccuracy, st.AvgRelVariance))
		case st.AvgAccuracy >= a.opts.AccuracyThreshold && st.AvgRelVariance <= a.opts.VarianceTolerance:
			multipliers[target] = 1 + a.opts.MaxIncreaseStep
			reasons = append(reasons, fmt.Sprintf(
				"%s predictions reliable (accuracy %.2f): increasing weight",
				factor, st.AvgAccuracy))
		}
	}

	failureRate := float64(failures) / float64(outcomes)
	if failureRate > a.opts.FailureRateThreshold {
		multipliers[strategy.FactorAvailability] = 1 + a.opts.MaxIncreaseStep
		reasons = append(reasons, fmt.Sprintf(
			"failure rate %.1f%% exceeds %.1f%%: increasing availability weight",
			failureRate*100, a.opts.FailureRateThreshold*100))
	}

	suggested := boundedReweight(s.Weights, multipliers, a.opts.MaxDecreaseStep, a.opts.MaxIncreaseStep)
	if len(multipliers) == 0 {
		reasons = append(reasons, "all factors within tolerance: no change")
	}

	statsOut := make(map[OutcomeFactor]Stats, len(stats))
	for f, st := range stats {
		statsOut[f] = *st
	}

	return &Suggestion{
		Strategy:    s.Name,
		Before:      s.Weights,
		Weights:     suggested,
		Reasons:     reasons,
		SampleCount: outcomes,
		FactorStats: statsOut,
		GeneratedAt: time.Now(),
	}, nil
}

// ApplyAdjustment commits a suggestion to the registry as a new strategy
// version and records an adjustment-history entry. The mutation is
// transactional: a validation failure leaves both the strategy and the
// history untouched. Registry-level locking makes concurrent applies to
// the same strategy mutually exclusive.
func (a *Adjuster) ApplyAdjustment(reg *strategy.Registry, suggestion *Suggestion) (*strategy.Strategy, error) {
	if suggestion == nil {
		return nil, fmt.Errorf("feedback: suggestion cannot be nil")
	}

	weights := suggestion.Weights
	updated, err := reg.UpdateStrategy(suggestion.Strategy, strategy.StrategyUpdate{Weights: &weights})
	if err != nil {
		return nil, fmt.Errorf("feedback: failed to apply adjustment: %w", err)
	}

	entry := &AdjustmentEntry{
		Strategy:  suggestion.Strategy,
		Before:    suggestion.Before,
		After:     weights,
		Reasons:   suggestion.Reasons,
		Version:   updated.Version,
		Timestamp: time.Now(),
	}

	a.mu.Lock()
	a.history = append(a.history, entry)
	a.mu.Unlock()

	log.Infof("Applied weight adjustment to strategy '%s' (version %s): %d reasons",
		suggestion.Strategy, updated.Version, len(suggestion.Reasons))
	return updated, nil
}

// History returns the applied-adjustment log, newest last.
func (a *Adjuster) History() []*AdjustmentEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*AdjustmentEntry, len(a.history))
	copy(out, a.history)
	return out
}

// boundedReweight applies per-factor multipliers and restores sum == 1.0
// without pushing any factor outside its allowed band
// [w*(1-down), w*(1+up)]. The residual after clamping is redistributed
// across factors that still have headroom; the band always contains the
// original weight, so a feasible solution exists.
func boundedReweight(w strategy.WeightVector, multipliers map[strategy.Factor]float64, down, up float64) strategy.WeightVector {
	out := w
	lo := strategy.WeightVector{}
	hi := strategy.WeightVector{}
	for _, f := range strategy.AllFactors() {
		cur := w.Get(f)
		lo.Set(f, cur*(1-down))
		hi.Set(f, cur*(1+up))
		if m, ok := multipliers[f]; ok {
			out.Set(f, cur*m)
		}
	}

	// Redistribute the residual proportionally among factors with
	// headroom in the needed direction. A handful of passes converges
	// well within the 1% sum tolerance.
	for i := 0; i < 10; i++ {
		residual := 1.0 - out.Sum()
		if residual > -1e-9 && residual < 1e-9 {
			break
		}
		var headroom float64
		for _, f := range strategy.AllFactors() {
			if residual > 0 {
				headroom += hi.Get(f) - out.Get(f)
			} else {
				headroom += out.Get(f) - lo.Get(f)
			}
		}
		if headroom <= 0 {
			break
		}
		for _, f := range strategy.AllFactors() {
			var room float64
			if residual > 0 {
				room = hi.Get(f) - out.Get(f)
			} else {
				room = out.Get(f) - lo.Get(f)
			}
			out.Set(f, out.Get(f)+residual*room/headroom)
		}
	}
	return out
}
