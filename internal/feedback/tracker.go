// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// DefaultAlpha is the EMA smoothing factor for profile updates.
	DefaultAlpha = 0.1
	// DefaultMaxRecords bounds the in-memory record window.
	DefaultMaxRecords = 10000
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// Alpha is the EMA smoothing factor (0 < Alpha <= 1).
	Alpha float64
	// MaxRecords bounds the in-memory record window; oldest evicted first.
	MaxRecords int
}

// Tracker ingests outcomes and maintains per-candidate performance
// profiles. Profile updates for the same candidate are serialized so the
// EMA stays correct under concurrent RecordOutcome calls.
type Tracker struct {
	alpha      float64
	maxRecords int

	mu       sync.RWMutex
	profiles map[string]*PerformanceProfile
	records  []*Record // bounded window, oldest first
	store    *Store    // optional durable archive
}

// NewTracker creates a tracker with the given options. Zero-valued
// options fall back to defaults.
func NewTracker(opts TrackerOptions) *Tracker {
	alpha := opts.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	maxRecords := opts.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Tracker{
		alpha:      alpha,
		maxRecords: maxRecords,
		profiles:   make(map[string]*PerformanceProfile),
	}
}

// SetStore attaches a durable archive. Records are archived best-effort;
// archive failures never fail the in-memory update.
func (t *Tracker) SetStore(store *Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = store
}

// RecordOutcome fans an outcome out into per-factor records and folds
// them into the candidate's performance profile. It returns the records
// it produced.
func (t *Tracker) RecordOutcome(decisionID, provider, modelID string, predicted PredictedMetrics, actual ActualMetrics) ([]*Record, error) {
	if decisionID == "" {
		return nil, fmt.Errorf("feedback: decision id cannot be empty")
	}

	now := time.Now()
	successActual := 0.0
	if actual.Success {
		successActual = 1.0
	}

	records := []*Record{
		newRecord(decisionID, provider, modelID, OutcomeCost, predicted.Cost, actual.Cost, now),
		newRecord(decisionID, provider, modelID, OutcomeLatency, float64(predicted.LatencyMs), float64(actual.LatencyMs), now),
		newRecord(decisionID, provider, modelID, OutcomeQuality, predicted.Quality, actual.Quality, now),
		newRecord(decisionID, provider, modelID, OutcomeSuccess, 1.0, successActual, now),
	}

	t.mu.Lock()
	t.appendRecordsLocked(records)
	t.updateProfileLocked(provider, modelID, records, actual, now)
	store := t.store
	t.mu.Unlock()

	if store != nil && store.IsEnabled() {
		for _, r := range records {
			if err := store.Record(context.Background(), r); err != nil {
				log.Warnf("Failed to archive feedback record: %v", err)
				break
			}
		}
	}

	return records, nil
}

// RecordOutcomeJSON accepts a caller-supplied raw outcome payload of the
// form {"predicted": {...}, "actual": {...}} and records it.
func (t *Tracker) RecordOutcomeJSON(decisionID, provider, modelID string, payload []byte) ([]*Record, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("feedback: invalid outcome payload")
	}

	doc := gjson.ParseBytes(payload)
	predicted := PredictedMetrics{
		Cost:      doc.Get("predicted.cost").Float(),
		LatencyMs: doc.Get("predicted.latency_ms").Int(),
		Quality:   doc.Get("predicted.quality").Float(),
	}
	actual := ActualMetrics{
		Cost:      doc.Get("actual.cost").Float(),
		LatencyMs: doc.Get("actual.latency_ms").Int(),
		Quality:   doc.Get("actual.quality").Float(),
		Success:   doc.Get("actual.success").Bool(),
		Error:     doc.Get("actual.error").String(),
	}
	return t.RecordOutcome(decisionID, provider, modelID, predicted, actual)
}

// GetProfile returns a copy of the candidate's performance profile, or
// nil when no feedback has been recorded for it.
func (t *Tracker) GetProfile(provider, modelID string) *PerformanceProfile {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.profiles[provider+":"+modelID]
	if !ok {
		return nil
	}
	return cloneProfile(p)
}

// RecordsSince returns the records newer than cutoff, optionally filtered
// to one candidate (empty provider matches all).
func (t *Tracker) RecordsSince(cutoff time.Time, provider, modelID string) []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Record
	for _, r := range t.records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		if provider != "" && (r.Provider != provider || r.ModelID != modelID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Reset discards all profiles and the record window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles = make(map[string]*PerformanceProfile)
	t.records = nil
}

// Stats returns summary counters for diagnostics.
func (t *Tracker) Stats() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]interface{}{
		"profiles":       len(t.profiles),
		"records":        len(t.records),
		"alpha":          t.alpha,
		"store_enabled":  t.store != nil && t.store.IsEnabled(),
	}
}

func (t *Tracker) appendRecordsLocked(records []*Record) {
	t.records = append(t.records, records...)
	if over := len(t.records) - t.maxRecords; over > 0 {
		t.records = t.records[over:]
	}
}

func (t *Tracker) updateProfileLocked(provider, modelID string, records []*Record, actual ActualMetrics, now time.Time) {
	key := provider + ":" + modelID
	p, ok := t.profiles[key]
	if !ok {
		p = &PerformanceProfile{
			Provider:         provider,
			ModelID:          modelID,
			AccuracyByFactor: make(map[OutcomeFactor]float64),
			RelativeVariance: make(map[OutcomeFactor]float64),
		}
		t.profiles[key] = p
	}

	first := p.SampleCount == 0
	for _, r := range records {
		relVar := relativeVariance(r.Predicted, r.Variance)
		if first {
			p.AccuracyByFactor[r.Factor] = r.Accuracy
			p.RelativeVariance[r.Factor] = relVar
		} else {
			p.AccuracyByFactor[r.Factor] = ema(p.AccuracyByFactor[r.Factor], r.Accuracy, t.alpha)
			p.RelativeVariance[r.Factor] = ema(p.RelativeVariance[r.Factor], relVar, t.alpha)
		}
	}

	successValue := 0.0
	if actual.Success {
		successValue = 1.0
	}
	if first {
		p.SuccessRate = successValue
		p.AvgLatencyMs = float64(actual.LatencyMs)
		p.AvgQuality = actual.Quality
	} else {
		p.SuccessRate = ema(p.SuccessRate, successValue, t.alpha)
		p.AvgLatencyMs = ema(p.AvgLatencyMs, float64(actual.LatencyMs), t.alpha)
		p.AvgQuality = ema(p.AvgQuality, actual.Quality, t.alpha)
	}
	p.SampleCount++
	p.LastUpdated = now
}

func newRecord(decisionID, provider, modelID string, factor OutcomeFactor, predicted, actual float64, ts time.Time) *Record {
	variance := math.Abs(actual - predicted)
	return &Record{
		DecisionID: decisionID,
		Provider:   provider,
		ModelID:    modelID,
		Factor:     factor,
		Predicted:  predicted,
		Actual:     actual,
		Variance:   variance,
		Accuracy:   accuracy(predicted, variance),
		Timestamp:  ts,
	}
}

// accuracy is 1 - variance/|predicted| clamped to [0,1]. A zero
// prediction scores 1.0 only on an exact match.
func accuracy(predicted, variance float64) float64 {
	if predicted == 0 {
		if variance == 0 {
			return 1.0
		}
		return 0.0
	}
	a := 1.0 - variance/math.Abs(predicted)
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

func relativeVariance(predicted, variance float64) float64 {
	if predicted == 0 {
		if variance == 0 {
			return 0
		}
		return 1
	}
	rv := variance / math.Abs(predicted)
	if rv > 1 {
		return 1
	}
	return rv
}

func ema(old, sample, alpha float64) float64 {
	return (1-alpha)*old + alpha*sample
}

func cloneProfile(p *PerformanceProfile) *PerformanceProfile {
	cp := *p
	cp.AccuracyByFactor = make(map[OutcomeFactor]float64, len(p.AccuracyByFactor))
	for k, v := range p.AccuracyByFactor {
		cp.AccuracyByFactor[k] = v
	}
	cp.RelativeVariance = make(map[OutcomeFactor]float64, len(p.RelativeVariance))
	for k, v := range p.RelativeVariance {
		cp.RelativeVariance[k] = v
	}
	return &cp
}
