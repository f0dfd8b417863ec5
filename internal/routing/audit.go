// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"sync"
)

const (
	// DefaultAuditSize bounds the decision audit ring buffer.
	DefaultAuditSize = 1000

	// DefaultRecentWindow is how many recent selections feed the
	// load-balancing penalty.
	DefaultRecentWindow = 100
)

// AuditLog is a bounded, append-only record of decisions plus the
// engine's running statistics. Appends happen in completion order.
// Single writer at a time; reads take the same lock and return copies.
type AuditLog struct {
	mu sync.RWMutex

	entries []*DecisionAudit
	maxSize int

	// recent holds candidate keys of the last N selections for the
	// load-balancing window.
	recent       []string
	recentWindow int

	totalDecisions    int64
	failedDecisions   int64
	degradedDecisions int64
	strategyUsage     map[string]int64
	avgLatencyMs      float64
	avgConfidence     float64
}

// NewAuditLog creates a log bounded at maxSize entries with a recent
// selection window of window entries. Non-positive arguments fall back
// to the defaults.
func NewAuditLog(maxSize, window int) *AuditLog {
	if maxSize <= 0 {
		maxSize = DefaultAuditSize
	}
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &AuditLog{
		entries:       make([]*DecisionAudit, 0, maxSize),
		maxSize:       maxSize,
		recent:        make([]string, 0, window),
		recentWindow:  window,
		strategyUsage: make(map[string]int64),
	}
}

// Append records a completed decision, evicting the oldest entry when
// the buffer is full, and updates the running statistics with an
// incremental mean.
func (a *AuditLog) Append(entry *DecisionAudit) {
	if entry == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.entries) >= a.maxSize {
		a.entries = a.entries[1:]
	}
	a.entries = append(a.entries, entry)

	if entry.Selected != nil {
		if len(a.recent) >= a.recentWindow {
			a.recent = a.recent[1:]
		}
		a.recent = append(a.recent, entry.Selected.Key())
	}

	a.totalDecisions++
	if entry.Degraded {
		a.degradedDecisions++
	}
	a.strategyUsage[entry.StrategyUsed]++
	n := float64(a.totalDecisions)
	a.avgLatencyMs += (float64(entry.ExecutionTimeMs) - a.avgLatencyMs) / n
	a.avgConfidence += (entry.Confidence - a.avgConfidence) / n
}

// RecordFailure counts a decision that aborted before selection.
func (a *AuditLog) RecordFailure() {
	a.mu.Lock()
	a.failedDecisions++
	a.mu.Unlock()
}

// RecentShare returns the fraction of the recent selection window that
// chose the given candidate key. Zero when the window is empty.
func (a *AuditLog) RecentShare(key string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.recent) == 0 {
		return 0
	}
	var hits int
	for _, k := range a.recent {
		if k == key {
			hits++
		}
	}
	return float64(hits) / float64(len(a.recent))
}

// History returns up to limit entries matching the filter, newest
// first. limit <= 0 means no limit.
func (a *AuditLog) History(limit int, filter HistoryFilter) []*DecisionAudit {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*DecisionAudit, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if filter.TaskType != "" && e.TaskType != filter.TaskType {
			continue
		}
		if filter.StrategyUsed != "" && e.StrategyUsed != filter.StrategyUsed {
			continue
		}
		if filter.DegradedOnly && !e.Degraded {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Get returns the audit entry for a decision ID, or nil.
func (a *AuditLog) Get(decisionID string) *DecisionAudit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].DecisionID == decisionID {
			return a.entries[i]
		}
	}
	return nil
}

// Size returns the current number of retained entries.
func (a *AuditLog) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Statistics returns a snapshot of the running counters.
func (a *AuditLog) Statistics() Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	usage := make(map[string]int64, len(a.strategyUsage))
	for k, v := range a.strategyUsage {
		usage[k] = v
	}
	stats := Statistics{
		TotalDecisions:       a.totalDecisions,
		FailedDecisions:      a.failedDecisions,
		DegradedDecisions:    a.degradedDecisions,
		StrategyUsage:        usage,
		AvgDecisionLatencyMs: a.avgLatencyMs,
		AvgConfidence:        a.avgConfidence,
	}
	attempts := a.totalDecisions + a.failedDecisions
	if attempts > 0 {
		stats.SuccessRate = float64(a.totalDecisions) / float64(attempts)
	}
	return stats
}

// Reset discards all entries and counters.
func (a *AuditLog) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = a.entries[:0]
	a.recent = a.recent[:0]
	a.totalDecisions = 0
	a.failedDecisions = 0
	a.degradedDecisions = 0
	a.strategyUsage = make(map[string]int64)
	a.avgLatencyMs = 0
	a.avgConfidence = 0
}
