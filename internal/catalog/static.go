// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"strings"
	"sync"
)

// StaticTaskCatalog is an in-memory TaskCatalog backed by a fixed map.
// It is used for embedding the engine without a real catalog service and
// throughout the test suites.
type StaticTaskCatalog struct {
	mu    sync.RWMutex
	tasks map[string]*TaskMetadata
}

// NewStaticTaskCatalog creates a catalog from the given task definitions.
func NewStaticTaskCatalog(tasks []*TaskMetadata) *StaticTaskCatalog {
	m := make(map[string]*TaskMetadata, len(tasks))
	for _, t := range tasks {
		m[t.TaskType] = t
	}
	return &StaticTaskCatalog{tasks: m}
}

// Register adds or replaces a task definition.
func (s *StaticTaskCatalog) Register(task *TaskMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskType] = task
}

// GetTaskMetadata implements TaskCatalog.
func (s *StaticTaskCatalog) GetTaskMetadata(ctx context.Context, taskType string) (*TaskMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskType]
	if !ok {
		return nil, ErrTaskNotFound
	}

	// Return a copy so callers cannot mutate catalog state.
	cp := *task
	return &cp, nil
}

// StaticModelCatalog is an in-memory ModelCatalog backed by a fixed slice.
// Declaration order is preserved; the engine relies on it for deterministic
// tie-breaking.
type StaticModelCatalog struct {
	mu         sync.RWMutex
	candidates []*Candidate
}

// NewStaticModelCatalog creates a catalog from the given candidates.
func NewStaticModelCatalog(candidates []*Candidate) *StaticModelCatalog {
	return &StaticModelCatalog{candidates: candidates}
}

// SetCandidates replaces the candidate pool.
func (s *StaticModelCatalog) SetCandidates(candidates []*Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = candidates
}

// ListCandidates implements ModelCatalog. The returned slice preserves
// declaration order after filtering.
func (s *StaticModelCatalog) ListCandidates(ctx context.Context, filter *CandidateFilter) ([]*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Candidate
	for _, c := range s.candidates {
		if filter != nil && !matchesFilter(c, filter) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func matchesFilter(c *Candidate, f *CandidateFilter) bool {
	if c.CapabilityScore < f.MinCapabilityScore {
		return false
	}
	if f.MaxCostPer1k > 0 {
		// Compare against the blended per-1k cost the evaluator uses.
		blended := 0.7*c.CostPer1kInput + 0.3*c.CostPer1kOutput
		if blended > f.MaxCostPer1k {
			return false
		}
	}
	if f.RequireLocal && c.Privacy != PrivacyLocal {
		return false
	}
	for _, required := range f.RequiredFeatures {
		found := false
		for _, have := range c.Features {
			if have == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ParseCandidateKey splits a "provider:model" key into its parts.
// Model IDs may themselves contain colons (e.g. "ollama:qwen:0.5b").
func ParseCandidateKey(key string) (provider, modelID string) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}
