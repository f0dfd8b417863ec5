// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandidates() []*Candidate {
	return []*Candidate{
		{Provider: "ollama", ModelID: "llama3", CostPer1kInput: 0, CostPer1kOutput: 0,
			AvgLatencyMs: 3000, CapabilityScore: 0.7, Privacy: PrivacyLocal, IsAvailable: true},
		{Provider: "openai", ModelID: "gpt-4", CostPer1kInput: 0.03, CostPer1kOutput: 0.06,
			AvgLatencyMs: 1500, CapabilityScore: 0.95, Privacy: PrivacyCloud, IsAvailable: true},
		{Provider: "gemini", ModelID: "flash", CostPer1kInput: 0.0005, CostPer1kOutput: 0.0015,
			AvgLatencyMs: 800, CapabilityScore: 0.8, Privacy: PrivacyCloud, IsAvailable: true},
	}
}

func TestGetTaskMetadata(t *testing.T) {
	tc := NewStaticTaskCatalog([]*TaskMetadata{
		{TaskType: "summarize", MinCapabilityScore: 0.6, MaxCostPer1k: 0.01},
	})

	task, err := tc.GetTaskMetadata(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, 0.6, task.MinCapabilityScore)

	_, err = tc.GetTaskMetadata(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTaskMetadataReturnsCopy(t *testing.T) {
	tc := NewStaticTaskCatalog([]*TaskMetadata{{TaskType: "summarize", MaxCostPer1k: 0.01}})

	task, err := tc.GetTaskMetadata(context.Background(), "summarize")
	require.NoError(t, err)
	task.MaxCostPer1k = 99

	again, err := tc.GetTaskMetadata(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, 0.01, again.MaxCostPer1k)
}

func TestListCandidatesPreservesOrder(t *testing.T) {
	mc := NewStaticModelCatalog(sampleCandidates())

	got, err := mc.ListCandidates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ollama:llama3", got[0].Key())
	assert.Equal(t, "openai:gpt-4", got[1].Key())
	assert.Equal(t, "gemini:flash", got[2].Key())
}

func TestListCandidatesFilters(t *testing.T) {
	mc := NewStaticModelCatalog(sampleCandidates())

	byCapability, err := mc.ListCandidates(context.Background(), &CandidateFilter{MinCapabilityScore: 0.75})
	require.NoError(t, err)
	require.Len(t, byCapability, 2)

	// Blended 70/30 cost: gpt-4 is 0.039/1k, flash 0.0008/1k, llama3 free.
	byCost, err := mc.ListCandidates(context.Background(), &CandidateFilter{MaxCostPer1k: 0.01})
	require.NoError(t, err)
	require.Len(t, byCost, 2)
	for _, c := range byCost {
		assert.NotEqual(t, "openai", c.Provider)
	}

	localOnly, err := mc.ListCandidates(context.Background(), &CandidateFilter{RequireLocal: true})
	require.NoError(t, err)
	require.Len(t, localOnly, 1)
	assert.Equal(t, PrivacyLocal, localOnly[0].Privacy)
}

func TestListCandidatesRequiredFeatures(t *testing.T) {
	pool := sampleCandidates()
	pool[1].Features = []string{"function_calling", "vision"}
	mc := NewStaticModelCatalog(pool)

	got, err := mc.ListCandidates(context.Background(), &CandidateFilter{RequiredFeatures: []string{"vision"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "openai", got[0].Provider)
}

func TestListCandidatesReturnsCopies(t *testing.T) {
	mc := NewStaticModelCatalog(sampleCandidates())

	got, err := mc.ListCandidates(context.Background(), nil)
	require.NoError(t, err)
	got[0].CapabilityScore = 0.0

	again, err := mc.ListCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.7, again[0].CapabilityScore)
}

func TestParseCandidateKey(t *testing.T) {
	p, m := ParseCandidateKey("openai:gpt-4")
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt-4", m)

	p, m = ParseCandidateKey("ollama:llama3:8b")
	assert.Equal(t, "ollama", p)
	assert.Equal(t, "llama3:8b", m)

	p, m = ParseCandidateKey("bare")
	assert.Equal(t, "bare", p)
	assert.Equal(t, "", m)
}
