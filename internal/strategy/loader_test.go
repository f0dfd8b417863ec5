// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	src := NewRegistry()
	loader := NewLoader(dir, src)

	s := &Strategy{
		Name:        "batch_jobs",
		DisplayName: "Batch Jobs",
		Weights:     WeightVector{Cost: 0.6, Latency: 0.05, Quality: 0.1, Availability: 0.1, Privacy: 0.1, UserPreference: 0.05},
		IsActive:    true,
	}
	require.NoError(t, src.CreateStrategy(s))
	stored, err := src.GetStrategy("batch_jobs")
	require.NoError(t, err)
	require.NoError(t, loader.Save(stored))

	p := &Policy{
		Name:             "nightly",
		TaskTypeMappings: map[string]string{"batch": "batch_jobs"},
		FallbackStrategy: "batch_jobs",
		IsActive:         true,
	}
	require.NoError(t, src.CreatePolicy(p))
	require.NoError(t, loader.SavePolicy(p))

	// A fresh registry loads the same documents from disk.
	dst := NewRegistry()
	require.NoError(t, NewLoader(dir, dst).Load())

	got, err := dst.GetStrategy("batch_jobs")
	require.NoError(t, err)
	assert.Equal(t, "Batch Jobs", got.DisplayName)
	assert.InDelta(t, 0.6, got.Weights.Cost, 1e-9)
	assert.True(t, got.IsActive)

	gotPolicy, err := dst.GetPolicy("nightly")
	require.NoError(t, err)
	assert.Equal(t, "batch_jobs", gotPolicy.TaskTypeMappings["batch"])
}

func TestLoaderReloadUpdatesExisting(t *testing.T) {
	dir := t.TempDir()

	reg := NewRegistry()
	loader := NewLoader(dir, reg)

	s := &Strategy{Name: "tuned", Weights: uniformWeights(), IsActive: true}
	require.NoError(t, reg.CreateStrategy(s))
	stored, err := reg.GetStrategy("tuned")
	require.NoError(t, err)
	require.NoError(t, loader.Save(stored))
	require.NoError(t, loader.Load())

	// Rewrite the document with different weights and reload. The
	// existing entry must be updated, not rejected as a duplicate.
	stored.Weights = WeightVector{Cost: 0.5, Latency: 0.1, Quality: 0.1, Availability: 0.1, Privacy: 0.1, UserPreference: 0.1}
	require.NoError(t, loader.Save(stored))
	require.NoError(t, loader.Load())

	got, err := reg.GetStrategy("tuned")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Weights.Cost, 1e-9)
}

func TestLoaderSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("kind: strategy\nstrategy: [not a map"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg := NewRegistry()
	require.NoError(t, NewLoader(dir, reg).Load())

	// Only the builtins remain.
	assert.Len(t, reg.ListStrategies(), 5)
}
