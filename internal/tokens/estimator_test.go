// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleEstimate(t *testing.T) {
	e := NewEstimator("simple")
	assert.Equal(t, "simple", e.Method())

	assert.Equal(t, 0, e.Estimate(""))
	// 4 words * 1.3 = 5.2, truncated to 5.
	assert.Equal(t, 5, e.Estimate("the quick brown fox"))
	// Whitespace runs count as single separators.
	assert.Equal(t, 5, e.Estimate("  the\tquick \n brown  fox  "))
}

func TestInvalidMethodFallsBackToSimple(t *testing.T) {
	e := NewEstimator("magic")
	assert.Equal(t, "simple", e.Method())
}

func TestTiktokenEstimate(t *testing.T) {
	e := NewEstimator("tiktoken")
	if e.Method() != "tiktoken" {
		t.Skip("tiktoken codec unavailable")
	}

	n := e.Estimate("Summarize the quarterly earnings report.")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)
	assert.Equal(t, 0, e.Estimate(""))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, countWords(""))
	assert.Equal(t, 1, countWords("hello"))
	assert.Equal(t, 3, countWords("a b c"))
	assert.Equal(t, 2, countWords("line\nbreak"))
}
