// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tokens provides token-count estimation for routing requests that
// arrive without an explicit estimate.
package tokens

import (
	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// Estimator estimates token counts in text content. It supports two
// methods with different accuracy/performance tradeoffs: "tiktoken"
// (BPE encoding, accurate) and "simple" (words * 1.3, fast).
type Estimator struct {
	method string
	codec  tokenizer.Codec
}

// NewEstimator creates an Estimator with the specified method. Invalid
// methods fall back to "simple". When the tiktoken codec cannot be
// initialized the estimator degrades to "simple" with a warning.
func NewEstimator(method string) *Estimator {
	if method != "simple" && method != "tiktoken" {
		method = "simple"
	}

	e := &Estimator{method: method}
	if method == "tiktoken" {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warnf("Failed to initialize tiktoken codec, falling back to simple estimation: %v", err)
			e.method = "simple"
		} else {
			e.codec = codec
		}
	}
	return e
}

// Estimate estimates the number of tokens in the given content.
func (e *Estimator) Estimate(content string) int {
	if len(content) == 0 {
		return 0
	}
	if e.method == "tiktoken" && e.codec != nil {
		ids, _, err := e.codec.Encode(content)
		if err == nil {
			return len(ids)
		}
		log.Debugf("tiktoken encode failed, using simple estimate: %v", err)
	}
	return e.simpleEstimate(content)
}

// Method returns the estimation method in effect.
func (e *Estimator) Method() string {
	return e.method
}

// simpleEstimate uses a word count * 1.3 approximation.
// Most tokenizers produce ~1.3 tokens per word on average.
func (e *Estimator) simpleEstimate(content string) int {
	return int(float64(countWords(content)) * 1.3)
}

func countWords(content string) int {
	wordCount := 0
	inWord := false
	for _, r := range content {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			inWord = false
		} else if !inWord {
			wordCount++
			inWord = true
		}
	}
	return wordCount
}
