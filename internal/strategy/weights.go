// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strategy

import (
	"fmt"
	"math"
)

// WeightSumTolerance is the allowed deviation of a weight vector's sum
// from 1.0.
const WeightSumTolerance = 0.01

// WeightVector holds the relative importance of each decision factor.
// A valid vector has non-negative components summing to 1.0 within
// WeightSumTolerance. Normalization is explicit; mutating a component
// never renormalizes automatically.
type WeightVector struct {
	Cost           float64 `yaml:"cost" json:"cost"`
	Latency        float64 `yaml:"latency" json:"latency"`
	Quality        float64 `yaml:"quality" json:"quality"`
	Availability   float64 `yaml:"availability" json:"availability"`
	Privacy        float64 `yaml:"privacy" json:"privacy"`
	UserPreference float64 `yaml:"user_preference" json:"user_preference"`
}

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	return w.Cost + w.Latency + w.Quality + w.Availability + w.Privacy + w.UserPreference
}

// Get returns the weight for a factor.
func (w WeightVector) Get(f Factor) float64 {
	switch f {
	case FactorCost:
		return w.Cost
	case FactorLatency:
		return w.Latency
	case FactorQuality:
		return w.Quality
	case FactorAvailability:
		return w.Availability
	case FactorPrivacy:
		return w.Privacy
	case FactorUserPreference:
		return w.UserPreference
	}
	return 0
}

// Set assigns the weight for a factor.
func (w *WeightVector) Set(f Factor, v float64) {
	switch f {
	case FactorCost:
		w.Cost = v
	case FactorLatency:
		w.Latency = v
	case FactorQuality:
		w.Quality = v
	case FactorAvailability:
		w.Availability = v
	case FactorPrivacy:
		w.Privacy = v
	case FactorUserPreference:
		w.UserPreference = v
	}
}

// AsMap returns the vector as a factor-keyed map.
func (w WeightVector) AsMap() map[Factor]float64 {
	m := make(map[Factor]float64, 6)
	for _, f := range AllFactors() {
		m[f] = w.Get(f)
	}
	return m
}

// Normalized returns a copy scaled so the components sum to 1.0.
// A zero vector normalizes to the uniform distribution.
func (w WeightVector) Normalized() WeightVector {
	sum := w.Sum()
	if sum <= 0 {
		uniform := 1.0 / 6.0
		return WeightVector{
			Cost:           uniform,
			Latency:        uniform,
			Quality:        uniform,
			Availability:   uniform,
			Privacy:        uniform,
			UserPreference: uniform,
		}
	}

	out := w
	for _, f := range AllFactors() {
		out.Set(f, w.Get(f)/sum)
	}
	return out
}

// Validate checks that no component is negative and the sum is 1.0 within
// tolerance.
func (w WeightVector) Validate() error {
	for _, f := range AllFactors() {
		if w.Get(f) < 0 {
			return &ValidationError{
				Kind:   "weights",
				Detail: fmt.Sprintf("factor %s has negative weight %.4f", f, w.Get(f)),
			}
		}
	}
	if math.Abs(w.Sum()-1.0) > WeightSumTolerance {
		return &ValidationError{
			Kind:   "weights",
			Detail: fmt.Sprintf("weights sum to %.4f, must sum to 1.0 within %.2f", w.Sum(), WeightSumTolerance),
		}
	}
	return nil
}

// ApplyDeltas returns a copy with the given per-factor deltas added.
// The result is not normalized; negative results clamp to zero.
func (w WeightVector) ApplyDeltas(deltas map[Factor]float64) WeightVector {
	out := w
	for f, d := range deltas {
		v := out.Get(f) + d
		if v < 0 {
			v = 0
		}
		out.Set(f, v)
	}
	return out
}
