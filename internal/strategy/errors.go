// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrStrategyNotFound indicates the named strategy is not registered.
	ErrStrategyNotFound = errors.New("strategy: not found")
	// ErrPolicyNotFound indicates the named policy is not registered.
	ErrPolicyNotFound = errors.New("strategy: policy not found")
	// ErrStrategyExists indicates a create collided with an existing name.
	ErrStrategyExists = errors.New("strategy: already exists")
	// ErrPolicyExists indicates a policy create collided with an existing name.
	ErrPolicyExists = errors.New("strategy: policy already exists")
	// ErrStrategyReferenced indicates a deactivate was refused because an
	// active policy still references the strategy.
	ErrStrategyReferenced = errors.New("strategy: referenced by active policy")
)

// ValidationError describes why a strategy or policy definition was
// rejected. Validation failures are returned synchronously and never
// partially applied.
type ValidationError struct {
	Kind   string // "weights", "policy", "variant"
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("strategy: invalid %s: %s", e.Kind, e.Detail)
}
