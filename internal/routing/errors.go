// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates is returned when the catalog yields no candidate
	// that passes the task's eligibility filter.
	ErrNoCandidates = errors.New("routing: no eligible candidates")

	// ErrAllEvaluationsFailed is returned when every candidate evaluation
	// errored and nothing remains to select from.
	ErrAllEvaluationsFailed = errors.New("routing: all candidate evaluations failed")

	// ErrInvalidRequest is returned for requests that cannot be routed,
	// such as a missing task type.
	ErrInvalidRequest = errors.New("routing: invalid request")
)

// FailureStage identifies where in the decision pipeline a failure
// occurred.
type FailureStage string

const (
	StageResolveTask     FailureStage = "resolve_task"
	StageFetchCandidates FailureStage = "fetch_candidates"
	StageResolveStrategy FailureStage = "resolve_strategy"
	StageEvaluate        FailureStage = "evaluate"
	StageSelect          FailureStage = "select"
)

// DecisionError wraps a pipeline failure with the stage it occurred in
// and the request it belongs to.
type DecisionError struct {
	Stage     FailureStage
	RequestID string
	Err       error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("routing: decision failed at %s (request %s): %v", e.Stage, e.RequestID, e.Err)
}

func (e *DecisionError) Unwrap() error { return e.Err }

func decisionErr(stage FailureStage, requestID string, err error) *DecisionError {
	return &DecisionError{Stage: stage, RequestID: requestID, Err: err}
}
