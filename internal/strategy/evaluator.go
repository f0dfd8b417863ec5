package strategy

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConditionEvaluator evaluates policy condition rules against a request
// context. Programs are compiled once per distinct condition and cached.
type ConditionEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewConditionEvaluator creates a new condition evaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{
		programs: make(map[string]*vm.Program),
	}
}

// Evaluate evaluates a condition string against the provided request
// context. An empty condition or the literal "true" always matches.
func (e *ConditionEvaluator) Evaluate(condition string, ctx *RequestContext) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	e.mu.RLock()
	program, exists := e.programs[condition]
	e.mu.RUnlock()

	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.Env(ctx), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("failed to compile condition '%s': %w", condition, err)
		}
		e.mu.Lock()
		e.programs[condition] = program
		e.mu.Unlock()
	}

	output, err := expr.Run(program, ctx)
	if err != nil {
		return false, fmt.Errorf("failed to run condition '%s': %w", condition, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' did not return a boolean", condition)
	}

	return result, nil
}
