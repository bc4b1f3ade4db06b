// Package expr evaluates small JavaScript expressions against a scope of
// named values. It backs breakpoint conditions and watch expressions in the
// debug executor: each evaluation runs on a fresh sandboxed runtime with a
// hard wall-clock limit, so a hostile or runaway expression can stall only
// itself, never the engine.
package expr

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single expression evaluation.
const DefaultTimeout = 250 * time.Millisecond

// Evaluator runs expressions with a configured time limit.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator creates an evaluator. A non-positive timeout falls back to
// DefaultTimeout.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{timeout: timeout}
}

// Evaluate runs the expression with each scope entry installed as a global
// and returns the exported result.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, scope map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expression panicked: %v", r)
		}
	}()

	vm := goja.New()
	if err := sandbox(vm); err != nil {
		return nil, err
	}
	for name, value := range scope {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-evalCtx.Done():
			vm.Interrupt("expression timeout")
		case <-done:
		}
	}()
	defer close(done)

	value, err := vm.RunString(expression)
	if err != nil {
		if evalCtx.Err() != nil {
			return nil, fmt.Errorf("expression timed out after %s", e.timeout)
		}
		if exc, ok := err.(*goja.Exception); ok {
			return nil, fmt.Errorf("expression failed: %s", exc.Error())
		}
		return nil, fmt.Errorf("expression failed: %w", err)
	}
	return value.Export(), nil
}

// EvaluateBool runs the expression and coerces the result with JavaScript
// truthiness.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, scope map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(ctx, "Boolean("+expression+")", scope)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not produce a boolean, got %T", result)
	}
	return b, nil
}
