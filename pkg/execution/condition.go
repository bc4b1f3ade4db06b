package execution

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

// TextGenerator is the external text-generation collaborator used when a
// conditional or loop node is configured to delegate its decision to a model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ComparisonOperator is one of the built-in condition operators.
type ComparisonOperator string

const (
	OpEquals             ComparisonOperator = "=="
	OpNotEquals          ComparisonOperator = "!="
	OpGreaterThan        ComparisonOperator = ">"
	OpLessThan           ComparisonOperator = "<"
	OpGreaterThanOrEqual ComparisonOperator = ">="
	OpLessThanOrEqual    ComparisonOperator = "<="
)

// conditionConfig is the condition portion of a conditional or loop node's
// data payload.
type conditionConfig struct {
	Variable string
	Operator ComparisonOperator
	UseLLM   bool
	Prompt   string
}

// parseConditionConfig reads the condition settings out of a node's opaque
// data payload.
func parseConditionConfig(node graph.Node) (conditionConfig, error) {
	cfg := conditionConfig{Operator: OpEquals}
	if node.Data == nil {
		return cfg, fmt.Errorf("node %q has no condition configuration", node.ID)
	}
	if v, ok := node.Data["variable"].(string); ok {
		cfg.Variable = v
	}
	if op, ok := node.Data["operator"].(string); ok && op != "" {
		cfg.Operator = ComparisonOperator(op)
	}
	if useLLM, ok := node.Data["useLLM"].(bool); ok {
		cfg.UseLLM = useLLM
	}
	if prompt, ok := node.Data["prompt"].(string); ok {
		cfg.Prompt = prompt
	}
	if cfg.UseLLM {
		if strings.TrimSpace(cfg.Prompt) == "" {
			return cfg, fmt.Errorf("node %q delegates its condition but has no prompt", node.ID)
		}
		return cfg, nil
	}
	if cfg.Variable == "" {
		return cfg, fmt.Errorf("node %q compares against a variable but names none", node.ID)
	}
	switch cfg.Operator {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
	default:
		return cfg, fmt.Errorf("node %q uses unsupported operator %q", node.ID, cfg.Operator)
	}
	return cfg, nil
}

// evaluateCondition runs one condition evaluation against the given value,
// using either the direct variable comparison or the text-generation delegate.
func (e *NodeExecutor) evaluateCondition(ctx context.Context, node graph.Node, cfg conditionConfig, value interface{}) (bool, error) {
	if cfg.UseLLM {
		return e.evaluateLLMCondition(ctx, node, cfg, value)
	}

	expected, ok := e.ec.GetVariable(cfg.Variable)
	if !ok {
		return false, fmt.Errorf("condition variable %q is not set", cfg.Variable)
	}
	return compareValues(value, expected, cfg.Operator)
}

// evaluateLLMCondition asks the text-generation collaborator a yes/no
// question about the current value.
func (e *NodeExecutor) evaluateLLMCondition(ctx context.Context, node graph.Node, cfg conditionConfig, value interface{}) (bool, error) {
	if e.llm == nil {
		return false, fmt.Errorf("node %q delegates its condition but no text generator is configured", node.ID)
	}
	prompt := fmt.Sprintf(
		"%s\n\nValue: %v\n\nAnswer with exactly YES or NO.",
		cfg.Prompt, value)
	answer, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("condition delegate failed: %w", err)
	}
	normalized := strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(normalized, "yes") || strings.HasPrefix(normalized, "true"), nil
}

// compareValues dispatches to the appropriate comparison based on operator.
// Ordering operators coerce both sides to float64; equality falls back to
// string comparison when either side is not numeric.
func compareValues(actual, expected interface{}, operator ComparisonOperator) (bool, error) {
	switch operator {
	case OpEquals:
		return valuesEqual(actual, expected), nil
	case OpNotEquals:
		return !valuesEqual(actual, expected), nil
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		a, err := toFloat64(actual)
		if err != nil {
			return false, fmt.Errorf("operator %s: actual value: %w", operator, err)
		}
		b, err := toFloat64(expected)
		if err != nil {
			return false, fmt.Errorf("operator %s: expected value: %w", operator, err)
		}
		switch operator {
		case OpGreaterThan:
			return a > b, nil
		case OpLessThan:
			return a < b, nil
		case OpGreaterThanOrEqual:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, fmt.Errorf("unsupported operator %q", operator)
	}
}

// valuesEqual compares loosely: numeric equality when both sides coerce,
// string equality otherwise.
func valuesEqual(actual, expected interface{}) bool {
	a, errA := toFloat64(actual)
	b, errB := toFloat64(expected)
	if errA == nil && errB == nil {
		return a == b
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

// toFloat64 coerces numbers, numeric strings and booleans to float64.
func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to a number", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("cannot convert nil to a number")
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}
