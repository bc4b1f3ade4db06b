package expr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSimpleExpression(t *testing.T) {
	eval := NewEvaluator(0)

	result, err := eval.Evaluate(context.Background(), `x + y`, map[string]interface{}{
		"x": 2,
		"y": 3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, result)
}

func TestEvaluateScopeObjects(t *testing.T) {
	eval := NewEvaluator(0)

	result, err := eval.Evaluate(context.Background(), `variables.name.toUpperCase()`, map[string]interface{}{
		"variables": map[string]interface{}{"name": "daedalus"},
	})
	require.NoError(t, err)
	assert.Equal(t, "DAEDALUS", result)
}

func TestEvaluateBool(t *testing.T) {
	eval := NewEvaluator(0)
	scope := map[string]interface{}{"count": 4}

	met, err := eval.EvaluateBool(context.Background(), `count > 3`, scope)
	require.NoError(t, err)
	assert.True(t, met)

	met, err = eval.EvaluateBool(context.Background(), `count`, scope)
	require.NoError(t, err)
	assert.True(t, met, "truthiness coercion applies")
}

func TestEvaluateSyntaxError(t *testing.T) {
	eval := NewEvaluator(0)
	_, err := eval.Evaluate(context.Background(), `not valid ((`, nil)
	require.Error(t, err)
}

func TestEvaluateUndefinedReference(t *testing.T) {
	eval := NewEvaluator(0)
	_, err := eval.Evaluate(context.Background(), `missing.field`, nil)
	require.Error(t, err)
}

func TestEvaluateTimeout(t *testing.T) {
	eval := NewEvaluator(50 * time.Millisecond)

	start := time.Now()
	_, err := eval.Evaluate(context.Background(), `while (true) {}`, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSandboxBlocksHostGlobals(t *testing.T) {
	eval := NewEvaluator(0)
	ctx := context.Background()

	for _, expression := range []string{
		`require("fs")`,
		`process.exit(1)`,
		`new Buffer(8)`,
	} {
		_, err := eval.Evaluate(ctx, expression, nil)
		assert.Error(t, err, expression)
	}
}

func TestSandboxBlocksEval(t *testing.T) {
	eval := NewEvaluator(0)
	_, err := eval.Evaluate(context.Background(), `eval("1 + 1")`, nil)
	require.Error(t, err)
}
