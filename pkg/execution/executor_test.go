package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// counters tracks how many times each test node type executed.
type counters map[string]int

// testRegistry builds a registry of minimal node types for executor tests.
// calls may be nil.
func testRegistry(calls counters) *registry.Registry {
	count := func(id string) {
		if calls != nil {
			calls[id]++
		}
	}

	reg := registry.New()
	reg.MustRegister(registry.Type{
		Name:        "emit",
		OutputNames: []string{"value"},
		Traits:      graph.Traits{EntryPoint: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			count(node.ID)
			return node.Data["value"], nil
		},
	})
	reg.MustRegister(registry.Type{
		Name:       "sink",
		InputNames: []string{"value"},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			count(node.ID)
			return inputs["value"], nil
		},
	})
	reg.MustRegister(registry.Type{
		Name:       "inc",
		InputNames: []string{"value"},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			count(node.ID)
			n, ok := inputs["value"].(float64)
			if !ok {
				if i, isInt := inputs["value"].(int); isInt {
					n = float64(i)
				} else {
					return nil, fmt.Errorf("inc needs a number, got %T", inputs["value"])
				}
			}
			return n + 1, nil
		},
	})
	reg.MustRegister(registry.Type{
		Name:       "fail",
		InputNames: []string{"value"},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			count(node.ID)
			return nil, errors.New("boom")
		},
	})
	reg.MustRegister(registry.Type{
		Name:        "if",
		InputNames:  []string{"value"},
		OutputNames: []string{"true", "false"},
		Traits:      graph.Traits{Conditional: true},
	})
	reg.MustRegister(registry.Type{
		Name:        "loop",
		InputNames:  []string{"value"},
		OutputNames: []string{"body", "done"},
		Traits:      graph.Traits{Loop: true},
	})
	return reg
}

func newTestExecutor(t *testing.T, calls counters, variables map[string]interface{}) (*NodeExecutor, *Context) {
	t.Helper()
	ec := NewContext("wf-test", variables, nil, nil)
	exec := NewNodeExecutor(testRegistry(calls), ec, nil, nil)
	return exec, ec
}

func TestExecuteRoutesConditionalBranches(t *testing.T) {
	// a(emit 5) -> b(if value > threshold) -> c via true, d via false.
	nodes := []graph.Node{
		{ID: "a", Type: "emit", Data: map[string]interface{}{"value": 5}},
		{ID: "b", Type: "if", Data: map[string]interface{}{"variable": "threshold", "operator": ">"}},
		{ID: "c", Type: "sink"},
		{ID: "d", Type: "sink"},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
		{ID: "c2", SourceNodeID: "b", TargetNodeID: "c", SourceSlot: graph.SlotByName("true")},
		{ID: "c3", SourceNodeID: "b", TargetNodeID: "d", SourceSlot: graph.SlotByName("false")},
	}

	calls := counters{}
	exec, ec := newTestExecutor(t, calls, map[string]interface{}{"threshold": 3})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		node, ok := nodes[0], false
		for _, n := range nodes {
			if n.ID == id {
				node, ok = n, true
			}
		}
		require.True(t, ok)
		_, err := exec.Execute(ctx, node, nodes, connections)
		require.NoError(t, err)
	}

	// 5 > 3: the true branch received the value, the false branch was pruned.
	cResult, ok := ec.GetNodeResult("c")
	require.True(t, ok)
	assert.Equal(t, 5, cResult)

	dResult, ok := ec.GetNodeResult("d")
	require.True(t, ok, "pruned branch must still cache an explicit nil")
	assert.Nil(t, dResult)

	assert.Equal(t, 1, calls["c"])
	assert.Equal(t, 0, calls["d"], "pruned node must not execute")
}

func TestExecuteConditionalFalseBranch(t *testing.T) {
	nodes := []graph.Node{
		{ID: "a", Type: "emit", Data: map[string]interface{}{"value": 2}},
		{ID: "b", Type: "if", Data: map[string]interface{}{"variable": "threshold", "operator": ">"}},
		{ID: "c", Type: "sink"},
		{ID: "d", Type: "sink"},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
		{ID: "c2", SourceNodeID: "b", TargetNodeID: "c", SourceSlot: graph.SlotByIndex(0)},
		{ID: "c3", SourceNodeID: "b", TargetNodeID: "d", SourceSlot: graph.SlotByIndex(1)},
	}

	exec, ec := newTestExecutor(t, nil, map[string]interface{}{"threshold": 3})

	ctx := context.Background()
	for _, node := range nodes {
		_, err := exec.Execute(ctx, node, nodes, connections)
		require.NoError(t, err)
	}

	cResult, _ := ec.GetNodeResult("c")
	assert.Nil(t, cResult)
	dResult, _ := ec.GetNodeResult("d")
	assert.Equal(t, 2, dResult)
}

func TestExecuteMixedInputsNotSkipped(t *testing.T) {
	// d receives a nil conditional input AND a live unconditional one: it
	// must execute.
	nodes := []graph.Node{
		{ID: "a", Type: "emit", Data: map[string]interface{}{"value": 2}},
		{ID: "b", Type: "if", Data: map[string]interface{}{"variable": "threshold", "operator": ">"}},
		{ID: "other", Type: "emit", Data: map[string]interface{}{"value": "live"}},
		{ID: "d", Type: "sink"},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
		{ID: "c2", SourceNodeID: "b", TargetNodeID: "d", SourceSlot: graph.SlotByName("true")},
		{ID: "c3", SourceNodeID: "other", TargetNodeID: "d"},
	}

	calls := counters{}
	exec, _ := newTestExecutor(t, calls, map[string]interface{}{"threshold": 3})

	ctx := context.Background()
	for _, node := range nodes {
		_, err := exec.Execute(ctx, node, nodes, connections)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls["d"])
}

func TestExecuteRunsEachNodeOnce(t *testing.T) {
	nodes := []graph.Node{{ID: "a", Type: "emit", Data: map[string]interface{}{"value": 1}}}

	calls := counters{}
	exec, _ := newTestExecutor(t, calls, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := exec.Execute(ctx, nodes[0], nodes, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls["a"])
}

func TestExecuteLoopAdvancesUntilConditionFails(t *testing.T) {
	// Running value starts at 0 and increments; loop continues while
	// value < limit (3).
	nodes := []graph.Node{
		{ID: "start", Type: "emit", Data: map[string]interface{}{"value": 0}},
		{ID: "l", Type: "loop", Data: map[string]interface{}{
			"variable":      "limit",
			"operator":      "<",
			"maxIterations": 10,
		}},
		{ID: "body", Type: "inc"},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "start", TargetNodeID: "l"},
		{ID: "c2", SourceNodeID: "l", TargetNodeID: "body", SourceSlot: graph.SlotByName("body")},
	}

	calls := counters{}
	exec, ec := newTestExecutor(t, calls, map[string]interface{}{"limit": 3})

	ctx := context.Background()
	for _, node := range nodes {
		_, err := exec.Execute(ctx, node, nodes, connections)
		require.NoError(t, err)
	}

	// Values 0, 1, 2 pass the condition; 3 does not. The loop result is the
	// last value that passed.
	result, ok := ec.GetNodeResult("l")
	require.True(t, ok)
	assert.Equal(t, float64(2), result)
	assert.Equal(t, 3, calls["body"])
}

func TestExecuteLoopHonorsMaxIterations(t *testing.T) {
	nodes := []graph.Node{
		{ID: "start", Type: "emit", Data: map[string]interface{}{"value": 0}},
		{ID: "l", Type: "loop", Data: map[string]interface{}{
			"variable":      "limit",
			"operator":      "<",
			"maxIterations": 4,
		}},
		{ID: "body", Type: "inc"},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "start", TargetNodeID: "l"},
		{ID: "c2", SourceNodeID: "l", TargetNodeID: "body", SourceSlot: graph.SlotByIndex(0)},
	}

	calls := counters{}
	// limit is enormous, so only the ceiling stops the loop.
	exec, _ := newTestExecutor(t, calls, map[string]interface{}{"limit": 1000000})

	ctx := context.Background()
	for _, node := range nodes {
		_, err := exec.Execute(ctx, node, nodes, connections)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, calls["body"])
}

func TestExecuteLoopRequiresMaxIterations(t *testing.T) {
	nodes := []graph.Node{
		{ID: "start", Type: "emit", Data: map[string]interface{}{"value": 0}},
		{ID: "l", Type: "loop", Data: map[string]interface{}{
			"variable": "limit",
			"operator": "<",
		}},
	}
	connections := []graph.Connection{
		{ID: "c1", SourceNodeID: "start", TargetNodeID: "l"},
	}

	exec, _ := newTestExecutor(t, nil, map[string]interface{}{"limit": 3})

	ctx := context.Background()
	_, err := exec.Execute(ctx, nodes[0], nodes, connections)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, nodes[1], nodes, connections)
	require.ErrorIs(t, err, ErrLoopMaxIterations)
}

func TestExecuteUnknownNodeType(t *testing.T) {
	exec, _ := newTestExecutor(t, nil, nil)
	_, err := exec.Execute(context.Background(), graph.Node{ID: "x", Type: "mystery"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestCompareValues(t *testing.T) {
	cases := []struct {
		name     string
		actual   interface{}
		expected interface{}
		operator ComparisonOperator
		want     bool
	}{
		{"numeric equality", 5, 5.0, OpEquals, true},
		{"numeric string equality", "5", 5, OpEquals, true},
		{"string equality", "abc", "abc", OpEquals, true},
		{"inequality", "abc", "def", OpNotEquals, true},
		{"greater", 10, 3, OpGreaterThan, true},
		{"less or equal", 3, 3, OpLessThanOrEqual, true},
		{"bool coercion", true, 1, OpEquals, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := compareValues(tc.actual, tc.expected, tc.operator)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompareValuesOrderingNeedsNumbers(t *testing.T) {
	_, err := compareValues("abc", 1, OpGreaterThan)
	require.Error(t, err)
}
