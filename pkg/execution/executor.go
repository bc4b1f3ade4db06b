package execution

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"go.uber.org/zap"
)

// Executor runs one node at a time, strictly in the analyzer's order. The
// debug decorator wraps this same interface.
type Executor interface {
	Execute(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection) (interface{}, error)
}

// ResolvedInput is one incoming connection's routed value, kept alongside the
// plain input map for branch pruning and debug data-flow capture.
type ResolvedInput struct {
	Connection      graph.Connection
	InputName       string
	Value           interface{}
	FromConditional bool
}

// InputResolver exposes input resolution separately from execution so the
// debug decorator can capture per-connection data flow.
type InputResolver interface {
	ResolveInputs(node graph.Node, nodes []graph.Node, connections []graph.Connection) (map[string]interface{}, []ResolvedInput)
}

// NodeExecutor resolves node inputs through the multi-output routing
// protocol, implements conditional and loop control flow, and dispatches
// ordinary nodes to the node-type registry.
type NodeExecutor struct {
	registry *registry.Registry
	ec       *Context
	llm      TextGenerator
	logger   *zap.Logger
}

// NewNodeExecutor creates an executor bound to one run's context. llm may be
// nil when no node delegates conditions to a model; logger may be nil.
func NewNodeExecutor(reg *registry.Registry, ec *Context, llm TextGenerator, logger *zap.Logger) *NodeExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeExecutor{registry: reg, ec: ec, llm: llm, logger: logger}
}

// Execute runs a single node. Each node runs at most once per run: results
// already cached (a loop body driven by its loop, a pruned branch) are
// returned as-is.
func (e *NodeExecutor) Execute(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection) (interface{}, error) {
	if cached, ok := e.ec.GetNodeResult(node.ID); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputs, resolved := e.ResolveInputs(node, nodes, connections)

	if shouldSkip(resolved) {
		e.ec.SetNodeResult(node.ID, nil)
		e.ec.MarkSkipped(node.ID)
		e.ec.AddLog("info", "node skipped: all conditional inputs are null", node.ID, nil)
		e.ec.ReportNode(node.ID, "skipped", inputs, nil, nil)
		e.logger.Debug("pruned inactive branch", zap.String("nodeId", node.ID))
		return nil, nil
	}

	value, err := e.dispatch(ctx, node, nodes, connections, inputs, resolved)
	if err != nil {
		e.ec.ReportNode(node.ID, "failed", inputs, nil, err)
		return nil, err
	}

	e.ec.SetNodeResult(node.ID, value)
	e.ec.ReportNode(node.ID, "completed", inputs, value, nil)
	return value, nil
}

// dispatch routes a node to its control-flow handler or to the registry.
func (e *NodeExecutor) dispatch(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection, inputs map[string]interface{}, resolved []ResolvedInput) (interface{}, error) {
	traits := e.registry.Traits(node.Type)
	switch {
	case traits.Conditional:
		return e.executeConditional(ctx, node, firstValue(resolved))
	case traits.Loop:
		return e.executeLoop(ctx, node, nodes, connections, firstValue(resolved))
	default:
		t, ok := e.registry.Get(node.Type)
		if !ok {
			return nil, fmt.Errorf("unknown node type %q", node.Type)
		}
		return t.Execute(ctx, node, inputs, e.ec)
	}
}

// ResolveInputs routes every incoming connection's source result to this
// node's inputs:
//
//  1. a conditional source's multi-output result routes trueOutput through
//     slot 0/"true" and falseOutput through anything else;
//  2. any other tagged multi-output result routes the field selected by the
//     connection's source slot (by name, or by index into the source type's
//     declared output names, through the alias table);
//  3. any other result routes whole and unchanged.
//
// Each value lands under the target type's declared input name at the
// connection's target slot, falling back to the raw slot identifier.
func (e *NodeExecutor) ResolveInputs(node graph.Node, nodes []graph.Node, connections []graph.Connection) (map[string]interface{}, []ResolvedInput) {
	targetType, _ := e.registry.Get(node.Type)

	inputs := make(map[string]interface{})
	var resolved []ResolvedInput
	for _, conn := range connections {
		if conn.TargetNodeID != node.ID {
			continue
		}
		source, ok := findNode(nodes, conn.SourceNodeID)
		if !ok {
			continue
		}

		cached, _ := e.ec.GetNodeResult(source.ID)
		sourceTraits := e.registry.Traits(source.Type)

		var value interface{}
		switch multi, isMulti := AsMultiOutput(cached); {
		case sourceTraits.Conditional && isMulti:
			if conn.SourceSlot.Matches(0, "true") {
				value = multi[FieldTrueOutput]
			} else {
				value = multi[FieldFalseOutput]
			}
		case isMulti:
			sourceType, _ := e.registry.Get(source.Type)
			value, _ = multi.Field(sourceType.OutputField(conn.SourceSlot))
		default:
			value = cached
		}

		name := targetType.InputName(conn.TargetSlot)
		inputs[name] = value
		resolved = append(resolved, ResolvedInput{
			Connection:      conn,
			InputName:       name,
			Value:           value,
			FromConditional: sourceTraits.Conditional,
		})
	}
	return inputs, resolved
}

// executeConditional evaluates the node's condition against its first
// resolved input and routes that input out of exactly one branch.
func (e *NodeExecutor) executeConditional(ctx context.Context, node graph.Node, input interface{}) (interface{}, error) {
	cfg, err := parseConditionConfig(node)
	if err != nil {
		return nil, err
	}
	met, err := e.evaluateCondition(ctx, node, cfg, input)
	if err != nil {
		return nil, err
	}
	e.ec.AddLog("info", fmt.Sprintf("condition evaluated to %t", met), node.ID, nil)
	return NewConditionalResult(met, input), nil
}

// executeLoop repeatedly evaluates the node's condition against a running
// value and advances it through the node wired to the loop's body slot. The
// maxIterations ceiling is a hard bound that guarantees termination
// regardless of the condition.
func (e *NodeExecutor) executeLoop(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection, initial interface{}) (interface{}, error) {
	cfg, err := parseConditionConfig(node)
	if err != nil {
		return nil, err
	}
	maxIterations := intFromData(node.Data, "maxIterations")
	if maxIterations <= 0 {
		return nil, fmt.Errorf("node %q: %w", node.ID, ErrLoopMaxIterations)
	}

	bodyConn, hasBody := findLoopBody(node.ID, connections)
	var bodyNode graph.Node
	if hasBody {
		bodyNode, hasBody = findNode(nodes, bodyConn.TargetNodeID)
	}

	var last interface{}
	current := initial
	for iterations := 0; iterations < maxIterations; iterations++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		met, err := e.evaluateCondition(ctx, node, cfg, current)
		if err != nil {
			return nil, err
		}
		if !met {
			break
		}
		last = current

		if !hasBody {
			return nil, fmt.Errorf("node %q: loop condition holds but no body node is wired", node.ID)
		}
		next, err := e.dispatchLoopBody(ctx, bodyNode, nodes, connections, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return last, nil
}

// dispatchLoopBody re-enters the executor for the loop's body node, feeding
// it the running value as its first declared input. The body's result is
// cached so the main sequence treats it as already run.
func (e *NodeExecutor) dispatchLoopBody(ctx context.Context, body graph.Node, nodes []graph.Node, connections []graph.Connection, value interface{}) (interface{}, error) {
	traits := e.registry.Traits(body.Type)

	var result interface{}
	var err error
	switch {
	case traits.Conditional:
		result, err = e.executeConditional(ctx, body, value)
	case traits.Loop:
		result, err = e.executeLoop(ctx, body, nodes, connections, value)
	default:
		t, ok := e.registry.Get(body.Type)
		if !ok {
			return nil, fmt.Errorf("unknown node type %q", body.Type)
		}
		name := "input"
		if len(t.InputNames) > 0 {
			name = t.InputNames[0]
		}
		result, err = t.Execute(ctx, body, map[string]interface{}{name: value}, e.ec)
	}
	if err != nil {
		return nil, err
	}
	e.ec.SetNodeResult(body.ID, result)
	return result, nil
}

// shouldSkip implements the branch-pruning rule: skip only when every
// incoming connection originates from a conditional node and every resolved
// value is nil. A node with any unconditional input is never skipped.
func shouldSkip(resolved []ResolvedInput) bool {
	if len(resolved) == 0 {
		return false
	}
	for _, in := range resolved {
		if !in.FromConditional || in.Value != nil {
			return false
		}
	}
	return true
}

// firstValue returns the first resolved input's value, in connection
// declaration order.
func firstValue(resolved []ResolvedInput) interface{} {
	if len(resolved) == 0 {
		return nil
	}
	return resolved[0].Value
}

// findLoopBody locates the connection leaving a loop node's body slot
// (slot 0, named "body").
func findLoopBody(loopID string, connections []graph.Connection) (graph.Connection, bool) {
	for _, conn := range connections {
		if conn.SourceNodeID == loopID && conn.SourceSlot.Matches(0, "body") {
			return conn, true
		}
	}
	return graph.Connection{}, false
}

func findNode(nodes []graph.Node, id string) (graph.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

// intFromData reads an integer out of an opaque node data payload, accepting
// the numeric types JSON decoding produces.
func intFromData(data map[string]interface{}, key string) int {
	if data == nil {
		return 0
	}
	switch n := data[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
