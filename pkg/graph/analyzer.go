package graph

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Analysis is the result of analyzing a workflow graph.
type Analysis struct {
	// ExecutionOrder is a topological order over the connected subgraph.
	ExecutionOrder []string
	// ConnectedNodes are the nodes included in the execution order.
	ConnectedNodes []Node
	// IsolatedNodes are nodes excluded from execution (no connections and
	// not an entry-point type).
	IsolatedNodes []Node
	// ValidationErrors are non-fatal structural problems, collected without
	// short-circuiting. A non-empty list should prevent a run from starting.
	ValidationErrors []string
}

// CycleError is returned when topological ordering cannot place every
// connected node, which means the remaining nodes participate in a cycle.
type CycleError struct {
	// UnorderedNodeIDs are exactly the connected nodes the sort could not place.
	UnorderedNodeIDs []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow contains a cycle; unreachable nodes: %s",
		strings.Join(e.UnorderedNodeIDs, ", "))
}

// IsCycleError reports whether err is a CycleError.
func IsCycleError(err error) bool {
	_, ok := err.(*CycleError)
	return ok
}

// Analyzer validates a node/connection graph and computes its execution order.
type Analyzer struct {
	traits TraitsFunc
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. traits resolves node-type capabilities;
// passing nil treats every type as an ordinary node. logger may be nil.
func NewAnalyzer(traits TraitsFunc, logger *zap.Logger) *Analyzer {
	if traits == nil {
		traits = func(string) Traits { return Traits{} }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{traits: traits, logger: logger}
}

// Analyze computes connectivity, structural validation and a topological
// execution order for the given graph. Validation problems are collected in
// the returned Analysis; only a cycle is fatal and returned as *CycleError.
func (a *Analyzer) Analyze(nodes []Node, connections []Connection) (*Analysis, error) {
	inbound := make(map[string]int, len(nodes))
	endpoints := make(map[string]bool, len(nodes))
	for _, conn := range connections {
		endpoints[conn.SourceNodeID] = true
		endpoints[conn.TargetNodeID] = true
		inbound[conn.TargetNodeID]++
	}

	analysis := &Analysis{}
	connected := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		traits := a.traits(node.Type)
		if endpoints[node.ID] || traits.EntryPoint {
			connected[node.ID] = true
			analysis.ConnectedNodes = append(analysis.ConnectedNodes, node)
		} else {
			analysis.IsolatedNodes = append(analysis.IsolatedNodes, node)
			a.logger.Warn("excluding isolated node from execution",
				zap.String("nodeId", node.ID),
				zap.String("nodeType", node.Type))
		}
	}

	analysis.ValidationErrors = a.validate(nodes, inbound, connected)

	order, err := a.sort(analysis.ConnectedNodes, connections)
	if err != nil {
		return nil, err
	}
	analysis.ExecutionOrder = order
	return analysis, nil
}

// validate collects structural violations without short-circuiting.
func (a *Analyzer) validate(nodes []Node, inbound map[string]int, connected map[string]bool) []string {
	var problems []string
	for _, node := range nodes {
		if !connected[node.ID] {
			continue
		}
		traits := a.traits(node.Type)
		in := inbound[node.ID]

		switch {
		case traits.Conditional && in < 1:
			problems = append(problems, fmt.Sprintf(
				"conditional node %q has no incoming connection to evaluate", node.ID))
		case traits.Loop && in < 1:
			problems = append(problems, fmt.Sprintf(
				"loop node %q has no incoming connection to iterate on", node.ID))
		}
		if traits.FanIn && in < 2 {
			problems = append(problems, fmt.Sprintf(
				"combiner node %q needs at least two incoming connections, has %d", node.ID, in))
		}
		if traits.Generative && in < 1 && !hasStaticPrompt(node) {
			problems = append(problems, fmt.Sprintf(
				"generative node %q has neither a configured prompt nor an incoming connection", node.ID))
		}
		if traits.Terminal && in < 1 {
			problems = append(problems, fmt.Sprintf(
				"output node %q has no incoming connection and will never receive data", node.ID))
		}
	}
	return problems
}

// hasStaticPrompt reports whether a generative node carries enough static
// configuration to run without inputs.
func hasStaticPrompt(node Node) bool {
	if node.Data == nil {
		return false
	}
	if prompt, ok := node.Data["prompt"].(string); ok && strings.TrimSpace(prompt) != "" {
		return true
	}
	return false
}

// sort runs Kahn's algorithm over the connected subgraph. The ready queue is
// seeded with zero-in-degree entry points first (declaration order), then
// every other zero-in-degree node (declaration order), so entry points
// execute first whenever several valid orders exist.
func (a *Analyzer) sort(nodes []Node, connections []Connection) ([]string, error) {
	included := make(map[string]bool, len(nodes))
	position := make(map[string]int, len(nodes))
	for i, node := range nodes {
		included[node.ID] = true
		position[node.ID] = i
	}

	indegree := make(map[string]int, len(nodes))
	successors := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		indegree[node.ID] = 0
	}
	for _, conn := range connections {
		if !included[conn.SourceNodeID] || !included[conn.TargetNodeID] {
			continue
		}
		successors[conn.SourceNodeID] = append(successors[conn.SourceNodeID], conn.TargetNodeID)
		indegree[conn.TargetNodeID]++
	}

	var ready []string
	for _, node := range nodes {
		if indegree[node.ID] == 0 && a.traits(node.Type).EntryPoint {
			ready = append(ready, node.ID)
		}
	}
	for _, node := range nodes {
		if indegree[node.ID] == 0 && !a.traits(node.Type).EntryPoint {
			ready = append(ready, node.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := successors[id]
		// Deterministic dispatch: release successors in declaration order.
		sort.SliceStable(next, func(i, j int) bool {
			return position[next[i]] < position[next[j]]
		})
		for _, succ := range next {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(order) < len(nodes) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var unordered []string
		for _, node := range nodes {
			if !placed[node.ID] {
				unordered = append(unordered, node.ID)
			}
		}
		return nil, &CycleError{UnorderedNodeIDs: unordered}
	}
	return order, nil
}
