package nodes

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// inputType reads a run variable into the graph. It is an entry point: it
// executes even with no connections pointing at it.
func inputType() registry.Type {
	return registry.Type{
		Name:        "input",
		OutputNames: []string{"value"},
		DefaultData: map[string]interface{}{"variable": "input"},
		Traits:      graph.Traits{EntryPoint: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			name := dataString(node.Data, "variable")
			if name == "" {
				name = "input"
			}
			value, ok := ec.GetVariable(name)
			if !ok {
				return nil, fmt.Errorf("input variable %q is not set", name)
			}
			return value, nil
		},
	}
}

// constantType emits the literal value configured on the node.
func constantType() registry.Type {
	return registry.Type{
		Name:        "constant",
		OutputNames: []string{"value"},
		Traits:      graph.Traits{EntryPoint: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			if node.Data == nil {
				return nil, nil
			}
			return node.Data["value"], nil
		},
	}
}
