package nodes

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// outputType is the terminal sink: it stores its input under a run variable
// (default "output") and passes the value through unchanged.
func outputType() registry.Type {
	return registry.Type{
		Name:        "output",
		InputNames:  []string{"value"},
		DefaultData: map[string]interface{}{"variable": "output"},
		Traits:      graph.Traits{Terminal: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			name := dataString(node.Data, "variable")
			if name == "" {
				name = "output"
			}
			value := inputs["value"]
			ec.SetVariable(name, value)
			ec.AddLog("info", "output captured", node.ID, map[string]interface{}{"variable": name})
			return value, nil
		},
	}
}
