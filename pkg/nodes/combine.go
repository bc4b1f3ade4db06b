package nodes

import (
	"context"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// combineInputs are the declared input slots of a combiner, in order.
var combineInputs = []string{"first", "second", "third", "fourth"}

// combineType joins its inputs into one string, in declared slot order,
// using the separator configured on the node. Nil inputs (pruned branches)
// are skipped. The analyzer requires at least two inbound connections.
func combineType() registry.Type {
	return registry.Type{
		Name:        "combine",
		InputNames:  combineInputs,
		OutputNames: []string{"combined"},
		DefaultData: map[string]interface{}{"separator": " "},
		Traits:      graph.Traits{FanIn: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			separator := " "
			if node.Data != nil {
				if s, ok := node.Data["separator"].(string); ok {
					separator = s
				}
			}
			var parts []string
			for _, name := range combineInputs {
				if v, ok := inputs[name]; ok && v != nil {
					parts = append(parts, stringValue(v))
				}
			}
			return strings.Join(parts, separator), nil
		},
	}
}
