package nodes

import (
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// ifType is the conditional descriptor. The engine executes conditionals
// itself; the registry entry only declares the slots and traits.
func ifType() registry.Type {
	return registry.Type{
		Name:        "if",
		InputNames:  []string{"value"},
		OutputNames: []string{"true", "false"},
		DefaultData: map[string]interface{}{
			"variable": "",
			"operator": "==",
		},
		Traits: graph.Traits{Conditional: true},
	}
}

// loopType is the loop descriptor. Slot 0 ("body") drives the loop body;
// slot 1 ("done") carries the final value. maxIterations is mandatory.
func loopType() registry.Type {
	return registry.Type{
		Name:        "loop",
		InputNames:  []string{"value"},
		OutputNames: []string{"body", "done"},
		DefaultData: map[string]interface{}{
			"variable":      "",
			"operator":      "==",
			"maxIterations": 100,
		},
		Traits: graph.Traits{Loop: true},
	}
}
