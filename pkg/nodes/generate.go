package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/execution"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// generateType calls the external text-generation collaborator. The prompt
// comes from the node data; an incoming value is appended as context. The
// analyzer requires one of the two to be present.
func generateType(llm execution.TextGenerator) registry.Type {
	return registry.Type{
		Name:        "generate",
		InputNames:  []string{"context"},
		OutputNames: []string{"text"},
		Traits:      graph.Traits{Generative: true},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			if llm == nil {
				return nil, fmt.Errorf("node %q needs a text generator but none is configured", node.ID)
			}
			prompt := dataString(node.Data, "prompt")
			if extra, ok := inputs["context"]; ok && extra != nil {
				if prompt == "" {
					prompt = stringValue(extra)
				} else {
					prompt = prompt + "\n\n" + stringValue(extra)
				}
			}
			if strings.TrimSpace(prompt) == "" {
				return nil, fmt.Errorf("node %q has nothing to prompt with", node.ID)
			}
			text, err := llm.Generate(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("text generation failed: %w", err)
			}
			return text, nil
		},
	}
}
