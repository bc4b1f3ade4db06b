package nodes

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wehubfusion/Daedalus/pkg/execution"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// textType applies a single string transformation to its input. The
// operation and its parameters come from the node data.
func textType() registry.Type {
	return registry.Type{
		Name:        "text",
		InputNames:  []string{"text"},
		OutputNames: []string{"text"},
		DefaultData: map[string]interface{}{"operation": "trim"},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			text := stringValue(inputs["text"])
			operation := dataString(node.Data, "operation")
			switch operation {
			case "", "trim":
				return strings.TrimSpace(text), nil
			case "uppercase":
				return strings.ToUpper(text), nil
			case "lowercase":
				return strings.ToLower(text), nil
			case "title":
				return cases.Title(language.Und).String(text), nil
			case "capitalize":
				return capitalize(text), nil
			case "replace":
				return strings.ReplaceAll(text,
					dataString(node.Data, "search"),
					dataString(node.Data, "replacement")), nil
			case "prefix":
				return dataString(node.Data, "value") + text, nil
			case "suffix":
				return text + dataString(node.Data, "value"), nil
			default:
				return nil, fmt.Errorf("unknown text operation %q", operation)
			}
		},
	}
}

// splitType splits its input on a delimiter and exposes the pieces and their
// count as separate output fields, so downstream connections can pick either.
func splitType() registry.Type {
	return registry.Type{
		Name:          "split",
		InputNames:    []string{"text"},
		OutputNames:   []string{"parts", "count"},
		OutputAliases: map[string]string{"length": "count"},
		DefaultData:   map[string]interface{}{"delimiter": ","},
		Execute: func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec registry.ExecutionContext) (interface{}, error) {
			text := stringValue(inputs["text"])
			delimiter := dataString(node.Data, "delimiter")
			var parts []string
			if delimiter == "" {
				parts = []string{text}
			} else {
				parts = strings.Split(text, delimiter)
			}
			return execution.MultiOutput{
				"parts": parts,
				"count": len(parts),
			}, nil
		},
	}
}

// capitalize upper-cases the first rune, leaving the rest unchanged.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}
