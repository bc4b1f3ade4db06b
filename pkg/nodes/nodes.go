// Package nodes provides the built-in node types and wires them into a
// registry the engine can dispatch through.
package nodes

import (
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/execution"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// NewRegistry builds a registry with every built-in node type installed.
// llm may be nil; generate nodes then fail at execution time.
func NewRegistry(llm execution.TextGenerator) *registry.Registry {
	reg := registry.New()
	reg.MustRegister(inputType())
	reg.MustRegister(constantType())
	reg.MustRegister(outputType())
	reg.MustRegister(combineType())
	reg.MustRegister(textType())
	reg.MustRegister(splitType())
	reg.MustRegister(generateType(llm))
	reg.MustRegister(ifType())
	reg.MustRegister(loopType())
	return reg
}

// stringValue renders any input value as a string. Nil renders empty.
func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// dataString reads a string key out of a node data payload.
func dataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
