// Package registry provides the node-type registry: a strategy table mapping
// a type key to the capability record the engine dispatches through.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

// ExecutionContext is the run-scoped state surface exposed to node
// implementations. The execution package's Context satisfies it.
type ExecutionContext interface {
	GetVariable(name string) (interface{}, bool)
	SetVariable(name string, value interface{})
	AddLog(level, message, nodeID string, payload map[string]interface{})
}

// ExecuteFunc runs one node with its resolved inputs. Implementations may
// block on their own asynchronous work and may return an error; the engine
// never retries and never swallows the error.
type ExecuteFunc func(ctx context.Context, node graph.Node, inputs map[string]interface{}, ec ExecutionContext) (interface{}, error)

// Type is the capability record for one node type.
type Type struct {
	// Name is the registry key, matching Node.Type.
	Name string
	// InputNames are the ordered input-slot names.
	InputNames []string
	// OutputNames are the ordered output-slot names.
	OutputNames []string
	// DefaultData is the editor's default configuration for new nodes.
	DefaultData map[string]interface{}
	// OutputAliases optionally maps declared output-slot names to the field
	// names a multi-output result actually carries.
	OutputAliases map[string]string
	// Traits describe the type's structural role in the graph.
	Traits graph.Traits
	// Execute runs the node. Control-flow types (conditional, loop) are
	// executed by the engine itself and may leave this nil.
	Execute ExecuteFunc
}

// InputName resolves the declared input name at the given slot, falling back
// to the raw slot identifier when the type declares fewer inputs.
func (t Type) InputName(slot graph.Slot) string {
	return slot.Resolve(t.InputNames)
}

// OutputField resolves a source slot to the result field it selects,
// applying the output alias table.
func (t Type) OutputField(slot graph.Slot) string {
	name := slot.Resolve(t.OutputNames)
	if alias, ok := t.OutputAliases[name]; ok {
		return alias
	}
	return name
}

// Registry is a concurrency-safe node-type table.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds or replaces a node type. It returns an error when the type
// has no name, or when a non-control-flow type has no Execute function.
func (r *Registry) Register(t Type) error {
	if t.Name == "" {
		return fmt.Errorf("node type must have a name")
	}
	if t.Execute == nil && !t.Traits.Conditional && !t.Traits.Loop {
		return fmt.Errorf("node type %q has no execute function", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
	return nil
}

// MustRegister registers a type and panics on error. Intended for package
// init-style wiring of built-in types.
func (r *Registry) MustRegister(t Type) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the type registered under the given key.
func (r *Registry) Get(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Traits resolves the structural traits of a node type. Unknown types get
// the zero Traits value, which treats them as ordinary nodes.
func (r *Registry) Traits(name string) graph.Traits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name].Traits
}

// TypeNames returns the registered type keys in sorted order.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
