// Package graph defines the workflow graph model and the structural analyzer
// that turns a node/connection set into a validated execution order.
package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Node is a single unit of work in a workflow graph. The Data payload is
// opaque to the analyzer; only node-type implementations and the executor's
// control-flow handling interpret it.
type Node struct {
	// ID is the node identifier, unique within a graph
	ID string `json:"id"`
	// Type is the key into the node-type registry
	Type string `json:"type"`
	// Data is the node configuration supplied by the editor
	Data map[string]interface{} `json:"data,omitempty"`
}

// Slot addresses an input or output port of a node, either by 0-based index
// or by symbolic name. The zero value addresses slot index 0.
type Slot struct {
	name    string
	index   int
	byIndex bool
}

// SlotByIndex returns a slot addressed by 0-based index.
func SlotByIndex(i int) Slot {
	return Slot{index: i, byIndex: true}
}

// SlotByName returns a slot addressed by symbolic name.
func SlotByName(name string) Slot {
	return Slot{name: name}
}

// IsIndex reports whether the slot is addressed by numeric index.
func (s Slot) IsIndex() bool {
	return s.byIndex
}

// Index returns the numeric index. For named slots it attempts to parse the
// name as a number and returns -1 when it cannot.
func (s Slot) Index() int {
	if s.byIndex {
		return s.index
	}
	if s.name == "" {
		return 0
	}
	if n, err := strconv.Atoi(s.name); err == nil {
		return n
	}
	return -1
}

// Name returns the symbolic name, or the decimal form of the index for
// index-addressed slots.
func (s Slot) Name() string {
	if s.byIndex || s.name == "" {
		return strconv.Itoa(s.index)
	}
	return s.name
}

// Matches reports whether the slot addresses the given position in an ordered
// slot-name list, either by index or by name.
func (s Slot) Matches(index int, name string) bool {
	if s.byIndex {
		return s.index == index
	}
	if s.name == name {
		return true
	}
	return s.Index() == index
}

// Resolve maps the slot to a name from the given ordered slot-name list.
// Named slots resolve to themselves; indexed slots resolve through the list,
// falling back to the raw slot identifier when the list is too short.
func (s Slot) Resolve(names []string) string {
	if !s.byIndex && s.name != "" {
		return s.name
	}
	if s.index >= 0 && s.index < len(names) {
		return names[s.index]
	}
	return strconv.Itoa(s.index)
}

// String implements fmt.Stringer.
func (s Slot) String() string { return s.Name() }

// MarshalJSON encodes index slots as numbers and named slots as strings.
func (s Slot) MarshalJSON() ([]byte, error) {
	if s.byIndex || s.name == "" {
		return json.Marshal(s.index)
	}
	return json.Marshal(s.name)
}

// UnmarshalJSON accepts a JSON number (index) or string (name).
func (s *Slot) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		*s = SlotByIndex(idx)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("slot must be a number or a string: %w", err)
	}
	*s = SlotByName(name)
	return nil
}

// Connection is a directed wire from an output slot of one node to an input
// slot of another.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source"`
	TargetNodeID string `json:"target"`
	SourceSlot   Slot   `json:"sourceHandle"`
	TargetSlot   Slot   `json:"targetHandle"`
}

// connectionWire is the flat on-disk shape produced by current editors.
type connectionWire struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle *Slot  `json:"sourceHandle"`
	TargetHandle *Slot  `json:"targetHandle"`
}

// legacyEndpoint is one side of the legacy nested connection shape.
type legacyEndpoint struct {
	NodeID    string `json:"nodeId"`
	PortIndex int    `json:"portIndex"`
}

type legacyConnectionWire struct {
	ID   string          `json:"id"`
	From *legacyEndpoint `json:"from"`
	To   *legacyEndpoint `json:"to"`
}

// UnmarshalJSON accepts both supported on-disk connection shapes and
// normalizes them to the same Connection:
//
//	{id, source, target, sourceHandle?, targetHandle?}
//	{id, from:{nodeId,portIndex}, to:{nodeId,portIndex}}
func (c *Connection) UnmarshalJSON(data []byte) error {
	var legacy legacyConnectionWire
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.From != nil && legacy.To != nil {
		*c = Connection{
			ID:           legacy.ID,
			SourceNodeID: legacy.From.NodeID,
			TargetNodeID: legacy.To.NodeID,
			SourceSlot:   SlotByIndex(legacy.From.PortIndex),
			TargetSlot:   SlotByIndex(legacy.To.PortIndex),
		}
		return nil
	}

	var wire connectionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("unrecognized connection shape: %w", err)
	}
	if wire.Source == "" || wire.Target == "" {
		return fmt.Errorf("connection %q: missing source or target node id", wire.ID)
	}
	conn := Connection{
		ID:           wire.ID,
		SourceNodeID: wire.Source,
		TargetNodeID: wire.Target,
		SourceSlot:   SlotByIndex(0),
		TargetSlot:   SlotByIndex(0),
	}
	if wire.SourceHandle != nil {
		conn.SourceSlot = *wire.SourceHandle
	}
	if wire.TargetHandle != nil {
		conn.TargetSlot = *wire.TargetHandle
	}
	*c = conn
	return nil
}

// Variable is a workflow-level variable declaration with an optional default
// value, seeded into the execution context at run start.
type Variable struct {
	Name         string      `json:"name"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// Workflow is a complete node graph as produced by the editor.
type Workflow struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Variables   []Variable   `json:"variables,omitempty"`
}

// NodeByID returns the node with the given id.
func (w Workflow) NodeByID(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Traits describe the structural capabilities of a node type. The analyzer
// and executor consult these instead of hard-coding type keys.
type Traits struct {
	// EntryPoint types are always execution roots, even with zero connections.
	EntryPoint bool
	// Conditional types produce {conditionMet, trueOutput, falseOutput}
	// results and participate in branch pruning.
	Conditional bool
	// Loop types re-enter the executor through their body output slot.
	Loop bool
	// FanIn (combiner) types require at least two inbound connections.
	FanIn bool
	// Generative types require an inbound connection unless statically
	// configured (a non-empty prompt in the node data).
	Generative bool
	// Terminal (sink) types require at least one inbound connection.
	Terminal bool
}

// TraitsFunc resolves the traits of a node type. Unknown types must return
// the zero Traits value.
type TraitsFunc func(nodeType string) Traits
