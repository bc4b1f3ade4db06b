package execution

import "time"

// Default history capacities. When a buffer is full the oldest record is
// evicted, so long runs keep a bounded, most-recent window for time travel.
const (
	DefaultMaxSteps     = 200
	DefaultMaxFlowEdges = 500
)

// ExecutionStep is one node execution captured for time travel.
type ExecutionStep struct {
	NodeID    string                 `json:"nodeId"`
	NodeType  string                 `json:"nodeType"`
	Inputs    map[string]interface{} `json:"inputs,omitempty"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
}

// DataFlowEdge is one value observed moving across a connection.
type DataFlowEdge struct {
	SourceNodeID string      `json:"sourceNodeId"`
	TargetNodeID string      `json:"targetNodeId"`
	InputName    string      `json:"inputName,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// History holds the capacity-bounded step and data-flow records for one
// debug session. It is not safe for concurrent use; the owning session
// serializes access.
type History struct {
	steps *ring[ExecutionStep]
	flow  *ring[DataFlowEdge]
}

// NewHistory creates a history with the given capacities; non-positive values
// fall back to the defaults.
func NewHistory(maxSteps, maxFlowEdges int) *History {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if maxFlowEdges <= 0 {
		maxFlowEdges = DefaultMaxFlowEdges
	}
	return &History{
		steps: newRing[ExecutionStep](maxSteps),
		flow:  newRing[DataFlowEdge](maxFlowEdges),
	}
}

// RecordStep appends a step, evicting the oldest when at capacity.
func (h *History) RecordStep(step ExecutionStep) { h.steps.push(step) }

// RecordFlow appends a data-flow edge, evicting the oldest when at capacity.
func (h *History) RecordFlow(edge DataFlowEdge) { h.flow.push(edge) }

// Steps returns the retained steps, oldest first.
func (h *History) Steps() []ExecutionStep { return h.steps.snapshot() }

// StepAt returns the retained step at index (0 = oldest retained).
func (h *History) StepAt(index int) (ExecutionStep, bool) { return h.steps.at(index) }

// StepCount returns the number of retained steps.
func (h *History) StepCount() int { return h.steps.len() }

// FlowEdges returns the retained data-flow edges, oldest first.
func (h *History) FlowEdges() []DataFlowEdge { return h.flow.snapshot() }

// ring is a fixed-capacity FIFO over a circular slice.
type ring[T any] struct {
	buf   []T
	start int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) at(index int) (T, bool) {
	var zero T
	if index < 0 || index >= r.count {
		return zero, false
	}
	return r.buf[(r.start+index)%len(r.buf)], true
}

func (r *ring[T]) len() int { return r.count }

func (r *ring[T]) snapshot() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
