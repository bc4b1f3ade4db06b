package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Daedalus/pkg/expr"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"go.uber.org/zap"
)

// Mode selects the debug executor's behavior.
type Mode string

const (
	// ModeOff delegates straight to the inner executor with no capture.
	ModeOff Mode = "off"
	// ModeStep parks before every node until stepped or resumed.
	ModeStep Mode = "step"
	// ModeBreakpoint parks only at enabled, matching breakpoints.
	ModeBreakpoint Mode = "breakpoint"
	// ModeSlow inserts a fixed delay before every node.
	ModeSlow Mode = "slow"
)

// DefaultSlowDelay is the per-node delay in slow mode.
const DefaultSlowDelay = 500 * time.Millisecond

// Breakpoint pauses execution before a specific node. An optional condition
// expression gates the pause; evaluation errors count as not matching.
type Breakpoint struct {
	NodeID    string `json:"nodeId"`
	Enabled   bool   `json:"enabled"`
	Condition string `json:"condition,omitempty"`
}

// Watch is a named expression re-evaluated after every node. Path is the
// expression itself; evaluation errors are caught into LastError and never
// interrupt the run.
type Watch struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	LastValue interface{} `json:"lastValue,omitempty"`
	LastError string      `json:"lastError,omitempty"`
}

// DebugConfig configures a DebugExecutor.
type DebugConfig struct {
	Mode              Mode
	SlowDelay         time.Duration
	MaxSteps          int
	MaxFlowEdges      int
	ExpressionTimeout time.Duration
}

// DefaultDebugConfig returns a config with debugging switched off and the
// default capture capacities.
func DefaultDebugConfig() DebugConfig {
	return DebugConfig{
		Mode:         ModeOff,
		SlowDelay:    DefaultSlowDelay,
		MaxSteps:     DefaultMaxSteps,
		MaxFlowEdges: DefaultMaxFlowEdges,
	}
}

// DebugExecutor decorates a NodeExecutor with suspension, abort, step and
// data-flow capture, and watch expressions. In ModeOff it adds nothing: every
// call passes straight through. Control methods (Resume, StepOnce, Abort,
// breakpoint and watch management) are safe to call from other goroutines
// while the driver goroutine runs nodes.
type DebugExecutor struct {
	inner  *NodeExecutor
	ec     *Context
	eval   *expr.Evaluator
	logger *zap.Logger

	mu          sync.Mutex
	mode        Mode
	slowDelay   time.Duration
	breakpoints map[string]Breakpoint
	watches     []*Watch
	history     *History
	freeRun     bool
	stepNext    bool
	pausedAt    string
	aborted     bool

	resumeCh chan struct{}
	stepCh   chan struct{}
	abortCh  chan struct{}
}

// NewDebugExecutor wraps an executor. logger may be nil.
func NewDebugExecutor(inner *NodeExecutor, ec *Context, config DebugConfig, logger *zap.Logger) *DebugExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Mode == "" {
		config.Mode = ModeOff
	}
	if config.SlowDelay <= 0 {
		config.SlowDelay = DefaultSlowDelay
	}
	return &DebugExecutor{
		inner:       inner,
		ec:          ec,
		eval:        expr.NewEvaluator(config.ExpressionTimeout),
		logger:      logger,
		mode:        config.Mode,
		slowDelay:   config.SlowDelay,
		breakpoints: make(map[string]Breakpoint),
		history:     NewHistory(config.MaxSteps, config.MaxFlowEdges),
		resumeCh:    make(chan struct{}, 1),
		stepCh:      make(chan struct{}, 1),
		abortCh:     make(chan struct{}),
	}
}

// Execute runs one node through the inner executor, applying the configured
// debug behavior around it.
func (d *DebugExecutor) Execute(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection) (interface{}, error) {
	d.mu.Lock()
	mode := d.mode
	aborted := d.aborted
	d.mu.Unlock()

	if mode == ModeOff {
		return d.inner.Execute(ctx, node, nodes, connections)
	}
	if aborted {
		return nil, ErrCancelled
	}

	inputs, resolved := d.inner.ResolveInputs(node, nodes, connections)
	d.recordFlow(node, resolved)

	if d.shouldPause(ctx, node, nodes, connections) {
		if err := d.park(ctx, node.ID); err != nil {
			return nil, err
		}
	}
	if mode == ModeSlow {
		if err := d.slowWait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	result, err := d.inner.Execute(ctx, node, nodes, connections)

	step := ExecutionStep{
		NodeID:    node.ID,
		NodeType:  node.Type,
		Inputs:    inputs,
		Output:    result,
		Duration:  time.Since(start),
		Timestamp: start.UTC(),
	}
	if err != nil {
		step.Error = err.Error()
	}

	d.mu.Lock()
	d.history.RecordStep(step)
	d.mu.Unlock()

	d.evaluateWatches(ctx, node, result)
	return result, err
}

// shouldPause decides whether to park before this node.
func (d *DebugExecutor) shouldPause(ctx context.Context, node graph.Node, nodes []graph.Node, connections []graph.Connection) bool {
	d.mu.Lock()
	mode := d.mode
	freeRun := d.freeRun
	stepNext := d.stepNext
	d.stepNext = false
	bp, hasBP := d.breakpoints[node.ID]
	d.mu.Unlock()

	if stepNext {
		return true
	}
	switch mode {
	case ModeStep:
		return !freeRun
	case ModeBreakpoint:
		if !hasBP || !bp.Enabled {
			return false
		}
		if bp.Condition == "" {
			return true
		}
		met, err := d.eval.EvaluateBool(ctx, bp.Condition, map[string]interface{}{
			"node":        nodeView(node),
			"nodes":       nodeViews(nodes),
			"connections": connectionViews(connections),
			"nodeData":    node.Data,
			"nodeType":    node.Type,
			"nodeId":      node.ID,
			"variables":   d.ec.Variables(),
		})
		if err != nil {
			d.logger.Warn("breakpoint condition failed",
				zap.String("nodeId", node.ID),
				zap.Error(err))
			return false
		}
		return met
	default:
		return false
	}
}

// nodeView renders a node as the plain object breakpoint conditions see.
func nodeView(n graph.Node) map[string]interface{} {
	return map[string]interface{}{"id": n.ID, "type": n.Type, "data": n.Data}
}

func nodeViews(nodes []graph.Node) []map[string]interface{} {
	out := make([]map[string]interface{}, len(nodes))
	for i, n := range nodes {
		out[i] = nodeView(n)
	}
	return out
}

func connectionViews(connections []graph.Connection) []map[string]interface{} {
	out := make([]map[string]interface{}, len(connections))
	for i, c := range connections {
		out[i] = map[string]interface{}{
			"id":           c.ID,
			"source":       c.SourceNodeID,
			"target":       c.TargetNodeID,
			"sourceHandle": c.SourceSlot.Name(),
			"targetHandle": c.TargetSlot.Name(),
		}
	}
	return out
}

// park suspends the driver goroutine until resumed, stepped or aborted.
func (d *DebugExecutor) park(ctx context.Context, nodeID string) error {
	d.mu.Lock()
	if d.aborted {
		d.mu.Unlock()
		return ErrCancelled
	}
	d.pausedAt = nodeID
	d.mu.Unlock()

	d.logger.Info("execution paused", zap.String("nodeId", nodeID))

	defer func() {
		d.mu.Lock()
		d.pausedAt = ""
		d.mu.Unlock()
	}()

	select {
	case <-d.resumeCh:
		d.mu.Lock()
		d.freeRun = true
		d.mu.Unlock()
		return nil
	case <-d.stepCh:
		d.mu.Lock()
		if d.mode == ModeStep {
			d.freeRun = false
		} else {
			d.stepNext = true
		}
		d.mu.Unlock()
		return nil
	case <-d.abortCh:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slowWait sleeps for the configured per-node delay, remaining interruptible.
func (d *DebugExecutor) slowWait(ctx context.Context) error {
	d.mu.Lock()
	delay := d.slowDelay
	d.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-d.abortCh:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume unparks a suspended run and lets it continue without stepping until
// the next matching breakpoint. Safe to call when not paused.
func (d *DebugExecutor) Resume() {
	d.mu.Lock()
	d.freeRun = true
	d.mu.Unlock()
	select {
	case d.resumeCh <- struct{}{}:
	default:
	}
}

// StepOnce unparks a suspended run for exactly one node, then pauses again.
// Safe to call when not paused.
func (d *DebugExecutor) StepOnce() {
	select {
	case d.stepCh <- struct{}{}:
	default:
	}
}

// Abort cancels the debug session. Any parked waiter is released with
// ErrCancelled and every later Execute call fails fast. Idempotent.
func (d *DebugExecutor) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.aborted {
		return
	}
	d.aborted = true
	close(d.abortCh)
	d.logger.Info("debug session aborted")
}

// SetMode switches debug modes mid-run.
func (d *DebugExecutor) SetMode(mode Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	if mode == ModeStep {
		d.freeRun = false
	}
}

// Mode returns the current debug mode.
func (d *DebugExecutor) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetSlowDelay changes the per-node delay used in slow mode.
func (d *DebugExecutor) SetSlowDelay(delay time.Duration) {
	if delay <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowDelay = delay
}

// SetBreakpoint installs or replaces the breakpoint for a node.
func (d *DebugExecutor) SetBreakpoint(bp Breakpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[bp.NodeID] = bp
}

// RemoveBreakpoint deletes the breakpoint for a node, if any.
func (d *DebugExecutor) RemoveBreakpoint(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.breakpoints, nodeID)
}

// Breakpoints returns a snapshot of all installed breakpoints.
func (d *DebugExecutor) Breakpoints() []Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Breakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		out = append(out, bp)
	}
	return out
}

// AddWatch registers a named expression to re-evaluate after every node and
// returns its generated id.
func (d *DebugExecutor) AddWatch(name, path string) string {
	w := &Watch{ID: uuid.NewString(), Name: name, Path: path}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watches = append(d.watches, w)
	return w.ID
}

// RemoveWatch deletes a watch by id.
func (d *DebugExecutor) RemoveWatch(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.watches {
		if w.ID == id {
			d.watches = append(d.watches[:i], d.watches[i+1:]...)
			return
		}
	}
}

// Watches returns a snapshot of all watches with their latest values.
func (d *DebugExecutor) Watches() []Watch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Watch, len(d.watches))
	for i, w := range d.watches {
		out[i] = *w
	}
	return out
}

// evaluateWatches re-evaluates every watch against the node's result and the
// current variables. Errors are stored on the watch, never returned.
func (d *DebugExecutor) evaluateWatches(ctx context.Context, node graph.Node, result interface{}) {
	d.mu.Lock()
	watches := make([]*Watch, len(d.watches))
	copy(watches, d.watches)
	d.mu.Unlock()
	if len(watches) == 0 {
		return
	}

	scope := map[string]interface{}{
		"result":    result,
		"nodeData":  node.Data,
		"variables": d.ec.Variables(),
	}
	for _, w := range watches {
		value, err := d.eval.Evaluate(ctx, w.Path, scope)
		d.mu.Lock()
		if err != nil {
			w.LastError = err.Error()
		} else {
			w.LastValue = value
			w.LastError = ""
		}
		d.mu.Unlock()
	}
}

// recordFlow captures one data-flow edge per resolved input connection.
func (d *DebugExecutor) recordFlow(node graph.Node, resolved []ResolvedInput) {
	if len(resolved) == 0 {
		return
	}
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, in := range resolved {
		d.history.RecordFlow(DataFlowEdge{
			SourceNodeID: in.Connection.SourceNodeID,
			TargetNodeID: node.ID,
			InputName:    in.InputName,
			Data:         in.Value,
			Timestamp:    now,
		})
	}
}

// Steps returns the retained execution steps, oldest first.
func (d *DebugExecutor) Steps() []ExecutionStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Steps()
}

// StepAt returns the retained step at index, 0 being the oldest retained.
func (d *DebugExecutor) StepAt(index int) (ExecutionStep, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.StepAt(index)
}

// FlowEdges returns the retained data-flow edges, oldest first.
func (d *DebugExecutor) FlowEdges() []DataFlowEdge {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.FlowEdges()
}

// Paused reports whether the run is currently parked and at which node.
func (d *DebugExecutor) Paused() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pausedAt, d.pausedAt != ""
}

// Aborted reports whether Abort has been called.
func (d *DebugExecutor) Aborted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aborted
}
