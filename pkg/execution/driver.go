package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"github.com/wehubfusion/Daedalus/pkg/runlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Debug configures the debug decorator wrapped around the executor.
	Debug DebugConfig
	// TracerName names the OpenTelemetry tracer used for per-node spans.
	TracerName string
}

// DefaultEngineConfig returns a config with debugging off.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Debug:      DefaultDebugConfig(),
		TracerName: "daedalus.engine",
	}
}

// StepResult is what one pull on the iterator yields.
type StepResult struct {
	// Done reports whether the run reached a terminal status with this step.
	Done bool
	// Status is the run status after this step.
	Status Status
	// NodeID identifies the node this step executed (or, for an error
	// terminal step, the node that failed). Empty on the completion and
	// stopped terminal steps.
	NodeID string
	// Output is the executed node's result.
	Output interface{}
	// Variables is a snapshot of the run variables after this step.
	Variables map[string]interface{}
	// Err carries the failure when Status is StatusError. Cancellation is
	// reported as StatusStopped with a nil Err.
	Err error
}

// runState is the per-run bundle the engine drives. One run at a time.
type runState struct {
	workflow    *graph.Workflow
	order       []string
	nodes       []graph.Node
	connections []graph.Connection
	position    int
	ec          *Context
	debug       *DebugExecutor
	ctx         context.Context
	cancel      context.CancelFunc
}

// Engine drives a workflow as a pull iterator: Start validates and orders the
// graph, each Next executes exactly one node, and Stop requests cancellation.
// An engine runs at most one workflow at a time; reaching a terminal status
// releases it for the next Start.
type Engine struct {
	registry *registry.Registry
	config   EngineConfig
	runlog   runlog.Service
	llm      TextGenerator
	logger   *zap.Logger
	tracer   trace.Tracer

	mu  sync.Mutex
	run *runState
}

// NewEngine creates an engine. svc and llm may be nil; logger may be nil.
func NewEngine(reg *registry.Registry, config EngineConfig, svc runlog.Service, llm TextGenerator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TracerName == "" {
		config.TracerName = "daedalus.engine"
	}
	return &Engine{
		registry: reg,
		config:   config,
		runlog:   svc,
		llm:      llm,
		logger:   logger,
		tracer:   otel.Tracer(config.TracerName),
	}
}

// Start validates the workflow and prepares a run. It fails with ErrRunActive
// while another run is live, with *graph.CycleError when the graph cannot be
// ordered, and with *SetupError when validation collected problems or the
// execution order came back empty.
func (e *Engine) Start(workflow *graph.Workflow, input map[string]interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		return ErrRunActive
	}

	analyzer := graph.NewAnalyzer(e.registry.Traits, e.logger)
	analysis, err := analyzer.Analyze(workflow.Nodes, workflow.Connections)
	if err != nil {
		return err
	}
	if len(analysis.ValidationErrors) > 0 {
		return &SetupError{Problems: analysis.ValidationErrors}
	}
	if len(analysis.ExecutionOrder) == 0 {
		return &SetupError{}
	}

	// Workflow variable defaults seed the store; caller input overrides them.
	seed := make(map[string]interface{}, len(workflow.Variables)+len(input))
	for _, v := range workflow.Variables {
		seed[v.Name] = v.DefaultValue
	}
	for k, v := range input {
		seed[k] = v
	}

	ec := NewContext(workflow.ID, seed, e.runlog, e.logger)
	exec := NewNodeExecutor(e.registry, ec, e.llm, e.logger)
	debug := NewDebugExecutor(exec, ec, e.config.Debug, e.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	e.run = &runState{
		workflow:    workflow,
		order:       analysis.ExecutionOrder,
		nodes:       analysis.ConnectedNodes,
		connections: workflow.Connections,
		ec:          ec,
		debug:       debug,
		ctx:         runCtx,
		cancel:      cancel,
	}

	e.logger.Info("run started",
		zap.String("workflowId", workflow.ID),
		zap.String("runId", ec.RunID()),
		zap.Int("nodes", len(analysis.ExecutionOrder)))
	return nil
}

// Next executes the next node in order and reports the run status after it.
// Once every node has run, it yields the terminal completion step; pulling an
// idle engine yields ErrNoActiveRun.
func (e *Engine) Next(ctx context.Context) StepResult {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run == nil {
		return StepResult{Done: true, Status: StatusStopped, Err: ErrNoActiveRun}
	}

	// Pruned nodes are passed over silently, so a pull always lands on a node
	// that actually executed (or on a terminal step).
	for {
		if run.ctx.Err() != nil {
			return e.finish(run, StatusStopped, nil)
		}
		if run.position >= len(run.order) {
			return e.finish(run, StatusCompleted, nil)
		}

		nodeID := run.order[run.position]
		run.position++
		node, ok := run.workflow.NodeByID(nodeID)
		if !ok {
			return e.finish(run, StatusError, fmt.Errorf("ordered node %q is missing from the workflow", nodeID))
		}

		output, err := e.executeNode(ctx, run, node)
		if err != nil {
			if IsCancellation(err) {
				return e.finish(run, StatusStopped, nil)
			}
			final := e.finish(run, StatusError, &NodeExecutionError{
				NodeID:   node.ID,
				NodeType: node.Type,
				Err:      err,
			})
			final.NodeID = node.ID
			return final
		}
		if run.ec.WasSkipped(node.ID) {
			continue
		}

		return StepResult{
			Status:    StatusRunning,
			NodeID:    node.ID,
			Output:    output,
			Variables: run.ec.Variables(),
		}
	}
}

// executeNode runs one node under a per-node span, with the caller's context
// bridged to the run context so Stop interrupts an in-flight node.
func (e *Engine) executeNode(ctx context.Context, run *runState, node graph.Node) (interface{}, error) {
	nodeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unbridge := context.AfterFunc(run.ctx, cancel)
	defer unbridge()

	nodeCtx, span := e.tracer.Start(nodeCtx, "workflow.node",
		trace.WithAttributes(
			attribute.String("workflow.id", run.workflow.ID),
			attribute.String("run.id", run.ec.RunID()),
			attribute.String("node.id", node.ID),
			attribute.String("node.type", node.Type),
		))
	defer span.End()

	output, err := run.debug.Execute(nodeCtx, node, run.nodes, run.connections)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return output, err
}

// Stop requests cancellation of the active run. The next pull yields the
// stopped terminal step; an in-flight node sees its context cancelled and a
// parked debug session is released. Safe to call when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	run.debug.Abort()
	e.logger.Info("run stop requested", zap.String("runId", run.ec.RunID()))
}

// RunToCompletion pulls the iterator until a terminal step and returns it.
func (e *Engine) RunToCompletion(ctx context.Context) StepResult {
	for {
		step := e.Next(ctx)
		if step.Done {
			return step
		}
	}
}

// Active reports whether a run is currently live.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// Debug returns the active run's debug decorator, or nil when idle.
func (e *Engine) Debug() *DebugExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.debug
}

// RunID returns the active run's identifier, or empty when idle.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return ""
	}
	return e.run.ec.RunID()
}

// finish reports the terminal status to the run-log collaborator, drops the
// run state and releases the engine for the next Start.
func (e *Engine) finish(run *runState, status Status, err error) StepResult {
	variables := run.ec.Variables()
	run.ec.UpdateRunStatus(runlogStatus(status))
	run.ec.Cleanup()
	run.cancel()

	e.mu.Lock()
	if e.run == run {
		e.run = nil
	}
	e.mu.Unlock()

	fields := []zap.Field{
		zap.String("runId", run.ec.RunID()),
		zap.String("status", string(status)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.logger.Info("run finished", fields...)

	return StepResult{Done: true, Status: status, Variables: variables, Err: err}
}

// runlogStatus maps a driver status to the run-log wire status.
func runlogStatus(status Status) string {
	switch status {
	case StatusCompleted:
		return runlog.StatusCompleted
	case StatusError:
		return runlog.StatusFailed
	case StatusStopped:
		return runlog.StatusStopped
	default:
		return runlog.StatusRunning
	}
}
