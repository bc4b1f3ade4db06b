package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Daedalus/pkg/runlog"
	"go.uber.org/zap"
)

// DefaultMaxLogEntries caps the in-memory run log; oldest entries are trimmed
// once exceeded.
const DefaultMaxLogEntries = 500

// LogEntry is one record in the run-scoped in-memory log.
type LogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	NodeID    string                 `json:"nodeId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Context owns all run-scoped mutable state: the variable store, the per-node
// result cache and the bounded log. Nodes execute strictly one at a time, so
// none of the state needs locking; the context belongs exclusively to the
// active run and is dropped by Cleanup when the run reaches a terminal status.
type Context struct {
	runID      string
	workflowID string

	variables  map[string]interface{}
	results    map[string]interface{}
	hasResult  map[string]bool
	skipped    map[string]bool
	logs       []LogEntry
	maxLogs    int
	runlog     runlog.Service
	logger     *zap.Logger
	cleaned    bool
}

// NewContext creates the state for one run. input seeds the variable store.
// svc may be nil; when present, a run is registered with it best-effort.
// logger may be nil.
func NewContext(workflowID string, input map[string]interface{}, svc runlog.Service, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{
		workflowID: workflowID,
		variables:  make(map[string]interface{}),
		results:    make(map[string]interface{}),
		hasResult:  make(map[string]bool),
		skipped:    make(map[string]bool),
		maxLogs:    DefaultMaxLogEntries,
		runlog:     svc,
		logger:     logger,
	}
	for k, v := range input {
		c.variables[k] = v
	}

	c.runID = uuid.NewString()
	if svc != nil {
		func() {
			defer c.recoverCollaborator("createRun")
			if id, err := svc.CreateRun(context.Background(), workflowID, input); err != nil {
				logger.Warn("run-log createRun failed", zap.Error(err))
			} else if id != "" {
				c.runID = id
			}
		}()
	}
	return c
}

// RunID returns the identifier of this run.
func (c *Context) RunID() string { return c.runID }

// GetVariable reads a run-scoped variable.
func (c *Context) GetVariable(name string) (interface{}, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// SetVariable writes a run-scoped variable.
func (c *Context) SetVariable(name string, value interface{}) {
	c.variables[name] = value
}

// Variables returns a snapshot copy of the variable store.
func (c *Context) Variables() map[string]interface{} {
	out := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// SetNodeResult caches a node's result. Explicit nils (pruned branches) are
// tracked so successors can distinguish "ran and produced nil" from "not run".
func (c *Context) SetNodeResult(nodeID string, value interface{}) {
	c.results[nodeID] = value
	c.hasResult[nodeID] = true
}

// GetNodeResult reads a node's cached result.
func (c *Context) GetNodeResult(nodeID string) (interface{}, bool) {
	if !c.hasResult[nodeID] {
		return nil, false
	}
	return c.results[nodeID], true
}

// HasNodeResult reports whether a node has run (including pruned nil results).
func (c *Context) HasNodeResult(nodeID string) bool {
	return c.hasResult[nodeID]
}

// MarkSkipped records that a node was pruned rather than executed.
func (c *Context) MarkSkipped(nodeID string) {
	c.skipped[nodeID] = true
}

// WasSkipped reports whether a node was pruned by the branch-pruning rule.
func (c *Context) WasSkipped(nodeID string) bool {
	return c.skipped[nodeID]
}

// AddLog appends to the bounded in-memory log and forwards a derived entry to
// the run-log collaborator. Forwarding is fire-and-forget: failures are caught
// and logged locally, never surfaced to the caller.
func (c *Context) AddLog(level, message, nodeID string, payload map[string]interface{}) {
	entry := LogEntry{
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	c.logs = append(c.logs, entry)
	if len(c.logs) > c.maxLogs {
		c.logs = c.logs[len(c.logs)-c.maxLogs:]
	}

	if c.runlog != nil && nodeID != "" {
		func() {
			defer c.recoverCollaborator("addNodeLog")
			err := c.runlog.AddNodeLog(context.Background(), runlog.NodeLogEntry{
				RunID:     c.runID,
				NodeID:    nodeID,
				Status:    level,
				Outputs:   payload,
				Error:     "",
				Timestamp: entry.Timestamp,
			})
			if err != nil {
				c.logger.Warn("run-log addNodeLog failed", zap.String("nodeId", nodeID), zap.Error(err))
			}
		}()
	}
}

// ReportNode forwards a node completion record to the run-log collaborator,
// best-effort.
func (c *Context) ReportNode(nodeID, status string, inputs map[string]interface{}, outputs interface{}, nodeErr error) {
	if c.runlog == nil {
		return
	}
	func() {
		defer c.recoverCollaborator("addNodeLog")
		entry := runlog.NodeLogEntry{
			RunID:     c.runID,
			NodeID:    nodeID,
			Status:    status,
			Inputs:    inputs,
			Outputs:   outputs,
			Timestamp: time.Now().UTC(),
		}
		if nodeErr != nil {
			entry.Error = nodeErr.Error()
		}
		if err := c.runlog.AddNodeLog(context.Background(), entry); err != nil {
			c.logger.Warn("run-log addNodeLog failed", zap.String("nodeId", nodeID), zap.Error(err))
		}
	}()
}

// UpdateRunStatus notifies the run-log collaborator that the run reached a
// terminal status. Best-effort.
func (c *Context) UpdateRunStatus(status string) {
	if c.runlog == nil {
		return
	}
	func() {
		defer c.recoverCollaborator("updateRun")
		if err := c.runlog.UpdateRun(context.Background(), c.runID, status); err != nil {
			c.logger.Warn("run-log updateRun failed", zap.String("status", status), zap.Error(err))
		}
	}()
}

// Logs returns a snapshot copy of the in-memory log.
func (c *Context) Logs() []LogEntry {
	out := make([]LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Cleanup drops all in-memory state. It is called exactly once, when the
// driver reports a terminal status; further calls are no-ops.
func (c *Context) Cleanup() {
	if c.cleaned {
		return
	}
	c.cleaned = true
	c.variables = map[string]interface{}{}
	c.results = map[string]interface{}{}
	c.hasResult = map[string]bool{}
	c.skipped = map[string]bool{}
	c.logs = nil
	c.logger.Debug("execution context cleaned up", zap.String("runId", c.runID))
}

// recoverCollaborator absorbs panics from the run-log collaborator so they
// never take down the run.
func (c *Context) recoverCollaborator(op string) {
	if r := recover(); r != nil {
		c.logger.Warn("run-log collaborator panicked",
			zap.String("operation", op),
			zap.Any("panic", r))
	}
}
