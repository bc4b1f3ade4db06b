// Package runlog defines the run-log collaborator: an external sink that
// records run lifecycle and per-node logs. Every call is best-effort from the
// engine's perspective; failures never reach the run.
package runlog

import (
	"context"
	"time"
)

// Run terminal statuses reported through UpdateRun.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

// NodeLogEntry is one per-node record forwarded to the collaborator.
type NodeLogEntry struct {
	RunID     string                 `json:"runId"`
	NodeID    string                 `json:"nodeId"`
	Status    string                 `json:"status"`
	Inputs    map[string]interface{} `json:"inputs,omitempty"`
	Outputs   interface{}            `json:"outputs,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Service is the run-log collaborator contract.
type Service interface {
	// CreateRun registers a new run and returns its id.
	CreateRun(ctx context.Context, workflowID string, input map[string]interface{}) (string, error)
	// AddNodeLog records a per-node event.
	AddNodeLog(ctx context.Context, entry NodeLogEntry) error
	// UpdateRun records a run status transition.
	UpdateRun(ctx context.Context, runID, status string) error
}
