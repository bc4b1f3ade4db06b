package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

var (
	// ErrRunActive is returned when a run is started while another is active.
	ErrRunActive = errors.New("a run is already active on this engine")

	// ErrNoActiveRun is returned when the iterator is driven without a run.
	ErrNoActiveRun = errors.New("no active run")

	// ErrCancelled is the distinguished cancellation kind. The driver reports
	// it as a stopped run, never as a failure.
	ErrCancelled = errors.New("run cancelled")

	// ErrLoopMaxIterations is returned when a loop node is configured without
	// a positive maxIterations ceiling.
	ErrLoopMaxIterations = errors.New("loop node requires a positive maxIterations")
)

// SetupError indicates the graph failed pre-run validation: structural
// violations were collected, or the execution order came back empty.
type SetupError struct {
	// Problems are the collected validation messages (may be empty when the
	// order itself was empty).
	Problems []string
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	if len(e.Problems) == 0 {
		return "workflow has no executable nodes"
	}
	return fmt.Sprintf("workflow validation failed: %s", strings.Join(e.Problems, "; "))
}

// IsSetupError reports whether err is a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

// NodeExecutionError wraps whatever a node implementation or control-flow
// evaluation threw, identifying the failing node.
type NodeExecutionError struct {
	NodeID   string
	NodeType string
	Err      error
}

// Error implements the error interface.
func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q (%s) failed: %v", e.NodeID, e.NodeType, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeExecutionError) Unwrap() error { return e.Err }

// IsNodeExecutionError reports whether err is a NodeExecutionError.
func IsNodeExecutionError(err error) bool {
	var ne *NodeExecutionError
	return errors.As(err, &ne)
}

// IsCancellation reports whether err is the distinguished cancellation kind,
// including context cancellation surfaced from inside a node.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsCycleError re-exports graph.IsCycleError for callers that only import
// the execution package.
func IsCycleError(err error) bool {
	var ce *graph.CycleError
	return errors.As(err, &ce)
}
