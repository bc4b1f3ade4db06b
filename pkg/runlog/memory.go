package runlog

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Recorder is an in-memory Service used in tests and local development.
type Recorder struct {
	mu       sync.Mutex
	runs     map[string]string // runID -> last status
	nodeLogs []NodeLogEntry

	// FailAll makes every call return an error, for exercising the engine's
	// best-effort handling.
	FailAll bool
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{runs: make(map[string]string)}
}

// CreateRun implements Service.
func (r *Recorder) CreateRun(ctx context.Context, workflowID string, input map[string]interface{}) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return "", errRecorderFailure
	}
	runID := uuid.NewString()
	r.runs[runID] = StatusRunning
	return runID, nil
}

// AddNodeLog implements Service.
func (r *Recorder) AddNodeLog(ctx context.Context, entry NodeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return errRecorderFailure
	}
	r.nodeLogs = append(r.nodeLogs, entry)
	return nil
}

// UpdateRun implements Service.
func (r *Recorder) UpdateRun(ctx context.Context, runID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return errRecorderFailure
	}
	r.runs[runID] = status
	return nil
}

// RunStatus returns the last recorded status for a run.
func (r *Recorder) RunStatus(runID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.runs[runID]
	return status, ok
}

// NodeLogs returns a copy of all recorded node logs.
func (r *Recorder) NodeLogs() []NodeLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NodeLogEntry, len(r.nodeLogs))
	copy(out, r.nodeLogs)
	return out
}

type recorderError string

func (e recorderError) Error() string { return string(e) }

const errRecorderFailure = recorderError("run-log recorder configured to fail")
