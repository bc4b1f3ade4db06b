package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPublisherConfig(t *testing.T) {
	config := DefaultPublisherConfig("nats://localhost:4222")

	assert.Equal(t, "nats://localhost:4222", config.URL)
	assert.Equal(t, "daedalus-runlog", config.Name)
	assert.Equal(t, "workflow.run", config.SubjectPrefix)
	assert.Equal(t, 10, config.MaxReconnects)
	assert.Equal(t, 2*time.Second, config.ReconnectWait)
	assert.Equal(t, 5*time.Second, config.Timeout)
}

func TestPublisherConfigValidateAppliesDefaults(t *testing.T) {
	config := PublisherConfig{URL: "nats://localhost:4222"}
	config.Validate()

	assert.Equal(t, "daedalus-runlog", config.Name)
	assert.Equal(t, "workflow.run", config.SubjectPrefix)
	assert.Equal(t, 2*time.Second, config.ReconnectWait)
	assert.Equal(t, 5*time.Second, config.Timeout)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), PublisherConfig{}, nil)
	require.Error(t, err)
}

func TestRecorderLifecycle(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	runID, err := rec.CreateRun(ctx, "wf-1", map[string]interface{}{"input": "x"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	status, ok := rec.RunStatus(runID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, rec.AddNodeLog(ctx, NodeLogEntry{
		RunID:  runID,
		NodeID: "a",
		Status: "completed",
	}))
	require.NoError(t, rec.UpdateRun(ctx, runID, StatusCompleted))

	status, _ = rec.RunStatus(runID)
	assert.Equal(t, StatusCompleted, status)
	require.Len(t, rec.NodeLogs(), 1)
	assert.Equal(t, "a", rec.NodeLogs()[0].NodeID)
}

func TestRecorderFailAll(t *testing.T) {
	rec := NewRecorder()
	rec.FailAll = true
	ctx := context.Background()

	_, err := rec.CreateRun(ctx, "wf-1", nil)
	require.Error(t, err)
	require.Error(t, rec.AddNodeLog(ctx, NodeLogEntry{}))
	require.Error(t, rec.UpdateRun(ctx, "r", StatusStopped))
}
