package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// PublisherConfig holds configuration for the NATS run-log publisher.
type PublisherConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// Name is the client name for identifying this connection
	Name string

	// SubjectPrefix is the prefix for run-log subjects. Events are published
	// to <prefix>.created, <prefix>.node and <prefix>.status.
	SubjectPrefix string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for unlimited reconnects.
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts
	ReconnectWait time.Duration

	// Timeout is the connection timeout
	Timeout time.Duration
}

// DefaultPublisherConfig returns a configuration with sensible defaults.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:           url,
		Name:          "daedalus-runlog",
		SubjectPrefix: "workflow.run",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Validate applies defaults to zero-valued fields.
func (c *PublisherConfig) Validate() {
	if c.Name == "" {
		c.Name = "daedalus-runlog"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "workflow.run"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Publisher is a Service implementation that publishes run-log events as JSON
// over NATS core subjects. Publishing is fire-and-forget; a disconnected or
// slow server surfaces as an error that the engine logs and discards.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// runEvent is the wire shape of run lifecycle events.
type runEvent struct {
	RunID      string                 `json:"runId"`
	WorkflowID string                 `json:"workflowId,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Connect establishes a NATS connection and returns a Publisher over it.
func Connect(ctx context.Context, config PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	config.Validate()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.Timeout(config.Timeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("run-log connection lost", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("run-log connection restored", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(config.URL, opts...)
		resultCh <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", res.err)
		}
		return NewPublisher(res.conn, config.SubjectPrefix, logger), nil
	}
}

// NewPublisher wraps an existing NATS connection. The caller keeps ownership
// of the connection unless Close is used.
func NewPublisher(conn *nats.Conn, subjectPrefix string, logger *zap.Logger) *Publisher {
	if subjectPrefix == "" {
		subjectPrefix = "workflow.run"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, prefix: subjectPrefix, logger: logger}
}

// CreateRun implements Service. The run id is generated locally so the engine
// never waits on the collaborator.
func (p *Publisher) CreateRun(ctx context.Context, workflowID string, input map[string]interface{}) (string, error) {
	runID := uuid.NewString()
	err := p.publish(p.prefix+".created", runEvent{
		RunID:      runID,
		WorkflowID: workflowID,
		Status:     StatusRunning,
		Input:      input,
		Timestamp:  time.Now().UTC(),
	})
	return runID, err
}

// AddNodeLog implements Service.
func (p *Publisher) AddNodeLog(ctx context.Context, entry NodeLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return p.publish(p.prefix+".node", entry)
}

// UpdateRun implements Service.
func (p *Publisher) UpdateRun(ctx context.Context, runID, status string) error {
	return p.publish(p.prefix+".status", runEvent{
		RunID:     runID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, payload interface{}) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("run-log publisher is not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode run-log event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish run-log event: %w", err)
	}
	return nil
}

// Close drains the underlying connection, allowing in-flight events to flush.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("error draining run-log connection: %w", err)
	}
	return nil
}
