package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Manager provides a high-level interface for audit logging
type Manager struct {
	writer *Writer
	reader *Reader
}

// ManagerConfig holds configuration for the audit manager
type ManagerConfig struct {
	BasePath      string
	BatchSize     int
	FlushInterval time.Duration
	MaxFileSize   int64
	Logger        *logger.Logger
}

// NewManager creates a new audit log manager
func NewManager(config ManagerConfig) (*Manager, error) {
	writer, err := NewWriter(WriterConfig{
		BasePath:      config.BasePath,
		BatchSize:     config.BatchSize,
		FlushInterval: config.FlushInterval,
		MaxFileSize:   config.MaxFileSize,
		Logger:        config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	reader, err := NewReader(config.BasePath)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	return &Manager{
		writer: writer,
		reader: reader,
	}, nil
}

// Log writes an audit log entry
func (m *Manager) Log(ctx context.Context, log *AuditLog) error {
	return m.writer.Write(log)
}

// Query flushes pending entries and retrieves audit logs matching the filter
func (m *Manager) Query(ctx context.Context, filter QueryFilter) ([]*AuditLog, error) {
	if err := m.writer.Flush(); err != nil {
		return nil, err
	}
	return m.reader.Query(filter)
}

// GetByID retrieves a single audit log by ID
func (m *Manager) GetByID(ctx context.Context, id string) (*AuditLog, error) {
	if err := m.writer.Flush(); err != nil {
		return nil, err
	}
	return m.reader.GetByID(id)
}

// Flush forces a flush of buffered entries
func (m *Manager) Flush() error {
	return m.writer.Flush()
}

// Close gracefully shuts down the manager
func (m *Manager) Close() error {
	return m.writer.Close()
}

// Stats returns writer statistics
func (m *Manager) Stats() WriterStats {
	return m.writer.Stats()
}

// EventBuilder helps build audit log entries
type EventBuilder struct {
	log *AuditLog
}

// NewEventBuilder creates a new event builder
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		log: &AuditLog{
			Result:    ResultSuccess,
			CreatedAt: time.Now().UTC(),
		},
	}
}

// WithEventType sets the event type
func (b *EventBuilder) WithEventType(eventType string) *EventBuilder {
	b.log.EventType = eventType
	return b
}

// WithActor sets the actor information
func (b *EventBuilder) WithActor(actorID int64, actorName, actorRole string) *EventBuilder {
	b.log.ActorID = actorID
	b.log.ActorName = actorName
	b.log.ActorRole = actorRole
	return b
}

// WithTarget sets the target information
func (b *EventBuilder) WithTarget(targetType string, targetID int64) *EventBuilder {
	b.log.TargetType = targetType
	b.log.TargetID = targetID
	return b
}

// WithAction sets the action
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.log.Action = action
	return b
}

// WithResult sets the result
func (b *EventBuilder) WithResult(result string) *EventBuilder {
	b.log.Result = result
	return b
}

// WithError sets the error message
func (b *EventBuilder) WithError(err error) *EventBuilder {
	if err != nil {
		b.log.ErrorMessage = err.Error()
		b.log.Result = ResultFailure
	}
	return b
}

// WithBeforeState sets the before state
func (b *EventBuilder) WithBeforeState(state map[string]interface{}) *EventBuilder {
	b.log.BeforeState = state
	return b
}

// WithAfterState sets the after state
func (b *EventBuilder) WithAfterState(state map[string]interface{}) *EventBuilder {
	b.log.AfterState = state
	return b
}

// WithRequest copies request details stored by WithRequestInfo
func (b *EventBuilder) WithRequest(ctx context.Context) *EventBuilder {
	if info, ok := RequestInfoFromContext(ctx); ok {
		b.log.IPAddress = info.IPAddress
		b.log.UserAgent = info.UserAgent
		b.log.RequestID = info.RequestID
	}
	return b
}

// Build returns the constructed audit log
func (b *EventBuilder) Build() *AuditLog {
	return b.log
}
