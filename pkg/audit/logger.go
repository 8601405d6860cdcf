package audit

import (
	"context"
	"time"

	"github.com/canopysoft/atrium/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
// if none is set
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NewEvent creates an event stamped with the request context's actor and
// request id
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

// RouteDecision records a route authorization denial. Allowed navigations
// are not audited; they are visible in request logs and metrics.
func RouteDecision(ctx context.Context, eventType EventType, userID *int64, tenantID *string, path, routeKey string) error {
	event := NewEvent(ctx, eventType, EventStatusDenied)
	event.UserID = userID
	event.TenantID = tenantID
	event.Path = path
	event.RouteKey = routeKey
	return FromContext(ctx).Log(ctx, event)
}

// RoleChange records a role lifecycle event
func RoleChange(ctx context.Context, eventType EventType, status EventStatus, userID *int64, roleID int64, message string) error {
	event := NewEvent(ctx, eventType, status)
	event.UserID = userID
	event.RoleID = &roleID
	event.Message = message
	return FromContext(ctx).Log(ctx, event)
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }
